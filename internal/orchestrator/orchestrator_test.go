package orchestrator_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3ns/internal/orchestrator"
	"github.com/Mohsinsiddi/w3ns/internal/pricing"
	"github.com/Mohsinsiddi/w3ns/internal/provider"
	"github.com/Mohsinsiddi/w3ns/internal/registry"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type form struct {
	name, record string
	editing      bool
	resets       int
}

func (f *form) Name() string   { return f.name }
func (f *form) Record() string { return f.record }
func (f *form) Editing() bool  { return f.editing }
func (f *form) Reset() {
	f.resets++
	f.name, f.record, f.editing = "", "", false
}

type refresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *refresher) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *refresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func minedTx(op string, hash string, status uint64) *registry.Tx {
	h := common.HexToHash(hash)
	return registry.NewTx(op, h, func(context.Context) (*registry.Receipt, error) {
		return &registry.Receipt{TxHash: h, Status: hexutil.Uint64(status)}, nil
	})
}

func newOrch(reg orchestrator.Registry, cache orchestrator.Refresher) (*orchestrator.Orchestrator, *[]orchestrator.Transition) {
	o := orchestrator.New(reg, cache, orchestrator.Config{Decimals: 18})
	var seen []orchestrator.Transition
	o.OnTransition(func(tr orchestrator.Transition) { seen = append(seen, tr) })
	return o, &seen
}

func states(trs []orchestrator.Transition) []orchestrator.State {
	out := make([]orchestrator.State, len(trs))
	for i, tr := range trs {
		out[i] = tr.To
	}
	return out
}

var wei5 = pricing.Wei(pricing.DefaultTiers.FivePlus, 18)

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestRegisterEmptyNameIsNoop(t *testing.T) {
	reg := new(registry.MockRegistry)
	cache := &refresher{}
	o, seen := newOrch(reg, cache)

	_, err := o.Register(context.Background(), &form{})
	assert.ErrorIs(t, err, orchestrator.ErrEmptyInput)
	assert.Equal(t, []orchestrator.State{orchestrator.Validating, orchestrator.Idle}, states(*seen))
	reg.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, cache.count())
}

func TestRegisterShortNameNeverTouchesRegistry(t *testing.T) {
	reg := new(registry.MockRegistry)
	o, seen := newOrch(reg, &refresher{})
	f := &form{name: "ab", record: "x"}

	_, err := o.Register(context.Background(), f)
	assert.ErrorIs(t, err, orchestrator.ErrDomainTooShort)
	assert.Equal(t, []orchestrator.State{orchestrator.Validating, orchestrator.Failed, orchestrator.Idle}, states(*seen))
	assert.Equal(t, "ab", f.name, "fields kept")
	reg.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
	reg.AssertNotCalled(t, "SetRecord", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, orchestrator.Idle, o.State())
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestRegisterWithRecord(t *testing.T) {
	reg := new(registry.MockRegistry)
	reg.On("Register", mock.Anything, "ninja", wei5).Return(minedTx(registry.MethodRegister, "0x01", 1), nil)
	reg.On("SetRecord", mock.Anything, "ninja", "hello").Return(minedTx(registry.MethodSetRecord, "0x02", 1), nil)
	cache := &refresher{}
	o, seen := newOrch(reg, cache)
	f := &form{name: "ninja", record: "hello"}

	res, err := o.Register(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "ninja", res.Name)
	assert.Equal(t, "0.01", res.Fee.String())
	assert.Equal(t, common.HexToHash("0x01"), res.RegisterTx)
	assert.Equal(t, common.HexToHash("0x02"), res.RecordTx)

	assert.Equal(t, []orchestrator.State{
		orchestrator.Validating,
		orchestrator.AwaitingRegisterConfirm,
		orchestrator.AwaitingRecordConfirm,
		orchestrator.RefreshingCache,
		orchestrator.Idle,
	}, states(*seen))
	assert.Equal(t, 1, cache.count())
	assert.Equal(t, 1, f.resets, "fields cleared")
	reg.AssertExpectations(t)
}

func TestRegisterWithoutRecordSkipsSetRecord(t *testing.T) {
	reg := new(registry.MockRegistry)
	fee := pricing.Wei(pricing.DefaultTiers.Three, 18)
	reg.On("Register", mock.Anything, "abc", fee).Return(minedTx(registry.MethodRegister, "0x01", 1), nil)
	o, seen := newOrch(reg, &refresher{})

	res, err := o.Register(context.Background(), &form{name: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "0.05", res.Fee.String())
	assert.NotContains(t, states(*seen), orchestrator.AwaitingRecordConfirm)
	reg.AssertNotCalled(t, "SetRecord", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterReverted(t *testing.T) {
	reg := new(registry.MockRegistry)
	reg.On("Register", mock.Anything, "ninja", wei5).Return(minedTx(registry.MethodRegister, "0x01", 0), nil)
	cache := &refresher{}
	o, seen := newOrch(reg, cache)
	f := &form{name: "ninja", record: "hello"}

	_, err := o.Register(context.Background(), f)
	assert.ErrorIs(t, err, orchestrator.ErrTransactionReverted)
	assert.Equal(t, []orchestrator.State{
		orchestrator.Validating,
		orchestrator.AwaitingRegisterConfirm,
		orchestrator.Failed,
		orchestrator.Idle,
	}, states(*seen))
	reg.AssertNotCalled(t, "SetRecord", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, cache.count())
	assert.Equal(t, "ninja", f.name)
}

func TestRegisterRejectedInWallet(t *testing.T) {
	reg := new(registry.MockRegistry)
	rejected := &registry.RPCError{Op: registry.MethodRegister, Err: &provider.Error{Kind: provider.KindUserRejected, Code: 4001}}
	reg.On("Register", mock.Anything, "ninja", wei5).Return(nil, rejected)
	o, seen := newOrch(reg, &refresher{})

	_, err := o.Register(context.Background(), &form{name: "ninja"})
	assert.ErrorIs(t, err, provider.ErrUserRejected)
	var rerr *registry.RPCError
	assert.ErrorAs(t, err, &rerr)

	last := (*seen)[len(*seen)-2]
	assert.Equal(t, orchestrator.Failed, last.To)
	assert.Equal(t, err, last.Err)
}

func TestRegisterPartialSuccess(t *testing.T) {
	reg := new(registry.MockRegistry)
	boom := errors.New("nonce too low")
	reg.On("Register", mock.Anything, "ninja", wei5).Return(minedTx(registry.MethodRegister, "0x01", 1), nil)
	reg.On("SetRecord", mock.Anything, "ninja", "hello").Return(nil, &registry.RPCError{Op: registry.MethodSetRecord, Err: boom})
	cache := &refresher{}
	o, seen := newOrch(reg, cache)
	f := &form{name: "ninja", record: "hello"}

	res, err := o.Register(context.Background(), f)
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrPartialSuccess)
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.Equal(t, common.HexToHash("0x01"), res.RegisterTx)

	assert.Equal(t, 1, cache.count(), "cache still refreshed so the new name shows")
	assert.Zero(t, f.resets, "fields kept for retry")
	assert.Equal(t, []orchestrator.State{
		orchestrator.Validating,
		orchestrator.AwaitingRegisterConfirm,
		orchestrator.RefreshingCache,
		orchestrator.Failed,
		orchestrator.Idle,
	}, states(*seen))
}

func TestRegisterRecordRevertedIsPartial(t *testing.T) {
	reg := new(registry.MockRegistry)
	reg.On("Register", mock.Anything, "ninja", wei5).Return(minedTx(registry.MethodRegister, "0x01", 1), nil)
	reg.On("SetRecord", mock.Anything, "ninja", "hello").Return(minedTx(registry.MethodSetRecord, "0x02", 0), nil)
	o, _ := newOrch(reg, &refresher{})

	res, err := o.Register(context.Background(), &form{name: "ninja", record: "hello"})
	assert.ErrorIs(t, err, orchestrator.ErrPartialSuccess)
	assert.ErrorIs(t, err, orchestrator.ErrTransactionReverted)
	assert.Equal(t, common.HexToHash("0x02"), res.RecordTx)
}

func TestCacheRefreshFailureIsNotFatal(t *testing.T) {
	reg := new(registry.MockRegistry)
	reg.On("Register", mock.Anything, "ninja", wei5).Return(minedTx(registry.MethodRegister, "0x01", 1), nil)
	o, _ := newOrch(reg, &refresher{err: errors.New("rpc down")})
	f := &form{name: "ninja"}

	_, err := o.Register(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 1, f.resets)
}

func TestSettleDelayHonoursContext(t *testing.T) {
	reg := new(registry.MockRegistry)
	reg.On("Register", mock.Anything, "ninja", wei5).Return(minedTx(registry.MethodRegister, "0x01", 1), nil)
	cache := &refresher{}
	o := orchestrator.New(reg, cache, orchestrator.Config{Decimals: 18, SettleDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	o.OnTransition(func(tr orchestrator.Transition) {
		if tr.To == orchestrator.RefreshingCache {
			cancel()
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.Register(ctx, &form{name: "ninja"})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("settle delay ignored cancellation")
	}
	assert.Zero(t, cache.count())
}

// ---------------------------------------------------------------------------
// Busy guard / pending
// ---------------------------------------------------------------------------

func TestBusyGuard(t *testing.T) {
	reg := new(registry.MockRegistry)
	release := make(chan struct{})
	started := make(chan struct{})
	h := common.HexToHash("0x0a")
	blocking := registry.NewTx(registry.MethodRegister, h, func(ctx context.Context) (*registry.Receipt, error) {
		close(started)
		<-release
		return &registry.Receipt{TxHash: h, Status: 1}, nil
	})
	reg.On("Register", mock.Anything, "ninja", wei5).Return(blocking, nil).Once()
	o, _ := newOrch(reg, &refresher{})

	errc := make(chan error, 1)
	go func() {
		_, err := o.Register(context.Background(), &form{name: "ninja"})
		errc <- err
	}()
	<-started

	assert.True(t, o.Busy())
	p, ok := o.Pending()
	require.True(t, ok)
	assert.Equal(t, orchestrator.PendingRegister, p.Kind)
	assert.Equal(t, h, p.Hash)
	assert.Equal(t, orchestrator.AwaitingRegisterConfirm, o.State())

	_, err := o.Register(context.Background(), &form{name: "other"})
	assert.ErrorIs(t, err, orchestrator.ErrBusy)
	_, err = o.UpdateRecord(context.Background(), &form{name: "other", record: "x", editing: true})
	assert.ErrorIs(t, err, orchestrator.ErrBusy)

	close(release)
	require.NoError(t, <-errc)
	assert.False(t, o.Busy())
	_, ok = o.Pending()
	assert.False(t, ok)
}

func TestBusyReleasedAfterFailure(t *testing.T) {
	reg := new(registry.MockRegistry)
	reg.On("Register", mock.Anything, "ninja", wei5).Return(nil, errors.New("boom")).Once()
	reg.On("Register", mock.Anything, "ninja", wei5).Return(minedTx(registry.MethodRegister, "0x01", 1), nil).Once()
	o, _ := newOrch(reg, &refresher{})

	_, err := o.Register(context.Background(), &form{name: "ninja"})
	require.Error(t, err)
	assert.False(t, o.Busy())

	_, err = o.Register(context.Background(), &form{name: "ninja"})
	assert.NoError(t, err)
}

// ---------------------------------------------------------------------------
// UpdateRecord
// ---------------------------------------------------------------------------

func TestUpdateRecord(t *testing.T) {
	reg := new(registry.MockRegistry)
	reg.On("SetRecord", mock.Anything, "ninja", "new").Return(minedTx(registry.MethodSetRecord, "0x03", 1), nil)
	cache := &refresher{}
	o, seen := newOrch(reg, cache)
	f := &form{name: "ninja", record: "new", editing: true}

	res, err := o.UpdateRecord(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x03"), res.RecordTx)
	assert.Equal(t, []orchestrator.State{
		orchestrator.Validating,
		orchestrator.AwaitingRecordConfirm,
		orchestrator.RefreshingCache,
		orchestrator.Idle,
	}, states(*seen))
	assert.Equal(t, 1, cache.count())
	assert.Equal(t, 1, f.resets)
	reg.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateRecordRequiresEditMode(t *testing.T) {
	reg := new(registry.MockRegistry)
	o, _ := newOrch(reg, &refresher{})

	_, err := o.UpdateRecord(context.Background(), &form{name: "ninja", record: "x"})
	assert.ErrorIs(t, err, orchestrator.ErrNotEditing)
	reg.AssertNotCalled(t, "SetRecord", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateRecordEmptyIsNoop(t *testing.T) {
	reg := new(registry.MockRegistry)
	o, _ := newOrch(reg, &refresher{})

	_, err := o.UpdateRecord(context.Background(), &form{name: "ninja", editing: true})
	assert.ErrorIs(t, err, orchestrator.ErrEmptyInput)
}

func TestUpdateRecordReverted(t *testing.T) {
	reg := new(registry.MockRegistry)
	reg.On("SetRecord", mock.Anything, "ninja", "new").Return(minedTx(registry.MethodSetRecord, "0x03", 0), nil)
	cache := &refresher{}
	o, _ := newOrch(reg, cache)
	f := &form{name: "ninja", record: "new", editing: true}

	_, err := o.UpdateRecord(context.Background(), f)
	assert.ErrorIs(t, err, orchestrator.ErrTransactionReverted)
	assert.NotErrorIs(t, err, orchestrator.ErrPartialSuccess)
	assert.Zero(t, cache.count())
	assert.Zero(t, f.resets)
}

// ---------------------------------------------------------------------------
// Quote
// ---------------------------------------------------------------------------

func TestQuote(t *testing.T) {
	o := orchestrator.New(nil, nil, orchestrator.Config{Decimals: 18})

	fee, wei, err := o.Quote("abcd")
	require.NoError(t, err)
	assert.Equal(t, "0.03", fee.String())
	assert.Equal(t, 0, wei.Cmp(big.NewInt(3e16)))

	_, _, err = o.Quote("ab")
	assert.ErrorIs(t, err, orchestrator.ErrDomainTooShort)
}

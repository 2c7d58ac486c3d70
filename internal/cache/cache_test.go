package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3ns/internal/cache"
	"github.com/Mohsinsiddi/w3ns/internal/provider"
	"github.com/Mohsinsiddi/w3ns/internal/registry"
	"github.com/Mohsinsiddi/w3ns/internal/registry/registrytest"
)

const (
	alice = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	bob   = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
)

type account string

func (a account) CurrentAccount() string { return string(a) }

func contractCache(t *testing.T) (*cache.Cache, *registrytest.Contract) {
	t.Helper()
	f := provider.NewFake("0x13881", alice).Authorize()
	c := registrytest.Install(f)
	client := registry.NewClient(f, c.Address, account(alice))
	return cache.New(client, cache.WithConcurrency(2)), c
}

// ---------------------------------------------------------------------------
// Refresh against the in-memory contract
// ---------------------------------------------------------------------------

func TestRefreshPreservesRegistryOrder(t *testing.T) {
	dc, c := contractCache(t)
	c.Seed("zeta", alice, "z")
	c.Seed("alpha", bob, "a")
	c.Seed("mid", alice, "")
	c.Seed("omega", bob, "o")

	require.NoError(t, dc.Refresh(context.Background()))

	recs := dc.Records()
	require.Len(t, recs, 4)
	for i, want := range []string{"zeta", "alpha", "mid", "omega"} {
		assert.Equal(t, want, recs[i].Name)
		assert.Equal(t, i, recs[i].Index)
	}
	assert.Equal(t, "a", recs[1].Text)
	assert.Equal(t, bob, recs[1].Owner)
	assert.False(t, dc.Updated().IsZero())
}

func TestGetAndOwnedBy(t *testing.T) {
	dc, c := contractCache(t)
	c.Seed("ninja", alice, "hi")
	c.Seed("samurai", bob, "")
	c.Seed("ronin", alice, "")
	require.NoError(t, dc.Refresh(context.Background()))

	r, ok := dc.Get("ninja")
	require.True(t, ok)
	assert.Equal(t, "hi", r.Text)
	_, ok = dc.Get("ghost")
	assert.False(t, ok)

	mine := dc.OwnedBy("0xF39FD6E51AAD88F6F4CE6AB8827279CFFFB92266")
	require.Len(t, mine, 2)
	assert.Equal(t, "ninja", mine[0].Name)
	assert.Equal(t, "ronin", mine[1].Name)
	assert.Empty(t, dc.OwnedBy(""))
}

func TestSuggest(t *testing.T) {
	dc, c := contractCache(t)
	c.Seed("ninja", alice, "")
	c.Seed("ninjago", bob, "")
	c.Seed("samurai", bob, "")
	require.NoError(t, dc.Refresh(context.Background()))

	assert.ElementsMatch(t, []string{"ninja", "ninjago"}, dc.Suggest("nija", 5))
	assert.Len(t, dc.Suggest("nija", 1), 1)
	assert.Empty(t, dc.Suggest("xyz", 5))
	assert.Equal(t, []string{"ninjago"}, dc.Suggest("ninja", 5))
}

func TestLookupFailureKeepsPreviousSnapshot(t *testing.T) {
	dc, c := contractCache(t)
	c.Seed("ninja", alice, "v1")
	require.NoError(t, dc.Refresh(context.Background()))

	c.Seed("broken", bob, "x")
	c.FailLookup("broken")
	err := dc.Refresh(context.Background())
	require.Error(t, err)
	var rerr *registry.RPCError
	assert.ErrorAs(t, err, &rerr)
	assert.Contains(t, err.Error(), `"broken"`)

	assert.Equal(t, 1, dc.Len(), "old snapshot survives")
	_, ok := dc.Get("broken")
	assert.False(t, ok)
}

func TestRecordsReturnsCopy(t *testing.T) {
	dc, c := contractCache(t)
	c.Seed("ninja", alice, "v1")
	require.NoError(t, dc.Refresh(context.Background()))

	recs := dc.Records()
	recs[0].Text = "tampered"
	r, _ := dc.Get("ninja")
	assert.Equal(t, "v1", r.Text)
}

// ---------------------------------------------------------------------------
// Refresh against the mock registry
// ---------------------------------------------------------------------------

func TestListFailureLeavesCacheEmpty(t *testing.T) {
	reg := new(registry.MockRegistry)
	reg.On("ListNames", mock.Anything).Return(nil, errors.New("rpc down"))
	dc := cache.New(reg)

	err := dc.Refresh(context.Background())
	assert.ErrorContains(t, err, "listing names")
	assert.Zero(t, dc.Len())
	reg.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestDuplicateNamesKeepFirst(t *testing.T) {
	reg := new(registry.MockRegistry)
	reg.On("ListNames", mock.Anything).Return([]string{"abc", "abc", "def"}, nil)
	reg.On("Lookup", mock.Anything, mock.Anything).Return(registry.Entry{Owner: alice}, nil)
	dc := cache.New(reg)

	require.NoError(t, dc.Refresh(context.Background()))
	recs := dc.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "def", recs[1].Name)
	r, _ := dc.Get("def")
	assert.Equal(t, "def", r.Name)
}

func TestNewerRefreshSupersedesOlder(t *testing.T) {
	reg := new(registry.MockRegistry)
	started := make(chan struct{})
	reg.On("ListNames", mock.Anything).Run(func(args mock.Arguments) {
		close(started)
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.Canceled).Once()
	reg.On("ListNames", mock.Anything).Return([]string{"fresh"}, nil)
	reg.On("Lookup", mock.Anything, "fresh").Return(registry.Entry{Owner: bob, Record: "new"}, nil)
	dc := cache.New(reg)

	errc := make(chan error, 1)
	go func() { errc <- dc.Refresh(context.Background()) }()
	<-started

	require.NoError(t, dc.Refresh(context.Background()))
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, cache.ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("older refresh was not cancelled")
	}

	recs := dc.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "fresh", recs[0].Name)
}

func TestCallerCancellationIsNotSupersede(t *testing.T) {
	reg := new(registry.MockRegistry)
	reg.On("ListNames", mock.Anything).Return(nil, context.Canceled)
	dc := cache.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := dc.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, cache.ErrSuperseded)
}

func TestConcurrencyIsBounded(t *testing.T) {
	reg := new(registry.MockRegistry)
	names := []string{"aaa", "bbb", "ccc", "ddd", "eee", "fff"}
	reg.On("ListNames", mock.Anything).Return(names, nil)

	var mu sync.Mutex
	inFlight, peak := 0, 0
	reg.On("Lookup", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}).Return(registry.Entry{Owner: alice}, nil)

	dc := cache.New(reg, cache.WithConcurrency(2))
	require.NoError(t, dc.Refresh(context.Background()))
	assert.LessOrEqual(t, peak, 2)
	assert.Equal(t, len(names), dc.Len())
}

func TestRecordOwnedBy(t *testing.T) {
	r := cache.Record{Name: "ninja", Owner: alice}
	assert.True(t, r.OwnedBy("0xF39Fd6e51aad88F6F4ce6aB8827279cffFb92266"))
	assert.False(t, r.OwnedBy(bob))
	assert.False(t, r.OwnedBy(""))
}

// Package orchestrator sequences the on-chain mutations behind a submission:
// register, then optionally set the record, each awaited to a receipt,
// followed by a cache refresh.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/atomic"

	"github.com/Mohsinsiddi/w3ns/internal/logger"
	"github.com/Mohsinsiddi/w3ns/internal/pricing"
	"github.com/Mohsinsiddi/w3ns/internal/provider"
	"github.com/Mohsinsiddi/w3ns/internal/registry"
)

var (
	// ErrEmptyInput means there was nothing to submit. Callers treat it as a
	// no-op rather than a failure.
	ErrEmptyInput          = errors.New("nothing to submit")
	ErrDomainTooShort      = errors.New("domain must be at least 3 characters long")
	ErrTransactionReverted = errors.New("transaction reverted")
	// ErrPartialSuccess means the name was registered but setting its record
	// failed.
	ErrPartialSuccess = errors.New("name registered but record not set")
	ErrBusy           = errors.New("another submission is in progress")
	ErrNotEditing     = errors.New("record updates require edit mode")
)

// Registry is the subset of registry.Client the orchestrator drives.
type Registry interface {
	Register(ctx context.Context, name string, fee *big.Int) (*registry.Tx, error)
	SetRecord(ctx context.Context, name, record string) (*registry.Tx, error)
}

// Refresher rebuilds the domain cache.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Form supplies the fields being submitted.
type Form interface {
	Name() string
	Record() string
	Editing() bool
	// Reset clears the fields after a successful submission.
	Reset()
}

// Result describes a finished submission.
type Result struct {
	Name       string
	Fee        decimal.Decimal
	FeeWei     *big.Int
	RegisterTx common.Hash
	RecordTx   common.Hash
}

// Config configures an Orchestrator.
type Config struct {
	Policy *pricing.Policy
	// Decimals of the required chain's native currency.
	Decimals uint8
	// SettleDelay is waited before refreshing the cache so slow RPC nodes
	// catch up with the mined block. Zero refreshes immediately.
	SettleDelay time.Duration
	Logger      logger.Logger
}

// Orchestrator runs at most one submission at a time.
type Orchestrator struct {
	reg      Registry
	cache    Refresher
	policy   *pricing.Policy
	decimals uint8
	settle   time.Duration
	log      logger.Logger
	now      func() time.Time

	busy atomic.Bool

	mu        sync.Mutex
	state     State
	pending   *Pending
	observers []func(Transition)
}

// New creates an Orchestrator. cache may be nil.
func New(reg Registry, cache Refresher, cfg Config) *Orchestrator {
	if cfg.Policy == nil {
		cfg.Policy = pricing.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NoopLogger{}
	}
	return &Orchestrator{
		reg:      reg,
		cache:    cache,
		policy:   cfg.Policy,
		decimals: cfg.Decimals,
		settle:   cfg.SettleDelay,
		log:      cfg.Logger,
		now:      time.Now,
	}
}

// OnTransition registers fn to observe state changes. fn runs on the
// submitting goroutine.
func (o *Orchestrator) OnTransition(fn func(Transition)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Busy reports whether a submission is running.
func (o *Orchestrator) Busy() bool { return o.busy.Load() }

// Pending returns the transaction awaiting confirmation, if any.
func (o *Orchestrator) Pending() (Pending, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return Pending{}, false
	}
	return *o.pending, true
}

// Quote returns the fee for name without submitting anything.
func (o *Orchestrator) Quote(name string) (decimal.Decimal, *big.Int, error) {
	fee, err := o.policy.PriceForName(name)
	if err != nil {
		return decimal.Zero, nil, ErrDomainTooShort
	}
	return fee, pricing.Wei(fee, o.decimals), nil
}

// Register registers form.Name() and, when form.Record() is non-empty,
// sets its record. A failure after registration succeeded is returned
// wrapped in ErrPartialSuccess alongside a non-nil Result.
func (o *Orchestrator) Register(ctx context.Context, form Form) (*Result, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer o.busy.Store(false)
	defer o.transition(Idle, nil)

	o.transition(Validating, nil)
	name, record := form.Name(), form.Record()
	if name == "" {
		return nil, ErrEmptyInput
	}
	fee, wei, err := o.Quote(name)
	if err != nil {
		return nil, o.fail(err, map[string]any{"name": name, "length": pricing.NameLength(name)})
	}
	res := &Result{Name: name, Fee: fee, FeeWei: wei}
	fields := map[string]any{"name": name, "fee": fee.String()}

	o.log.Info("registering name", fields)
	tx, err := o.reg.Register(ctx, name, wei)
	if err != nil {
		return nil, o.fail(err, fields)
	}
	res.RegisterTx = tx.Hash
	if err := o.await(ctx, tx, PendingRegister, name, AwaitingRegisterConfirm); err != nil {
		return nil, o.fail(err, fields)
	}
	o.log.Info("name registered", map[string]any{"name": name, "tx": tx.Hash.Hex()})

	var partial error
	if record != "" {
		hash, err := o.setRecord(ctx, name, record)
		res.RecordTx = hash
		if err != nil {
			partial = fmt.Errorf("%w: %w", ErrPartialSuccess, err)
		}
	}

	o.refresh(ctx, form, partial == nil)
	if partial != nil {
		return res, o.fail(partial, fields)
	}
	return res, nil
}

// UpdateRecord sets the record of an existing name. form must be in edit
// mode.
func (o *Orchestrator) UpdateRecord(ctx context.Context, form Form) (*Result, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer o.busy.Store(false)
	defer o.transition(Idle, nil)

	o.transition(Validating, nil)
	name, record := form.Name(), form.Record()
	if !form.Editing() {
		return nil, o.fail(ErrNotEditing, map[string]any{"name": name})
	}
	if name == "" || record == "" {
		return nil, ErrEmptyInput
	}

	res := &Result{Name: name}
	hash, err := o.setRecord(ctx, name, record)
	res.RecordTx = hash
	if err != nil {
		return nil, o.fail(err, map[string]any{"name": name})
	}
	o.refresh(ctx, form, true)
	return res, nil
}

func (o *Orchestrator) setRecord(ctx context.Context, name, record string) (common.Hash, error) {
	o.log.Info("setting record", map[string]any{"name": name})
	tx, err := o.reg.SetRecord(ctx, name, record)
	if err != nil {
		return common.Hash{}, err
	}
	if err := o.await(ctx, tx, PendingSetRecord, name, AwaitingRecordConfirm); err != nil {
		return tx.Hash, err
	}
	o.log.Info("record set", map[string]any{"name": name, "tx": tx.Hash.Hex()})
	return tx.Hash, nil
}

func (o *Orchestrator) await(ctx context.Context, tx *registry.Tx, kind PendingKind, name string, st State) error {
	o.mu.Lock()
	o.pending = &Pending{Kind: kind, Name: name, Hash: tx.Hash, SubmittedAt: o.now()}
	o.mu.Unlock()
	o.transition(st, nil)

	defer func() {
		o.mu.Lock()
		o.pending = nil
		o.mu.Unlock()
	}()

	r, err := tx.Wait(ctx)
	if err != nil {
		return err
	}
	if !r.Succeeded() {
		return fmt.Errorf("%w: %s %s", ErrTransactionReverted, kind, tx.Hash.Hex())
	}
	return nil
}

// refresh runs after any submission that changed chain state. A failed
// refresh is logged and otherwise ignored.
func (o *Orchestrator) refresh(ctx context.Context, form Form, clear bool) {
	o.transition(RefreshingCache, nil)
	if o.settle > 0 {
		t := time.NewTimer(o.settle)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
	if o.cache != nil && ctx.Err() == nil {
		if err := o.cache.Refresh(ctx); err != nil {
			o.log.Warn("cache refresh failed", map[string]any{"error": err})
		}
	}
	if clear {
		form.Reset()
	}
}

func (o *Orchestrator) fail(err error, fields map[string]any) error {
	f := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		f[k] = v
	}
	f["error"] = err
	f["state"] = o.State().String()
	if errors.Is(err, provider.ErrUserRejected) {
		o.log.Warn("submission rejected in wallet", f)
	} else {
		o.log.Error("submission failed", f)
	}
	o.transition(Failed, err)
	return err
}

func (o *Orchestrator) transition(to State, err error) {
	o.mu.Lock()
	from := o.state
	o.state = to
	obs := append([]func(Transition){}, o.observers...)
	o.mu.Unlock()

	if from == to {
		return
	}
	o.log.Debug("state", map[string]any{"from": from.String(), "to": to.String()})
	for _, fn := range obs {
		fn(Transition{From: from, To: to, Err: err})
	}
}

// Package app wires the wallet session, network guard, registry client,
// name cache, orchestrator and edit session into the one object the CLI
// talks to.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3ns/internal/cache"
	"github.com/Mohsinsiddi/w3ns/internal/chain"
	"github.com/Mohsinsiddi/w3ns/internal/edit"
	"github.com/Mohsinsiddi/w3ns/internal/logger"
	"github.com/Mohsinsiddi/w3ns/internal/orchestrator"
	"github.com/Mohsinsiddi/w3ns/internal/pricing"
	"github.com/Mohsinsiddi/w3ns/internal/provider"
	"github.com/Mohsinsiddi/w3ns/internal/registry"
	"github.com/Mohsinsiddi/w3ns/internal/session"
)

var (
	ErrNotConnected = errors.New("wallet not connected")
	ErrWrongNetwork = errors.New("wallet is on the wrong network")
	ErrUnknownName  = errors.New("name is not registered")

	// ErrInvalidInterval is returned by Watch for a non-positive interval.
	ErrInvalidInterval = errors.New("watch interval must be positive")
)

// Options configures an App.
type Options struct {
	Provider provider.Provider
	Chains   *chain.Registry
	Required chain.Chain
	Contract common.Address
	Policy   *pricing.Policy
	// TLD is appended to names for display, e.g. ".chrundle".
	TLD               string
	SettleDelay       time.Duration
	LookupConcurrency int
	ReceiptPoll       time.Duration
	Logger            logger.Logger
}

// Status is a snapshot of the connection.
type Status struct {
	SessionID string
	Account   string
	ChainID   string
	Network   string
	Required  string
	Satisfied bool
}

// App is safe for concurrent use.
type App struct {
	opts    Options
	log     logger.Logger
	session *session.Session
	guard   *session.Guard

	mu          sync.Mutex
	root        context.Context
	cancel      context.CancelFunc
	reg         *registry.Client
	cache       *cache.Cache
	orch        *orchestrator.Orchestrator
	form        *edit.Session
	unsubscribe func()
	observers   []func(orchestrator.Transition)
}

// New builds an App. Nothing touches the wallet until Start or Connect.
func New(opts Options) *App {
	if opts.Chains == nil {
		opts.Chains = chain.NewRegistry()
	}
	if opts.Policy == nil {
		opts.Policy = pricing.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NoopLogger{}
	}
	a := &App{opts: opts, log: opts.Logger}
	a.session = session.New(opts.Provider, opts.Chains, opts.Logger)
	a.guard = session.NewGuard(a.session, opts.Required, opts.Logger)
	a.session.OnReset(a.onReset)
	a.rebuild()
	return a
}

// rebuild replaces every piece of per-session state and cancels whatever
// was running under the old root context.
func (a *App) rebuild() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
	a.root, a.cancel = context.WithCancel(context.Background())

	regOpts := []registry.Option{registry.WithLogger(a.log)}
	if a.opts.ReceiptPoll > 0 {
		regOpts = append(regOpts, registry.WithReceiptPoll(a.opts.ReceiptPoll))
	}
	a.reg = registry.NewClient(a.session.Provider(), a.opts.Contract, a.session, regOpts...)
	a.cache = cache.New(a.reg, cache.WithConcurrency(a.opts.LookupConcurrency), cache.WithLogger(a.log))
	a.orch = orchestrator.New(a.reg, a.cache, orchestrator.Config{
		Policy:      a.opts.Policy,
		Decimals:    uint8(a.opts.Required.NativeCurrency.Decimals), // bounded by chain.MaxDecimals
		SettleDelay: a.opts.SettleDelay,
		Logger:      a.log,
	})
	for _, fn := range a.observers {
		a.orch.OnTransition(fn)
	}
	a.form = edit.New()
}

func (a *App) onReset() {
	a.rebuild()
	a.log.Info("session reset", map[string]any{"session": a.session.ID()})

	a.mu.Lock()
	root := a.root
	a.mu.Unlock()
	if err := a.sync(root); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("resync after reset failed", map[string]any{"error": err})
	}
}

// Start adopts an already-authorized account, subscribes to chain changes
// and fills the cache when the wallet is on the required chain. An absent
// wallet is not an error; the App simply stays disconnected.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.unsubscribe == nil {
		a.unsubscribe = a.session.Subscribe()
	}
	a.mu.Unlock()

	err := a.sync(ctx)
	if errors.Is(err, provider.ErrProviderAbsent) {
		a.log.Warn("no wallet provider available", nil)
		return nil
	}
	return err
}

func (a *App) sync(ctx context.Context) error {
	if _, err := a.session.AdoptExistingConnection(ctx); err != nil {
		return err
	}
	return a.refreshIfReady(ctx)
}

// refreshIfReady refreshes the cache when connected and on the required
// chain.
func (a *App) refreshIfReady(ctx context.Context) error {
	if !a.session.Connected() {
		return nil
	}
	ok, err := a.guard.IsSatisfied(ctx)
	if err != nil || !ok {
		return err
	}
	return a.refresh(ctx)
}

// Close cancels in-flight work and drops the chain subscription.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	if a.cancel != nil {
		a.cancel()
	}
}

// Reset discards the session as if the wallet had changed chain.
func (a *App) Reset() { a.session.Reset() }

// Connect prompts the wallet for an account.
func (a *App) Connect(ctx context.Context) (session.Account, error) {
	acct, err := a.session.Connect(ctx)
	if err != nil {
		return session.Account{}, err
	}
	if err := a.refreshIfReady(ctx); err != nil {
		a.log.Warn("initial cache refresh failed", map[string]any{"error": err})
	}
	return acct, nil
}

// SwitchNetwork moves the wallet to the required chain. The wallet's
// chain-change event then resets and resyncs the App.
func (a *App) SwitchNetwork(ctx context.Context) error {
	return a.guard.SwitchOrAddChain(ctx)
}

// Status reads the wallet's current chain.
func (a *App) Status(ctx context.Context) (Status, error) {
	st := Status{
		SessionID: a.session.ID(),
		Account:   a.session.CurrentAccount(),
		Required:  a.opts.Required.DisplayName,
	}
	id, err := a.session.CurrentChainID(ctx)
	if err != nil {
		return st, err
	}
	st.ChainID = id
	st.Network = a.opts.Chains.DisplayName(id)
	st.Satisfied = st.Network == a.opts.Required.DisplayName
	return st, nil
}

// Required returns the chain the registry lives on.
func (a *App) Required() chain.Chain { return a.opts.Required }

// TLD returns the display suffix for names.
func (a *App) TLD() string { return a.opts.TLD }

// Session returns the wallet session.
func (a *App) Session() *session.Session { return a.session }

// Registry returns the current registry client.
func (a *App) Registry() *registry.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reg
}

// Cache returns the current name cache.
func (a *App) Cache() *cache.Cache {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache
}

// Form returns the current edit session.
func (a *App) Form() *edit.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.form
}

// Orchestrator returns the current orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orch
}

// OnTransition observes orchestrator state changes, across resets.
func (a *App) OnTransition(fn func(orchestrator.Transition)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
	a.orch.OnTransition(fn)
}

// Quote prices name under the configured policy.
func (a *App) Quote(name string) (pricing.Quote, error) {
	fee, wei, err := a.Orchestrator().Quote(name)
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.Quote{
		Name:   name,
		Length: pricing.NameLength(name),
		Fee:    fee,
		Wei:    wei,
		Symbol: a.opts.Required.NativeCurrency.Symbol,
	}, nil
}

// Refresh rebuilds the name cache. The wallet must be on the required
// chain.
func (a *App) Refresh(ctx context.Context) error {
	if err := a.onRequiredChain(ctx); err != nil {
		return err
	}
	return a.refresh(ctx)
}

// refresh rebuilds whichever cache is current under the session's root
// context.
func (a *App) refresh(ctx context.Context) error {
	ctx, stop := a.bind(ctx)
	defer stop()
	return a.Cache().Refresh(ctx)
}

// Watch refreshes now and then every interval until ctx is done. Each tick
// goes through Refresh, so a cache replaced by a session reset is the one
// that gets filled. Failed ticks are logged and the loop continues.
func (a *App) Watch(ctx context.Context, interval time.Duration, onRefresh func()) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	if err := a.Refresh(ctx); err != nil {
		return err
	}
	if onRefresh != nil {
		onRefresh()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.log.Warn("watch refresh failed", map[string]any{"error": err, "session": a.session.ID()})
				continue
			}
			if onRefresh != nil {
				onRefresh()
			}
		}
	}
}

// Lookup reads the owner and record of name from the registry. The wallet
// must be on the required chain.
func (a *App) Lookup(ctx context.Context, name string) (registry.Entry, error) {
	if err := a.onRequiredChain(ctx); err != nil {
		return registry.Entry{}, err
	}
	ctx, stop := a.bind(ctx)
	defer stop()
	return a.Registry().Lookup(ctx, name)
}

// StartEdit loads name from the cache into the form in edit mode. The
// connected account must own it.
func (a *App) StartEdit(name string) error {
	rec, ok := a.Cache().Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	return a.Form().StartEdit(rec, a.session.CurrentAccount())
}

// Submit runs the form through the orchestrator: UpdateRecord in edit
// mode, Register otherwise. The wallet must be connected and on the
// required chain.
func (a *App) Submit(ctx context.Context) (*orchestrator.Result, error) {
	if err := a.ready(ctx); err != nil {
		return nil, err
	}
	ctx, stop := a.bind(ctx)
	defer stop()

	a.mu.Lock()
	orch, form := a.orch, a.form
	a.mu.Unlock()

	if form.Editing() {
		return orch.UpdateRecord(ctx, form)
	}
	return orch.Register(ctx, form)
}

// Register fills the form with name and record and submits it. A name
// too short to register fails before the wallet is consulted.
func (a *App) Register(ctx context.Context, name, record string) (*orchestrator.Result, error) {
	if name != "" {
		if _, err := a.Quote(name); err != nil {
			return nil, err
		}
	}
	form := a.Form()
	form.Cancel()
	if err := form.SetName(name); err != nil {
		return nil, err
	}
	form.SetRecord(record)
	return a.Submit(ctx)
}

// UpdateRecord sets the record of a name the connected account owns. The
// cache is refreshed first when it does not know name yet.
func (a *App) UpdateRecord(ctx context.Context, name, record string) (*orchestrator.Result, error) {
	if err := a.ready(ctx); err != nil {
		return nil, err
	}
	if _, ok := a.Cache().Get(name); !ok {
		if err := a.refresh(ctx); err != nil {
			return nil, err
		}
	}
	if err := a.StartEdit(name); err != nil {
		return nil, err
	}
	a.Form().SetRecord(record)
	return a.Submit(ctx)
}

func (a *App) ready(ctx context.Context) error {
	if !a.session.Connected() {
		return ErrNotConnected
	}
	return a.onRequiredChain(ctx)
}

func (a *App) onRequiredChain(ctx context.Context) error {
	ok, err := a.guard.IsSatisfied(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: switch to %s", ErrWrongNetwork, a.opts.Required.DisplayName)
	}
	return nil
}

// bind derives a context that also ends when the session resets.
func (a *App) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	a.mu.Lock()
	root := a.root
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(root, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// TxURL links a transaction on the required chain's explorer.
func (a *App) TxURL(hash common.Hash) string {
	return a.opts.Required.TxURL(hash.Hex())
}

// OwnerURL links an owner address on the explorer.
func (a *App) OwnerURL(addr string) string {
	return a.opts.Required.AddressURL(addr)
}

// MarketplaceURL links a name's token on the marketplace. The token id is
// the name's enumeration index.
func (a *App) MarketplaceURL(rec cache.Record) string {
	return a.opts.Required.TokenURL(a.opts.Contract.Hex(), rec.Index)
}

// DisplayName appends the TLD to name.
func (a *App) DisplayName(name string) string { return name + a.opts.TLD }

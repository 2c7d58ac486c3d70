package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Mohsinsiddi/w3ns/internal/logger"
)

// DefaultPollInterval is how often RPCProvider polls eth_chainId when the
// transport cannot push chainChanged notifications.
const DefaultPollInterval = 4 * time.Second

// RPCProvider talks EIP-1193 JSON-RPC to an external wallet endpoint over
// HTTP, WebSocket or IPC.
type RPCProvider struct {
	client       *rpc.Client
	log          logger.Logger
	pollInterval time.Duration

	mu       sync.Mutex
	handlers map[int]func(string)
	nextID   int
	stop     context.CancelFunc
}

// RPCOption configures an RPCProvider.
type RPCOption func(*RPCProvider)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) RPCOption {
	return func(p *RPCProvider) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithLogger sets the provider's logger.
func WithLogger(l logger.Logger) RPCOption {
	return func(p *RPCProvider) {
		p.log = l
	}
}

// DialRPC connects to the wallet at url. An unreachable endpoint yields
// ErrProviderAbsent.
func DialRPC(ctx context.Context, url string, opts ...RPCOption) (*RPCProvider, error) {
	if url == "" {
		return nil, ErrProviderAbsent
	}
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrProviderAbsent, url, err)
	}
	return NewRPCProvider(c, opts...), nil
}

// NewRPCProvider wraps an existing go-ethereum rpc client.
func NewRPCProvider(c *rpc.Client, opts ...RPCOption) *RPCProvider {
	p := &RPCProvider{
		client:       c,
		log:          logger.NoopLogger{},
		pollInterval: DefaultPollInterval,
		handlers:     make(map[int]func(string)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.NoopLogger{}
	}
	return p
}

// Client exposes the underlying rpc client.
func (p *RPCProvider) Client() *rpc.Client { return p.client }

// Request implements Provider.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var res json.RawMessage
	if err := p.client.CallContext(ctx, &res, method, params...); err != nil {
		return nil, err
	}
	return res, nil
}

// OnChainChanged implements Provider. The first handler starts a watcher
// that lives until the last handler unsubscribes or Close is called.
func (p *RPCProvider) OnChainChanged(fn func(string)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = fn
	if p.stop == nil {
		ctx, cancel := context.WithCancel(context.Background())
		p.stop = cancel
		go p.watch(ctx)
	}
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.handlers, id)
			last := len(p.handlers) == 0
			p.mu.Unlock()
			if last {
				p.stopWatcher()
			}
		})
	}
}

// Close stops chain watching and closes the connection. Handlers may still
// be running when Close returns.
func (p *RPCProvider) Close() {
	p.stopWatcher()
	p.client.Close()
}

func (p *RPCProvider) stopWatcher() {
	p.mu.Lock()
	cancel := p.stop
	p.stop = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *RPCProvider) watch(ctx context.Context) {
	ch := make(chan string, 4)
	sub, err := p.client.Subscribe(ctx, "eth", ch, "chainChanged")
	if err == nil {
		p.log.Debug("chainChanged subscription active", nil)
		p.consume(ctx, sub, ch)
		return
	}
	if !errors.Is(err, rpc.ErrNotificationsUnsupported) {
		p.log.Debug("chainChanged subscription unavailable, polling", map[string]any{"error": err})
	}
	p.poll(ctx)
}

func (p *RPCProvider) consume(ctx context.Context, sub *rpc.ClientSubscription, ch <-chan string) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				p.log.Warn("chainChanged subscription dropped, polling", map[string]any{"error": err})
				p.poll(ctx)
			}
			return
		case id := <-ch:
			p.dispatch(id)
		}
	}
}

func (p *RPCProvider) poll(ctx context.Context) {
	last, _ := p.chainID(ctx)
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			id, err := p.chainID(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.log.Debug("eth_chainId poll failed", map[string]any{"error": err})
				}
				continue
			}
			if last != "" && id != last {
				p.dispatch(id)
			}
			last = id
		}
	}
}

func (p *RPCProvider) chainID(ctx context.Context) (string, error) {
	var id string
	if err := p.client.CallContext(ctx, &id, MethodChainID); err != nil {
		return "", err
	}
	return id, nil
}

func (p *RPCProvider) dispatch(chainID string) {
	p.mu.Lock()
	fns := make([]func(string), 0, len(p.handlers))
	for _, fn := range p.handlers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(chainID)
	}
}

// Package session owns the wallet connection: which account is exposed and
// which chain the wallet is on. A chain change discards the whole session.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Mohsinsiddi/w3ns/internal/chain"
	"github.com/Mohsinsiddi/w3ns/internal/logger"
	"github.com/Mohsinsiddi/w3ns/internal/provider"
)

// ErrNoAccounts is returned when the wallet approves access but exposes no
// account.
var ErrNoAccounts = errors.New("wallet returned no accounts")

// Account is the connected wallet account. It is replaced wholesale and
// never mutated in place.
type Account struct {
	// Address is lowercase hex.
	Address string
	// ChainID is the wallet's chain as a 0x-prefixed hex string.
	ChainID string
}

// Connected reports whether an address is present.
func (a Account) Connected() bool { return a.Address != "" }

// Session is the wallet session.
type Session struct {
	p      provider.Provider
	chains *chain.Registry
	base   logger.Logger

	mu       sync.RWMutex
	id       uuid.UUID
	account  Account
	log      logger.Logger
	onReset  []func()
	onChange []func(Account)
}

// New creates a disconnected session on p. A nil p behaves as an absent
// wallet.
func New(p provider.Provider, chains *chain.Registry, l logger.Logger) *Session {
	if chains == nil {
		chains = chain.NewRegistry()
	}
	if l == nil {
		l = logger.NoopLogger{}
	}
	s := &Session{p: provider.Wrap(p), chains: chains, base: l}
	s.rotate()
	return s
}

// Provider returns the classified provider the session talks through.
func (s *Session) Provider() provider.Provider { return s.p }

// Chains returns the chain table used to name chain ids.
func (s *Session) Chains() *chain.Registry { return s.chains }

// ID returns the current session id. It changes on every Reset.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id.String()
}

// Account returns the current account value.
func (s *Session) Account() Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// CurrentAccount returns the connected address or "".
func (s *Session) CurrentAccount() string {
	return s.Account().Address
}

// Connected reports whether an account is connected.
func (s *Session) Connected() bool {
	return s.Account().Connected()
}

// Connect asks the wallet to expose an account.
func (s *Session) Connect(ctx context.Context) (Account, error) {
	var accounts []string
	if err := s.request(ctx, provider.MethodRequestAccounts, &accounts); err != nil {
		s.logger().Warn("connect failed", map[string]any{"error": err, "kind": provider.KindOf(err).String()})
		return Account{}, fmt.Errorf("connect: %w", err)
	}
	if len(accounts) == 0 {
		return Account{}, ErrNoAccounts
	}
	return s.adopt(ctx, accounts[0])
}

// AdoptExistingConnection adopts an already-authorized account without
// prompting. With none, the session stays disconnected and the zero
// Account is returned.
func (s *Session) AdoptExistingConnection(ctx context.Context) (Account, error) {
	var accounts []string
	if err := s.request(ctx, provider.MethodAccounts, &accounts); err != nil {
		return Account{}, fmt.Errorf("existing connection: %w", err)
	}
	if len(accounts) == 0 {
		s.logger().Debug("no authorized account found", nil)
		return Account{}, nil
	}
	return s.adopt(ctx, accounts[0])
}

func (s *Session) adopt(ctx context.Context, address string) (Account, error) {
	id, err := s.CurrentChainID(ctx)
	if err != nil {
		return Account{}, err
	}
	acct := Account{Address: strings.ToLower(address), ChainID: id}
	s.replace(acct)
	s.logger().Info("wallet connected", map[string]any{"chain_id": id})
	return acct, nil
}

// CurrentChainID reads eth_chainId from the wallet, lowercased.
func (s *Session) CurrentChainID(ctx context.Context) (string, error) {
	var id string
	if err := s.request(ctx, provider.MethodChainID, &id); err != nil {
		return "", fmt.Errorf("reading chain id: %w", err)
	}
	return strings.ToLower(id), nil
}

// CurrentChain returns the display name of the wallet's chain, or
// chain.UnsupportedNetwork for ids missing from the table.
func (s *Session) CurrentChain(ctx context.Context) (string, error) {
	id, err := s.CurrentChainID(ctx)
	if err != nil {
		return "", err
	}
	return s.chains.DisplayName(id), nil
}

// Subscribe resets the session on every chain change. Call the returned
// func to stop.
func (s *Session) Subscribe() func() {
	return s.p.OnChainChanged(func(id string) {
		s.logger().Info("chain changed, resetting session", map[string]any{
			"chain_id": id,
			"chain":    s.chains.DisplayName(id),
		})
		s.Reset()
	})
}

// Reset discards the account and chain, issues a new session id and runs
// the reset listeners.
func (s *Session) Reset() {
	s.mu.Lock()
	s.account = Account{}
	s.mu.Unlock()
	s.rotate()

	s.mu.RLock()
	fns := append([]func(){}, s.onReset...)
	changes := append([]func(Account){}, s.onChange...)
	s.mu.RUnlock()

	for _, fn := range changes {
		fn(Account{})
	}
	for _, fn := range fns {
		fn()
	}
}

// OnReset registers fn to run after every Reset.
func (s *Session) OnReset(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReset = append(s.onReset, fn)
}

// OnChange registers fn to receive every new Account value.
func (s *Session) OnChange(fn func(Account)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Session) replace(a Account) {
	s.mu.Lock()
	s.account = a
	s.log = logger.With(s.base, map[string]any{"session": s.id.String(), "account": a.Address})
	fns := append([]func(Account){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(a)
	}
}

func (s *Session) rotate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.New()
	s.log = logger.With(s.base, map[string]any{"session": s.id.String()})
}

func (s *Session) logger() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log
}

func (s *Session) request(ctx context.Context, method string, out any) error {
	raw, err := s.p.Request(ctx, method)
	if err != nil {
		return err
	}
	return provider.Decode(raw, out)
}

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mohsinsiddi/w3ns/internal/chain"
	"github.com/Mohsinsiddi/w3ns/internal/logger"
	"github.com/Mohsinsiddi/w3ns/internal/provider"
)

// ErrNetworkSwitchFailed wraps any failure to move the wallet to the
// required chain.
var ErrNetworkSwitchFailed = errors.New("network switch failed")

// Guard checks the wallet is on the one chain the registry lives on.
type Guard struct {
	s        *Session
	required chain.Chain
	log      logger.Logger
}

// NewGuard creates a Guard for required. The chain is added to the
// session's chain table so its id maps to its display name.
func NewGuard(s *Session, required chain.Chain, l logger.Logger) *Guard {
	if _, err := s.chains.GetByChainID(required.ChainID); err != nil {
		_ = s.chains.Add(required)
	}
	if l == nil {
		l = logger.NoopLogger{}
	}
	return &Guard{s: s, required: required, log: l}
}

// Required returns the required chain.
func (g *Guard) Required() chain.Chain { return g.required }

// IsSatisfied reports whether the wallet's current chain is the required
// one, compared by display name.
func (g *Guard) IsSatisfied(ctx context.Context) (bool, error) {
	name, err := g.s.CurrentChain(ctx)
	if err != nil {
		return false, err
	}
	return name == g.required.DisplayName, nil
}

// SwitchOrAddChain asks the wallet to switch to the required chain, adding
// it first when the wallet does not know it.
func (g *Guard) SwitchOrAddChain(ctx context.Context) error {
	p := g.s.Provider()
	if provider.IsAbsent(p) {
		return provider.ErrProviderAbsent
	}
	fields := map[string]any{"chain": g.required.DisplayName, "chain_id": g.required.HexID()}

	_, err := p.Request(ctx, provider.MethodSwitchChain, chain.SwitchChainParams{ChainID: g.required.HexID()})
	if err == nil {
		g.log.Info("switched network", fields)
		return nil
	}
	if errors.Is(err, provider.ErrProviderAbsent) {
		return err
	}
	if !errors.Is(err, provider.ErrChainUnrecognized) {
		g.log.Error("switch network failed", merge(fields, map[string]any{"error": err}))
		return fmt.Errorf("%w: %w", ErrNetworkSwitchFailed, err)
	}

	g.log.Info("chain unknown to wallet, adding", fields)
	if _, err := p.Request(ctx, provider.MethodAddChain, g.required.AddParams()); err != nil {
		g.log.Error("add network failed", merge(fields, map[string]any{"error": err}))
		return fmt.Errorf("%w: %w", ErrNetworkSwitchFailed, err)
	}
	g.log.Info("added network", fields)
	return nil
}

func merge(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

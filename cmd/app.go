package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3ns/internal/app"
	"github.com/Mohsinsiddi/w3ns/internal/chain"
	"github.com/Mohsinsiddi/w3ns/internal/config"
	"github.com/Mohsinsiddi/w3ns/internal/edit"
	"github.com/Mohsinsiddi/w3ns/internal/orchestrator"
	"github.com/Mohsinsiddi/w3ns/internal/provider"
	"github.com/Mohsinsiddi/w3ns/internal/session"
	"github.com/Mohsinsiddi/w3ns/internal/ui"
	"github.com/Mohsinsiddi/w3ns/internal/wallet"
)

// providerFactory builds the wallet provider for a command. Tests swap it
// for an in-memory fake.
var providerFactory = defaultProvider

// prompter reads the command's stdin. Wallet approvals and edit prompts
// share it so neither buffers input meant for the other.
var prompter *ui.Prompter

// defaultProvider dials --provider-url (or provider.url) when set and
// otherwise opens the local keychain wallet. A missing local wallet is not
// an error: the command then runs with an absent provider.
func defaultProvider(ctx context.Context, chains *chain.Registry, approve provider.Approver) (provider.Provider, error) {
	url := cfg.Provider.URL
	if providerURL != "" {
		url = providerURL
	}
	if url != "" {
		p, err := provider.DialRPC(ctx, url, provider.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("dialing provider %s: %w", url, err)
		}
		return p, nil
	}

	mgr, err := newWalletManager()
	if err != nil {
		return nil, err
	}
	name := walletName
	if name == "" {
		name = cfg.Provider.Wallet
	}
	signer, err := mgr.Signer(name)
	if errors.Is(err, wallet.ErrWalletNotFound) && name == "" {
		log.Debug("no default wallet, running without a provider", nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return provider.NewLocal(provider.LocalConfig{
		Signer:        signer,
		Chains:        chains,
		Chain:         cfg.RequiredChain,
		Approver:      approve,
		Preauthorized: cfg.Provider.Preauthorized,
		Logger:        log,
	})
}

// openKeystore opens the private key store. Tests swap it for an in-memory
// one.
var openKeystore = func(dir string) (wallet.KeystoreBackend, error) {
	return wallet.OpenKeystore(dir)
}

// newWalletManager creates a Manager backed by the config-dir JSON store and
// keystore.
func newWalletManager() (*wallet.Manager, error) {
	ks, err := openKeystore(cfg.KeysDir())
	if err != nil {
		return nil, fmt.Errorf("opening keystore: %w", err)
	}
	return wallet.NewManager(
		wallet.WithStore(wallet.NewJSONStore(cfg.WalletsPath())),
		wallet.WithKeystore(ks),
	), nil
}

// buildApp builds the App for cmd without touching the wallet. The returned
// func releases it and the provider.
func buildApp(cmd *cobra.Command) (*app.App, func(), error) {
	chains := cfg.Chains()
	required, err := cfg.Required(chains)
	if err != nil {
		return nil, nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, nil, err
	}

	prompter = ui.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	approve := func(ctx context.Context, ap provider.Approval) (bool, error) {
		progress.pause()
		return prompter.Approve(ctx, ap)
	}
	p, err := providerFactory(cmd.Context(), chains, approve)
	if err != nil {
		return nil, nil, err
	}

	a := app.New(app.Options{
		Provider:          p,
		Chains:            chains,
		Required:          *required,
		Contract:          cfg.Contract(),
		Policy:            policy,
		TLD:               cfg.TLD,
		SettleDelay:       cfg.RefreshDelay(),
		LookupConcurrency: cfg.LookupConcurrency,
		Logger:            log,
	})
	release := func() {
		a.Close()
		if c, ok := p.(interface{ Close() }); ok {
			c.Close()
		}
	}
	return a, release, nil
}

// openApp builds the App and syncs it with the wallet: adopt an authorized
// account and fill the cache when on the required chain.
func openApp(cmd *cobra.Command) (*app.App, func(), error) {
	a, release, err := buildApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := withTimeout(cmd, config.ReadTimeout)
	defer cancel()
	if err := a.Start(ctx); err != nil {
		release()
		return nil, nil, err
	}
	return a, release, nil
}

// withTimeout bounds cmd's context.
func withTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d)
}

// requireReady connects and checks the network before a write, printing
// hints the way the web form used to show its banners.
func requireReady(cmd *cobra.Command, a *app.App) error {
	out := cmd.OutOrStdout()
	if !a.Session().Connected() {
		ctx, cancel := withTimeout(cmd, config.PromptTimeout)
		defer cancel()
		if _, err := a.Connect(ctx); err != nil {
			return err
		}
	}
	st, err := a.Status(cmd.Context())
	if err != nil {
		return err
	}
	if !st.Satisfied {
		fmt.Fprintln(out, ui.Warn("Please connect to "+st.Required))
		fmt.Fprintln(out, ui.Hint("Run: w3ns network switch"))
		return fmt.Errorf("%w: on %s", app.ErrWrongNetwork, st.Network)
	}
	return nil
}

// describe turns an error into the line shown to the user.
func describe(err error) string {
	var rpcErr *provider.Error
	switch {
	case errors.Is(err, provider.ErrProviderAbsent):
		return "No wallet found. Add one with 'w3ns wallet add' or pass --provider-url."
	case errors.Is(err, provider.ErrUserRejected):
		return "Request rejected in the wallet."
	case errors.Is(err, orchestrator.ErrDomainTooShort):
		return "Domain must be at least 3 characters long."
	case errors.Is(err, orchestrator.ErrPartialSuccess):
		return "Name registered, but setting the record failed: " + err.Error()
	case errors.Is(err, orchestrator.ErrTransactionReverted):
		return "Transaction reverted: " + err.Error()
	case errors.Is(err, orchestrator.ErrBusy):
		return "Another transaction is still pending."
	case errors.Is(err, session.ErrNetworkSwitchFailed):
		return "Could not switch networks: " + err.Error()
	case errors.Is(err, edit.ErrNotOwner):
		return "You do not own that name."
	case errors.As(err, &rpcErr):
		return fmt.Sprintf("Wallet error (%s): %s", rpcErr.Kind, rpcErr.Message)
	default:
		return err.Error()
	}
}

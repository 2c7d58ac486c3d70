package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3ns/internal/config"
	"github.com/Mohsinsiddi/w3ns/internal/logger"
	"github.com/Mohsinsiddi/w3ns/internal/ui"
)

// Version is the current release. Overridable via build ldflags:
//
//	go build -ldflags "-X github.com/Mohsinsiddi/w3ns/cmd.Version=1.2.3" .
var Version = "0.1.0"

var (
	cfgDir      string
	cfg         *config.Config
	log         logger.Logger = logger.NoopLogger{}
	verbose     bool
	providerURL string
	walletName  string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:   "w3ns",
	Short: "Register and manage names on an on-chain name registry",
	Long: `w3ns: your immortal API on the blockchain.

  Quote, register and browse names on the registry contract, and point
  each name you own at a record of your choosing.

The wallet is either the local keychain wallet (see 'w3ns wallet') or an
external EIP-1193 JSON-RPC endpoint given with --provider-url.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		log = logger.NewZapLogger(level)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if s, ok := log.(interface{ Sync() error }); ok {
			_ = s.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Err(describe(err)))
		os.Exit(1)
	}
}

func init() {
	// W3NS_CONFIG_DIR is picked up by config.Load when --config is empty.
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "config directory (default: ~/.w3ns)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&providerURL, "provider-url", "", "external EIP-1193 JSON-RPC endpoint (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&walletName, "wallet", "w", "", "local wallet to sign with (default: the default wallet)")

	rootCmd.AddCommand(
		statusCmd,
		connectCmd,
		networkCmd,
		priceCmd,
		namesCmd,
		lookupCmd,
		registerCmd,
		recordCmd,
		editCmd,
		walletCmd,
		configCmd,
	)
}

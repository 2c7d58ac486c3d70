package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3ns/internal/config"
	"github.com/Mohsinsiddi/w3ns/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the wallet connection and network",
	Long: `Query the wallet without prompting and show the connected account, the
network it is on and whether that is the network the registry lives on.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer release()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.Banner(a.TLD()))

		ctx, cancel := withTimeout(cmd, config.ReadTimeout)
		defer cancel()
		st, err := a.Status(ctx)
		if err != nil {
			return err
		}

		account := ui.Meta("not connected")
		if st.Account != "" {
			account = ui.Addr(st.Account)
		}
		network := ui.ChainName(st.Network)
		if !st.Satisfied {
			network = ui.Warn(st.Network)
		}
		fmt.Fprintln(out, ui.KeyValueBlock("Status", [][2]string{
			{"Session", st.SessionID},
			{"Account", account},
			{"Network", network + ui.Meta(" ("+st.ChainID+")")},
			{"Registry", ui.ChainName(st.Required)},
			{"Contract", ui.Addr(cfg.Contract().Hex())},
		}))

		switch {
		case st.Account == "":
			fmt.Fprintln(out, ui.Hint("Connect with: w3ns connect"))
		case !st.Satisfied:
			fmt.Fprintln(out, ui.Warn("Please connect to "+st.Required))
			fmt.Fprintln(out, ui.Hint("Switch with: w3ns network switch"))
		default:
			fmt.Fprintln(out, ui.Success(fmt.Sprintf("%d names registered", a.Cache().Len())))
		}
		return nil
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the wallet",
	Long:  `Ask the wallet to expose an account. The local wallet prompts for approval.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer release()

		out := cmd.OutOrStdout()
		if acct := a.Session().Account(); acct.Connected() {
			fmt.Fprintln(out, ui.Info("Already connected: "+ui.Addr(acct.Address)))
			return nil
		}

		ctx, cancel := withTimeout(cmd, config.PromptTimeout)
		defer cancel()
		acct, err := a.Connect(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ui.Success("Connected "+ui.Addr(acct.Address)))
		return nil
	},
}

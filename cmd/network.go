package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3ns/internal/config"
	"github.com/Mohsinsiddi/w3ns/internal/ui"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Inspect and switch networks",
}

var networkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known chains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := cfg.Chains()
		required, err := cfg.Required(reg)
		if err != nil {
			return err
		}

		t := ui.NewTable([]ui.Column{
			{Title: "#", Width: 3},
			{Title: "Name", Width: 14},
			{Title: "Display", Width: 24},
			{Title: "Chain ID", Width: 10},
			{Title: "Hex", Width: 10},
			{Title: "Currency", Width: 8},
			{Title: "", Width: 8},
		})
		all := reg.All()
		for i, c := range all {
			mark := ""
			if c.ChainID == required.ChainID {
				mark = "registry"
			} else if c.Testnet {
				mark = ui.Meta("testnet")
			}
			t.AddRow(ui.Row{
				fmt.Sprintf("%d", i+1),
				ui.ChainName(c.Name),
				c.DisplayName,
				fmt.Sprintf("%d", c.ChainID),
				c.HexID(),
				c.NativeCurrency.Symbol,
				mark,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, t.Render())
		fmt.Fprintln(out, ui.Meta(fmt.Sprintf("%d chains total", len(all))))
		return nil
	},
}

var networkSwitchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Move the wallet to the registry's network",
	Long: `Ask the wallet to switch to the network the registry lives on. When the
wallet does not know that network it is asked to add it first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer release()

		ctx, cancel := withTimeout(cmd, config.PromptTimeout)
		defer cancel()
		if err := a.SwitchNetwork(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Success("Switched to "+ui.ChainName(a.Required().DisplayName)))
		return nil
	},
}

func init() {
	networkCmd.AddCommand(networkListCmd, networkSwitchCmd)
}

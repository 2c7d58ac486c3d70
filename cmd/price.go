package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3ns/internal/config"
	"github.com/Mohsinsiddi/w3ns/internal/pricing"
	"github.com/Mohsinsiddi/w3ns/internal/ui"
)

var priceFiat bool

var priceCmd = &cobra.Command{
	Use:   "price <name>",
	Short: "Show the registration fee for a name",
	Long: `Show what registering a name costs. Shorter names cost more:

  3 characters   0.05
  4 characters   0.03
  5+ characters  0.01

(in the registry network's native currency; tiers are configurable with
'w3ns config set fees.three 0.1' and friends).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer release()

		name := strings.TrimSpace(args[0])
		q, err := a.Quote(name)
		if err != nil {
			return err
		}

		pairs := [][2]string{
			{"Name", ui.Name(q.Name, a.TLD())},
			{"Length", fmt.Sprintf("%d", q.Length)},
			{"Fee", ui.Val(q.String())},
			{"Wei", q.Wei.String()},
		}
		if priceFiat {
			ctx, cancel := withTimeout(cmd, config.ReadTimeout)
			defer cancel()
			fq := pricing.NewFiatQuoter(cfg.PriceCurrency)
			v, err := fq.Estimate(ctx, a.Required().Name, q.Fee)
			if err != nil {
				log.Warn("fiat estimate failed", map[string]any{"error": err})
			} else {
				pairs = append(pairs, [2]string{"≈", v.StringFixed(2) + " " + strings.ToUpper(fq.Currency())})
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Price", pairs))
		return nil
	},
}

func init() {
	priceCmd.Flags().BoolVar(&priceFiat, "fiat", false, "also estimate the fee in price_currency via CoinGecko")
}

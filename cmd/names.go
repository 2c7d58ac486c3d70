package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3ns/internal/app"
	"github.com/Mohsinsiddi/w3ns/internal/config"
	"github.com/Mohsinsiddi/w3ns/internal/ui"
)

var (
	namesMine     bool
	namesWatch    bool
	namesInterval time.Duration
)

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "List registered names",
	Long: `Fetch every registered name with its owner and record.

  w3ns names            # all names
  w3ns names --mine     # names owned by the connected account
  w3ns names --watch    # re-fetch every --interval until Ctrl-C`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if namesWatch && namesInterval <= 0 {
			return fmt.Errorf("%w: --interval %s", app.ErrInvalidInterval, namesInterval)
		}
		a, release, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer release()

		if namesMine && !a.Session().Connected() {
			return app.ErrNotConnected
		}

		out := cmd.OutOrStdout()
		render := func() {
			fmt.Fprintln(out, renderNames(a, namesMine))
		}

		if !namesWatch {
			ctx, cancel := withTimeout(cmd, config.ReadTimeout)
			defer cancel()
			if err := a.Refresh(ctx); err != nil {
				return err
			}
			render()
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Fprintln(out, ui.Meta(fmt.Sprintf("Refreshing every %s. Ctrl-C to stop.", namesInterval)))
		err = a.Watch(ctx, namesInterval, render)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// renderNames draws the cached names as a table.
func renderNames(a *app.App, mine bool) string {
	c := a.Cache()
	records := c.Records()
	if mine {
		records = c.OwnedBy(a.Session().CurrentAccount())
	}
	if len(records) == 0 {
		return ui.Meta("No names yet.")
	}

	account := a.Session().CurrentAccount()
	t := ui.NewTable([]ui.Column{
		{Title: "#", Width: 4, Right: true},
		{Title: "Name", Width: 22},
		{Title: "Owner", Width: 14},
		{Title: "Record", Width: 36},
	})
	if !mine {
		t.Highlight = func(i int, _ ui.Row) bool { return records[i].OwnedBy(account) }
	}
	for _, r := range records {
		owner := ui.TruncateAddr(r.Owner)
		if r.OwnedBy(account) {
			owner = ui.Val("you")
		}
		t.AddRow(ui.Row{
			fmt.Sprintf("%d", r.Index),
			ui.Name(r.Name, a.TLD()),
			owner,
			ui.TruncateText(r.Text, 36),
		})
	}
	return t.Render() + "\n" + ui.Meta(fmt.Sprintf("%d of %d names · updated %s",
		len(records), c.Len(), c.Updated().Format(time.Kitchen)))
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <name>",
	Short: "Show a name's record and owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer release()

		ctx, cancel := withTimeout(cmd, config.ReadTimeout)
		defer cancel()
		name := args[0]
		entry, err := a.Lookup(ctx, name)
		if err != nil {
			return err
		}
		if entry.Owner == "" || entry.Owner == zeroAddress {
			if alt := a.Cache().Suggest(name, 3); len(alt) > 0 {
				for i := range alt {
					alt[i] = a.DisplayName(alt[i])
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.Hint("Did you mean: "+strings.Join(alt, ", ")))
			}
			return fmt.Errorf("%w: %s", app.ErrUnknownName, a.DisplayName(name))
		}
		pairs := [][2]string{
			{"Name", ui.Name(name, a.TLD())},
			{"Owner", ui.Addr(entry.Owner)},
			{"Record", ui.Val(entry.Record)},
			{"Explorer", a.OwnerURL(entry.Owner)},
		}
		if rec, ok := a.Cache().Get(name); ok {
			pairs = append(pairs, [2]string{"Marketplace", a.MarketplaceURL(rec)})
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValueBlock("Lookup", pairs))
		return nil
	},
}

const zeroAddress = "0x0000000000000000000000000000000000000000"

func init() {
	namesCmd.Flags().BoolVar(&namesMine, "mine", false, "only names owned by the connected account")
	namesCmd.Flags().BoolVar(&namesWatch, "watch", false, "keep refreshing until interrupted")
	namesCmd.Flags().DurationVar(&namesInterval, "interval", 15*time.Second, "refresh interval for --watch")
}

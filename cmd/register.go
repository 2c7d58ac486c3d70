package cmd

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Mohsinsiddi/w3ns/internal/app"
	"github.com/Mohsinsiddi/w3ns/internal/config"
	"github.com/Mohsinsiddi/w3ns/internal/orchestrator"
	"github.com/Mohsinsiddi/w3ns/internal/ui"
)

var registerRecord string

var registerCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a name, optionally setting its record",
	Long: `Pay the fee for a name and register it to the connected account. With
--record the record is set in a second transaction once the first is mined.

  w3ns register ninja
  w3ns register ninja --record "https://ninja.example"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer release()
		if args[0] == "" {
			return reportResult(cmd, a, nil, orchestrator.ErrEmptyInput)
		}
		q, err := a.Quote(args[0])
		if err != nil {
			return err
		}
		if err := requireReady(cmd, a); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.Info(fmt.Sprintf("Registering %s for %s", ui.Name(q.Name, a.TLD()), ui.Val(q.String()))))

		ctx, cancel := withTimeout(cmd, config.TxConfirmTimeout)
		defer cancel()
		stop := trackProgress(cmd, a)
		res, err := a.Register(ctx, args[0], registerRecord)
		stop()
		return reportResult(cmd, a, res, err)
	},
}

var recordCmd = &cobra.Command{
	Use:   "record <name> <text>",
	Short: "Set the record of a name you own",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer release()
		if err := requireReady(cmd, a); err != nil {
			return err
		}

		ctx, cancel := withTimeout(cmd, config.TxConfirmTimeout)
		defer cancel()
		stop := trackProgress(cmd, a)
		res, err := a.UpdateRecord(ctx, args[0], args[1])
		stop()
		return reportResult(cmd, a, res, err)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Pick one of your names and update its record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, release, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer release()
		if err := requireReady(cmd, a); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		owned := a.Cache().OwnedBy(a.Session().CurrentAccount())
		if len(owned) == 0 {
			fmt.Fprintln(out, ui.Meta("You do not own any names yet."))
			fmt.Fprintln(out, ui.Hint("Register one with: w3ns register <name>"))
			return nil
		}
		items := make([]ui.PickerItem, len(owned))
		for i, r := range owned {
			items[i] = ui.PickerItem{
				Label:    a.DisplayName(r.Name),
				SubLabel: ui.TruncateText(r.Text, 40),
				Value:    r.Name,
			}
		}
		name, err := ui.PickItem("Edit record  ·  select a name", items)
		if err != nil {
			return err
		}
		if name == "" {
			fmt.Fprintln(out, ui.Meta("Cancelled."))
			return nil
		}

		if err := a.StartEdit(name); err != nil {
			return err
		}
		form := a.Form()
		text, err := prompter.Line("Record for "+a.DisplayName(name), form.Record())
		if err != nil {
			form.Cancel()
			return err
		}
		form.SetRecord(text)

		ctx, cancel := withTimeout(cmd, config.TxConfirmTimeout)
		defer cancel()
		stop := trackProgress(cmd, a)
		res, err := a.Submit(ctx)
		stop()
		return reportResult(cmd, a, res, err)
	},
}

// progress is the spinner of the running submission. It is paused while
// the wallet asks for approval and resumes on the next state change.
var progress = &progressSpinner{}

type progressSpinner struct {
	mu sync.Mutex
	w  io.Writer
	sp *ui.Spinner
}

func (p *progressSpinner) show(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return
	}
	if p.sp == nil {
		p.sp = ui.NewSpinner(p.w, msg)
		p.sp.Start()
		return
	}
	p.sp.Update(msg)
}

func (p *progressSpinner) pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sp != nil {
		p.sp.Stop()
		p.sp = nil
	}
}

// trackProgress follows the orchestrator's state on stderr until stop.
func trackProgress(cmd *cobra.Command, a *app.App) (stop func()) {
	progress.mu.Lock()
	progress.w = cmd.ErrOrStderr()
	progress.mu.Unlock()

	a.OnTransition(func(t orchestrator.Transition) {
		if msg := progressMessage(t.To); msg != "" {
			progress.show(msg)
		} else {
			progress.pause()
		}
	})
	return func() {
		progress.pause()
		progress.mu.Lock()
		progress.w = nil
		progress.mu.Unlock()
	}
}

func progressMessage(s orchestrator.State) string {
	switch s {
	case orchestrator.AwaitingRegisterConfirm:
		return "Waiting for the registration to be mined…"
	case orchestrator.AwaitingRecordConfirm:
		return "Waiting for the record to be mined…"
	case orchestrator.RefreshingCache:
		return "Refreshing names…"
	}
	return ""
}

// reportResult prints what a submission did. A partial success prints the
// result and still returns the error.
func reportResult(cmd *cobra.Command, a *app.App, res *orchestrator.Result, err error) error {
	out := cmd.OutOrStdout()
	if errors.Is(err, orchestrator.ErrEmptyInput) {
		fmt.Fprintln(out, ui.Meta("Nothing to submit."))
		return nil
	}
	if res == nil {
		return err
	}

	pairs := [][2]string{{"Name", ui.Name(res.Name, a.TLD())}}
	if res.RegisterTx != (common.Hash{}) {
		pairs = append(pairs,
			[2]string{"Fee", ui.Val(res.Fee.String() + " " + a.Required().NativeCurrency.Symbol)},
			[2]string{"Register tx", a.TxURL(res.RegisterTx)},
		)
	}
	if res.RecordTx != (common.Hash{}) {
		pairs = append(pairs, [2]string{"Record tx", a.TxURL(res.RecordTx)})
	}
	fmt.Fprintln(out, ui.KeyValueBlock("Submitted", pairs))

	if err != nil {
		return err
	}
	if rec, ok := a.Cache().Get(res.Name); ok {
		fmt.Fprintln(out, ui.Success(a.DisplayName(res.Name)+" → "+rec.Text))
		fmt.Fprintln(out, ui.Meta(a.MarketplaceURL(rec)))
	} else {
		fmt.Fprintln(out, ui.Success("Submitted "+a.DisplayName(res.Name)))
	}
	return nil
}

func init() {
	registerCmd.Flags().StringVar(&registerRecord, "record", "", "record to set once the name is registered")
}

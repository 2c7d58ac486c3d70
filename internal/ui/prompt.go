package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Mohsinsiddi/w3ns/internal/pricing"
	"github.com/Mohsinsiddi/w3ns/internal/provider"
	"github.com/Mohsinsiddi/w3ns/internal/registry"
)

// Prompter reads answers from one input stream. Keep a single Prompter per
// stream so buffered input is not lost between questions.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a Prompter on in/out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks a yes/no question. Anything but y/yes is no.
func (p *Prompter) Confirm(prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N]: ", StyleWarning.Render(prompt))
	return p.yes()
}

// ConfirmDanger is Confirm styled for destructive actions.
func (p *Prompter) ConfirmDanger(prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N]: ", StyleError.Render("⚠ "+prompt))
	return p.yes()
}

// Line asks for one line of free text, trimmed. def is returned for an
// empty answer.
func (p *Prompter) Line(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s %s: ", StyleValue.Render(label), StyleMeta.Render("["+TruncateText(def, 30)+"]"))
	} else {
		fmt.Fprintf(p.out, "%s: ", StyleValue.Render(label))
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

func (p *Prompter) yes() bool {
	line, _ := p.in.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

// Approve implements provider.Approver for the local wallet: it prints what
// is being asked and waits for a yes/no.
func (p *Prompter) Approve(ctx context.Context, a provider.Approval) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintln(p.out, KeyValueBlock("Wallet request: "+a.Kind.String(), DescribeApproval(a)))
	return p.Confirm("Approve?"), nil
}

// DescribeApproval lists the details shown for an approval prompt.
func DescribeApproval(a provider.Approval) [][2]string {
	pairs := [][2]string{{"Account", a.Account.Hex()}}
	switch a.Kind {
	case provider.ApproveConnect:
		pairs = append(pairs, [2]string{"Network", a.Chain.DisplayName})
	case provider.ApproveSwitchChain, provider.ApproveAddChain:
		pairs = append(pairs,
			[2]string{"Network", a.Chain.DisplayName},
			[2]string{"Chain ID", a.Chain.HexID()},
		)
		if len(a.Chain.RPCURLs) > 0 {
			pairs = append(pairs, [2]string{"RPC", a.Chain.RPCURLs[0]})
		}
	case provider.ApproveTransaction:
		pairs = append(pairs, [2]string{"Network", a.Chain.DisplayName})
		if a.Tx != nil {
			pairs = append(pairs,
				[2]string{"To", a.Tx.To},
				[2]string{"Call", DescribeCall(a.Tx.Data)},
			)
			value := "0"
			if a.Tx.Value != nil {
				value = pricing.FromWei(a.Tx.Value.ToInt(), uint8(a.Chain.NativeCurrency.Decimals)).String()
			}
			pairs = append(pairs, [2]string{"Value", value + " " + a.Chain.NativeCurrency.Symbol})
		}
	}
	return pairs
}

// DescribeCall renders registry calldata as method(args), or a byte count
// for anything else.
func DescribeCall(data []byte) string {
	if len(data) == 0 {
		return "transfer"
	}
	if len(data) >= 4 {
		abi := registry.ABI()
		if m, err := abi.MethodById(data[:4]); err == nil {
			if args, err := m.Inputs.Unpack(data[4:]); err == nil {
				parts := make([]string, len(args))
				for i, v := range args {
					parts[i] = TruncateText(fmt.Sprintf("%q", v), 40)
				}
				return m.Name + "(" + strings.Join(parts, ", ") + ")"
			}
		}
	}
	return fmt.Sprintf("contract call (%d bytes)", len(data))
}

package ui

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3ns/internal/chain"
	"github.com/Mohsinsiddi/w3ns/internal/provider"
	"github.com/Mohsinsiddi/w3ns/internal/registry"
)

func mumbai(t *testing.T) chain.Chain {
	t.Helper()
	c, err := chain.NewRegistry().GetByName("mumbai")
	require.NoError(t, err)
	return *c
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("y\nno\nYES\n\n"), &out)

	assert.True(t, p.Confirm("Register?"))
	assert.False(t, p.Confirm("Register?"))
	assert.True(t, p.ConfirmDanger("Remove wallet?"))
	assert.False(t, p.Confirm("Register?"), "empty answer is no")
	assert.False(t, p.Confirm("Register?"), "EOF is no")
	assert.Contains(t, out.String(), "[y/N]")
}

func TestLine(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("  hello world \n\nlast"), &out)

	v, err := p.Line("Record", "")
	require.NoError(t, err)
	assert.Equal(t, "hello world", v)

	v, err = p.Line("Record", "keep me")
	require.NoError(t, err)
	assert.Equal(t, "keep me", v)
	assert.Contains(t, out.String(), "[keep me]")

	v, err = p.Line("Record", "")
	require.NoError(t, err)
	assert.Equal(t, "last", v, "final line without newline")

	_, err = p.Line("Record", "")
	assert.Error(t, err)
}

func TestApproveTransaction(t *testing.T) {
	data, err := registry.ABI().Pack(registry.MethodRegister, "ninja")
	require.NoError(t, err)
	fee := hexutil.Big(*big.NewInt(1e16))

	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("y\n"), &out)
	ok, err := p.Approve(context.Background(), provider.Approval{
		Kind:    provider.ApproveTransaction,
		Account: common.HexToAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"),
		Chain:   mumbai(t),
		Tx:      &provider.TransactionArgs{To: "0x31Df15756365D1B9C41d153c5904fF29Ae01c95F", Value: &fee, Data: data},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	s := out.String()
	assert.Contains(t, s, "transaction")
	assert.Contains(t, s, `register("ninja")`)
	assert.Contains(t, s, "0.01 MATIC")
}

func TestApproveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPrompter(strings.NewReader("y\n"), &bytes.Buffer{})
	_, err := p.Approve(ctx, provider.Approval{Kind: provider.ApproveConnect})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescribeApproval(t *testing.T) {
	c := mumbai(t)

	pairs := DescribeApproval(provider.Approval{Kind: provider.ApproveAddChain, Chain: c})
	assert.Contains(t, pairs, [2]string{"Chain ID", "0x13881"})
	assert.Contains(t, pairs, [2]string{"Network", "Polygon Mumbai Testnet"})
}

func TestDescribeCall(t *testing.T) {
	data, err := registry.ABI().Pack(registry.MethodSetRecord, "ninja", "hi")
	require.NoError(t, err)
	assert.Equal(t, `setRecord("ninja", "hi")`, DescribeCall(data))
	assert.Equal(t, "transfer", DescribeCall(nil))
	assert.Equal(t, "contract call (4 bytes)", DescribeCall([]byte{1, 2, 3, 4}))
}

package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3ns/internal/provider"
	"github.com/Mohsinsiddi/w3ns/internal/registry"
	"github.com/Mohsinsiddi/w3ns/internal/registry/registrytest"
)

const (
	alice = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	bob   = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
)

type account string

func (a account) CurrentAccount() string { return string(a) }

func setup(t *testing.T, from string) (*registry.Client, *registrytest.Contract, *provider.Fake) {
	t.Helper()
	f := provider.NewFake("0x13881", from).Authorize()
	c := registrytest.Install(f)
	client := registry.NewClient(f, c.Address, account(from), registry.WithReceiptPoll(time.Millisecond))
	return client, c, f
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestListNamesEmpty(t *testing.T) {
	client, _, _ := setup(t, alice)

	names, err := client.ListNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestListNamesAndLookup(t *testing.T) {
	client, c, _ := setup(t, alice)
	c.Seed("ninja", alice, "https://ninja.example")
	c.Seed("samurai", bob, "")

	names, err := client.ListNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ninja", "samurai"}, names)

	e, err := client.Lookup(context.Background(), "ninja")
	require.NoError(t, err)
	assert.Equal(t, "https://ninja.example", e.Record)
	assert.Equal(t, alice, e.Owner)

	e, err = client.Lookup(context.Background(), "samurai")
	require.NoError(t, err)
	assert.Equal(t, "", e.Record)
	assert.Equal(t, bob, e.Owner, "owner is lowercased")
}

func TestLookupUnregisteredName(t *testing.T) {
	client, _, _ := setup(t, alice)

	e, err := client.Lookup(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, "0x0000000000000000000000000000000000000000", e.Owner)
	assert.Empty(t, e.Record)
}

func TestLookupFailureIsRPCError(t *testing.T) {
	client, c, _ := setup(t, alice)
	c.Seed("broken", alice, "x")
	c.FailLookup("broken")

	_, err := client.Lookup(context.Background(), "broken")
	var rerr *registry.RPCError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, registry.MethodRecords, rerr.Op)
	assert.Contains(t, err.Error(), "header not found")
}

func TestReadWithoutProvider(t *testing.T) {
	client := registry.NewClient(nil, registrytest.Address, nil)

	_, err := client.ListNames(context.Background())
	var rerr *registry.RPCError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, provider.ErrProviderAbsent)
}

func TestEmptyCallResult(t *testing.T) {
	f := provider.NewFake("0x13881")
	f.Handle(provider.MethodCall, func(json.RawMessage) (any, error) { return "0x", nil })
	client := registry.NewClient(f, registrytest.Address, nil)

	_, err := client.ListNames(context.Background())
	var rerr *registry.RPCError
	assert.ErrorAs(t, err, &rerr)
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

func TestRegisterAndWait(t *testing.T) {
	client, c, _ := setup(t, alice)
	fee := big.NewInt(1e16)

	tx, err := client.Register(context.Background(), "ninja", fee)
	require.NoError(t, err)
	assert.Equal(t, registry.MethodRegister, tx.Op)
	assert.NotEqual(t, common.Hash{}, tx.Hash)

	r, err := tx.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Succeeded())
	assert.Equal(t, tx.Hash, r.TxHash)

	assert.Equal(t, []string{"ninja"}, c.Names())
	assert.Equal(t, alice, c.Owner("ninja"))
	require.NotNil(t, c.Paid("ninja"))
	assert.Zero(t, fee.Cmp(c.Paid("ninja")))
}

func TestRegisterTakenNameReverts(t *testing.T) {
	client, c, _ := setup(t, alice)
	c.Seed("ninja", bob, "")

	tx, err := client.Register(context.Background(), "ninja", big.NewInt(1))
	require.NoError(t, err)
	r, err := tx.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Succeeded())
}

func TestRegisterUserRejected(t *testing.T) {
	client, _, f := setup(t, alice)
	f.Handle(provider.MethodSendTransaction, func(json.RawMessage) (any, error) {
		return nil, provider.NewError(provider.CodeUserRejected, "User denied transaction signature.")
	})

	_, err := client.Register(context.Background(), "ninja", big.NewInt(1))
	var rerr *registry.RPCError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, registry.MethodRegister, rerr.Op)
	assert.ErrorIs(t, err, provider.ErrUserRejected)
}

func TestSetRecord(t *testing.T) {
	client, c, _ := setup(t, alice)
	c.Seed("ninja", alice, "old")

	tx, err := client.SetRecord(context.Background(), "ninja", "new")
	require.NoError(t, err)
	r, err := tx.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Succeeded())
	assert.Equal(t, "new", c.Record("ninja"))
}

func TestSetRecordNotOwnerRevertsOnChain(t *testing.T) {
	client, c, _ := setup(t, alice)
	c.Seed("ninja", bob, "bob's")

	tx, err := client.SetRecord(context.Background(), "ninja", "mine now")
	require.NoError(t, err, "no client-side ownership check")
	r, err := tx.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Succeeded())
	assert.Equal(t, "bob's", c.Record("ninja"))
}

func TestWaitPollsUntilMined(t *testing.T) {
	client, c, f := setup(t, alice)
	c.HoldReceipts(true)

	tx, err := client.Register(context.Background(), "ninja", big.NewInt(1))
	require.NoError(t, err)

	done := make(chan *registry.Receipt, 1)
	go func() {
		r, err := tx.Wait(context.Background())
		assert.NoError(t, err)
		done <- r
	}()

	require.Eventually(t, func() bool { return f.Calls(provider.MethodGetReceipt) >= 3 }, time.Second, time.Millisecond)
	c.Mine()

	select {
	case r := <-done:
		assert.True(t, r.Succeeded())
	case <-time.After(time.Second):
		t.Fatal("wait did not return after mining")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	client, c, _ := setup(t, alice)
	c.HoldReceipts(true)

	tx, err := client.Register(context.Background(), "ninja", big.NewInt(1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tx.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTxWithoutWaiter(t *testing.T) {
	tx := registry.NewTx(registry.MethodSetRecord, common.HexToHash("0x01"), nil)
	r, err := tx.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Succeeded())
}

// Package registry is a thin client for the on-chain name registry. It
// speaks to the contract only through a provider.Provider and neither
// retries nor caches.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Mohsinsiddi/w3ns/internal/logger"
	"github.com/Mohsinsiddi/w3ns/internal/provider"
)

// AccountSource supplies the sending account. An empty string lets the
// wallet pick its default.
type AccountSource interface {
	CurrentAccount() string
}

// Entry is what Lookup returns for one name.
type Entry struct {
	Record string
	Owner  string
}

// Client talks to one deployed registry contract.
type Client struct {
	p        provider.Provider
	contract common.Address
	from     AccountSource
	poll     time.Duration
	log      logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithReceiptPoll sets how often Tx.Wait polls for a receipt.
func WithReceiptPoll(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.poll = d
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient builds a Client. p is wrapped so every error is classified.
func NewClient(p provider.Provider, contract common.Address, from AccountSource, opts ...Option) *Client {
	c := &Client{
		p:        provider.Wrap(p),
		contract: contract,
		from:     from,
		poll:     DefaultReceiptPoll,
		log:      logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Contract returns the registry address.
func (c *Client) Contract() common.Address { return c.contract }

// Register submits register(name) paying fee wei.
func (c *Client) Register(ctx context.Context, name string, fee *big.Int) (*Tx, error) {
	return c.transact(ctx, MethodRegister, fee, name)
}

// SetRecord submits setRecord(name, record). Ownership is enforced by the
// contract, not here.
func (c *Client) SetRecord(ctx context.Context, name, record string) (*Tx, error) {
	return c.transact(ctx, MethodSetRecord, nil, name, record)
}

// ListNames returns every registered name in contract order.
func (c *Client) ListNames(ctx context.Context) ([]string, error) {
	out, err := c.call(ctx, MethodGetAllNames)
	if err != nil {
		return nil, err
	}
	names, ok := out[0].([]string)
	if !ok {
		return nil, opErr(MethodGetAllNames, fmt.Errorf("unexpected result type %T", out[0]))
	}
	return names, nil
}

// Lookup reads the record and owner of name.
func (c *Client) Lookup(ctx context.Context, name string) (Entry, error) {
	rec, err := c.call(ctx, MethodRecords, name)
	if err != nil {
		return Entry{}, err
	}
	own, err := c.call(ctx, MethodDomains, name)
	if err != nil {
		return Entry{}, err
	}
	record, ok := rec[0].(string)
	if !ok {
		return Entry{}, opErr(MethodRecords, fmt.Errorf("unexpected result type %T", rec[0]))
	}
	owner, ok := own[0].(common.Address)
	if !ok {
		return Entry{}, opErr(MethodDomains, fmt.Errorf("unexpected result type %T", own[0]))
	}
	return Entry{Record: record, Owner: strings.ToLower(owner.Hex())}, nil
}

func (c *Client) transact(ctx context.Context, method string, value *big.Int, args ...any) (*Tx, error) {
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, opErr(method, fmt.Errorf("encoding: %w", err))
	}
	tx := provider.TransactionArgs{To: c.contract.Hex(), Data: data}
	if c.from != nil {
		tx.From = c.from.CurrentAccount()
	}
	if value != nil && value.Sign() > 0 {
		tx.Value = (*hexutil.Big)(value)
	}

	raw, err := c.p.Request(ctx, provider.MethodSendTransaction, tx)
	if err != nil {
		return nil, opErr(method, err)
	}
	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return nil, opErr(method, fmt.Errorf("decoding tx hash: %w", err))
	}
	c.log.Info("transaction submitted", map[string]any{"op": method, "hash": hash.Hex()})
	return NewTx(method, hash, c.waiter(method, hash)), nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, opErr(method, fmt.Errorf("encoding: %w", err))
	}
	raw, err := c.p.Request(ctx, provider.MethodCall, provider.TransactionArgs{To: c.contract.Hex(), Data: data}, "latest")
	if err != nil {
		return nil, opErr(method, err)
	}
	var ret hexutil.Bytes
	if err := json.Unmarshal(raw, &ret); err != nil {
		return nil, opErr(method, fmt.Errorf("decoding result: %w", err))
	}
	out, err := parsedABI.Unpack(method, ret)
	if err != nil {
		return nil, opErr(method, fmt.Errorf("decoding result: %w", err))
	}
	if len(out) == 0 {
		return nil, opErr(method, fmt.Errorf("empty result"))
	}
	return out, nil
}

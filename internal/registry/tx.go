package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mohsinsiddi/w3ns/internal/provider"
)

// DefaultReceiptPoll is how often Wait polls for a receipt.
const DefaultReceiptPoll = 2 * time.Second

// Receipt is the part of a transaction receipt the client cares about.
type Receipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	Status      hexutil.Uint64 `json:"status"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return uint64(r.Status) == types.ReceiptStatusSuccessful
}

// WaitFunc blocks until a transaction is mined.
type WaitFunc func(ctx context.Context) (*Receipt, error)

// Tx is a submitted transaction.
type Tx struct {
	Hash common.Hash
	Op   string
	wait WaitFunc
}

// NewTx builds a Tx whose Wait calls wait.
func NewTx(op string, hash common.Hash, wait WaitFunc) *Tx {
	return &Tx{Hash: hash, Op: op, wait: wait}
}

// Wait blocks until the transaction has a receipt or ctx ends. A reverted
// transaction is not an error here; check Receipt.Succeeded.
func (t *Tx) Wait(ctx context.Context) (*Receipt, error) {
	if t.wait == nil {
		return &Receipt{TxHash: t.Hash, Status: hexutil.Uint64(types.ReceiptStatusSuccessful)}, nil
	}
	return t.wait(ctx)
}

func (c *Client) waiter(op string, hash common.Hash) WaitFunc {
	return func(ctx context.Context) (*Receipt, error) {
		t := time.NewTicker(c.poll)
		defer t.Stop()
		for {
			r, err := c.receipt(ctx, hash)
			if err != nil {
				return nil, opErr(op, err)
			}
			if r != nil {
				c.log.Debug("receipt received", map[string]any{
					"op":     op,
					"hash":   hash.Hex(),
					"status": uint64(r.Status),
					"block":  uint64(r.BlockNumber),
				})
				return r, nil
			}
			select {
			case <-ctx.Done():
				return nil, opErr(op, ctx.Err())
			case <-t.C:
			}
		}
	}
}

func (c *Client) receipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	raw, err := c.p.Request(ctx, provider.MethodGetReceipt, hash)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

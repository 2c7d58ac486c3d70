// Package registrytest serves an in-memory name registry contract through a
// provider.Fake so tests can exercise the real ABI encoding end to end.
package registrytest

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Mohsinsiddi/w3ns/internal/provider"
	"github.com/Mohsinsiddi/w3ns/internal/registry"
)

// Address is the default contract address used by tests.
var Address = common.HexToAddress("0x31Df15756365D1B9C41d153c5904fF29Ae01c95F")

type receipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	Status      hexutil.Uint64 `json:"status"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
}

// Contract is the in-memory registry state.
type Contract struct {
	Address common.Address

	mu       sync.Mutex
	names    []string
	owners   map[string]common.Address
	records  map[string]string
	paid     map[string]*big.Int
	receipts map[common.Hash]receipt
	pending  map[common.Hash]receipt
	block    uint64

	revertRegister bool
	failSetRecord  error
	failLookup     map[string]bool
	holdReceipts   bool
	onSend         func(method string)
}

// Install registers contract handlers on f and returns the contract.
func Install(f *provider.Fake) *Contract {
	c := &Contract{
		Address:    Address,
		owners:     make(map[string]common.Address),
		records:    make(map[string]string),
		paid:       make(map[string]*big.Int),
		receipts:   make(map[common.Hash]receipt),
		pending:    make(map[common.Hash]receipt),
		failLookup: make(map[string]bool),
		block:      100,
	}
	f.Handle(provider.MethodSendTransaction, c.send)
	f.Handle(provider.MethodCall, c.call)
	f.Handle(provider.MethodGetReceipt, c.receipt)
	return c
}

// Seed registers name directly, bypassing transactions.
func (c *Contract) Seed(name, owner, record string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.owners[name]; !ok {
		c.names = append(c.names, name)
	}
	c.owners[name] = common.HexToAddress(owner)
	c.records[name] = record
}

// RevertRegister makes register transactions mine with status 0.
func (c *Contract) RevertRegister(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revertRegister = v
}

// FailSetRecord makes eth_sendTransaction for setRecord return err.
func (c *Contract) FailSetRecord(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSetRecord = err
}

// FailLookup makes records(name) calls fail.
func (c *Contract) FailLookup(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failLookup[name] = true
}

// HoldReceipts keeps new transactions pending until Mine is called.
func (c *Contract) HoldReceipts(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdReceipts = v
}

// Mine releases every held receipt.
func (c *Contract) Mine() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for h, r := range c.pending {
		c.receipts[h] = r
		delete(c.pending, h)
	}
}

// OnSend is called with the contract method of every submitted transaction.
// fn runs under the contract lock and must not call back into c.
func (c *Contract) OnSend(fn func(method string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSend = fn
}

// Names returns the registered names in order.
func (c *Contract) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

// Record returns the record for name.
func (c *Contract) Record(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[name]
}

// Owner returns the lowercase owner of name, or "".
func (c *Contract) Owner(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.owners[name]
	if !ok {
		return ""
	}
	return strings.ToLower(o.Hex())
}

// Paid returns the value sent with the register transaction for name.
func (c *Contract) Paid(name string) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paid[name]
}

func decodeArgs(params json.RawMessage) (provider.TransactionArgs, error) {
	var p []json.RawMessage
	if err := json.Unmarshal(params, &p); err != nil || len(p) == 0 {
		return provider.TransactionArgs{}, provider.NewError(-32602, "invalid params")
	}
	var args provider.TransactionArgs
	if err := json.Unmarshal(p[0], &args); err != nil {
		return provider.TransactionArgs{}, provider.NewError(-32602, err.Error())
	}
	return args, nil
}

func (c *Contract) send(params json.RawMessage) (any, error) {
	args, err := decodeArgs(params)
	if err != nil {
		return nil, err
	}
	if len(args.Data) < 4 {
		return nil, provider.NewError(-32000, "missing calldata")
	}
	abi := registry.ABI()
	m, err := abi.MethodById(args.Data[:4])
	if err != nil {
		return nil, provider.NewError(-32000, err.Error())
	}
	in, err := m.Inputs.Unpack(args.Data[4:])
	if err != nil {
		return nil, provider.NewError(-32000, err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onSend != nil {
		c.onSend(m.Name)
	}

	from := common.HexToAddress(args.From)
	ok := true
	switch m.Name {
	case registry.MethodRegister:
		name := in[0].(string)
		if _, taken := c.owners[name]; taken || c.revertRegister {
			ok = false
			break
		}
		c.names = append(c.names, name)
		c.owners[name] = from
		c.records[name] = ""
		if args.Value != nil {
			c.paid[name] = args.Value.ToInt()
		}
	case registry.MethodSetRecord:
		if c.failSetRecord != nil {
			return nil, c.failSetRecord
		}
		name, rec := in[0].(string), in[1].(string)
		if owner, exists := c.owners[name]; !exists || owner != from {
			ok = false
			break
		}
		c.records[name] = rec
	default:
		return nil, provider.NewError(-32000, fmt.Sprintf("%s is not a transaction", m.Name))
	}

	c.block++
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], c.block)
	hash := crypto.Keccak256Hash(seed[:], args.Data)
	r := receipt{TxHash: hash, BlockNumber: hexutil.Uint64(c.block), GasUsed: 50000}
	if ok {
		r.Status = 1
	}
	if c.holdReceipts {
		c.pending[hash] = r
	} else {
		c.receipts[hash] = r
	}
	return hash, nil
}

func (c *Contract) call(params json.RawMessage) (any, error) {
	args, err := decodeArgs(params)
	if err != nil {
		return nil, err
	}
	if len(args.Data) < 4 {
		return hexutil.Bytes{}, nil
	}
	abi := registry.ABI()
	m, err := abi.MethodById(args.Data[:4])
	if err != nil {
		return nil, provider.NewError(-32000, "execution reverted")
	}
	in, err := m.Inputs.Unpack(args.Data[4:])
	if err != nil {
		return nil, provider.NewError(-32000, err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var out []byte
	switch m.Name {
	case registry.MethodGetAllNames:
		out, err = m.Outputs.Pack(append([]string{}, c.names...))
	case registry.MethodRecords:
		name := in[0].(string)
		if c.failLookup[name] {
			return nil, provider.NewError(-32000, "header not found")
		}
		out, err = m.Outputs.Pack(c.records[name])
	case registry.MethodDomains:
		out, err = m.Outputs.Pack(c.owners[in[0].(string)])
	default:
		return nil, provider.NewError(-32000, "execution reverted")
	}
	if err != nil {
		return nil, errors.New("packing " + m.Name + ": " + err.Error())
	}
	return hexutil.Bytes(out), nil
}

func (c *Contract) receipt(params json.RawMessage) (any, error) {
	var p []common.Hash
	if err := json.Unmarshal(params, &p); err != nil || len(p) == 0 {
		return nil, provider.NewError(-32602, "invalid params")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[p[0]]
	if !ok {
		return nil, nil
	}
	return r, nil
}

// Package provider models the wallet a session talks to as an explicit
// EIP-1193 capability. Everything above this package sees tagged errors
// (see Error) instead of raw JSON-RPC error codes.
package provider

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EIP-1193 / EIP-3085 / EIP-3326 methods used by w3ns.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodSendTransaction = "eth_sendTransaction"
	MethodCall            = "eth_call"
	MethodGetReceipt      = "eth_getTransactionReceipt"
)

// Provider is an EIP-1193 wallet.
type Provider interface {
	// Request performs a single wallet/RPC request and returns the raw
	// JSON result.
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)

	// OnChainChanged registers fn to run whenever the wallet's active chain
	// changes. The returned func removes the handler.
	OnChainChanged(fn func(chainID string)) (unsubscribe func())
}

// TransactionArgs is the eth_call / eth_sendTransaction object.
type TransactionArgs struct {
	From  string          `json:"from,omitempty"`
	To    string          `json:"to"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

// Decode unmarshals a raw result into v.
func Decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(raw, v)
}

// decodeParams re-marshals Go params through JSON so in-process providers
// see exactly what a remote wallet would receive on the wire.
func decodeParams(params []any, v any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

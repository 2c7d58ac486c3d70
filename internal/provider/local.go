package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Mohsinsiddi/w3ns/internal/chain"
	"github.com/Mohsinsiddi/w3ns/internal/endpoint"
	"github.com/Mohsinsiddi/w3ns/internal/logger"
	"github.com/Mohsinsiddi/w3ns/internal/wallet"
)

// signingMethods ask a wallet to sign arbitrary data. LocalProvider only
// signs transactions, and these must not reach a public node either.
var signingMethods = map[string]bool{
	"personal_sign":        true,
	"eth_sign":             true,
	"eth_signTypedData_v4": true,
}

// ApprovalKind names what the user is asked to approve.
type ApprovalKind int

const (
	ApproveConnect ApprovalKind = iota
	ApproveTransaction
	ApproveSwitchChain
	ApproveAddChain
)

func (k ApprovalKind) String() string {
	switch k {
	case ApproveConnect:
		return "connect"
	case ApproveTransaction:
		return "transaction"
	case ApproveSwitchChain:
		return "switch chain"
	case ApproveAddChain:
		return "add chain"
	default:
		return "unknown"
	}
}

// Approval describes one prompt.
type Approval struct {
	Kind    ApprovalKind
	Account common.Address
	Chain   chain.Chain
	Tx      *TransactionArgs
}

// Approver asks the user to approve a wallet action. Returning false maps to
// EIP-1193 code 4001.
type Approver func(ctx context.Context, a Approval) (bool, error)

// AutoApprove approves everything.
func AutoApprove(context.Context, Approval) (bool, error) { return true, nil }

// Dialer opens an RPC connection to a chain node.
type Dialer func(ctx context.Context, url string) (*rpc.Client, error)

// LocalConfig configures a LocalProvider.
type LocalConfig struct {
	Signer *wallet.Signer
	Chains *chain.Registry
	// Chain is the starting chain (name, hex id or decimal id).
	Chain    string
	Approver Approver
	// Preauthorized exposes the account to eth_accounts without a prompt.
	Preauthorized bool
	// GasMarginPercent is added on top of eth_estimateGas.
	GasMarginPercent int64
	Dial             Dialer
	// Strategy picks among a chain's RPC URLs. Default endpoint.Fastest.
	Strategy endpoint.Strategy
	Logger   logger.Logger
}

// LocalProvider is an in-process EIP-1193 wallet holding one keychain key.
// Reads are forwarded to the active chain's public RPC.
type LocalProvider struct {
	signer   *wallet.Signer
	chains   *chain.Registry
	approve  Approver
	dial     Dialer
	strategy endpoint.Strategy
	margin   int64
	log      logger.Logger

	mu         sync.Mutex
	active     chain.Chain
	authorized bool
	clients    map[int64]*rpc.Client
	handlers   map[int]func(string)
	nextID     int
}

// NewLocal builds a LocalProvider.
func NewLocal(cfg LocalConfig) (*LocalProvider, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("%w: no signing wallet configured", ErrProviderAbsent)
	}
	if cfg.Chains == nil {
		cfg.Chains = chain.NewRegistry()
	}
	if cfg.Approver == nil {
		cfg.Approver = AutoApprove
	}
	if cfg.Dial == nil {
		cfg.Dial = rpc.DialContext
	}
	if cfg.Strategy == "" {
		cfg.Strategy = endpoint.Fastest
	}
	if cfg.GasMarginPercent <= 0 {
		cfg.GasMarginPercent = 20
	}
	start, err := resolveChain(cfg.Chains, cfg.Chain)
	if err != nil {
		return nil, err
	}
	return &LocalProvider{
		signer:     cfg.Signer,
		chains:     cfg.Chains,
		approve:    cfg.Approver,
		dial:       cfg.Dial,
		strategy:   cfg.Strategy,
		margin:     cfg.GasMarginPercent,
		log:        logger.With(cfg.Logger, map[string]any{"wallet": cfg.Signer.Name()}),
		active:     *start,
		authorized: cfg.Preauthorized,
		clients:    make(map[int64]*rpc.Client),
		handlers:   make(map[int]func(string)),
	}, nil
}

func resolveChain(r *chain.Registry, s string) (*chain.Chain, error) {
	if s == "" {
		return r.GetByName("ethereum")
	}
	if c, err := r.GetByName(s); err == nil {
		return c, nil
	}
	return r.GetByHexID(s)
}

// Account returns the wallet address.
func (p *LocalProvider) Account() common.Address { return p.signer.Address() }

// ActiveChain returns the chain the provider is currently on.
func (p *LocalProvider) ActiveChain() chain.Chain {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// OnChainChanged implements Provider.
func (p *LocalProvider) OnChainChanged(fn func(string)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.handlers, id)
	}
}

// Close releases every chain connection.
func (p *LocalProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.clients {
		c.Close()
		delete(p.clients, id)
	}
}

// Request implements Provider.
func (p *LocalProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var (
		res any
		err error
	)
	switch method {
	case MethodRequestAccounts:
		res, err = p.requestAccounts(ctx)
	case MethodAccounts:
		res = p.accounts()
	case MethodChainID:
		active := p.ActiveChain()
		res = active.HexID()
	case MethodSwitchChain:
		res, err = p.switchChain(ctx, params)
	case MethodAddChain:
		res, err = p.addChain(ctx, params)
	case MethodSendTransaction:
		res, err = p.sendTransaction(ctx, params)
	default:
		if signingMethods[method] {
			return nil, NewError(CodeUnsupportedMethod, "The Provider does not support the requested method.")
		}
		return p.forward(ctx, method, params...)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (p *LocalProvider) requestAccounts(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	authorized := p.authorized
	p.mu.Unlock()
	if !authorized {
		ok, err := p.approve(ctx, Approval{Kind: ApproveConnect, Account: p.Account(), Chain: p.ActiveChain()})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, NewError(CodeUserRejected, "User rejected the request.")
		}
		p.mu.Lock()
		p.authorized = true
		p.mu.Unlock()
		p.log.Info("account exposed", map[string]any{"account": p.Account().Hex()})
	}
	return p.accounts(), nil
}

func (p *LocalProvider) accounts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authorized {
		return []string{}
	}
	return []string{strings.ToLower(p.signer.Address().Hex())}
}

func (p *LocalProvider) switchChain(ctx context.Context, params []any) (any, error) {
	var req []chain.SwitchChainParams
	if err := decodeParams(params, &req); err != nil || len(req) == 0 {
		return nil, NewError(-32602, "invalid params")
	}
	target, err := p.chains.GetByHexID(req[0].ChainID)
	if err != nil {
		return nil, NewError(CodeChainUnrecognized, fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", req[0].ChainID))
	}
	if target.ChainID == p.ActiveChain().ChainID {
		return nil, nil
	}
	ok, err := p.approve(ctx, Approval{Kind: ApproveSwitchChain, Account: p.Account(), Chain: *target})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewError(CodeUserRejected, "User rejected the request.")
	}
	p.setActive(*target)
	return nil, nil
}

func (p *LocalProvider) addChain(ctx context.Context, params []any) (any, error) {
	var req []chain.AddChainParams
	if err := decodeParams(params, &req); err != nil || len(req) == 0 {
		return nil, NewError(-32602, "invalid params")
	}
	c, err := chain.FromAddParams(req[0])
	if err != nil {
		return nil, NewError(-32602, err.Error())
	}
	ok, err := p.approve(ctx, Approval{Kind: ApproveAddChain, Account: p.Account(), Chain: c})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewError(CodeUserRejected, "User rejected the request.")
	}
	if err := p.chains.Add(c); err != nil {
		return nil, NewError(-32602, err.Error())
	}
	added, err := p.chains.GetByChainID(c.ChainID)
	if err != nil {
		return nil, err
	}
	p.setActive(*added)
	return nil, nil
}

func (p *LocalProvider) setActive(c chain.Chain) {
	p.mu.Lock()
	p.active = c
	fns := make([]func(string), 0, len(p.handlers))
	for _, fn := range p.handlers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	p.log.Info("chain switched", map[string]any{"chain": c.DisplayName, "chain_id": c.HexID()})
	for _, fn := range fns {
		fn(c.HexID())
	}
}

func (p *LocalProvider) sendTransaction(ctx context.Context, params []any) (string, error) {
	var req []TransactionArgs
	if err := decodeParams(params, &req); err != nil || len(req) == 0 {
		return "", NewError(-32602, "invalid params")
	}
	args := req[0]
	from := p.signer.Address()
	if len(p.accounts()) == 0 {
		return "", NewError(CodeUnauthorized, "The requested account has not been authorized by the user.")
	}
	if args.From != "" && !strings.EqualFold(args.From, from.Hex()) {
		return "", NewError(CodeUnauthorized, "The requested account has not been authorized by the user.")
	}
	if !common.IsHexAddress(args.To) {
		return "", NewError(-32602, "invalid to address")
	}

	active := p.ActiveChain()
	ok, err := p.approve(ctx, Approval{Kind: ApproveTransaction, Account: from, Chain: active, Tx: &args})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", NewError(CodeUserRejected, "User denied transaction signature.")
	}

	rc, err := p.client(ctx, active)
	if err != nil {
		return "", err
	}
	ec := ethclient.NewClient(rc)

	tx, err := p.buildTx(ctx, ec, active, from, args)
	if err != nil {
		return "", err
	}
	signed, err := p.signer.SignTx(tx, big.NewInt(active.ChainID))
	if err != nil {
		return "", err
	}
	if err := ec.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("broadcasting transaction: %w", err)
	}
	p.log.Info("transaction sent", map[string]any{
		"hash":  signed.Hash().Hex(),
		"to":    args.To,
		"nonce": signed.Nonce(),
		"chain": active.DisplayName,
	})
	return signed.Hash().Hex(), nil
}

func (p *LocalProvider) buildTx(ctx context.Context, ec *ethclient.Client, c chain.Chain, from common.Address, args TransactionArgs) (*types.Transaction, error) {
	to := common.HexToAddress(args.To)
	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}

	nonce, err := ec.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetching nonce: %w", err)
	}

	gas := uint64(0)
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	} else {
		est, err := ec.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: args.Data})
		if err != nil {
			return nil, fmt.Errorf("estimating gas: %w", err)
		}
		gas = est + est*uint64(p.margin)/100
	}

	gasPrice, err := ec.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching gas price: %w", err)
	}
	tip, err := ec.SuggestGasTipCap(ctx)
	if err != nil {
		// Nodes without eth_maxPriorityFeePerGas.
		tip = new(big.Int).Set(gasPrice)
	}
	feeCap := new(big.Int).Mul(gasPrice, big.NewInt(2))
	if tip.Cmp(feeCap) > 0 {
		tip = new(big.Int).Set(feeCap)
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(c.ChainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      args.Data,
	}), nil
}

func (p *LocalProvider) forward(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	rc, err := p.client(ctx, p.ActiveChain())
	if err != nil {
		return nil, err
	}
	var res json.RawMessage
	if err := rc.CallContext(ctx, &res, method, params...); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *LocalProvider) client(ctx context.Context, c chain.Chain) (*rpc.Client, error) {
	p.mu.Lock()
	rc, ok := p.clients[c.ChainID]
	p.mu.Unlock()
	if ok {
		return rc, nil
	}
	url, err := endpoint.Select(ctx, endpoint.Dialer(p.dial), c.RPCURLs, p.strategy)
	if err != nil {
		return nil, NewError(CodeChainDisconnected, fmt.Sprintf("no usable rpc for %s: %v", c.DisplayName, err))
	}
	p.log.Debug("rpc endpoint selected", map[string]any{"chain": c.Name, "url": url})
	rc, err = p.dial(ctx, url)
	if err != nil {
		return nil, NewError(CodeChainDisconnected, fmt.Sprintf("dial %s: %v", c.DisplayName, err))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[c.ChainID]; ok {
		rc.Close()
		return existing, nil
	}
	p.clients[c.ChainID] = rc
	return rc, nil
}

package provider

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/Mohsinsiddi/w3ns/internal/chain"
)

// HandlerFunc serves one method on a Fake. params is the JSON-encoded
// parameter array exactly as a remote wallet would receive it.
type HandlerFunc func(params json.RawMessage) (any, error)

// Fake is an in-memory wallet for tests. Account and chain management
// methods are built in; everything else is served by handlers registered
// with Handle.
type Fake struct {
	mu            sync.Mutex
	accounts      []string
	authorized    bool
	chainID       string
	known         map[string]bool
	rejectConnect bool
	rejectSwitch  bool
	rejectAdd     bool
	handlers      map[string]HandlerFunc
	calls         map[string]int
	subs          map[int]func(string)
	nextSub       int
}

// NewFake returns a Fake on chainID holding accounts. The chain is always
// known; others become known through KnowChain or wallet_addEthereumChain.
func NewFake(chainID string, accounts ...string) *Fake {
	return &Fake{
		accounts: accounts,
		chainID:  strings.ToLower(chainID),
		known:    map[string]bool{strings.ToLower(chainID): true},
		handlers: make(map[string]HandlerFunc),
		calls:    make(map[string]int),
		subs:     make(map[int]func(string)),
	}
}

// Authorize marks the accounts as already exposed to the app.
func (f *Fake) Authorize() *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorized = true
	return f
}

// KnowChain makes wallet_switchEthereumChain succeed for id.
func (f *Fake) KnowChain(id string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.known[strings.ToLower(id)] = true
	return f
}

// RejectConnect makes eth_requestAccounts fail with 4001.
func (f *Fake) RejectConnect(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectConnect = v
}

// RejectSwitch makes wallet_switchEthereumChain fail with 4001.
func (f *Fake) RejectSwitch(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectSwitch = v
}

// RejectAdd makes wallet_addEthereumChain fail with 4001.
func (f *Fake) RejectAdd(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectAdd = v
}

// Handle registers h for method, overriding any built-in behavior.
func (f *Fake) Handle(method string, h HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// Calls returns how many times method was requested.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// ChainID returns the fake's active chain.
func (f *Fake) ChainID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID
}

// EmitChainChanged switches the active chain and notifies subscribers, as
// when the user changes network inside the wallet.
func (f *Fake) EmitChainChanged(id string) {
	f.mu.Lock()
	f.chainID = strings.ToLower(id)
	f.known[f.chainID] = true
	subs := make([]func(string), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(strings.ToLower(id))
	}
}

// OnChainChanged implements Provider.
func (f *Fake) OnChainChanged(fn func(string)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// Subscribers returns the number of chain-change handlers registered.
func (f *Fake) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Request implements Provider.
func (f *Fake) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls[method]++
	h, ok := f.handlers[method]
	f.mu.Unlock()

	var res any
	if ok {
		res, err = h(raw)
	} else {
		res, err = f.builtin(method, raw)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (f *Fake) builtin(method string, raw json.RawMessage) (any, error) {
	switch method {
	case MethodRequestAccounts:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.rejectConnect {
			return nil, NewError(CodeUserRejected, "User rejected the request.")
		}
		f.authorized = true
		return f.accounts, nil

	case MethodAccounts:
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.authorized {
			return []string{}, nil
		}
		return f.accounts, nil

	case MethodChainID:
		return f.ChainID(), nil

	case MethodSwitchChain:
		var p []chain.SwitchChainParams
		if err := json.Unmarshal(raw, &p); err != nil || len(p) == 0 {
			return nil, NewError(-32602, "invalid params")
		}
		id := strings.ToLower(p[0].ChainID)
		f.mu.Lock()
		reject, known := f.rejectSwitch, f.known[id]
		f.mu.Unlock()
		if reject {
			return nil, NewError(CodeUserRejected, "User rejected the request.")
		}
		if !known {
			return nil, NewError(CodeChainUnrecognized, "Unrecognized chain ID "+id)
		}
		f.EmitChainChanged(id)
		return nil, nil

	case MethodAddChain:
		var p []chain.AddChainParams
		if err := json.Unmarshal(raw, &p); err != nil || len(p) == 0 {
			return nil, NewError(-32602, "invalid params")
		}
		f.mu.Lock()
		reject := f.rejectAdd
		f.mu.Unlock()
		if reject {
			return nil, NewError(CodeUserRejected, "User rejected the request.")
		}
		f.EmitChainChanged(p[0].ChainID)
		return nil, nil
	}
	return nil, NewError(CodeUnsupportedMethod, "method "+method+" not supported")
}

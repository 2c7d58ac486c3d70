package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcHandler func(params json.RawMessage) (any, *rpcError)

// rpcMock is a JSON-RPC node answering from a per-method table and
// recording every call.
type rpcMock struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    []string
}

func newRPCMock(t *testing.T, handlers map[string]rpcHandler) *rpcMock {
	t.Helper()
	m := &rpcMock{handlers: handlers}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

func (m *rpcMock) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.calls = append(m.calls, req.Method)
	h, ok := m.handlers[req.Method]
	m.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = rpcError{Code: -32601, Message: "method not found: " + req.Method}
	} else if res, rerr := h(req.Params); rerr != nil {
		resp["error"] = rerr
	} else {
		resp["result"] = res
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (m *rpcMock) set(method string, h rpcHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = h
}

func (m *rpcMock) called(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

func result(v any) rpcHandler {
	return func(json.RawMessage) (any, *rpcError) { return v, nil }
}

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Kind classifies a provider failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindProviderAbsent
	KindUserRejected
	KindUnauthorized
	KindUnsupportedMethod
	KindDisconnected
	KindChainDisconnected
	KindChainUnrecognized
)

// EIP-1193 provider error codes, plus the de-facto 4902 for unknown chains.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeChainUnrecognized = 4902
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrProviderAbsent    = errors.New("no wallet provider available")
	ErrUserRejected      = errors.New("user rejected the request")
	ErrUnauthorized      = errors.New("account not authorized")
	ErrUnsupportedMethod = errors.New("method not supported by wallet")
	ErrDisconnected      = errors.New("wallet disconnected")
	ErrChainDisconnected = errors.New("wallet not connected to the requested chain")
	ErrChainUnrecognized = errors.New("chain not recognized by wallet")
)

func (k Kind) String() string {
	switch k {
	case KindProviderAbsent:
		return "provider_absent"
	case KindUserRejected:
		return "user_rejected"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnsupportedMethod:
		return "unsupported_method"
	case KindDisconnected:
		return "disconnected"
	case KindChainDisconnected:
		return "chain_disconnected"
	case KindChainUnrecognized:
		return "chain_unrecognized"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindProviderAbsent:
		return ErrProviderAbsent
	case KindUserRejected:
		return ErrUserRejected
	case KindUnauthorized:
		return ErrUnauthorized
	case KindUnsupportedMethod:
		return ErrUnsupportedMethod
	case KindDisconnected:
		return ErrDisconnected
	case KindChainDisconnected:
		return ErrChainDisconnected
	case KindChainUnrecognized:
		return ErrChainUnrecognized
	default:
		return nil
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind    Kind
	Code    int
	Method  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Method != "" {
		return fmt.Sprintf("%s: %s (code %d)", e.Method, msg, e.Code)
	}
	return fmt.Sprintf("%s (code %d)", msg, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NewError builds a wire-shaped error with the given EIP-1193 code. In-process
// providers use it so their errors classify like a remote wallet's.
func NewError(code int, message string) error {
	return &rpcCodeError{code: code, msg: message}
}

type rpcCodeError struct {
	code int
	msg  string
}

func (e *rpcCodeError) Error() string  { return e.msg }
func (e *rpcCodeError) ErrorCode() int { return e.code }

// Classify converts any error returned by a raw provider into an *Error.
// Errors that are already classified pass through unchanged; context
// cancellation passes through untouched so callers can detect it.
func Classify(method string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, ErrProviderAbsent) {
		return &Error{Kind: KindProviderAbsent, Method: method, Message: ErrProviderAbsent.Error(), Cause: err}
	}

	out := &Error{Kind: KindUnknown, Method: method, Message: err.Error(), Cause: err}
	var coded rpc.Error
	if errors.As(err, &coded) {
		out.Code = coded.ErrorCode()
		out.Kind = kindForCode(out.Code)
	}
	return out
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

func kindForCode(code int) Kind {
	switch code {
	case CodeUserRejected:
		return KindUserRejected
	case CodeUnauthorized:
		return KindUnauthorized
	case CodeUnsupportedMethod:
		return KindUnsupportedMethod
	case CodeDisconnected:
		return KindDisconnected
	case CodeChainDisconnected:
		return KindChainDisconnected
	case CodeChainUnrecognized:
		return KindChainUnrecognized
	default:
		return KindUnknown
	}
}

// Wrap returns a Provider whose Request errors are always classified. A nil
// raw provider yields one that fails every call with ErrProviderAbsent.
func Wrap(raw Provider) Provider {
	if raw == nil {
		return absent{}
	}
	if w, ok := raw.(*adapter); ok {
		return w
	}
	return &adapter{raw: raw}
}

type adapter struct {
	raw Provider
}

func (a *adapter) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	res, err := a.raw.Request(ctx, method, params...)
	if err != nil {
		return nil, Classify(method, err)
	}
	return res, nil
}

func (a *adapter) OnChainChanged(fn func(string)) func() {
	return a.raw.OnChainChanged(fn)
}

type absent struct{}

func (absent) Request(_ context.Context, method string, _ ...any) (json.RawMessage, error) {
	return nil, &Error{Kind: KindProviderAbsent, Method: method, Message: ErrProviderAbsent.Error()}
}

func (absent) OnChainChanged(func(string)) func() { return func() {} }

// IsAbsent reports whether p is the placeholder returned by Wrap(nil).
func IsAbsent(p Provider) bool {
	_, ok := p.(absent)
	return ok
}

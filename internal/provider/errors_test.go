package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCodes(t *testing.T) {
	tests := []struct {
		code     int
		kind     Kind
		sentinel error
	}{
		{CodeUserRejected, KindUserRejected, ErrUserRejected},
		{CodeUnauthorized, KindUnauthorized, ErrUnauthorized},
		{CodeUnsupportedMethod, KindUnsupportedMethod, ErrUnsupportedMethod},
		{CodeDisconnected, KindDisconnected, ErrDisconnected},
		{CodeChainDisconnected, KindChainDisconnected, ErrChainDisconnected},
		{CodeChainUnrecognized, KindChainUnrecognized, ErrChainUnrecognized},
	}
	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			err := Classify(MethodSwitchChain, NewError(tc.code, "boom"))

			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.kind, pe.Kind)
			assert.Equal(t, tc.code, pe.Code)
			assert.ErrorIs(t, err, tc.sentinel)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestClassifyUnknownCode(t *testing.T) {
	err := Classify(MethodCall, NewError(-32000, "execution reverted"))
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.NotErrorIs(t, err, ErrUserRejected)
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestClassifyPlainError(t *testing.T) {
	err := Classify(MethodCall, errors.New("connection refused"))
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindUnknown, pe.Kind)
	assert.Equal(t, 0, pe.Code)
}

func TestClassifyPassThrough(t *testing.T) {
	assert.NoError(t, Classify(MethodCall, nil))

	assert.Same(t, context.Canceled, Classify(MethodCall, context.Canceled))

	already := &Error{Kind: KindUserRejected, Code: CodeUserRejected}
	assert.Same(t, already, Classify(MethodCall, already))
}

func TestClassifyWrappedAbsent(t *testing.T) {
	err := Classify(MethodRequestAccounts, fmt.Errorf("%w: dial", ErrProviderAbsent))
	assert.Equal(t, KindProviderAbsent, KindOf(err))
	assert.ErrorIs(t, err, ErrProviderAbsent)
}

func TestWrapNilIsAbsent(t *testing.T) {
	p := Wrap(nil)
	assert.True(t, IsAbsent(p))

	_, err := p.Request(context.Background(), MethodRequestAccounts)
	assert.ErrorIs(t, err, ErrProviderAbsent)

	unsub := p.OnChainChanged(func(string) {})
	assert.NotPanics(t, unsub)
}

func TestWrapClassifiesFakeErrors(t *testing.T) {
	f := NewFake("0x1", "0xabc")
	f.RejectConnect(true)

	p := Wrap(f)
	assert.Same(t, p, Wrap(p), "wrapping twice is a no-op")

	_, err := p.Request(context.Background(), MethodRequestAccounts)
	assert.ErrorIs(t, err, ErrUserRejected)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindUserRejected, Code: 4001, Method: MethodRequestAccounts, Message: "nope"}
	assert.Equal(t, "eth_requestAccounts: nope (code 4001)", err.Error())
}

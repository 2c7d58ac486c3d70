package registry

import (
	"context"
	"math/big"

	"github.com/stretchr/testify/mock"
)

// MockRegistry mocks Client for consumers that depend on an interface.
type MockRegistry struct {
	mock.Mock
}

// Register mocks the Register method
func (m *MockRegistry) Register(ctx context.Context, name string, fee *big.Int) (*Tx, error) {
	args := m.Called(ctx, name, fee)
	tx, _ := args.Get(0).(*Tx)
	return tx, args.Error(1)
}

// SetRecord mocks the SetRecord method
func (m *MockRegistry) SetRecord(ctx context.Context, name, record string) (*Tx, error) {
	args := m.Called(ctx, name, record)
	tx, _ := args.Get(0).(*Tx)
	return tx, args.Error(1)
}

// ListNames mocks the ListNames method
func (m *MockRegistry) ListNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

// Lookup mocks the Lookup method
func (m *MockRegistry) Lookup(ctx context.Context, name string) (Entry, error) {
	args := m.Called(ctx, name)
	e, _ := args.Get(0).(Entry)
	return e, args.Error(1)
}

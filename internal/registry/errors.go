package registry

import "fmt"

// RPCError is returned by every Client operation. It records which contract
// operation failed and carries the provider's error untouched.
type RPCError struct {
	Op  string
	Err error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

func (e *RPCError) Unwrap() error { return e.Err }

func opErr(op string, err error) error {
	return &RPCError{Op: op, Err: err}
}

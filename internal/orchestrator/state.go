package orchestrator

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// State is the orchestrator's position in a submission.
type State int

const (
	Idle State = iota
	Validating
	AwaitingRegisterConfirm
	AwaitingRecordConfirm
	RefreshingCache
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case AwaitingRegisterConfirm:
		return "awaiting_register_confirm"
	case AwaitingRecordConfirm:
		return "awaiting_record_confirm"
	case RefreshingCache:
		return "refreshing_cache"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transition is reported to observers on every state change. Err is set
// when To is Failed.
type Transition struct {
	From State
	To   State
	Err  error
}

// PendingKind says which transaction is in flight.
type PendingKind int

const (
	PendingRegister PendingKind = iota
	PendingSetRecord
)

func (k PendingKind) String() string {
	if k == PendingRegister {
		return "register"
	}
	return "set_record"
}

// Pending is the transaction currently awaiting confirmation.
type Pending struct {
	Kind        PendingKind
	Name        string
	Hash        common.Hash
	SubmittedAt time.Time
}

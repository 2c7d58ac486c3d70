// Package edit holds the form state behind a submission: either composing a
// new name or editing the record of a name the connected account owns.
package edit

import (
	"errors"
	"strings"
	"sync"

	"github.com/Mohsinsiddi/w3ns/internal/cache"
)

var (
	ErrNotOwner = errors.New("name is owned by another account")
	// ErrNameLocked is returned by SetName in Edit mode.
	ErrNameLocked = errors.New("name cannot change while editing")
)

// Mode is the session's current mode.
type Mode int

const (
	Compose Mode = iota
	Edit
)

func (m Mode) String() string {
	if m == Edit {
		return "edit"
	}
	return "compose"
}

// State is a snapshot of the session.
type State struct {
	Mode   Mode
	Name   string
	Record string
}

// Session is safe for concurrent use. The zero value is an empty Compose
// session.
type Session struct {
	mu    sync.Mutex
	state State
}

// New returns an empty Compose session.
func New() *Session { return &Session{} }

// StartEdit switches to Edit mode preloaded with rec. account must own rec.
func (s *Session) StartEdit(rec cache.Record, account string) error {
	if account == "" || !strings.EqualFold(rec.Owner, account) {
		return ErrNotOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Mode: Edit, Name: rec.Name, Record: rec.Text}
	return nil
}

// Cancel returns to Compose mode and clears both fields.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
}

// SetName sets the name being composed.
func (s *Session) SetName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Mode == Edit {
		return ErrNameLocked
	}
	s.state.Name = name
	return nil
}

// SetRecord sets the record text in either mode.
func (s *Session) SetRecord(record string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Record = record
}

// State returns a snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Name() string   { return s.State().Name }
func (s *Session) Record() string { return s.State().Record }
func (s *Session) Editing() bool  { return s.State().Mode == Edit }

// Reset clears the session after a successful submission.
func (s *Session) Reset() { s.Cancel() }

package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner shows a line spinner while a long step runs. Its message can
// change while it runs. When the output is not a terminal the spinner does
// not animate and each message is printed once on its own line instead.
type Spinner struct {
	w  io.Writer
	sp *spinner.Spinner

	mu      sync.Mutex
	msg     string
	plain   bool
	stopped bool
}

// NewSpinner creates a spinner that draws to w.
func NewSpinner(w io.Writer, msg string) *Spinner {
	sp := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	sp.Suffix = "  " + msg
	return &Spinner{w: w, sp: sp, msg: msg}
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.sp.Start()
	if s.sp.Active() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plain = true
	fmt.Fprintln(s.w, s.msg)
}

// Update replaces the message.
func (s *Spinner) Update(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg == s.msg || s.stopped {
		return
	}
	s.msg = msg
	if s.plain {
		fmt.Fprintln(s.w, msg)
		return
	}
	s.sp.Lock()
	s.sp.Suffix = "  " + msg
	s.sp.Unlock()
}

// Stop halts the spinner and clears its line. Safe to call more than once,
// or without Start.
func (s *Spinner) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.sp.Stop()
}

// StopWithMsg halts the spinner and prints a final line.
func (s *Spinner) StopWithMsg(msg string) {
	s.Stop()
	fmt.Fprintln(s.w, msg)
}

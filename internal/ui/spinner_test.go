package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpinnerPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "registering")
	s.Start()
	s.Update("waiting for confirmation")
	s.Update("waiting for confirmation")
	s.StopWithMsg("done")
	s.Update("ignored after stop")
	s.Stop()

	assert.Equal(t, "registering\nwaiting for confirmation\ndone\n", buf.String())
}

func TestSpinnerStopWithoutStart(t *testing.T) {
	s := NewSpinner(&bytes.Buffer{}, "idle")
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked")
	}
}

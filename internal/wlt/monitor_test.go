package wlt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorNameMatchesDispatchKey(t *testing.T) {
	m := New("", -1)
	assert.Equal(t, "WltMonitor", m.Name())
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	m := New("", -1)

	assert.NotPanics(t, func() {
		m.Stop()
		m.Stop()
	})
}

func TestMonitorPauseResumeAreNoOps(t *testing.T) {
	m := New("", -1)

	assert.NotPanics(t, func() {
		m.Pause()
		m.Resume()
	})
}

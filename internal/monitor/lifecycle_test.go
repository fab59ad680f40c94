package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLifecycleStartsRunning(t *testing.T) {
	l := NewLifecycle()
	assert.False(t, l.Paused())
}

func TestLifecyclePauseSignalsOnce(t *testing.T) {
	l := NewLifecycle()

	l.Pause()
	assert.True(t, l.Paused())

	select {
	case <-l.PauseSignal():
	default:
		t.Fatal("expected a pause signal")
	}

	// A second Pause() while already paused must not re-signal.
	l.Pause()
	select {
	case <-l.PauseSignal():
		t.Fatal("unexpected second pause signal")
	default:
	}
}

func TestLifecycleResumeSignalsOnce(t *testing.T) {
	l := NewLifecycle()
	l.Pause()
	<-l.PauseSignal()

	l.Resume()
	assert.False(t, l.Paused())

	select {
	case <-l.ResumeSignal():
	default:
		t.Fatal("expected a resume signal")
	}
}

func TestLifecycleResumeWithoutPauseIsNoop(t *testing.T) {
	l := NewLifecycle()
	l.Resume()

	select {
	case <-l.ResumeSignal():
		t.Fatal("unexpected resume signal when never paused")
	default:
	}
}

func TestLifecycleStopIsIdempotent(t *testing.T) {
	l := NewLifecycle()

	l.Stop()
	l.Stop()

	select {
	case <-l.StopRequested():
	default:
		t.Fatal("expected a stop signal")
	}

	select {
	case <-l.StopRequested():
		t.Fatal("unexpected second stop signal")
	default:
	}
}

func TestLifecyclePauseResumeRoundTripRestoresRunningState(t *testing.T) {
	l := NewLifecycle()

	l.Pause()
	l.Resume()

	assert.False(t, l.Paused())
}

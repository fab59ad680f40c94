package monitor

import "sync/atomic"

// Lifecycle is the pause/resume/stop primitive shared by the monitors that
// the coordinator can pause (SysLoadMonitor, GpuRc6Monitor). It replaces the
// single mutex + condition variable the original source multiplexed pause
// and stop signals onto with three small buffered channels that a select-based
// run loop can observe alongside a ticker and ctx.Done(), per the "managed
// worker abstraction" redesign guidance.
type Lifecycle struct {
	paused   atomic.Bool
	pauseCh  chan struct{}
	resumeCh chan struct{}
	stopCh   chan struct{}
	stopped  atomic.Bool
}

// NewLifecycle returns a running (not paused, not stopped) Lifecycle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		pauseCh:  make(chan struct{}, 1),
		resumeCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}, 1),
	}
}

// Pause requests that the run loop suspend polling. Safe from any goroutine.
func (l *Lifecycle) Pause() {
	if l.paused.CompareAndSwap(false, true) {
		notify(l.pauseCh)
	}
}

// Resume requests that the run loop continue polling. Safe from any goroutine.
func (l *Lifecycle) Resume() {
	if l.paused.CompareAndSwap(true, false) {
		notify(l.resumeCh)
	}
}

// Stop requests that the run loop exit. Safe from any goroutine, idempotent.
func (l *Lifecycle) Stop() {
	if l.stopped.CompareAndSwap(false, true) {
		notify(l.stopCh)
	}
}

// Paused reports whether the monitor is currently paused.
func (l *Lifecycle) Paused() bool { return l.paused.Load() }

// PauseSignal fires once per transition into the paused state.
func (l *Lifecycle) PauseSignal() <-chan struct{} { return l.pauseCh }

// ResumeSignal fires once per transition out of the paused state.
func (l *Lifecycle) ResumeSignal() <-chan struct{} { return l.resumeCh }

// StopRequested fires once Stop has been called.
func (l *Lifecycle) StopRequested() <-chan struct{} { return l.stopCh }

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

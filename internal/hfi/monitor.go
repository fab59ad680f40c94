package hfi

import (
	"context"
	"io"

	"codeberg.org/mutker/socpowerhintd/internal/errors"
	"codeberg.org/mutker/socpowerhintd/internal/logger"
	"codeberg.org/mutker/socpowerhintd/internal/monitor"
)

// Monitor tracks the most recently observed "efficient power" capability
// as a single scalar, ignoring the cpu field, matching the source's own
// (questionable but deliberately preserved) global-not-per-CPU tracking.
// The coordinator never pauses it, so Pause/Resume are no-ops.
type Monitor struct {
	newStream func() (EventStream, error)
	stream    EventStream

	eff      int32
	onChange monitor.ChangeFunc
}

// New returns a Monitor that opens stream lazily in Init. Tests pass a
// factory returning a *FakeStream; production code leaves newStream nil to
// get the real netlink transport.
func New(newStream func() (EventStream, error)) *Monitor {
	return &Monitor{newStream: newStream}
}

func (m *Monitor) Name() string { return monitor.NameHfi }

func (m *Monitor) Init() error {
	factory := m.newStream
	if factory == nil {
		factory = func() (EventStream, error) { return newNetlinkStream() }
	}

	stream, err := factory()
	if err != nil {
		return err
	}

	m.stream = stream
	return nil
}

func (m *Monitor) SetOnChange(fn monitor.ChangeFunc) { m.onChange = fn }

func (m *Monitor) Pause()  {}
func (m *Monitor) Resume() {}

func (m *Monitor) Stop() {
	if m.stream != nil {
		m.stream.Close()
	}
}

// Run consumes capability-change events until ctx is cancelled or the
// stream closes. Only a change in the scalar eff value is dispatched.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		ev, err := m.stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			if appErr, ok := err.(errors.Error); ok {
				logger.ErrorWithCode(appErr).Str("monitor", m.Name()).
					Msg("netlink read failed, retrying")
			}
			continue
		}

		if ev.Eff == m.eff {
			continue
		}

		prev := m.eff
		m.eff = ev.Eff

		if m.onChange != nil {
			m.onChange(m.Name(), prev, ev.Eff)
		}
	}
}

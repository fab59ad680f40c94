package wlt

import (
	"context"
	"os"
	"time"

	"codeberg.org/mutker/socpowerhintd/internal/errors"
	"codeberg.org/mutker/socpowerhintd/internal/logger"
	"codeberg.org/mutker/socpowerhintd/internal/monitor"
	"golang.org/x/sys/unix"
)

// pollTimeoutMs bounds each poll(2) call so Run notices ctx cancellation or
// Stop within roughly a second even with no sysfs event pending.
const pollTimeoutMs = 1000

// errBackoff is how long Run sleeps after a transient sysfs or poll(2)
// failure before retrying, instead of aborting the loop.
const errBackoff = 100 * time.Millisecond

// Monitor polls workload_type_index and fires on_change with the full
// integer value (callers that want the enum alone call Classify on it).
// The coordinator never pauses a Monitor, so Pause/Resume are no-ops.
type Monitor struct {
	path           string
	notificationMs int
	onChange       monitor.ChangeFunc
	stopCh         chan struct{}
}

// New returns a Monitor for path. notificationDelayMs is written to the
// platform's notification_delay_ms node during Init when >= 0.
func New(path string, notificationDelayMs int) *Monitor {
	if path == "" {
		path = DefaultPath
	}
	return &Monitor{
		path:           path,
		notificationMs: notificationDelayMs,
		stopCh:         make(chan struct{}),
	}
}

func (m *Monitor) Name() string { return monitor.NameWlt }

// Init enables the kernel feature and, if requested, sets the notification
// delay. Either failure is fatal for this monitor.
func (m *Monitor) Init() error {
	if err := ensureEnabled(); err != nil {
		return err
	}
	return setNotificationDelay(m.notificationMs)
}

func (m *Monitor) SetOnChange(fn monitor.ChangeFunc) { m.onChange = fn }

// Pause and Resume are no-ops: the coordinator never suspends WLT polling.
func (m *Monitor) Pause()  {}
func (m *Monitor) Resume() {}

func (m *Monitor) Stop() {
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
}

// Run combines poll(POLLPRI|POLLERR) with a one-shot read after each event,
// per spec. An initial read establishes the baseline value before the poll
// loop starts, matching the source's bootstrap read. A transient sysfs open
// or poll(2) failure is logged and retried after a short back-off; a failed
// read is logged and its sample discarded. None of these aborts the loop,
// since a monitor must never take the daemon down.
func (m *Monitor) Run(ctx context.Context) error {
	errFactory := errors.New()

	var previous int32
	if v, err := readValue(m.path); err == nil {
		previous = v
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.stopCh:
			return nil
		default:
		}

		f, err := os.Open(m.path)
		if err != nil {
			logger.ErrorWithCode(errFactory.Wrap(errors.ErrSysfsRead, err)).
				Str("monitor", m.Name()).Msg("sysfs open failed, retrying")
			time.Sleep(errBackoff)
			continue
		}

		current, readErr := readValue(m.path)
		if readErr != nil {
			logger.ErrorWithCode(readErr.(errors.Error)).
				Str("monitor", m.Name()).Msg("sysfs read failed, sample discarded")
		} else if current != previous {
			if m.onChange != nil {
				m.onChange(m.Name(), previous, current)
			}
			previous = current
		}

		fds := []unix.PollFd{{
			Fd:     int32(f.Fd()),
			Events: unix.POLLPRI | unix.POLLERR,
		}}

		_, pollErr := unix.Poll(fds, pollTimeoutMs)
		f.Close()

		if pollErr != nil && pollErr != unix.EINTR {
			logger.ErrorWithCode(errFactory.Wrap(errors.ErrPollFailed, pollErr)).
				Str("monitor", m.Name()).Msg("poll failed, retrying")
			time.Sleep(errBackoff)
		}
	}
}

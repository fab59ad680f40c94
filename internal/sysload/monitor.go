package sysload

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/socpowerhintd/internal/errors"
	"codeberg.org/mutker/socpowerhintd/internal/logger"
	"codeberg.org/mutker/socpowerhintd/internal/monitor"
)

// busySpikeThreshold is the EMA percentage above which a busy-spike change
// notification fires, per the source estimator's kSysloadHighThreshold.
const busySpikeThreshold = 25.0

// defaultInterval is the sampler tick when no override is supplied.
const defaultInterval = 3 * time.Second

// Monitor estimates aggregate CPU busy percentage from /proc/stat and
// smooths it with an irregular-interval EMA. It starts unpaused; the
// coordinator resumes it when core containment is entered (EFFICIENT_POWER
// becomes 1) and pauses it when containment is left (EFFICIENT_POWER
// becomes 0).
type Monitor struct {
	interval time.Duration
	life     *monitor.Lifecycle

	mu      sync.Mutex
	prevRaw sample
	haveRaw bool
	avg     ema
	latest  float64
	fired   bool

	onChange monitor.ChangeFunc
}

// New returns a Monitor that samples /proc/stat every interval. A zero
// interval selects defaultInterval.
func New(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Monitor{
		interval: interval,
		life:     monitor.NewLifecycle(),
	}
}

func (m *Monitor) Name() string { return monitor.NameSysLoad }

func (m *Monitor) Init() error { return nil }

func (m *Monitor) SetOnChange(fn monitor.ChangeFunc) { m.onChange = fn }

func (m *Monitor) Pause()  { m.life.Pause() }
func (m *Monitor) Resume() { m.life.Resume() }
func (m *Monitor) Stop()   { m.life.Stop() }

// Run polls /proc/stat on a ticker until ctx is cancelled or Stop is called.
// While paused it idles on the lifecycle's resume/stop signals without
// sampling, so while the daemon is outside core containment the monitor
// makes no wasted reads.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if m.life.Paused() {
			select {
			case <-ctx.Done():
				return nil
			case <-m.life.StopRequested():
				return nil
			case <-m.life.ResumeSignal():
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-m.life.StopRequested():
			return nil
		case <-m.life.PauseSignal():
			continue
		case <-ticker.C:
			m.sampleAndGet(time.Now())
		}
	}
}

// sampleAndGet reads /proc/stat, folds the resulting raw percentage into the
// EMA, and fires the busy-spike callback when the EMA crosses the threshold
// from below: notification fires on a threshold-crossing tick, not on
// every value delta. The first-ever call has no previous sample to diff
// against, so it seeds prevRaw and reports "no data" rather than treating
// the zero-value baseline as a real delta (mirrors gpuidle's havePrev
// guard). An undefined sample — the first tick, or a counter wrap — still
// refreshes the EMA's lastTs so the next defined sample's dt is measured
// from now, not from a stale update.
func (m *Monitor) sampleAndGet(now time.Time) (float64, bool) {
	cur, err := readSample()
	if err != nil {
		if appErr, ok := err.(errors.Error); ok {
			logger.ErrorWithCode(appErr).Str("monitor", m.Name()).
				Msg("proc_stat read failed, sample discarded")
		}
		return m.Latest(), false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.haveRaw {
		m.haveRaw = true
		m.prevRaw = cur
		m.avg.refresh(now)
		return m.latest, false
	}

	raw, ok := rawBusyPercent(m.prevRaw, cur)
	m.prevRaw = cur
	if !ok {
		m.avg.refresh(now)
		return m.latest, false
	}

	value, _ := m.avg.update(raw, now)
	prevLatest := m.latest
	m.latest = value

	crossed := !m.fired && value > busySpikeThreshold
	if crossed {
		m.fired = true
	} else if value <= busySpikeThreshold {
		m.fired = false
	}

	if crossed && m.onChange != nil {
		m.onChange(m.Name(), int32(prevLatest), int32(value))
	}

	return value, crossed
}

// Latest returns the most recently computed EMA value, or 0 before the
// first successful sample pair.
func (m *Monitor) Latest() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// SampleAndGet forces an immediate /proc/stat read and folds it into the
// EMA before returning, rather than returning whatever the periodic ticker
// last computed. The coordinator's debounce-timer expiry handlers need this
// freshness: their own interval (as little as 1s) can be shorter than this
// monitor's sampling interval.
func (m *Monitor) SampleAndGet() float64 {
	value, _ := m.sampleAndGet(time.Now())
	return value
}

package gpuidle

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/socpowerhintd/internal/errors"
	"codeberg.org/mutker/socpowerhintd/internal/logger"
	"codeberg.org/mutker/socpowerhintd/internal/monitor"
)

// DefaultInterval is the poll interval when no override is supplied.
const DefaultInterval = 1000 * time.Millisecond

// wakeTick is how often Run reconsiders its paused/running state. It must
// be well under the 200ms pause/resume responsiveness budget;
// the actual sysfs read is still gated to interval via the accumulator in
// Run.
const wakeTick = 50 * time.Millisecond

// Monitor polls the gtidle idle-residency sysfs counter and classifies it
// into a gfx_mode hint. It starts paused: only the coordinator resumes it,
// and only while the WLT signal indicates an active workload.
type Monitor struct {
	path     string
	interval time.Duration
	life     *monitor.Lifecycle

	mu       sync.Mutex
	havePrev bool
	prevRaw  int64
	lastPct  int
	lastMode int32

	onChange monitor.ChangeFunc
}

// New returns a Monitor reading path on the given interval. Zero values
// select DefaultSysfsPath / DefaultInterval.
func New(path string, interval time.Duration) *Monitor {
	if path == "" {
		path = DefaultSysfsPath
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		path:     path,
		interval: interval,
		life:     monitor.NewLifecycle(),
	}
}

func (m *Monitor) Name() string { return monitor.NameGpuIdle }

// Init probes the sysfs node once; it must exist before Run is scheduled.
// The monitor starts paused regardless of Init's outcome.
func (m *Monitor) Init() error {
	m.life.Pause()
	_, err := readCounter(m.path)
	return err
}

func (m *Monitor) SetOnChange(fn monitor.ChangeFunc) { m.onChange = fn }

func (m *Monitor) Pause()  { m.life.Pause() }
func (m *Monitor) Resume() { m.life.Resume() }
func (m *Monitor) Stop()   { m.life.Stop() }

// Run drives a fast wake tick so Pause/Resume/Stop are observed within the
// responsiveness budget, but only performs the sysfs read once per
// interval via an elapsed-time accumulator.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(wakeTick)
	defer ticker.Stop()

	var elapsed time.Duration
	last := time.Now()

	for {
		if m.life.Paused() {
			select {
			case <-ctx.Done():
				return nil
			case <-m.life.StopRequested():
				return nil
			case <-m.life.ResumeSignal():
				last = time.Now()
				elapsed = 0
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
		case now := <-ticker.C:
			elapsed += now.Sub(last)
			last = now
			if elapsed >= m.interval {
				elapsed = 0
				m.poll()
			}
		}
	}
}

// poll reads the counter once, computes the idle percentage since the
// previous read, and fires on_change when the raw counter moved.
func (m *Monitor) poll() {
	cur, err := readCounter(m.path)
	if err != nil {
		if appErr, ok := err.(errors.Error); ok {
			logger.ErrorWithCode(appErr).Str("monitor", m.Name()).
				Msg("sysfs read failed, sample discarded")
		}
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.havePrev {
		m.havePrev = true
		m.prevRaw = cur
		return
	}

	if cur == m.prevRaw {
		return
	}

	delta := cur - m.prevRaw
	m.prevRaw = cur

	pct := idlePercent(delta, m.interval.Milliseconds())
	mode := gfxMode(pct)

	m.lastPct = pct
	m.lastMode = mode

	// The callback carries (idle_percent, gfx_mode), not (old, new) of the
	// same quantity — preserved from the source's own reuse of a generic
	// value-changed signature for this monitor.
	if m.onChange != nil {
		m.onChange(m.Name(), int32(pct), mode)
	}
}

// LastGfxMode returns the most recently computed gfx_mode classification.
func (m *Monitor) LastGfxMode() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMode
}

// Package coordinator implements the central policy engine: it receives
// every monitor's change callback, drives the WLT containment state
// machine, and emits gated power hints. It is the Go counterpart of the
// source's SocDaemon, rebuilt around a single mutex held for the duration
// of each callback handler instead of a condition-variable-driven debounce
// thread multiplexing pause and timeout signals onto one CV.
package coordinator

import (
	"sync"
	"time"

	"codeberg.org/mutker/socpowerhintd/internal/hintsink"
	"codeberg.org/mutker/socpowerhintd/internal/logger"
	"codeberg.org/mutker/socpowerhintd/internal/monitor"
	"codeberg.org/mutker/socpowerhintd/internal/wlt"
)

// Hint names the core dispatches to the sink.
const (
	EfficientPower = "EFFICIENT_POWER"
	GfxMode        = "GFX_MODE"
)

const (
	entryTimerDuration    = 10 * time.Second
	exitTimerInitialDelay = 1 * time.Second
	exitTimerRearmDelay   = 5 * time.Second
	entryLoadThreshold    = 25.0
	exitSlopeThreshold    = 5.0
)

// State is the containment state machine's two states.
type State int

const (
	Open State = iota
	CoreContainment
)

func (s State) String() string {
	if s == CoreContainment {
		return "CoreContainment"
	}
	return "Open"
}

// Pausable is the subset of monitor.Monitor the coordinator needs to
// suspend and resume a monitor's polling without tearing it down.
type Pausable interface {
	Pause()
	Resume()
}

// LoadSource exposes the CPU-load estimator. Latest returns the cached
// value from the periodic background sampler, used for the CoreContainment
// entry-to-active load anchor. SampleAndGet forces a fresh /proc/stat read,
// used by the debounce-timer expiry handlers, whose own timers can fire
// faster than the background sampler's interval.
type LoadSource interface {
	Latest() float64
	SampleAndGet() float64
}

// Config holds the boot-time policy knobs.
type Config struct {
	SendHint    bool
	SendGfxHint bool
	// SocHint selects the WLT dispatch policy: "wlt" drives the
	// containment state machine, "swlt" is a stateless bit mapping.
	// "hfi" means no WltMonitor is constructed at all, so WLT dispatch
	// never fires.
	SocHint string
}

// Coordinator is the policy engine. Construct with New, wire every
// monitor's SetOnChange to Dispatch, then let it run for the life of the
// process; it owns no goroutine of its own beyond the timers it arms via
// clock.
type Coordinator struct {
	cfg     Config
	clock   Clock
	sink    hintsink.Sink
	gpu     Pausable
	sysload Pausable
	load    LoadSource

	mu             sync.Mutex
	state          State
	lastWlt        wlt.Code
	haveWlt        bool
	entryTimer     Timer
	exitTimer      Timer
	latestLoadAtCC float64
	lastHint       map[string]bool
}

// New returns a Coordinator in the Open state. gpu and sysload are the
// pausable monitors the containment state machine and the hint-gating
// coupling drive; load is the CPU-load estimator sampled at entry/exit
// timer expiry.
func New(cfg Config, clock Clock, sink hintsink.Sink, gpu, sysload Pausable, load LoadSource) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		clock:    clock,
		sink:     sink,
		gpu:      gpu,
		sysload:  sysload,
		load:     load,
		state: Open,
		// Pre-seeded false to mirror the source's explicit
		// efficientMode_/gfxMode_ defaults: the first real call with a
		// matching value is a true no-op, not a transition.
		lastHint: map[string]bool{
			EfficientPower: false,
			GfxMode:        false,
		},
	}
}

// Dispatch is the monitor.ChangeFunc every monitor's SetOnChange is wired
// to. It switches on the stable dispatch key.
func (c *Coordinator) Dispatch(name string, oldValue, newValue int32) {
	switch name {
	case monitor.NameWlt:
		c.handleWlt(newValue)
	case monitor.NameHfi:
		c.handleHfi(newValue)
	case monitor.NameSysLoad:
		c.handleBusySpike()
	case monitor.NameGpuIdle:
		// GpuRc6Monitor's callback carries (idle_percent, gfx_mode), not
		// (old, new) of one quantity; only gfx_mode (newValue) matters here.
		c.handleGpu(newValue)
	}
}

// State returns the current containment state. Exposed for tests.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) handleWlt(raw int32) {
	switch c.cfg.SocHint {
	case "swlt":
		enable := raw&0x10 != 0
		c.emitHint(EfficientPower, enable, c.cfg.SendHint)
	case "wlt":
		c.handleWltContainment(wlt.Classify(raw))
	default:
		// socHint == "hfi": no WltMonitor is ever constructed, so this
		// dispatch path is unreachable in that configuration.
	}
}

func (c *Coordinator) handleWltContainment(newCode wlt.Code) {
	c.mu.Lock()

	old := c.lastWlt
	hadPrev := c.haveWlt
	c.lastWlt = newCode
	c.haveWlt = true

	oldIdle := hadPrev && (old == wlt.Idle || old == wlt.Btl)
	newIdle := newCode == wlt.Idle || newCode == wlt.Btl
	newActive := wlt.Active(newCode)

	switch c.state {
	case Open:
		switch {
		case newIdle:
			if c.entryTimer == nil {
				c.entryTimer = c.clock.AfterFunc(entryTimerDuration, c.entryExpire)
			}
			c.gpu.Pause()
		case newCode == wlt.Sustain:
			if c.entryTimer != nil {
				c.entryTimer.Stop()
				c.entryTimer = nil
			}
			c.gpu.Resume()
		default: // Bursty
			c.gpu.Resume()
		}
	case CoreContainment:
		switch {
		case newIdle:
			if c.exitTimer != nil {
				c.exitTimer.Stop()
				c.exitTimer = nil
			}
			c.gpu.Pause()
		case newActive:
			if oldIdle {
				c.latestLoadAtCC = c.load.Latest()
			}
			c.gpu.Resume()
			if c.exitTimer == nil {
				c.exitTimer = c.clock.AfterFunc(exitTimerInitialDelay, c.exitExpire)
			}
		}
	}

	c.mu.Unlock()
}

func (c *Coordinator) entryExpire() {
	c.mu.Lock()
	c.entryTimer = nil
	if c.state != Open {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// Sampled outside the lock: SampleAndGet can synchronously fire the
	// sysload monitor's own busy-spike callback back into Dispatch, which
	// would deadlock re-entering this mutex.
	load := c.load.SampleAndGet()

	c.mu.Lock()
	if c.state != Open {
		c.mu.Unlock()
		return
	}
	if load >= entryLoadThreshold {
		c.mu.Unlock()
		return
	}
	c.state = CoreContainment
	c.mu.Unlock()

	c.emitHint(EfficientPower, true, c.cfg.SendHint)
}

func (c *Coordinator) exitExpire() {
	c.mu.Lock()
	if c.state != CoreContainment {
		c.exitTimer = nil
		c.mu.Unlock()
		return
	}
	anchor := c.latestLoadAtCC
	c.mu.Unlock()

	load := c.load.SampleAndGet()
	slope := load - anchor

	c.mu.Lock()
	if c.state != CoreContainment {
		c.mu.Unlock()
		return
	}
	if slope > exitSlopeThreshold {
		c.exitTimer = nil
		c.state = Open
		c.mu.Unlock()
		c.emitHint(EfficientPower, false, c.cfg.SendHint)
		return
	}

	c.exitTimer = c.clock.AfterFunc(exitTimerRearmDelay, c.exitExpire)
	c.mu.Unlock()
}

// handleBusySpike is the CPU-load monitor's own change callback: while
// containment is engaged it means load crossed the busy-spike threshold,
// and short-circuits straight back to Open, bypassing the exit timer.
func (c *Coordinator) handleBusySpike() {
	c.mu.Lock()
	if c.state != CoreContainment {
		c.mu.Unlock()
		return
	}
	c.state = Open
	if c.exitTimer != nil {
		c.exitTimer.Stop()
		c.exitTimer = nil
	}
	c.mu.Unlock()

	c.emitHint(EfficientPower, false, c.cfg.SendHint)
}

func (c *Coordinator) handleHfi(newEff int32) {
	c.emitHint(EfficientPower, newEff == 255, c.cfg.SendHint)
}

func (c *Coordinator) handleGpu(gfxMode int32) {
	c.emitHint(GfxMode, gfxMode == 1, c.cfg.SendGfxHint)
}

// emitHint applies the hint-gating filter: a hint reaches the sink only
// when it differs from the last-emitted value for that key, and the
// cached value advances regardless of whether the enabled flag
// permits the actual send. EFFICIENT_POWER transitions additionally
// couple to the CPU-load monitor's pause/resume regardless of the enabled
// flag, since that coupling is about which monitor runs, not about what
// reaches the sink.
func (c *Coordinator) emitHint(name string, value, enabled bool) {
	c.mu.Lock()
	differs := c.lastHint[name] != value
	if differs {
		c.lastHint[name] = value
		if name == EfficientPower {
			if value {
				c.sysload.Resume()
			} else {
				c.sysload.Pause()
			}
		}
	}
	c.mu.Unlock()

	if !differs || !enabled {
		return
	}
	if err := c.sink.SendHint(name, value); err != nil {
		logger.Error().Err(err).Str("hint", name).Msg("hint dispatch failed")
	}
}

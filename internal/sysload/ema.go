package sysload

import (
	"math"
	"time"
)

// emaTimeConstantSec is TAU, in seconds, for the irregular-interval EMA law
// alpha = 1 - exp(-dt/TAU). Matches the smoothing window of the source
// estimator.
const emaTimeConstantSec = 1.5

// ema is a value-type exponential moving average that tolerates irregular
// sampling intervals. Unlike the source estimator, this state belongs to
// one SysLoadMonitor instance rather than a package-level global.
type ema struct {
	set    bool
	value  float64
	prev   float64
	lastTs time.Time
}

// update folds a new raw sample into the average, returning the updated
// value and the value it held immediately before this update (equal to the
// new value on the first call).
func (e *ema) update(raw float64, now time.Time) (value, previous float64) {
	if !e.set {
		e.set = true
		e.value = raw
		e.prev = raw
		e.lastTs = now
		return e.value, e.prev
	}

	dt := now.Sub(e.lastTs).Seconds()
	if dt < 0 {
		dt = 0
	}

	alpha := 1.0 - math.Exp(-dt/emaTimeConstantSec)
	alpha = math.Min(1.0, math.Max(0.0, alpha))

	e.prev = e.value
	e.value = e.value*(1.0-alpha) + raw*alpha
	e.lastTs = now

	return e.value, e.prev
}

// refresh advances lastTs without folding in a sample. Called on an
// undefined raw sample (wrap or zero-interval tick) so the next defined
// sample's dt is measured from now, not from a stale last update.
func (e *ema) refresh(now time.Time) {
	e.lastTs = now
}

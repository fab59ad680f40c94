// Package gpuidle tracks GPU idle-residency via the kernel's gtidle sysfs
// counter and classifies it into a coarse gfx_mode hint.
package gpuidle

import (
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/socpowerhintd/internal/errors"
)

// DefaultSysfsPath is the idle-residency counter this daemon targets.
const DefaultSysfsPath = "/sys/class/drm/card0/device/tile0/gt0/gtidle/idle_residency_ms"

func readCounter(path string) (int64, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrSysfsRead, err)
	}

	text := strings.TrimSpace(string(data))
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrSysfsParse, err)
	}

	return value, nil
}

// gfxHighLoadThreshold is the idle-percent ceiling at or under which the GPU
// is considered to be under high load (gfx_mode=1).
const gfxHighLoadThreshold = 40

// idlePercent converts a counter delta, measured over intervalMs, into a
// clamped [0,100] idle percentage. The delta is computed against the
// previous counter value and only then is the previous value updated by
// the caller — the corrected order the source's GpuLoadMonitor got
// backwards.
func idlePercent(deltaMs int64, intervalMs int64) int {
	if deltaMs < 0 {
		deltaMs = 0
	}
	if intervalMs <= 0 {
		return 0
	}

	pct := float64(deltaMs) * 100.0 / float64(intervalMs)
	if pct > 100.0 {
		pct = 100.0
	}
	if pct < 0 {
		pct = 0
	}

	return int(pct)
}

// gfxMode classifies an idle percentage into the boolean high-load hint.
func gfxMode(idlePct int) int32 {
	if idlePct <= gfxHighLoadThreshold {
		return 1
	}
	return 0
}

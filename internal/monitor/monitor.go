// Package monitor defines the common contract shared by every observable
// signal source in the daemon (WLT, HFI, GPU idle residency, CPU load).
package monitor

import "context"

// ChangeFunc is invoked by a Monitor's own worker whenever it observes a
// change in its integer value. It must not block for long: the coordinator
// only ever does cheap, in-memory work inside its handler (see
// internal/coordinator), but a slow callback still delays the monitor's own
// next poll.
type ChangeFunc func(name string, oldValue, newValue int32)

// Monitor is the capability set every concrete signal source implements.
// All values are encoded as signed 32-bit integers; monitors whose native
// shape is an enum or a percentage encode into that integer themselves.
type Monitor interface {
	// Name returns the stable dispatch key used by the coordinator. It must
	// be unique within the process and never change after construction.
	Name() string

	// Init performs any fallible setup (opening sysfs nodes, enabling a
	// kernel feature, resolving a netlink family) exactly once, before Run.
	// A non-nil error excludes the monitor from the active set.
	Init() error

	// Run blocks on the monitor's own worker until ctx is cancelled or Stop
	// is called. It must return promptly (within its natural poll budget)
	// once asked to stop.
	Run(ctx context.Context) error

	// Pause suspends polling without tearing down any held resources. It
	// must be safe to call from any goroutine and must unblock Run's poll
	// within the monitor's pause budget.
	Pause()

	// Resume un-suspends a paused monitor. Safe to call from any goroutine,
	// and a no-op if the monitor is not currently paused.
	Resume()

	// Stop requests that Run return. Safe to call from any goroutine, and
	// idempotent.
	Stop()

	// SetOnChange installs the change-notification callback. Must be called
	// before Run. Re-entrant safe: the monitor never holds its own locks
	// while invoking the callback.
	SetOnChange(fn ChangeFunc)
}

// Names are the stable dispatch keys the coordinator switches on. Kept as
// a closed set of constants rather than free-form strings at every call
// site.
const (
	NameWlt     = "WltMonitor"
	NameHfi     = "HfiMonitor"
	NameSysLoad = "SysLoadMonitor"
	NameGpuIdle = "GpuRc6Monitor"
)

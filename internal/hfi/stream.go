// Package hfi consumes the kernel's Hardware Feedback Interface capability
// events, delivered as thermal generic-netlink multicast notifications, and
// tracks the scalar "efficient power" capability they report.
package hfi

import "context"

// CapabilityEvent is one decoded CPU_CAPABILITY_CHANGE tuple: a CPU index
// plus its performance and efficiency capabilities, already rescaled back
// into the kernel's native [0,255] range.
type CapabilityEvent struct {
	CPU  int32
	Perf int32
	Eff  int32
}

// EventStream is the capability-event transport the Monitor consumes. The
// concrete implementation is a generic-netlink socket (netlink_linux.go);
// tests use FakeStream instead.
type EventStream interface {
	// Next blocks until the next capability event, ctx cancellation, or a
	// transport error.
	Next(ctx context.Context) (CapabilityEvent, error)
	Close() error
}

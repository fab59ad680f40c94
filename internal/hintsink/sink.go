// Package hintsink delivers power-mode hints to whatever is listening for
// them. The source talks to a platform Power HAL extension over a binder
// AIDL interface; that transport is out of scope, so this package defines
// the narrow interface the coordinator needs and two implementations that
// make the daemon's decisions observable without it.
package hintsink

import (
	"codeberg.org/mutker/socpowerhintd/internal/logger"
)

// Sink is the narrow capability the coordinator depends on: sending a named
// power hint on or off. It stands in for the source's HintManager.sendHint.
type Sink interface {
	SendHint(name string, enable bool) error
}

// LoggingSink records every hint at info level and always succeeds. It is
// the default sink: a daemon with no real Power HAL extension to talk to
// still needs its decisions to be visible.
type LoggingSink struct{}

func (LoggingSink) SendHint(name string, enable bool) error {
	logger.Info().Str("hint", name).Bool("enable", enable).Msg("hint dispatched")
	return nil
}

// NullSink discards every hint. Useful for tests that only care about the
// coordinator's internal state transitions, not what gets emitted.
type NullSink struct{}

func (NullSink) SendHint(name string, enable bool) error { return nil }

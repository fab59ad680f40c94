package hintsink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggingSinkAlwaysSucceeds(t *testing.T) {
	var s Sink = LoggingSink{}
	assert.NoError(t, s.SendHint("EFFICIENT_POWER", true))
}

func TestNullSinkAlwaysSucceeds(t *testing.T) {
	var s Sink = NullSink{}
	assert.NoError(t, s.SendHint("GFX_MODE", false))
}

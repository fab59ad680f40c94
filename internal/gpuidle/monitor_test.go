package gpuidle

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorStartsPaused(t *testing.T) {
	path := writeCounter(t, "0")
	m := New(path, 0)

	require.NoError(t, m.Init())
	assert.True(t, m.life.Paused())
}

func TestMonitorFirstPollEstablishesBaselineNoCallback(t *testing.T) {
	path := writeCounter(t, "100")
	m := New(path, 10*time.Millisecond)

	fired := false
	m.SetOnChange(func(string, int32, int32) { fired = true })

	m.poll()

	assert.False(t, fired)
	assert.True(t, m.havePrev)
	assert.Equal(t, int64(100), m.prevRaw)
}

func TestMonitorFiresOnChangedCounterWithGfxModeClassification(t *testing.T) {
	path := writeCounter(t, "0")
	m := New(path, 10*time.Millisecond)

	var gotPct, gotMode int32
	var calls int
	m.SetOnChange(func(_ string, pct, mode int32) {
		calls++
		gotPct, gotMode = pct, mode
	})

	m.poll() // baseline

	require.NoError(t, os.WriteFile(path, []byte("9\n"), 0o600))
	m.poll()

	require.Equal(t, 1, calls)
	assert.Equal(t, int32(90), gotPct) // 9ms delta / 10ms interval
	assert.Equal(t, int32(0), gotMode) // 90% idle is above the 40% high-load threshold
}

func TestMonitorSkipsCallbackWhenCounterUnchanged(t *testing.T) {
	path := writeCounter(t, "5")
	m := New(path, 10*time.Millisecond)

	calls := 0
	m.SetOnChange(func(string, int32, int32) { calls++ })

	m.poll()
	m.poll()

	assert.Equal(t, 0, calls)
}

func TestMonitorNameMatchesDispatchKey(t *testing.T) {
	m := New("", 0)
	assert.Equal(t, "GpuRc6Monitor", m.Name())
}

func TestMonitorStopUnblocksRunQuicklyAfterResume(t *testing.T) {
	path := writeCounter(t, "0")
	m := New(path, 10*time.Millisecond)
	require.NoError(t, m.Init())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx)
		close(done)
	}()

	m.Resume()
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Run did not return after Stop")
	}
}

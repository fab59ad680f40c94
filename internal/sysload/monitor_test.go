package sysload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFakeProcStat(t *testing.T, line string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stat")
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))

	orig := procStatPath
	procStatPath = path
	t.Cleanup(func() { procStatPath = orig })
}

func TestMonitorSampleAndGetNoDataOnFirstTick(t *testing.T) {
	withFakeProcStat(t, "cpu  100 0 0 900 0 0 0 0 0 0")

	m := New(0)
	value, fired := m.sampleAndGet(time.Now())

	assert.Equal(t, 0.0, value)
	assert.False(t, fired)
}

func TestMonitorFiresOnceOnBusySpikeCrossing(t *testing.T) {
	withFakeProcStat(t, "cpu  0 0 0 1000 0 0 0 0 0 0")
	m := New(0)

	var fired []struct{ old, new int32 }
	m.SetOnChange(func(_ string, old, new int32) {
		fired = append(fired, struct{ old, new int32 }{old, new})
	})

	start := time.Now()
	m.sampleAndGet(start)

	withFakeProcStat(t, "cpu  900 0 0 1100 0 0 0 0 0 0")
	value, crossed := m.sampleAndGet(start.Add(5 * time.Second))

	require.True(t, crossed)
	require.Len(t, fired, 1)
	assert.Greater(t, value, busySpikeThreshold)

	// A second tick that stays above threshold must not fire again.
	withFakeProcStat(t, "cpu  1800 0 0 1200 0 0 0 0 0 0")
	_, crossedAgain := m.sampleAndGet(start.Add(6 * time.Second))
	assert.False(t, crossedAgain)
	assert.Len(t, fired, 1)
}

func TestSampleAndGetForcesFreshRead(t *testing.T) {
	withFakeProcStat(t, "cpu  0 0 0 1000 0 0 0 0 0 0")
	m := New(time.Hour) // background ticker far too slow to matter here

	m.sampleAndGet(time.Now())
	before := m.Latest()

	withFakeProcStat(t, "cpu  900 0 0 1100 0 0 0 0 0 0")
	time.Sleep(5 * time.Millisecond)

	after := m.SampleAndGet()

	assert.NotEqual(t, before, after, "SampleAndGet must read /proc/stat fresh rather than return the stale cached value")
	assert.Equal(t, after, m.Latest())
}

func TestMonitorNameMatchesDispatchKey(t *testing.T) {
	m := New(0)
	assert.Equal(t, "SysLoadMonitor", m.Name())
}

package hfi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeFactory(events ...CapabilityEvent) func() (EventStream, error) {
	return func() (EventStream, error) {
		return NewFakeStream(events...), nil
	}
}

func TestMonitorFiresOnlyWhenScalarEffChanges(t *testing.T) {
	m := New(fakeFactory(
		CapabilityEvent{CPU: 0, Perf: 10, Eff: 5},
		CapabilityEvent{CPU: 1, Perf: 12, Eff: 5}, // same eff, different cpu: no fire
		CapabilityEvent{CPU: 0, Perf: 10, Eff: 255},
	))
	require.NoError(t, m.Init())

	var transitions [][2]int32
	m.SetOnChange(func(_ string, old, new int32) {
		transitions = append(transitions, [2]int32{old, new})
	})

	require.NoError(t, m.Run(context.Background()))

	require.Len(t, transitions, 2)
	assert.Equal(t, [2]int32{0, 5}, transitions[0])
	assert.Equal(t, [2]int32{5, 255}, transitions[1])
}

func TestMonitorNameMatchesDispatchKey(t *testing.T) {
	m := New(fakeFactory())
	assert.Equal(t, "HfiMonitor", m.Name())
}

func TestMonitorStopClosesStream(t *testing.T) {
	m := New(fakeFactory())
	require.NoError(t, m.Init())

	m.Stop()

	fake, ok := m.stream.(*FakeStream)
	require.True(t, ok)
	assert.True(t, fake.closed)
}

package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GetCreatesAndReusesBreaker(t *testing.T) {
	m := NewManager(ManagerOptions{MaxTrackedCircuitBreakers: 10}, func(nodeID string) Options {
		return Options{FailureThreshold: 1, OpenDuration: time.Hour}
	})
	defer m.Close()

	cb1, err := m.Get("node-a")
	require.NoError(t, err)
	cb2, err := m.Get("node-a")
	require.NoError(t, err)
	assert.Same(t, cb1, cb2)
}

func TestManager_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	m := NewManager(ManagerOptions{MaxTrackedCircuitBreakers: 2}, func(nodeID string) Options {
		return Options{FailureThreshold: 1, OpenDuration: time.Hour}
	})
	defer m.Close()

	_, err := m.Get("a")
	require.NoError(t, err)
	_, err = m.Get("b")
	require.NoError(t, err)
	// touch a so b becomes least-recently-used
	_, err = m.Get("a")
	require.NoError(t, err)

	_, err = m.Get("c")
	require.NoError(t, err)

	assert.Len(t, m.entries, 2)
	_, stillThere := m.entries["b"]
	assert.False(t, stillThere, "b should have been evicted as least-recently-used")
	_, aThere := m.entries["a"]
	assert.True(t, aThere)
	_, cThere := m.entries["c"]
	assert.True(t, cThere)
}

func TestManager_PropagatesConfigurationError(t *testing.T) {
	m := NewManager(ManagerOptions{}, func(nodeID string) Options {
		return Options{FailureThreshold: -5}
	})
	defer m.Close()

	_, err := m.Get("bad")
	assert.Error(t, err)
}

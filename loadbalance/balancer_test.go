package loadbalance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipecall/registry"
)

var testInstances = []registry.Instance{
	{ID: "worker-1", PID: 8001, Service: "Demo"},
	{ID: "worker-2", PID: 8002, Service: "Demo"},
	{ID: "worker-3", PID: 8003, Service: "Demo"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	// cycles through every instance in order
	for i := 0; i < 3; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		assert.Equal(t, testInstances[i].ID, inst.ID)
	}

	// then wraps around to the first
	inst, err := b.Pick(testInstances)
	require.NoError(t, err)
	assert.Equal(t, testInstances[0].ID, inst.ID)
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	_, err := b.Pick(nil)
	require.ErrorIs(t, err, ErrNoInstances)
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()
	for i := range testInstances {
		b.Add(&testInstances[i])
	}

	// same key, same instance
	inst1, err := b.Pick("user-123")
	require.NoError(t, err)
	inst2, err := b.Pick("user-123")
	require.NoError(t, err)
	assert.Equal(t, inst1.ID, inst2.ID)

	// 100 keys over 3 workers should hit more than one
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, err := b.Pick(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		seen[inst.ID] = true
	}
	assert.GreaterOrEqual(t, len(seen), 2)
}

func TestConsistentHashRemove(t *testing.T) {
	b := NewConsistentHashBalancer()
	for i := range testInstances {
		b.Add(&testInstances[i])
	}

	before := map[string]string{}
	for i := 0; i < 200; i++ {
		k := fmt.Sprintf("key-%d", i)
		inst, err := b.Pick(k)
		require.NoError(t, err)
		before[k] = inst.ID
	}

	b.Remove("worker-2")

	for k, id := range before {
		inst, err := b.Pick(k)
		require.NoError(t, err)
		assert.NotEqual(t, "worker-2", inst.ID)
		if id != "worker-2" {
			// keys of surviving workers do not move
			assert.Equal(t, id, inst.ID, "key %s moved", k)
		}
	}
}

func TestConsistentHashEmpty(t *testing.T) {
	b := NewConsistentHashBalancer()
	_, err := b.Pick("anything")
	require.ErrorIs(t, err, ErrNoInstances)
}

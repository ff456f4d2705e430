package sync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-sync-service/internal/store"
	"knowledge-sync-service/internal/sync"
)

func TestBusDeliversEvents(t *testing.T) {
	bus := sync.NewBus(4)

	bus.ChangeAvailable("alice", store.EntityKnowledge, "k1")
	bus.ChangeAvailable("alice", store.EntityTag, "t1")

	ev := <-bus.Events()
	assert.Equal(t, "alice", ev.OwnerID)
	assert.Equal(t, store.EntityKnowledge, ev.EntityType)
	assert.Equal(t, "k1", ev.EntityID)

	ev = <-bus.Events()
	assert.Equal(t, "t1", ev.EntityID)
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := sync.NewBus(1)

	// Must never block the push path, even with no consumer.
	bus.ChangeAvailable("alice", store.EntityKnowledge, "k1")
	bus.ChangeAvailable("alice", store.EntityKnowledge, "k2")

	require.Len(t, bus.Events(), 1)
	ev := <-bus.Events()
	assert.Equal(t, "k1", ev.EntityID)
}

package taskboard

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestBroadcast(t *testing.T) {
	registry := NewConnRegistry()
	broadcaster := NewBroadcaster(registry)

	// broadcasting to an empty registry is fine
	delivered := broadcaster.Broadcast(NewTaskDeletedEvent(NewId()))
	assert.Equal(t, 0, delivered)

	a := newTestObserver()
	b := newTestObserver()
	c := newTestObserver()
	registry.Register(a)
	registry.Register(b)
	registry.Register(c)
	b.Close()

	task := &Task{
		Id:          NewId(),
		Description: "write spec",
	}
	delivered = broadcaster.Broadcast(NewTaskAddedEvent(task))
	assert.Equal(t, 2, delivered)

	// every reachable recipient got the same wire form
	assert.Equal(t, 1, len(a.Messages()))
	assert.Equal(t, 1, len(c.Messages()))
	assert.Equal(t, a.Messages()[0], c.Messages()[0])

	// the unwritable handle was dropped from the registry
	assert.Equal(t, 2, registry.Size())

	// subsequent broadcasts skip it entirely
	delivered = broadcaster.Broadcast(NewTaskUpdatedEvent(task))
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 0, len(b.Messages()))
}

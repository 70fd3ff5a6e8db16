package taskboard

import (
	"encoding/json"
)

// events are ephemeral. constructed after a committed mutation,
// broadcast once, and discarded. never stored or replayed.

type EventKind string

const (
	EventKindTaskAdded   EventKind = "task_added"
	EventKindTaskUpdated EventKind = "task_updated"
	EventKindTaskDeleted EventKind = "task_deleted"
)

type Event struct {
	Kind    EventKind `json:"kind"`
	Payload any       `json:"payload"`
}

// the payload is the full canonical record as read back from the store,
// never the caller's raw input
func NewTaskAddedEvent(task *Task) *Event {
	return &Event{
		Kind:    EventKindTaskAdded,
		Payload: task,
	}
}

func NewTaskUpdatedEvent(task *Task) *Event {
	return &Event{
		Kind:    EventKindTaskUpdated,
		Payload: task,
	}
}

// the payload is the identity value alone
func NewTaskDeletedEvent(taskId Id) *Event {
	return &Event{
		Kind:    EventKindTaskDeleted,
		Payload: taskId,
	}
}

func (self *Event) Serialize() ([]byte, error) {
	return json.Marshal(self)
}

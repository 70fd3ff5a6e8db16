package taskboard

import (
	"github.com/golang/glog"
)

// best-effort fan-out of one event to every live observer.
// no acknowledgment, no ordering guarantee across recipients, no retry.
type Broadcaster struct {
	registry *ConnRegistry
}

func NewBroadcaster(registry *ConnRegistry) *Broadcaster {
	return &Broadcaster{
		registry: registry,
	}
}

// serializes the event once and pushes it to every handle in the
// registry snapshot. a handle that cannot accept the message is
// unregistered and closed, and delivery continues to the rest.
// delivery failures are never surfaced to the mutation caller.
// returns the number of observers the event was handed to.
func (self *Broadcaster) Broadcast(event *Event) int {
	message, err := event.Serialize()
	if err != nil {
		glog.Infof("[b]serialize error = %s\n", err)
		return 0
	}

	delivered := 0
	for _, observer := range self.registry.Snapshot() {
		if err := observer.Send(message); err != nil {
			glog.Infof("[b]drop observer = %s\n", err)
			self.registry.Unregister(observer)
			observer.Close()
			continue
		}
		delivered += 1
	}
	glog.V(2).Infof("[b]%s -> %d\n", event.Kind, delivered)
	return delivered
}

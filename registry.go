package taskboard

import (
	"sync"

	"golang.org/x/exp/slices"
)

// a live push channel to one connected client
type Observer interface {
	// non-blocking. returns an error if the connection cannot currently
	// accept the message, in which case the connection should be
	// considered dead.
	Send(message []byte) error
	Close()
}

// the set of currently live observer connections.
// safe for concurrent register/unregister/snapshot.
// makes a copy of the list on update so a snapshot taken before a
// mutation is never affected by it.
type ConnRegistry struct {
	mutex     sync.Mutex
	observers []Observer
}

func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{}
}

// safe to call more than once per connection
func (self *ConnRegistry) Register(observer Observer) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	i := slices.Index(self.observers, observer)
	if 0 <= i {
		// already present
		return
	}
	nextObservers := slices.Clone(self.observers)
	nextObservers = append(nextObservers, observer)
	self.observers = nextObservers
}

// safe to call after the observer was already removed
func (self *ConnRegistry) Unregister(observer Observer) {
	self.mutex.Lock()
	defer self.mutex.Unlock()

	i := slices.Index(self.observers, observer)
	if i < 0 {
		// not present
		return
	}
	nextObservers := slices.Clone(self.observers)
	nextObservers = slices.Delete(nextObservers, i, i+1)
	self.observers = nextObservers
}

// point-in-time copy of the live set.
// connections added or removed after the snapshot do not appear in or
// vanish from a broadcast already in progress.
func (self *ConnRegistry) Snapshot() []Observer {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.observers
}

func (self *ConnRegistry) Size() int {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return len(self.observers)
}

// Package request correlates asynchronous requests issued by the call core
// with responses the host application delivers later.
//
// A Tracker hands out monotonically increasing numeric ids. Each id is bound
// to one handler that runs at most once, when the matching response is
// resolved. Trackers have no timeouts: a caller that gives up on a request
// simply forgets the id, and a late Resolve for it is logged and ignored.
package request

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// ID identifies one outstanding request within a Tracker.
type ID uint32

// Handler receives the response for a request.
type Handler[T any] func(T)

// Tracker maps request ids to pending response handlers.
//
// Tracker is safe for concurrent use. Handlers are invoked without the
// tracker lock held, so a handler may issue new requests on the same tracker.
type Tracker[T any] struct {
	mu       sync.Mutex
	name     string
	nextID   ID
	handlers map[ID]Handler[T]
}

// NewTracker creates an empty tracker. The name only appears in log entries.
func NewTracker[T any](name string) *Tracker[T] {
	return &Tracker[T]{
		name:     name,
		nextID:   1,
		handlers: make(map[ID]Handler[T]),
	}
}

// Add stores the handler and returns a fresh id for it. Ids are never
// reused while a handler is outstanding.
func (t *Tracker[T]) Add(handler Handler[T]) ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	for {
		if _, busy := t.handlers[id]; !busy && id != 0 {
			break
		}
		id++
	}
	t.nextID = id + 1
	t.handlers[id] = handler

	logrus.WithFields(logrus.Fields{
		"function":   "Add",
		"tracker":    t.name,
		"request_id": id,
		"pending":    len(t.handlers),
	}).Debug("Request registered")

	return id
}

// Resolve invokes and removes the handler registered for id. It returns
// false without side effects when no handler is registered.
func (t *Tracker[T]) Resolve(id ID, response T) bool {
	t.mu.Lock()
	handler, ok := t.handlers[id]
	if ok {
		delete(t.handlers, id)
	}
	t.mu.Unlock()

	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":   "Resolve",
			"tracker":    t.name,
			"request_id": id,
		}).Warn("No pending request for id")
		return false
	}

	if handler != nil {
		handler(response)
	}
	return true
}

// Abandon removes the handler for id without invoking it.
func (t *Tracker[T]) Abandon(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.handlers[id]
	delete(t.handlers, id)
	return ok
}

// Pending reports whether id still has an outstanding handler.
func (t *Tracker[T]) Pending(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.handlers[id]
	return ok
}

// Len returns the number of outstanding requests.
func (t *Tracker[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.handlers)
}

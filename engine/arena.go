package engine

import (
	"sort"
	"sync"
)

// Arena owns values keyed by small integer ids. Removing a value is the
// only way to destroy it, so a stale id is a lookup miss rather than a
// dangling reference.
//
// Arena is safe for concurrent use.
type Arena[T any] struct {
	mu     sync.RWMutex
	nextID uint32
	items  map[uint32]T
}

// NewArena creates an empty arena. Ids start at 1.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{
		nextID: 1,
		items:  make(map[uint32]T),
	}
}

// Insert stores value under a fresh id.
func (a *Arena[T]) Insert(value T) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	for {
		if _, used := a.items[id]; !used && id != 0 {
			break
		}
		id++
	}
	a.nextID = id + 1
	a.items[id] = value
	return id
}

// InsertWith allocates a fresh id, builds the value for it with build and
// stores the result. When build fails nothing is stored and the id is not
// handed out again until the counter wraps.
func (a *Arena[T]) InsertWith(build func(id uint32) (T, error)) (uint32, error) {
	a.mu.Lock()
	id := a.nextID
	for {
		if _, used := a.items[id]; !used && id != 0 {
			break
		}
		id++
	}
	a.nextID = id + 1
	a.mu.Unlock()

	value, err := build(id)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.items[id] = value
	return id, nil
}

// Get returns the value stored under id.
func (a *Arena[T]) Get(id uint32) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	v, ok := a.items[id]
	return v, ok
}

// Remove deletes and returns the value stored under id.
func (a *Arena[T]) Remove(id uint32) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	v, ok := a.items[id]
	delete(a.items, id)
	return v, ok
}

// Len returns the number of stored values.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.items)
}

// IDs returns the stored ids in ascending order.
func (a *Arena[T]) IDs() []uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]uint32, 0, len(a.items))
	for id := range a.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Each calls fn for every value in ascending id order. fn may remove
// entries from the arena.
func (a *Arena[T]) Each(fn func(id uint32, value T)) {
	for _, id := range a.IDs() {
		if v, ok := a.Get(id); ok {
			fn(id, v)
		}
	}
}

// Drain removes and returns every value in ascending id order.
func (a *Arena[T]) Drain() []T {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]uint32, 0, len(a.items))
	for id := range a.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.items[id])
		delete(a.items, id)
	}
	return out
}

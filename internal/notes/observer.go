package notes

import (
	"slices"
	"sync"
)

// ChangeKind names the operation that produced a Change.
type ChangeKind string

const (
	ChangeLoaded   ChangeKind = "loaded"
	ChangeSeeded   ChangeKind = "seeded"
	ChangeCreated  ChangeKind = "created"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeImported ChangeKind = "imported"
)

// Change is delivered to subscribers after the store mutates its collection.
type Change struct {
	Kind    ChangeKind
	NoteIDs []string
	// Notes is a snapshot of the whole collection after the change.
	Notes []Note
	// Recovered is the decode failure a seeded collection replaced, if any.
	Recovered error
}

type observerSet struct {
	mu        sync.Mutex
	nextID    int64
	listeners map[int64]func(Change)
}

func (o *observerSet) add(listener func(Change)) func() {
	if listener == nil {
		return func() {}
	}
	o.mu.Lock()
	if o.listeners == nil {
		o.listeners = make(map[int64]func(Change))
	}
	o.nextID++
	id := o.nextID
	o.listeners[id] = listener
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

// notify runs listeners in registration order, outside the observer lock.
func (o *observerSet) notify(change Change) {
	o.mu.Lock()
	ids := make([]int64, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, o.listeners[id])
	}
	o.mu.Unlock()

	for _, listener := range listeners {
		listener(change)
	}
}

func collectIDs(collection []Note) []string {
	ids := make([]string, 0, len(collection))
	for _, note := range collection {
		ids = append(ids, note.ID)
	}
	return ids
}

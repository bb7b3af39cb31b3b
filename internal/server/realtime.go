package server

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/codenotes/internal/notes"
)

const (
	RealtimeEventNoteChanged = "note-change"
	realtimeEventHeartbeat   = "heartbeat"
	realtimeEventReady       = "ready"
	realtimeSourceBackend    = "codenotes"

	defaultRealtimeBuffer = 16
)

// RealtimeMessage describes one collection change pushed to event stream clients.
type RealtimeMessage struct {
	EventType string
	Kind      notes.ChangeKind
	NoteIDs   []string
	Count     int
	Timestamp time.Time
}

// RealtimeDispatcher fans messages out to every subscribed stream. Slow subscribers miss messages
// instead of blocking publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]*realtimeSubscriber),
		bufferSize:  defaultRealtimeBuffer,
	}
}

// Subscribe registers a stream that lives until ctx is done or the returned cleanup runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context) (<-chan RealtimeMessage, func()) {
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(subscriber)

	done := make(chan struct{})
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(subscriber.id)
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()
	return subscriber.stream, cleanup
}

func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.EventType == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*realtimeSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// SubscriberCount reports the number of open streams.
func (d *RealtimeDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// NewChangePublisher returns a store listener that forwards every change to the dispatcher.
func NewChangePublisher(dispatcher *RealtimeDispatcher, clock func() time.Time) func(notes.Change) {
	if clock == nil {
		clock = time.Now
	}
	return func(change notes.Change) {
		ids := make([]string, len(change.NoteIDs))
		copy(ids, change.NoteIDs)
		dispatcher.Publish(RealtimeMessage{
			EventType: RealtimeEventNoteChanged,
			Kind:      change.Kind,
			NoteIDs:   ids,
			Count:     len(change.Notes),
			Timestamp: clock().UTC(),
		})
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}

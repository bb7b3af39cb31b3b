package notes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var baseTime = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

// stepClock advances by one second on every call.
type stepClock struct {
	mu      sync.Mutex
	current time.Time
}

func newStepClock() *stepClock {
	return &stepClock{current: baseTime}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(time.Second)
	return c.current
}

type sequenceIDGenerator struct {
	mu   sync.Mutex
	next int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("note-%d", g.next), nil
}

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

// memoryRepository keeps the encoded collection like a key-value store would.
type memoryRepository struct {
	mu       sync.Mutex
	payload  []byte
	present  bool
	saves    int
	saveErr  error
	loadErr  error
	clock    func() time.Time
	provider IDProvider
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{clock: func() time.Time { return baseTime }, provider: &sequenceIDGenerator{}}
}

func (r *memoryRepository) Load(context.Context) ([]Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if !r.present {
		return nil, ErrCollectionNotFound
	}
	collection, _, err := DecodeCollection("memory", r.payload, Normalizer{Clock: r.clock, IDProvider: r.provider})
	return collection, err
}

func (r *memoryRepository) Save(_ context.Context, collection []Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return &PersistError{Key: "memory", Err: r.saveErr}
	}
	payload, err := EncodeCollection(collection, false)
	if err != nil {
		return &PersistError{Key: "memory", Err: err}
	}
	r.payload = payload
	r.present = true
	r.saves++
	return nil
}

func (r *memoryRepository) seed(payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payload = []byte(payload)
	r.present = true
}

func (r *memoryRepository) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func newTestStore(t *testing.T, repository Repository) *Store {
	t.Helper()
	clock := newStepClock()
	store, err := NewStore(StoreConfig{
		Repository: repository,
		Clock:      clock.Now,
		IDProvider: &sequenceIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return store
}

func mustInitialize(t *testing.T, store *Store) InitResult {
	t.Helper()
	result, err := store.Initialize(context.Background())
	if err != nil {
		t.Fatalf("unexpected initialize error: %v", err)
	}
	return result
}

func stringPointer(value string) *string {
	return &value
}

func languagePointer(value Language) *Language {
	return &value
}

func sameNote(left, right Note) bool {
	return left.ID == right.ID &&
		left.Title == right.Title &&
		left.Content == right.Content &&
		left.Language == right.Language &&
		left.CreatedAt.Equal(right.CreatedAt) &&
		left.UpdatedAt.Equal(right.UpdatedAt)
}

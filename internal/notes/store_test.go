package notes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInitializeSeedsWelcomeNoteIntoEmptyStorage(t *testing.T) {
	repository := newMemoryRepository()
	store := newTestStore(t, repository)

	result := mustInitialize(t, store)
	if !result.Seeded {
		t.Fatalf("expected welcome note to be seeded")
	}

	collection := store.Notes()
	if len(collection) != 1 {
		t.Fatalf("expected exactly one note, got %d", len(collection))
	}
	welcome := collection[0]
	if welcome.Title != WelcomeTitle {
		t.Fatalf("unexpected title %q", welcome.Title)
	}
	if welcome.Language != LanguagePlainText {
		t.Fatalf("unexpected language %s", welcome.Language)
	}
	if !welcome.CreatedAt.Equal(welcome.UpdatedAt) {
		t.Fatalf("seeded timestamps should match")
	}
	if repository.saveCount() != 1 {
		t.Fatalf("expected seed to be persisted once, got %d saves", repository.saveCount())
	}
}

func TestInitializeAdoptsStoredCollection(t *testing.T) {
	repository := newMemoryRepository()
	repository.seed(`[{"id":"1","title":"Kept","content":"body","language":"lua","createdAt":"2026-01-01T00:00:00.000Z","updatedAt":"2026-01-02T00:00:00.000Z"}]`)
	store := newTestStore(t, repository)

	result := mustInitialize(t, store)
	if result.Seeded {
		t.Fatalf("stored collection must not be replaced by the welcome note")
	}
	collection := store.Notes()
	if len(collection) != 1 || collection[0].Title != "Kept" || collection[0].Language != LanguageLua {
		t.Fatalf("unexpected collection %+v", collection)
	}
	if repository.saveCount() != 0 {
		t.Fatalf("loading must not write")
	}
}

func TestInitializeRecoversFromMalformedStorage(t *testing.T) {
	repository := newMemoryRepository()
	repository.seed("not json")
	store := newTestStore(t, repository)

	result := mustInitialize(t, store)
	if !result.Seeded {
		t.Fatalf("expected welcome note after decode failure")
	}
	var decodeErr *DecodeError
	if !errors.As(result.Recovered, &decodeErr) {
		t.Fatalf("expected recovered DecodeError, got %v", result.Recovered)
	}
	collection := store.Notes()
	if len(collection) != 1 || collection[0].Title != WelcomeTitle {
		t.Fatalf("unexpected collection %+v", collection)
	}
}

func TestInitializePropagatesStorageReadFailures(t *testing.T) {
	repository := newMemoryRepository()
	repository.loadErr = errors.New("disk unavailable")
	store := newTestStore(t, repository)

	_, err := store.Initialize(context.Background())
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if serviceErr.Code() != "notes.initialize.load_failed" {
		t.Fatalf("unexpected code %s", serviceErr.Code())
	}
}

func TestCreatePrependsNewNotes(t *testing.T) {
	repository := newMemoryRepository()
	repository.seed("[]")
	store := newTestStore(t, repository)
	mustInitialize(t, store)

	first, err := store.Create(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := store.Create(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	collection := store.Notes()
	if len(collection) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(collection))
	}
	if collection[0].ID != second.ID || collection[1].ID != first.ID {
		t.Fatalf("expected newest note first, got %s then %s", collection[0].ID, collection[1].ID)
	}
	if first.Title != DefaultTitle || first.Content != "" || first.Language != LanguagePlainText {
		t.Fatalf("unexpected defaults %+v", first)
	}
	if repository.saveCount() != 2 {
		t.Fatalf("expected a write per create, got %d", repository.saveCount())
	}
}

func TestCreateSkipsIdentifiersAlreadyInUse(t *testing.T) {
	repository := newMemoryRepository()
	repository.seed(`[{"id":"dup","title":"existing"}]`)
	store, err := NewStore(StoreConfig{
		Repository: repository,
		IDProvider: &staticIDGenerator{ids: []string{"dup", "", "fresh"}},
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	mustInitialize(t, store)

	note, err := store.Create(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note.ID != "fresh" {
		t.Fatalf("expected colliding ids to be skipped, got %q", note.ID)
	}
}

func TestCreateFailsWhenIdentifiersKeepColliding(t *testing.T) {
	repository := newMemoryRepository()
	repository.seed(`[{"id":"dup","title":"existing"}]`)
	ids := make([]string, maxIDAttempts)
	for index := range ids {
		ids[index] = "dup"
	}
	store, err := NewStore(StoreConfig{Repository: repository, IDProvider: &staticIDGenerator{ids: ids}})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	mustInitialize(t, store)

	if _, err := store.Create(context.Background()); !errors.Is(err, errIDCollision) {
		t.Fatalf("expected collision error, got %v", err)
	}
	if len(store.Notes()) != 1 {
		t.Fatalf("failed create must not change the collection")
	}
}

func TestUpdateMergesFieldsAndAdvancesUpdatedAt(t *testing.T) {
	repository := newMemoryRepository()
	repository.seed(`[{"id":"1","title":"Original","content":"","createdAt":"2026-10-19T07:00:00.000Z","updatedAt":"2026-10-19T07:30:00.000Z"}]`)
	store := newTestStore(t, repository)
	mustInitialize(t, store)
	before, _ := store.Get("1")

	updated, found, err := store.Update(context.Background(), "1", Patch{Content: stringPointer("hello")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("expected note to be found")
	}
	if updated.Content != "hello" {
		t.Fatalf("unexpected content %q", updated.Content)
	}
	if updated.Title != "Original" {
		t.Fatalf("title must be left untouched, got %q", updated.Title)
	}
	if !updated.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("expected updatedAt to advance past %s, got %s", before.UpdatedAt, updated.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(before.CreatedAt) || updated.ID != before.ID {
		t.Fatalf("id and createdAt must never change")
	}
	stored, _ := store.Get("1")
	if stored.Content != "hello" {
		t.Fatalf("update was not applied to the collection")
	}
	if repository.saveCount() != 1 {
		t.Fatalf("expected update to be persisted")
	}
}

func TestUpdateNormalizesLanguage(t *testing.T) {
	store := newTestStore(t, newMemoryRepository())
	mustInitialize(t, store)
	id := store.Notes()[0].ID

	updated, _, err := store.Update(context.Background(), id, Patch{Language: languagePointer("C++")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Language != LanguageCPP {
		t.Fatalf("expected cpp, got %s", updated.Language)
	}

	updated, _, err = store.Update(context.Background(), id, Patch{Language: languagePointer("cobol")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Language != LanguagePlainText {
		t.Fatalf("unknown language should become plaintext, got %s", updated.Language)
	}
}

func TestUpdateKeepsUpdatedAtIncreasingWhenClockStalls(t *testing.T) {
	repository := newMemoryRepository()
	frozen := baseTime
	store, err := NewStore(StoreConfig{
		Repository: repository,
		Clock:      func() time.Time { return frozen },
		IDProvider: &sequenceIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	mustInitialize(t, store)
	id := store.Notes()[0].ID

	previous := store.Notes()[0].UpdatedAt
	for iteration := 0; iteration < 3; iteration++ {
		updated, _, err := store.Update(context.Background(), id, Patch{Title: stringPointer("t")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !updated.UpdatedAt.After(previous) {
			t.Fatalf("updatedAt did not advance: %s then %s", previous, updated.UpdatedAt)
		}
		previous = updated.UpdatedAt
	}
}

func TestUpdateAndDeleteIgnoreUnknownIDs(t *testing.T) {
	repository := newMemoryRepository()
	store := newTestStore(t, repository)
	mustInitialize(t, store)
	before := store.Notes()
	savesBefore := repository.saveCount()

	if _, found, err := store.Update(context.Background(), "missing", Patch{Title: stringPointer("x")}); err != nil || found {
		t.Fatalf("expected silent no-op update, found=%v err=%v", found, err)
	}
	if found, err := store.Delete(context.Background(), "missing"); err != nil || found {
		t.Fatalf("expected silent no-op delete, found=%v err=%v", found, err)
	}

	after := store.Notes()
	if len(after) != len(before) {
		t.Fatalf("collection length changed from %d to %d", len(before), len(after))
	}
	for index := range before {
		if !sameNote(before[index], after[index]) {
			t.Fatalf("note %d changed: %+v -> %+v", index, before[index], after[index])
		}
	}
	if repository.saveCount() != savesBefore {
		t.Fatalf("no-op operations must not write")
	}
}

func TestDeleteRemovesNote(t *testing.T) {
	repository := newMemoryRepository()
	repository.seed("[]")
	store := newTestStore(t, repository)
	mustInitialize(t, store)
	first, _ := store.Create(context.Background())
	second, _ := store.Create(context.Background())

	found, err := store.Delete(context.Background(), first.ID)
	if err != nil || !found {
		t.Fatalf("expected delete to succeed, found=%v err=%v", found, err)
	}
	collection := store.Notes()
	if len(collection) != 1 || collection[0].ID != second.ID {
		t.Fatalf("unexpected collection after delete %+v", collection)
	}

	reloaded := newTestStore(t, repository)
	mustInitialize(t, reloaded)
	if len(reloaded.Notes()) != 1 {
		t.Fatalf("delete was not persisted")
	}
}

func TestMutationsKeepMemoryStateWhenPersistFails(t *testing.T) {
	repository := newMemoryRepository()
	repository.seed("[]")
	store := newTestStore(t, repository)
	mustInitialize(t, store)
	repository.saveErr = errors.New("quota exceeded")

	note, err := store.Create(context.Background())
	var persistErr *PersistError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistError, got %v", err)
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "notes.create.persist_failed" {
		t.Fatalf("unexpected service error %v", err)
	}
	if note.ID == "" {
		t.Fatalf("created note should still be returned")
	}
	if _, ok := store.Get(note.ID); !ok {
		t.Fatalf("created note should be kept in memory")
	}
}

func TestSearchMatchesTitleContentAndLanguage(t *testing.T) {
	repository := newMemoryRepository()
	repository.seed(`[
		{"id":"1","title":"Grocery list","content":"milk","language":"plaintext"},
		{"id":"2","title":"Handler","content":"func main() {}","language":"go"},
		{"id":"3","title":"Styles","content":".milk { color: white }","language":"css"}
	]`)
	store := newTestStore(t, repository)
	mustInitialize(t, store)

	testCases := []struct {
		query    string
		expected []string
	}{
		{query: "", expected: []string{"1", "2", "3"}},
		{query: "MILK", expected: []string{"1", "3"}},
		{query: "handler", expected: []string{"2"}},
		{query: "go", expected: []string{"2"}},
		{query: "c++", expected: []string{}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.query, func(t *testing.T) {
			matches := store.Search(testCase.query)
			if len(matches) != len(testCase.expected) {
				t.Fatalf("expected %v, got %+v", testCase.expected, matches)
			}
			for index, id := range testCase.expected {
				if matches[index].ID != id {
					t.Fatalf("expected %s at %d, got %s", id, index, matches[index].ID)
				}
			}
		})
	}
}

func TestSubscribersReceiveChanges(t *testing.T) {
	store := newTestStore(t, newMemoryRepository())
	var received []Change
	unsubscribe := store.Subscribe(func(change Change) {
		received = append(received, change)
	})

	mustInitialize(t, store)
	created, _ := store.Create(context.Background())
	unsubscribe()
	store.Delete(context.Background(), created.ID)

	if len(received) != 2 {
		t.Fatalf("expected 2 changes before unsubscribe, got %d", len(received))
	}
	if received[0].Kind != ChangeSeeded {
		t.Fatalf("expected seeded change, got %s", received[0].Kind)
	}
	if received[1].Kind != ChangeCreated || received[1].NoteIDs[0] != created.ID {
		t.Fatalf("unexpected create change %+v", received[1])
	}
	if len(received[1].Notes) != 2 {
		t.Fatalf("change should carry the collection snapshot")
	}
}

func TestNewStoreRequiresDependencies(t *testing.T) {
	if _, err := NewStore(StoreConfig{IDProvider: &sequenceIDGenerator{}}); err == nil {
		t.Fatalf("expected missing repository error")
	}
	_, err := NewStore(StoreConfig{Repository: newMemoryRepository()})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "notes.store.new.missing_id_provider" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSeededChangeCarriesRecoveredDecodeError(t *testing.T) {
	repository := newMemoryRepository()
	repository.seed("not json")
	store := newTestStore(t, repository)
	var received []Change
	store.Subscribe(func(change Change) {
		received = append(received, change)
	})

	mustInitialize(t, store)

	if len(received) != 1 || received[0].Kind != ChangeSeeded {
		t.Fatalf("expected one seeded change, got %+v", received)
	}
	var decodeErr *DecodeError
	if !errors.As(received[0].Recovered, &decodeErr) {
		t.Fatalf("expected the decode failure on the change, got %v", received[0].Recovered)
	}
}

func TestSeededChangeFromEmptyStorageHasNoRecoveredError(t *testing.T) {
	store := newTestStore(t, newMemoryRepository())
	var received []Change
	store.Subscribe(func(change Change) {
		received = append(received, change)
	})

	mustInitialize(t, store)

	if len(received) != 1 || received[0].Recovered != nil {
		t.Fatalf("expected a clean seeded change, got %+v", received)
	}
}

func TestConcurrentUpdatesNotifyInMutationOrder(t *testing.T) {
	store := newTestStore(t, newMemoryRepository())
	mustInitialize(t, store)
	id := store.Notes()[0].ID

	var mu sync.Mutex
	var stamps []time.Time
	store.Subscribe(func(change Change) {
		for _, note := range change.Notes {
			if note.ID == id {
				mu.Lock()
				stamps = append(stamps, note.UpdatedAt)
				mu.Unlock()
			}
		}
	})

	const writers = 16
	var wg sync.WaitGroup
	for index := 0; index < writers; index++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			content := fmt.Sprintf("edit %d", index)
			if _, _, err := store.Update(context.Background(), id, Patch{Content: &content}); err != nil {
				t.Errorf("unexpected update error: %v", err)
			}
		}(index)
	}
	wg.Wait()

	if len(stamps) != writers {
		t.Fatalf("expected %d notifications, got %d", writers, len(stamps))
	}
	for index := 1; index < len(stamps); index++ {
		if !stamps[index].After(stamps[index-1]) {
			t.Fatalf("notification %d delivered out of order: %s after %s", index, stamps[index], stamps[index-1])
		}
	}
}

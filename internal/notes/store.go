package notes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxIDAttempts = 8

var noOpLogger = zap.NewNop()

// Repository loads and saves the whole note collection.
// Load returns ErrCollectionNotFound when nothing was stored yet and a *DecodeError when the
// stored value is malformed. Save failures are reported as *PersistError.
type Repository interface {
	Load(ctx context.Context) ([]Note, error)
	Save(ctx context.Context, collection []Note) error
}

// StoreConfig describes the dependencies of a Store.
type StoreConfig struct {
	Repository Repository
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store owns the in-memory note collection and writes it through to the repository on every mutation.
type Store struct {
	mu         sync.Mutex
	repository Repository
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	notes      []Note
	observers  observerSet
	// notifyMu is taken before mu is released so listeners see changes in mutation order.
	notifyMu sync.Mutex
}

// NewStore validates the configuration and returns an empty Store. Call Initialize before use.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Repository == nil {
		return nil, newServiceError(opStoreNew, reasonMissingRepository, errMissingRepository)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opStoreNew, reasonMissingIDProvider, errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		repository: cfg.Repository,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		notes:      []Note{},
	}, nil
}

// InitResult describes how Initialize populated the collection.
type InitResult struct {
	// Seeded is set when the welcome note was created.
	Seeded bool
	// Recovered holds the decode failure that was replaced by the welcome note, if any.
	Recovered error
}

// Initialize adopts the stored collection or seeds the welcome note when nothing usable is stored.
func (s *Store) Initialize(ctx context.Context) (InitResult, error) {
	s.mu.Lock()

	loaded, err := s.repository.Load(ctx)
	var decodeErr *DecodeError
	switch {
	case err == nil:
		s.notes = cloneNotes(loaded)
		snapshot := cloneNotes(s.notes)
		s.logger.Debug("notes loaded", zap.Int("count", len(snapshot)))
		s.unlockAndNotify(Change{Kind: ChangeLoaded, NoteIDs: collectIDs(snapshot), Notes: snapshot})
		return InitResult{}, nil
	case errors.Is(err, ErrCollectionNotFound):
	case errors.As(err, &decodeErr):
		s.logger.Warn("stored notes are unreadable, starting over with the welcome note", zap.Error(err))
	default:
		s.mu.Unlock()
		s.logError(opInitialize, reasonLoadFailed, err)
		return InitResult{}, newServiceError(opInitialize, reasonLoadFailed, err)
	}

	now := s.now()
	welcome, idErr := s.newNote(now)
	if idErr != nil {
		s.mu.Unlock()
		s.logError(opInitialize, reasonIDGeneration, idErr)
		return InitResult{}, newServiceError(opInitialize, reasonIDGeneration, idErr)
	}
	welcome.Title = WelcomeTitle
	welcome.Content = WelcomeContent
	s.notes = []Note{welcome}

	result := InitResult{Seeded: true}
	if decodeErr != nil {
		result.Recovered = decodeErr
	}
	persistErr := s.persist(ctx, opInitialize)
	s.unlockAndNotify(Change{
		Kind:      ChangeSeeded,
		NoteIDs:   []string{welcome.ID},
		Notes:     cloneNotes(s.notes),
		Recovered: result.Recovered,
	})
	return result, persistErr
}

// Create prepends a new note with default fields and persists the collection.
// On a persistence failure the note is kept in memory and returned together with the error.
func (s *Store) Create(ctx context.Context) (Note, error) {
	s.mu.Lock()

	note, err := s.newNote(s.now())
	if err != nil {
		s.mu.Unlock()
		s.logError(opCreate, reasonIDGeneration, err)
		return Note{}, newServiceError(opCreate, reasonIDGeneration, err)
	}

	s.notes = append([]Note{note}, s.notes...)
	persistErr := s.persist(ctx, opCreate, zap.String(fieldNoteID, note.ID))
	s.unlockAndNotify(Change{Kind: ChangeCreated, NoteIDs: []string{note.ID}, Notes: cloneNotes(s.notes)})
	return note, persistErr
}

// Update merges the patch into the note with the given id and refreshes its updatedAt.
// An unknown id is a no-op: found is false and nothing is persisted.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (note Note, found bool, err error) {
	s.mu.Lock()

	index := s.indexOf(id)
	if index < 0 {
		s.mu.Unlock()
		return Note{}, false, nil
	}

	updated := s.notes[index]
	if patch.Title != nil {
		updated.Title = *patch.Title
	}
	if patch.Content != nil {
		updated.Content = *patch.Content
	}
	if patch.Language != nil {
		updated.Language = NormalizeLanguage(string(*patch.Language))
	}
	updated.UpdatedAt = nextUpdatedAt(updated, s.now())
	s.notes[index] = updated

	persistErr := s.persist(ctx, opUpdate, zap.String(fieldNoteID, updated.ID))
	s.unlockAndNotify(Change{Kind: ChangeUpdated, NoteIDs: []string{updated.ID}, Notes: cloneNotes(s.notes)})
	return updated, true, persistErr
}

// Delete removes the note with the given id. An unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) (found bool, err error) {
	s.mu.Lock()

	index := s.indexOf(id)
	if index < 0 {
		s.mu.Unlock()
		return false, nil
	}

	removedID := s.notes[index].ID
	remaining := make([]Note, 0, len(s.notes)-1)
	remaining = append(remaining, s.notes[:index]...)
	remaining = append(remaining, s.notes[index+1:]...)
	s.notes = remaining

	persistErr := s.persist(ctx, opDelete, zap.String(fieldNoteID, removedID))
	s.unlockAndNotify(Change{Kind: ChangeDeleted, NoteIDs: []string{removedID}, Notes: cloneNotes(s.notes)})
	return true, persistErr
}

// Notes returns a copy of the collection, newest first.
func (s *Store) Notes() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneNotes(s.notes)
}

// Get returns the note with the given id.
func (s *Store) Get(id string) (Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.indexOf(id)
	if index < 0 {
		return Note{}, false
	}
	return s.notes[index], true
}

// Search returns the notes whose title, content or language contain the query, ignoring case.
// An empty query matches every note. Collection order is preserved.
func (s *Store) Search(query string) []Note {
	needle := strings.ToLower(strings.TrimSpace(query))
	all := s.Notes()
	if needle == "" {
		return all
	}
	matches := make([]Note, 0, len(all))
	for _, note := range all {
		if noteMatches(note, needle) {
			matches = append(matches, note)
		}
	}
	return matches
}

// Subscribe registers a listener that runs after every change, in the order changes were applied.
// Listeners run one change at a time and must not mutate the store. The returned func unregisters it.
func (s *Store) Subscribe(listener func(Change)) func() {
	return s.observers.add(listener)
}

func noteMatches(note Note, needle string) bool {
	return strings.Contains(strings.ToLower(note.Title), needle) ||
		strings.Contains(strings.ToLower(note.Content), needle) ||
		strings.Contains(strings.ToLower(note.Language.Label()), needle) ||
		strings.Contains(string(note.Language), needle)
}

// nextUpdatedAt keeps updatedAt strictly increasing per note and never below createdAt.
func nextUpdatedAt(note Note, now time.Time) time.Time {
	next := now
	if !next.After(note.UpdatedAt) {
		next = note.UpdatedAt.Add(time.Millisecond)
	}
	if next.Before(note.CreatedAt) {
		next = note.CreatedAt
	}
	return next
}

func (s *Store) newNote(now time.Time) (Note, error) {
	id, err := s.uniqueID(nil)
	if err != nil {
		return Note{}, err
	}
	return Note{
		ID:        id,
		Title:     DefaultTitle,
		Content:   "",
		Language:  LanguagePlainText,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// uniqueID draws identifiers until one is unused by the collection and by the reserved set.
func (s *Store) uniqueID(reserved map[string]struct{}) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.idProvider.NewID()
		if err != nil {
			return "", err
		}
		if id == "" || s.indexOf(id) >= 0 {
			continue
		}
		if _, taken := reserved[id]; taken {
			continue
		}
		return id, nil
	}
	return "", errIDCollision
}

func (s *Store) indexOf(id string) int {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return -1
	}
	for index := range s.notes {
		if s.notes[index].ID == trimmed {
			return index
		}
	}
	return -1
}

func (s *Store) now() time.Time {
	return truncateTimestamp(s.clock())
}

// unlockAndNotify releases s.mu and delivers the change before any later mutation can deliver its own.
func (s *Store) unlockAndNotify(change Change) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Unlock()
	s.observers.notify(change)
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context, operation string, fields ...zap.Field) error {
	if err := s.repository.Save(ctx, cloneNotes(s.notes)); err != nil {
		s.logError(operation, reasonPersistFailed, err, fields...)
		return newServiceError(operation, reasonPersistFailed, err)
	}
	return nil
}

const fieldNoteID = "note_id"

func (s *Store) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("notes store error", attrs...)
}

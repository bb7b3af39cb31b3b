// Package storage persists the note collection as one JSON array under a fixed key.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/codenotes/internal/kv"
	"github.com/MarcoPoloResearchLab/codenotes/internal/notes"
	"go.uber.org/zap"
)

// DefaultKey is the key the collection is stored under unless configured otherwise.
const DefaultKey = "codenotes.notes"

var errMissingStore = errors.New("storage: key-value store is required")

// AdapterConfig describes the dependencies of an Adapter.
type AdapterConfig struct {
	Store      kv.Store
	Key        string
	Clock      func() time.Time
	IDProvider notes.IDProvider
	Logger     *zap.Logger
}

// Adapter implements notes.Repository on top of a key-value store.
type Adapter struct {
	store      kv.Store
	key        string
	normalizer notes.Normalizer
	logger     *zap.Logger
}

// NewAdapter validates the configuration and returns an Adapter.
func NewAdapter(cfg AdapterConfig) (*Adapter, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	key := strings.TrimSpace(cfg.Key)
	if key == "" {
		key = DefaultKey
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = notes.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		store:      cfg.Store,
		key:        key,
		normalizer: notes.Normalizer{Clock: cfg.Clock, IDProvider: idProvider},
		logger:     logger,
	}, nil
}

// Key returns the key the collection is stored under.
func (a *Adapter) Key() string {
	return a.key
}

// Load reads and decodes the stored collection. It returns notes.ErrCollectionNotFound when the key
// is absent and a *notes.DecodeError when the value is not a JSON array.
func (a *Adapter) Load(ctx context.Context) ([]notes.Note, error) {
	value, found, err := a.store.Get(ctx, a.key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notes.ErrCollectionNotFound
	}

	collection, dropped, err := notes.DecodeCollection(a.key, []byte(value), a.normalizer)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		a.logger.Warn("dropped unreadable stored notes",
			zap.String("key", a.key),
			zap.Int("dropped", dropped))
	}
	return collection, nil
}

// Save overwrites the stored value with the full collection.
func (a *Adapter) Save(ctx context.Context, collection []notes.Note) error {
	payload, err := notes.EncodeCollection(collection, false)
	if err != nil {
		return &notes.PersistError{Key: a.key, Err: err}
	}
	if err := a.store.Set(ctx, a.key, string(payload)); err != nil {
		return &notes.PersistError{Key: a.key, Err: err}
	}
	return nil
}

// Package autosave delays persistence of rapid successive edits until input pauses.
package autosave

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/codenotes/internal/notes"
	"go.uber.org/zap"
)

// DefaultDelay is the pause after the last edit before it is written.
const DefaultDelay = 500 * time.Millisecond

var errMissingUpdater = errors.New("autosave: updater is required")

// Updater applies a content edit to a note.
type Updater interface {
	Update(ctx context.Context, id string, patch notes.Patch) (notes.Note, bool, error)
}

// Config describes the dependencies of a Debouncer.
type Config struct {
	Updater Updater
	Delay   time.Duration
	Context context.Context
	Logger  *zap.Logger
	// OnSaved runs after every write attempt, from the goroutine that performed it.
	OnSaved func(id string, found bool, err error)
}

// Debouncer keeps at most one pending content edit per note. Scheduling a newer edit for the
// same note replaces the pending one and restarts its timer.
type Debouncer struct {
	mu         sync.Mutex
	updater    Updater
	delay      time.Duration
	ctx        context.Context
	logger     *zap.Logger
	onSaved    func(id string, found bool, err error)
	pending    map[string]*pendingEdit
	generation uint64
	stopped    bool
	inflight   sync.WaitGroup

	// saveMu orders writes; written holds the newest generation written per note.
	saveMu  sync.Mutex
	written map[string]uint64
}

type pendingEdit struct {
	content    string
	generation uint64
	timer      *time.Timer
}

// New validates the configuration and returns a Debouncer.
func New(cfg Config) (*Debouncer, error) {
	if cfg.Updater == nil {
		return nil, errMissingUpdater
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{
		updater: cfg.Updater,
		delay:   delay,
		ctx:     ctx,
		logger:  logger,
		onSaved: cfg.OnSaved,
		pending: make(map[string]*pendingEdit),
		written: make(map[string]uint64),
	}, nil
}

// Schedule records the latest content for the note and (re)starts its timer.
// It returns false once the debouncer has been stopped.
func (d *Debouncer) Schedule(id, content string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}

	if existing, ok := d.pending[id]; ok {
		d.cancelLocked(existing)
	}

	d.generation++
	edit := &pendingEdit{content: content, generation: d.generation}
	d.inflight.Add(1)
	generation := edit.generation
	edit.timer = time.AfterFunc(d.delay, func() {
		d.fire(id, generation)
	})
	d.pending[id] = edit
	return true
}

// Pending returns the number of edits waiting for their timer.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Flush writes every pending edit immediately, in note id order.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	ids := make([]string, 0, len(d.pending))
	for id := range d.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	edits := make(map[string]pendingEdit, len(ids))
	for _, id := range ids {
		edit := d.pending[id]
		edits[id] = *edit
		d.cancelLocked(edit)
		delete(d.pending, id)
	}
	d.mu.Unlock()

	for _, id := range ids {
		d.save(id, edits[id].content, edits[id].generation)
	}
}

// Stop discards pending edits and waits for writes already in progress.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for id, edit := range d.pending {
		d.cancelLocked(edit)
		delete(d.pending, id)
	}
	d.mu.Unlock()
	d.inflight.Wait()
}

// cancelLocked stops the timer. When the callback already started it settles the wait group itself.
func (d *Debouncer) cancelLocked(edit *pendingEdit) {
	if edit.timer.Stop() {
		d.inflight.Done()
	}
}

func (d *Debouncer) fire(id string, generation uint64) {
	defer d.inflight.Done()

	d.mu.Lock()
	edit, ok := d.pending[id]
	if !ok || edit.generation != generation {
		d.mu.Unlock()
		return
	}
	delete(d.pending, id)
	d.mu.Unlock()

	d.save(id, edit.content, edit.generation)
}

// save writes one edit unless a newer edit of the same note was already written.
func (d *Debouncer) save(id, content string, generation uint64) {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()
	if d.written[id] >= generation {
		d.logger.Debug("autosave skipped, newer edit already written", zap.String("note_id", id))
		return
	}
	d.written[id] = generation

	_, found, err := d.updater.Update(d.ctx, id, notes.Patch{Content: &content})
	switch {
	case err != nil:
		d.logger.Error("autosave failed", zap.String("note_id", id), zap.Error(err))
	case !found:
		d.logger.Debug("autosave skipped, note no longer exists", zap.String("note_id", id))
	default:
		d.logger.Debug("autosave written", zap.String("note_id", id))
	}
	if d.onSaved != nil {
		d.onSaved(id, found, err)
	}
}

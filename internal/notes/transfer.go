package notes

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const exportDateLayout = "2006-01-02"

// ImportResult summarizes an ImportMany call.
type ImportResult struct {
	Added      []Note
	Duplicates int
	Rejected   int
}

// DecodeImport parses the contents of an import file.
func DecodeImport(data []byte) ([]ImportRecord, error) {
	return DecodeRecords("import", data)
}

// ImportMany normalizes the records, drops those whose id is already in the collection or earlier
// in the batch, and prepends the rest in import order. Existing notes are never modified.
func (s *Store) ImportMany(ctx context.Context, records []ImportRecord) (ImportResult, error) {
	s.mu.Lock()

	result := ImportResult{Added: make([]Note, 0, len(records))}
	batch := make(map[string]struct{}, len(records))
	normalizer := Normalizer{Clock: s.clock, IDProvider: reservingProvider{store: s, reserved: batch}}
	for _, record := range records {
		if record.Err() != nil {
			result.Rejected++
			continue
		}
		note, err := normalizer.Normalize(record)
		if err != nil {
			s.mu.Unlock()
			s.logError(opImport, reasonIDGeneration, err)
			return ImportResult{}, newServiceError(opImport, reasonIDGeneration, err)
		}
		if _, inBatch := batch[note.ID]; inBatch || s.indexOf(note.ID) >= 0 {
			result.Duplicates++
			continue
		}
		batch[note.ID] = struct{}{}
		result.Added = append(result.Added, note)
	}

	if len(result.Added) == 0 {
		s.mu.Unlock()
		s.logger.Info("import added no notes",
			zap.Int("duplicates", result.Duplicates),
			zap.Int("rejected", result.Rejected))
		return result, nil
	}

	merged := make([]Note, 0, len(result.Added)+len(s.notes))
	merged = append(merged, result.Added...)
	merged = append(merged, s.notes...)
	s.notes = merged

	persistErr := s.persist(ctx, opImport, zap.Int("added", len(result.Added)))
	s.logger.Info("notes imported",
		zap.Int("added", len(result.Added)),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("rejected", result.Rejected))
	s.unlockAndNotify(Change{Kind: ChangeImported, NoteIDs: collectIDs(result.Added), Notes: cloneNotes(s.notes)})
	return result, persistErr
}

// ExportAll returns the collection as indented JSON in its persisted shape.
func (s *Store) ExportAll() ([]byte, error) {
	payload, err := EncodeCollection(s.Notes(), true)
	if err != nil {
		s.logError(opExport, reasonEncodeFailed, err)
		return nil, newServiceError(opExport, reasonEncodeFailed, err)
	}
	return payload, nil
}

// ExportFileName returns the download name "<app>-export-YYYY-MM-DD.json" for the given day.
func ExportFileName(appName string, now time.Time) string {
	return fmt.Sprintf("%s-export-%s.json", appName, now.UTC().Format(exportDateLayout))
}

// reservingProvider issues ids that collide neither with the collection nor with the batch.
// It runs with s.mu held.
type reservingProvider struct {
	store    *Store
	reserved map[string]struct{}
}

func (p reservingProvider) NewID() (string, error) {
	return p.store.uniqueID(p.reserved)
}

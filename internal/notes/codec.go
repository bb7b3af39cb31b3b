package notes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	errInvalidJSON = errors.New("invalid json")
	errNotArray    = errors.New("top-level value is not an array")
)

// ImportRecord is a loosely typed note record read from storage or an import file.
// Records that do not have a note shape decode without error and report it through Err.
type ImportRecord struct {
	ID        string
	Title     string
	Content   string
	Language  string
	CreatedAt string
	UpdatedAt string

	hasTitle   bool
	hasContent bool
	invalid    error
}

// UnmarshalJSON decodes one array element, recording shape problems instead of failing the array.
func (r *ImportRecord) UnmarshalJSON(data []byte) error {
	*r = ImportRecord{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		r.invalid = fmt.Errorf("%w: not an object", ErrInvalidRecord)
		return nil
	}

	if raw, ok := presentField(fields, "id"); ok {
		r.ID = decodeIdentifier(raw)
	}
	if raw, ok := presentField(fields, "title"); ok {
		if err := json.Unmarshal(raw, &r.Title); err != nil {
			r.invalid = fmt.Errorf("%w: title is not a string", ErrInvalidRecord)
			return nil
		}
		r.hasTitle = true
	}
	if raw, ok := presentField(fields, "content"); ok {
		if err := json.Unmarshal(raw, &r.Content); err != nil {
			r.invalid = fmt.Errorf("%w: content is not a string", ErrInvalidRecord)
			return nil
		}
		r.hasContent = true
	}
	if !r.hasTitle && !r.hasContent {
		r.invalid = fmt.Errorf("%w: neither title nor content present", ErrInvalidRecord)
		return nil
	}

	r.Language = optionalString(fields, "language")
	r.CreatedAt = optionalString(fields, "createdAt")
	r.UpdatedAt = optionalString(fields, "updatedAt")
	return nil
}

// Err reports why the record was rejected, or nil for a usable record.
func (r ImportRecord) Err() error {
	return r.invalid
}

func presentField(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

// Ids written by older clients were numeric timestamps.
func decodeIdentifier(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String()
	}
	return ""
}

func optionalString(fields map[string]json.RawMessage, name string) string {
	raw, ok := presentField(fields, name)
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}

// DecodeRecords parses a JSON array of records. Input that is not JSON or not an array fails
// with a *DecodeError; individual malformed elements are reported through ImportRecord.Err.
func DecodeRecords(source string, data []byte) ([]ImportRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, &DecodeError{Source: source, Err: errInvalidJSON}
	}
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &DecodeError{Source: source, Err: errNotArray}
	}
	var records []ImportRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	return records, nil
}

// Normalizer fills defaults on decoded records.
type Normalizer struct {
	Clock      func() time.Time
	IDProvider IDProvider
}

func (n Normalizer) now() time.Time {
	clock := n.Clock
	if clock == nil {
		clock = time.Now
	}
	return truncateTimestamp(clock())
}

// Normalize converts a usable record into a Note: a missing id gets a fresh one, missing or
// unparseable timestamps become now, a missing or unknown language becomes plain text.
func (n Normalizer) Normalize(record ImportRecord) (Note, error) {
	if record.invalid != nil {
		return Note{}, record.invalid
	}

	id := strings.TrimSpace(record.ID)
	if id == "" {
		if n.IDProvider == nil {
			return Note{}, errMissingIDProvider
		}
		generated, err := n.IDProvider.NewID()
		if err != nil {
			return Note{}, err
		}
		id = generated
	}

	title := record.Title
	if !record.hasTitle {
		title = DefaultTitle
	}

	now := n.now()
	createdAt := parseTimestamp(record.CreatedAt, now)
	updatedAt := parseTimestamp(record.UpdatedAt, now)
	if updatedAt.Before(createdAt) {
		updatedAt = createdAt
	}

	return Note{
		ID:        id,
		Title:     title,
		Content:   record.Content,
		Language:  NormalizeLanguage(record.Language),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// DecodeCollection decodes a stored collection. Malformed elements and repeated ids are dropped;
// the number of dropped records is returned alongside the notes.
func DecodeCollection(source string, data []byte, normalizer Normalizer) ([]Note, int, error) {
	records, err := DecodeRecords(source, data)
	if err != nil {
		return nil, 0, err
	}

	collection := make([]Note, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	dropped := 0
	for _, record := range records {
		note, err := normalizer.Normalize(record)
		if err != nil {
			if errors.Is(err, ErrInvalidRecord) {
				dropped++
				continue
			}
			return nil, 0, err
		}
		if _, duplicate := seen[note.ID]; duplicate {
			dropped++
			continue
		}
		seen[note.ID] = struct{}{}
		collection = append(collection, note)
	}
	return collection, dropped, nil
}

// EncodeCollection serializes the collection as a JSON array, indented with two spaces when pretty is set.
func EncodeCollection(collection []Note, pretty bool) ([]byte, error) {
	values := cloneNotes(collection)
	if pretty {
		return json.MarshalIndent(values, "", "  ")
	}
	return json.Marshal(values)
}

func parseTimestamp(raw string, fallback time.Time) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	parsed, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return fallback
	}
	return truncateTimestamp(parsed)
}

func truncateTimestamp(value time.Time) time.Time {
	return value.UTC().Truncate(time.Millisecond)
}

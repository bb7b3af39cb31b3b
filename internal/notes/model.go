package notes

import (
	"encoding/json"
	"time"
)

const (
	// DefaultTitle is assigned to notes created without a title.
	DefaultTitle = "Untitled note"
	// WelcomeTitle is the title of the note seeded into an empty collection.
	WelcomeTitle = "Welcome to Code Notes"
	// WelcomeContent is the body of the seeded note.
	WelcomeContent = "Start typing to capture a thought or a snippet.\n\n" +
		"Pick a language to enable syntax highlighting. Edits are saved automatically.\n" +
		"Use export to download every note as JSON and import to bring them back."

	// TimestampLayout renders timestamps as ISO-8601 in UTC with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Note is a single user-authored text or code document.
type Note struct {
	ID        string
	Title     string
	Content   string
	Language  Language
	CreatedAt time.Time
	UpdatedAt time.Time
}

// noteRecord is the serialized shape of a note.
type noteRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Language  string `json:"language"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// MarshalJSON encodes the note in its persisted record shape.
func (n Note) MarshalJSON() ([]byte, error) {
	return json.Marshal(noteRecord{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Language:  string(n.Language),
		CreatedAt: FormatTimestamp(n.CreatedAt),
		UpdatedAt: FormatTimestamp(n.UpdatedAt),
	})
}

// FormatTimestamp renders a timestamp in the persisted layout.
func FormatTimestamp(value time.Time) string {
	return value.UTC().Format(TimestampLayout)
}

// Patch lists the fields an update may change. Nil fields are left untouched.
type Patch struct {
	Title    *string
	Content  *string
	Language *Language
}

// IsEmpty reports whether the patch carries no field changes.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Language == nil
}

func cloneNotes(source []Note) []Note {
	if source == nil {
		return []Note{}
	}
	cloned := make([]Note, len(source))
	copy(cloned, source)
	return cloned
}

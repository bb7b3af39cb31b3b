// Package highlight renders note content with syntax highlighting for terminals.
package highlight

import (
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/MarcoPoloResearchLab/codenotes/internal/notes"
)

const (
	DefaultStyle     = "monokai"
	FormatterTTY256  = "terminal256"
	FormatterNoColor = "noop"
)

// Chroma names its lexers differently for a few tags.
var lexerNames = map[notes.Language]string{
	notes.LanguagePlainText: "plaintext",
	notes.LanguageCPP:       "c++",
}

// Lexer returns the chroma lexer for the language, falling back to plain text.
func Lexer(language notes.Language) chroma.Lexer {
	name := string(language)
	if mapped, ok := lexerNames[language]; ok {
		name = mapped
	}
	lexer := lexers.Get(name)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

// Renderer writes highlighted note content.
type Renderer struct {
	formatter chroma.Formatter
	style     *chroma.Style
}

// NewRenderer resolves the formatter and style by name. Unknown names fall back to chroma defaults.
func NewRenderer(formatterName, styleName string) *Renderer {
	formatter := formatters.Get(formatterName)
	if formatter == nil {
		formatter = formatters.Fallback
	}
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	return &Renderer{formatter: formatter, style: style}
}

// Render writes the note's content highlighted for its language.
func (r *Renderer) Render(w io.Writer, note notes.Note) error {
	iterator, err := Lexer(note.Language).Tokenise(nil, note.Content)
	if err != nil {
		return fmt.Errorf("highlight: tokenise %s: %w", note.Language, err)
	}
	if err := r.formatter.Format(w, r.style, iterator); err != nil {
		return fmt.Errorf("highlight: format: %w", err)
	}
	return nil
}

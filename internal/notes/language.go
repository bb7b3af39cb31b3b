package notes

import "strings"

// Language is a syntax-highlighting tag attached to a note.
type Language string

const (
	LanguagePlainText  Language = "plaintext"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageHTML       Language = "html"
	LanguageCSS        Language = "css"
	LanguageLua        Language = "lua"
	LanguagePython     Language = "python"
	LanguageJava       Language = "java"
	LanguageCPP        Language = "cpp"
	LanguageJSON       Language = "json"
	LanguageMarkdown   Language = "markdown"
	LanguageXML        Language = "xml"
	LanguageSQL        Language = "sql"
	LanguagePHP        Language = "php"
	LanguageGo         Language = "go"
	LanguageRust       Language = "rust"
)

var supportedLanguages = []Language{
	LanguagePlainText,
	LanguageJavaScript,
	LanguageTypeScript,
	LanguageHTML,
	LanguageCSS,
	LanguageLua,
	LanguagePython,
	LanguageJava,
	LanguageCPP,
	LanguageJSON,
	LanguageMarkdown,
	LanguageXML,
	LanguageSQL,
	LanguagePHP,
	LanguageGo,
	LanguageRust,
}

var languageLabels = map[Language]string{
	LanguagePlainText:  "Plain Text",
	LanguageJavaScript: "JavaScript",
	LanguageTypeScript: "TypeScript",
	LanguageHTML:       "HTML",
	LanguageCSS:        "CSS",
	LanguageLua:        "Lua",
	LanguagePython:     "Python",
	LanguageJava:       "Java",
	LanguageCPP:        "C++",
	LanguageJSON:       "JSON",
	LanguageMarkdown:   "Markdown",
	LanguageXML:        "XML",
	LanguageSQL:        "SQL",
	LanguagePHP:        "PHP",
	LanguageGo:         "Go",
	LanguageRust:       "Rust",
}

var languageAliases = map[string]Language{
	"text":   LanguagePlainText,
	"txt":    LanguagePlainText,
	"plain":  LanguagePlainText,
	"js":     LanguageJavaScript,
	"ts":     LanguageTypeScript,
	"py":     LanguagePython,
	"c++":    LanguageCPP,
	"md":     LanguageMarkdown,
	"golang": LanguageGo,
	"rs":     LanguageRust,
}

// Languages returns the supported languages in display order.
func Languages() []Language {
	languages := make([]Language, len(supportedLanguages))
	copy(languages, supportedLanguages)
	return languages
}

// ParseLanguage resolves a tag, label or common alias. The boolean is false for unknown input.
func ParseLanguage(raw string) (Language, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return LanguagePlainText, false
	}
	candidate := Language(normalized)
	if _, ok := languageLabels[candidate]; ok {
		return candidate, true
	}
	if alias, ok := languageAliases[normalized]; ok {
		return alias, true
	}
	for language, label := range languageLabels {
		if strings.ToLower(label) == normalized {
			return language, true
		}
	}
	return LanguagePlainText, false
}

// NormalizeLanguage maps missing or unrecognized input to plain text.
func NormalizeLanguage(raw string) Language {
	language, _ := ParseLanguage(raw)
	return language
}

// Label returns the human readable name of the language.
func (l Language) Label() string {
	if label, ok := languageLabels[l]; ok {
		return label
	}
	return languageLabels[LanguagePlainText]
}

func (l Language) String() string {
	return string(l)
}

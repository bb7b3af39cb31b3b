package notes

import "testing"

func TestParseLanguage(t *testing.T) {
	testCases := []struct {
		input    string
		expected Language
		known    bool
	}{
		{input: "go", expected: LanguageGo, known: true},
		{input: " TypeScript ", expected: LanguageTypeScript, known: true},
		{input: "C++", expected: LanguageCPP, known: true},
		{input: "js", expected: LanguageJavaScript, known: true},
		{input: "Plain Text", expected: LanguagePlainText, known: true},
		{input: "", expected: LanguagePlainText, known: false},
		{input: "fortran", expected: LanguagePlainText, known: false},
	}
	for _, testCase := range testCases {
		language, known := ParseLanguage(testCase.input)
		if language != testCase.expected || known != testCase.known {
			t.Fatalf("ParseLanguage(%q) = (%s, %v), want (%s, %v)", testCase.input, language, known, testCase.expected, testCase.known)
		}
	}
}

func TestLanguagesAreCompleteAndLabelled(t *testing.T) {
	languages := Languages()
	if len(languages) != 16 {
		t.Fatalf("expected 16 languages, got %d", len(languages))
	}
	if languages[0] != LanguagePlainText {
		t.Fatalf("plain text should be listed first")
	}
	for _, language := range languages {
		if parsed, known := ParseLanguage(string(language)); !known || parsed != language {
			t.Fatalf("language %s does not round trip", language)
		}
		if language.Label() == "" {
			t.Fatalf("language %s has no label", language)
		}
	}
	languages[0] = LanguageRust
	if Languages()[0] != LanguagePlainText {
		t.Fatalf("Languages must return a copy")
	}
}

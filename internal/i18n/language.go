package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is the reply language for a request.
type Language int

const (
	English Language = iota
	Hebrew
)

// DefaultLanguage is used when the classifier gives no usable language.
const DefaultLanguage = English

var languages = []Language{English, Hebrew}

// Languages returns every supported language.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

func (l Language) String() string {
	switch l {
	case Hebrew:
		return "hebrew"
	default:
		return "english"
	}
}

// Tag returns the BCP 47 tag for l.
func (l Language) Tag() language.Tag {
	if l == Hebrew {
		return language.Hebrew
	}
	return language.English
}

var languageNames = map[string]Language{
	"english": English,
	"hebrew":  Hebrew,
	"אנגלית":  English,
	"עברית":   Hebrew,
	"ivrit":   Hebrew,
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Hebrew})

// ParseLanguage maps a free-text language name or code to a Language.
// ok is false when the value is not recognized.
func ParseLanguage(value string) (Language, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return DefaultLanguage, false
	}
	if lang, ok := languageNames[normalized]; ok {
		return lang, true
	}

	tag, err := language.Parse(normalized)
	if err != nil {
		return DefaultLanguage, false
	}
	_, index, confidence := matcher.Match(tag)
	if confidence < language.High {
		return DefaultLanguage, false
	}
	return languages[index], true
}

// Package langpolicy detects which script a message is written in and checks
// that model-generated text fields follow it.
package langpolicy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/omriShneor/alfred_scheduler/internal/i18n"
)

const (
	ScriptHebrew = "hebrew"
	ScriptLatin  = "latin"
)

type TargetLanguage struct {
	Language   i18n.Language
	Script     string
	Confidence float64
	Reliable   bool
}

// Label is the human-readable language name used in prompts.
func (t TargetLanguage) Label() string {
	if t.Language == i18n.Hebrew {
		return "Hebrew"
	}
	return "English"
}

type FieldMismatch struct {
	Field          string
	DetectedScript string
	Reason         string
}

type ValidationResult struct {
	CheckedFields int
	MatchedFields int
	SkippedFields int
	Mismatches    []FieldMismatch
}

func (r ValidationResult) IsMatch() bool {
	return len(r.Mismatches) == 0
}

var (
	tokenPattern = regexp.MustCompile(`[\p{L}\p{M}]+`)
	urlPattern   = regexp.MustCompile(`(?i)(https?://|www\.)`)
	emailPattern = regexp.MustCompile(`(?i)\b[\w.%+\-]+@[\w.\-]+\.[a-z]{2,}\b`)
)

// DetectTargetLanguage picks Hebrew when Hebrew letters make up a clear share
// of the text and English when the letters are Latin.
func DetectTargetLanguage(text string) TargetLanguage {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return TargetLanguage{}
	}

	hebrew, latin, total := countScripts(trimmed)
	if total == 0 {
		return TargetLanguage{}
	}

	hebrewRatio := float64(hebrew) / float64(total)
	if hebrew >= 2 && hebrewRatio >= 0.35 {
		return TargetLanguage{
			Language:   i18n.Hebrew,
			Script:     ScriptHebrew,
			Confidence: confidenceFromRatio(hebrewRatio),
			Reliable:   true,
		}
	}

	latinRatio := float64(latin) / float64(total)
	words := len(tokenPattern.FindAllString(trimmed, -1))
	if latin >= 4 && latinRatio >= 0.5 && words >= 2 {
		return TargetLanguage{
			Language:   i18n.English,
			Script:     ScriptLatin,
			Confidence: confidenceFromRatio(latinRatio),
			Reliable:   true,
		}
	}

	return TargetLanguage{Script: ScriptLatin, Confidence: 0.45}
}

// ValidateFieldsLanguage reports fields whose script differs from target.
// Empty values, URLs, emails and short single tokens are skipped.
func ValidateFieldsLanguage(target TargetLanguage, fields map[string]string) ValidationResult {
	result := ValidationResult{}
	if !target.Reliable {
		return result
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(fields[key])
		if isNeutralField(value) {
			result.SkippedFields++
			continue
		}

		result.CheckedFields++
		detected := DetectTargetLanguage(value)
		if !detected.Reliable {
			result.SkippedFields++
			continue
		}

		if detected.Script == target.Script {
			result.MatchedFields++
			continue
		}

		result.Mismatches = append(result.Mismatches, FieldMismatch{
			Field:          key,
			DetectedScript: detected.Script,
			Reason:         fmt.Sprintf("expected %s script, got %s script", target.Script, detected.Script),
		})
	}

	return result
}

func BuildLanguageInstruction(target TargetLanguage) string {
	if !target.Reliable {
		return ""
	}

	return fmt.Sprintf(
		"Write the title and notes in %s, the language of the message. Do not translate proper nouns, URLs, email addresses, or quoted literals.",
		target.Label(),
	)
}

func BuildCorrectiveRetryInstruction(target TargetLanguage, validation ValidationResult) string {
	if !target.Reliable {
		return ""
	}

	mismatchFields := make([]string, 0, len(validation.Mismatches))
	for _, mismatch := range validation.Mismatches {
		mismatchFields = append(mismatchFields, mismatch.Field)
	}

	fieldText := "the title and notes"
	if len(mismatchFields) > 0 {
		fieldText = strings.Join(mismatchFields, ", ")
	}

	return fmt.Sprintf(
		"Your previous output language did not match. Return %s in %s. Keep proper nouns, URLs, email addresses, and quoted literals unchanged.",
		fieldText,
		target.Label(),
	)
}

func confidenceFromRatio(ratio float64) float64 {
	confidence := 0.7 + ratio*0.28
	if confidence > 0.98 {
		confidence = 0.98
	}
	return confidence
}

func countScripts(text string) (hebrew, latin, total int) {
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++

		switch {
		case unicode.Is(unicode.Hebrew, r):
			hebrew++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	return hebrew, latin, total
}

func isNeutralField(value string) bool {
	if value == "" {
		return true
	}

	if emailPattern.MatchString(value) || urlPattern.MatchString(value) {
		return true
	}

	letters := 0
	for _, r := range value {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters == 0 {
		return true
	}

	// Short single tokens are usually names or brands (Zoom, WeWork).
	tokens := tokenPattern.FindAllString(value, -1)
	return len(tokens) <= 1 && letters <= 8
}

package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoJSONObject is returned when model output contains no JSON object.
var ErrNoJSONObject = errors.New("no JSON object in model output")

// ExtractJSONObject returns the first balanced {...} object in text. Braces
// inside string literals are ignored. An object left open at the end of the
// text is returned as-is so that it can be repaired.
func ExtractJSONObject(text string) (string, bool) {
	start := -1
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return text[start:], true
}

// DecodeJSONObject extracts the first JSON object from raw model output and
// decodes it into v, repairing it first if it does not parse.
func DecodeJSONObject(raw string, v any) error {
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return ErrNoJSONObject
	}

	err := json.Unmarshal([]byte(obj), v)
	if err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(obj)
	if repairErr != nil {
		return fmt.Errorf("decoding model JSON: %w (repair failed: %v)", err, repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decoding repaired model JSON: %w", err)
	}
	return nil
}

// InputJSON re-encodes a tool call's input so it can go through the same
// decoding path as free text.
func InputJSON(input map[string]any) string {
	if input == nil {
		return ""
	}
	b, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	return string(b)
}

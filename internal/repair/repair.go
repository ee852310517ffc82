// Package repair turns raw model output into a step suggestion. Model output
// is often truncated or wrapped in prose, so parsing degrades through strict
// decoding, bracket balancing and marker extraction before falling back to
// a fixed message. Nothing in this package panics or returns an error.
package repair

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ErrorSuggestion is shown when no guidance could be produced.
const ErrorSuggestion = "Sorry, I couldn't generate guidance for this step right now. You can still fill in the fields yourself and continue."

// Suggestion is the model's markdown advice plus pre-filled field values.
type Suggestion struct {
	Suggestion    string                     `json:"suggestion"`
	PreFilledData map[string]json.RawMessage `json:"pre_filled_data"`
}

// Default returns the suggestion used when parsing or the model call fails.
func Default() Suggestion {
	return Suggestion{Suggestion: ErrorSuggestion, PreFilledData: map[string]json.RawMessage{}}
}

// Parse decodes raw model output. The result always has a non-nil
// PreFilledData.
func Parse(raw string) (s Suggestion) {
	defer func() {
		if r := recover(); r != nil {
			s = Default()
		}
	}()

	if s, ok := decodeObject(raw); ok {
		return s
	}
	if balanced, ok := Balance(raw); ok {
		if s, ok := decodeObject(balanced); ok {
			return s
		}
	}
	return extract(raw)
}

// decodeObject strictly decodes text as a JSON object. A non-string
// suggestion keeps its JSON text; a missing or non-object pre_filled_data
// becomes empty.
func decodeObject(text string) (Suggestion, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return Suggestion{}, false
	}

	s := Suggestion{PreFilledData: map[string]json.RawMessage{}}
	if rawSugg, ok := obj["suggestion"]; ok {
		var str string
		if err := json.Unmarshal(rawSugg, &str); err == nil {
			s.Suggestion = str
		} else if string(rawSugg) != "null" {
			s.Suggestion = string(rawSugg)
		}
	}
	if rawData, ok := obj["pre_filled_data"]; ok {
		var data map[string]json.RawMessage
		if err := json.Unmarshal(rawData, &data); err == nil && data != nil {
			s.PreFilledData = data
		}
	}
	return s, true
}

var (
	suggestionMarker = regexp.MustCompile(`"suggestion"\s*:`)
	preFilledMarker  = regexp.MustCompile(`"pre_filled_data"\s*:`)
)

// extract pulls the suggestion string and the pre_filled_data value out of
// text that is not JSON as a whole.
func extract(text string) Suggestion {
	s := Suggestion{PreFilledData: map[string]json.RawMessage{}}

	rest := text
	if loc := suggestionMarker.FindStringIndex(text); loc != nil {
		body, end := quoted(text[loc[1]:])
		s.Suggestion = unescape(body)
		rest = text[loc[1]+end:]
	}

	// pre_filled_data usually follows the suggestion but may come first.
	loc := preFilledMarker.FindStringIndex(rest)
	if loc == nil {
		rest = text
		loc = preFilledMarker.FindStringIndex(rest)
	}
	if loc == nil {
		return s
	}
	fragment := firstValue(rest[loc[1]:])
	if fragment == "" {
		return s
	}
	balanced, ok := Balance(fragment)
	if !ok {
		return s
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal([]byte(balanced), &data); err == nil && data != nil {
		s.PreFilledData = data
	}
	return s
}

// quoted returns the body of the first double-quoted string in text and the
// offset just past it. An unterminated string runs to the end of text.
func quoted(text string) (string, int) {
	start := strings.IndexByte(text, '"')
	if start < 0 {
		return "", 0
	}
	escaped := false
	for i := start + 1; i < len(text); i++ {
		switch {
		case escaped:
			escaped = false
		case text[i] == '\\':
			escaped = true
		case text[i] == '"':
			return text[start+1 : i], i + 1
		}
	}
	return text[start+1:], len(text)
}

func unescape(body string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+body+`"`), &out); err == nil {
		return out
	}
	return body
}

// firstValue trims text to its first top-level object or array. The value
// may be unterminated.
func firstValue(text string) string {
	text = strings.TrimLeft(text, " \t\r\n")
	if text == "" || (text[0] != '{' && text[0] != '[') {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return text
}

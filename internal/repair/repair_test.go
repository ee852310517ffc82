package repair

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParse_ValidJSONIdentity(t *testing.T) {
	raw := `{"suggestion": "Think **long term**.\nAsk a mentor.", "pre_filled_data": {"decision_statement": "Move?", "key_areas": ["cost", "visa"]}}`

	got := Parse(raw)
	if got.Suggestion != "Think **long term**.\nAsk a mentor." {
		t.Errorf("Suggestion = %q", got.Suggestion)
	}
	if string(got.PreFilledData["decision_statement"]) != `"Move?"` {
		t.Errorf("decision_statement = %s", got.PreFilledData["decision_statement"])
	}
	if string(got.PreFilledData["key_areas"]) != `["cost", "visa"]` {
		t.Errorf("key_areas = %s", got.PreFilledData["key_areas"])
	}
	if len(got.PreFilledData) != 2 {
		t.Errorf("PreFilledData has %d keys, want 2", len(got.PreFilledData))
	}
}

func TestParse_MissingPreFilledData(t *testing.T) {
	got := Parse(`{"suggestion": "ok"}`)
	if got.Suggestion != "ok" {
		t.Errorf("Suggestion = %q", got.Suggestion)
	}
	if got.PreFilledData == nil || len(got.PreFilledData) != 0 {
		t.Errorf("PreFilledData = %v, want empty map", got.PreFilledData)
	}
}

func TestParse_NonObjectPreFilledData(t *testing.T) {
	for _, raw := range []string{
		`{"suggestion": "ok", "pre_filled_data": null}`,
		`{"suggestion": "ok", "pre_filled_data": [1, 2]}`,
		`{"suggestion": "ok", "pre_filled_data": "x"}`,
	} {
		got := Parse(raw)
		if got.PreFilledData == nil || len(got.PreFilledData) != 0 {
			t.Errorf("Parse(%s).PreFilledData = %v, want empty", raw, got.PreFilledData)
		}
	}
}

func TestParse_MissingClosingBrace(t *testing.T) {
	got := Parse(`{"suggestion": "ok", "pre_filled_data": {"a": "b"}`)
	if got.Suggestion != "ok" {
		t.Errorf("Suggestion = %q, want ok", got.Suggestion)
	}
	if string(got.PreFilledData["a"]) != `"b"` {
		t.Errorf("a = %s, want \"b\"", got.PreFilledData["a"])
	}
}

func TestParse_TruncatedMidString(t *testing.T) {
	got := Parse(`{"suggestion": "Consider your fina`)
	if got.Suggestion != "Consider your fina" {
		t.Errorf("Suggestion = %q", got.Suggestion)
	}
	if got.PreFilledData == nil {
		t.Error("PreFilledData is nil")
	}
}

func TestParse_PlainProse(t *testing.T) {
	got := Parse("I think you should take the job. It sounds great!")
	if got.Suggestion != "" {
		t.Errorf("Suggestion = %q, want empty", got.Suggestion)
	}
	if got.PreFilledData == nil || len(got.PreFilledData) != 0 {
		t.Errorf("PreFilledData = %v, want empty", got.PreFilledData)
	}
}

func TestParse_ProseWithMarker(t *testing.T) {
	raw := "Sure! Here is my answer:\n```json\n{\"suggestion\": \"Say \\\"yes\\\" to growth\", \"pre_filled_data\": {\"options\": [{\"name\": \"Stay\"}]}}\n```\nGood luck."
	got := Parse(raw)
	if got.Suggestion != `Say "yes" to growth` {
		t.Errorf("Suggestion = %q", got.Suggestion)
	}
	if string(got.PreFilledData["options"]) != `[{"name": "Stay"}]` {
		t.Errorf("options = %s", got.PreFilledData["options"])
	}
}

func TestParse_MarkerWithBrokenData(t *testing.T) {
	got := Parse(`Answer: "suggestion": "be bold" and "pre_filled_data": oops`)
	if got.Suggestion != "be bold" {
		t.Errorf("Suggestion = %q", got.Suggestion)
	}
	if len(got.PreFilledData) != 0 {
		t.Errorf("PreFilledData = %v, want empty", got.PreFilledData)
	}
}

func TestParse_PreFilledDataBeforeSuggestion(t *testing.T) {
	// The stray bracket defeats strict decoding and balancing.
	got := Parse(`{"pre_filled_data": {"a": "b"}, "suggestion": "hi"]`)
	if got.Suggestion != "hi" {
		t.Errorf("Suggestion = %q, want hi", got.Suggestion)
	}
	if string(got.PreFilledData["a"]) != `"b"` {
		t.Errorf("PreFilledData = %v, want a=b", got.PreFilledData)
	}
}

func TestParse_PreFilledDataWithoutSuggestion(t *testing.T) {
	got := Parse(`Here you go: "pre_filled_data": {"options": ["Stay", "Move"]`)
	if got.Suggestion != "" {
		t.Errorf("Suggestion = %q, want empty", got.Suggestion)
	}
	if string(got.PreFilledData["options"]) != `["Stay", "Move"]` {
		t.Errorf("options = %s", got.PreFilledData["options"])
	}
}

func TestParse_NonStringSuggestion(t *testing.T) {
	got := Parse(`{"suggestion": ["a", "b"], "pre_filled_data": {}}`)
	if got.Suggestion != `["a", "b"]` {
		t.Errorf("Suggestion = %q", got.Suggestion)
	}
}

func TestParse_NeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"{",
		"}",
		"]]]]",
		`"`,
		`\`,
		`{"suggestion":`,
		`{"suggestion": "\`,
		`"suggestion": "\u12`,
		`"pre_filled_data": {"a": [`,
		`{"pre_filled_data": {"a": "b"}, "suggestion": 5`,
		"\x00\xff\xfe",
		strings.Repeat("[", 5000),
		strings.Repeat(`{"a":`, 2000),
	}
	for _, in := range inputs {
		got := Parse(in)
		if got.PreFilledData == nil {
			t.Errorf("Parse(%q).PreFilledData is nil", in)
		}
		if _, err := json.Marshal(got); err != nil {
			t.Errorf("Parse(%q) result does not marshal: %v", in, err)
		}
	}
}

func TestDefault(t *testing.T) {
	d := Default()
	if d.Suggestion != ErrorSuggestion {
		t.Errorf("Suggestion = %q", d.Suggestion)
	}
	data, _ := json.Marshal(d)
	if !strings.Contains(string(data), `"pre_filled_data":{}`) {
		t.Errorf("Default marshals to %s", data)
	}
}

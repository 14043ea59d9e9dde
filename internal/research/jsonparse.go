package research

import (
	"encoding/json"
	"strings"
)

// ParseJSONFromResponse implements the JSON parsing contract of spec.md
// §4.3: direct JSON, a fenced ```json code block, a bare fenced code block,
// or the substring from the first brace to the last balanced brace. An
// empty or unparseable response yields an empty object, never an error to
// the caller.
//
// Grounded on the original implementation's _parse_json_from_response and
// its ParseJsonFromResponseTest cases (direct/fenced/bare-fenced/surrounding
// text/empty/no-JSON), and on the teacher's substring-extraction idiom in
// internal/agents/search.go's parseStringArray/parseFactsArray.
func ParseJSONFromResponse(raw string) map[string]any {
	text := strings.TrimSpace(raw)
	if text == "" {
		return map[string]any{}
	}

	candidates := []string{text}
	if fenced, ok := extractFenced(text, "```json"); ok {
		candidates = append([]string{fenced}, candidates...)
	}
	if fenced, ok := extractFenced(text, "```"); ok {
		candidates = append([]string{fenced}, candidates...)
	}
	if sub, ok := extractBraceSpan(text); ok {
		candidates = append(candidates, sub)
	}

	for _, candidate := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &obj); err == nil {
			return obj
		}
	}
	return map[string]any{}
}

// ParseJSONArrayFromResponse is the array-shaped counterpart, used by the
// Evaluate phase, which expects a top-level JSON array of evaluations.
func ParseJSONArrayFromResponse(raw string) []any {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	candidates := []string{text}
	if fenced, ok := extractFenced(text, "```json"); ok {
		candidates = append([]string{fenced}, candidates...)
	}
	if fenced, ok := extractFenced(text, "```"); ok {
		candidates = append([]string{fenced}, candidates...)
	}
	if sub, ok := extractBracketSpan(text); ok {
		candidates = append(candidates, sub)
	}

	for _, candidate := range candidates {
		var arr []any
		if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &arr); err == nil {
			return arr
		}
	}
	return nil
}

func extractFenced(text, marker string) (string, bool) {
	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(marker):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

func extractBraceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}
	for end := strings.LastIndex(text, "}"); end > start; end = strings.LastIndex(text[:end], "}") {
		if json.Valid([]byte(text[start : end+1])) {
			return text[start : end+1], true
		}
	}
	return "", false
}

func extractBracketSpan(text string) (string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// DecodeInto unmarshals a map[string]any (as produced by
// ParseJSONFromResponse) into a typed value via a JSON re-encode/decode
// round trip, which is robust to the loosely-typed map shape LLM JSON
// output produces.
func DecodeInto(dict map[string]any, out any) error {
	raw, err := json.Marshal(dict)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// DecodeArrayInto is DecodeInto's array counterpart.
func DecodeArrayInto(arr []any, out any) error {
	raw, err := json.Marshal(arr)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

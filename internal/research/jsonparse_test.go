package research

import "testing"

func TestParseJSONFromResponseDirect(t *testing.T) {
	got := ParseJSONFromResponse(`{"complete": true}`)
	if got["complete"] != true {
		t.Errorf("expected complete=true, got %v", got)
	}
}

func TestParseJSONFromResponseFencedJSON(t *testing.T) {
	got := ParseJSONFromResponse("```json\n{\"complete\": true}\n```")
	if got["complete"] != true {
		t.Errorf("expected complete=true, got %v", got)
	}
}

func TestParseJSONFromResponseBareFenced(t *testing.T) {
	got := ParseJSONFromResponse("```\n{\"complete\": false}\n```")
	if got["complete"] != false {
		t.Errorf("expected complete=false, got %v", got)
	}
}

func TestParseJSONFromResponseSurroundingText(t *testing.T) {
	got := ParseJSONFromResponse("Here is the result:\n{\"complete\": true}\nThanks.")
	if got["complete"] != true {
		t.Errorf("expected complete=true, got %v", got)
	}
}

func TestParseJSONFromResponseEmpty(t *testing.T) {
	got := ParseJSONFromResponse("")
	if len(got) != 0 {
		t.Errorf("expected empty object, got %v", got)
	}
}

func TestParseJSONFromResponseNoJSON(t *testing.T) {
	got := ParseJSONFromResponse("This is not JSON at all")
	if len(got) != 0 {
		t.Errorf("expected empty object, got %v", got)
	}
}

func TestParseJSONArrayFromResponse(t *testing.T) {
	got := ParseJSONArrayFromResponse(`[{"finding_index": 0, "relevance_score": 0.9}]`)
	if len(got) != 1 {
		t.Errorf("expected 1 element, got %d", len(got))
	}
}

func TestParseJSONArrayFromResponseEmpty(t *testing.T) {
	got := ParseJSONArrayFromResponse("")
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

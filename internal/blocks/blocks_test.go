package blocks

import "testing"

func TestParseEmptyInput(t *testing.T) {
	got := Parse("")
	if len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}

func TestParseHeadingLevel(t *testing.T) {
	got := Parse("# Summary\n\nResult.")
	if len(got) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %v", len(got), got)
	}
	if got[0].Type != "heading" {
		t.Errorf("expected heading, got %s", got[0].Type)
	}
	if got[0].Metadata["level"] != "1" {
		t.Errorf("expected level 1, got %s", got[0].Metadata["level"])
	}
	if got[1].Type != "paragraph" || got[1].Content != "Result." {
		t.Errorf("expected paragraph 'Result.', got %+v", got[1])
	}
}

func TestParseNestedHeadingLevels(t *testing.T) {
	got := Parse("## Sub\ntext")
	if got[0].Metadata["level"] != "2" {
		t.Errorf("expected level 2, got %s", got[0].Metadata["level"])
	}
}

func TestParseListItems(t *testing.T) {
	got := Parse("- one\n* two\n1. three")
	if len(got) != 3 {
		t.Fatalf("expected 3 list items, got %d", len(got))
	}
	for i, want := range []string{"one", "two", "three"} {
		if got[i].Type != "list_item" {
			t.Errorf("item %d: expected list_item, got %s", i, got[i].Type)
		}
		if got[i].Content != want {
			t.Errorf("item %d: expected %q, got %q", i, want, got[i].Content)
		}
	}
}

func TestParseEveryBlockHasID(t *testing.T) {
	got := Parse("# H\n\npara one\n\n- item")
	for i, b := range got {
		if b.ID == "" {
			t.Errorf("block %d has empty id", i)
		}
	}
}

func TestParseIdempotent(t *testing.T) {
	md := "# Heading\n\nParagraph text.\n\n- item one\n- item two\n"
	first := Parse(md)

	var rebuilt string
	for _, b := range first {
		switch b.Type {
		case "heading":
			rebuilt += "# " + b.Content + "\n\n"
		case "paragraph":
			rebuilt += b.Content + "\n\n"
		case "list_item":
			rebuilt += "- " + b.Content + "\n"
		}
	}

	second := Parse(rebuilt)
	if len(second) != len(first) {
		t.Fatalf("not idempotent: first=%d blocks, second=%d blocks", len(first), len(second))
	}
	for i := range first {
		if first[i].Type != second[i].Type || first[i].Content != second[i].Content {
			t.Errorf("block %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

package loop

import (
	"context"
	"fmt"
	"testing"

	"github.com/aperturelabs/deepquery/internal/research"
	"github.com/aperturelabs/deepquery/internal/tools"
)

func TestRunCompactionKeepsTopScoredFindings(t *testing.T) {
	provider := &fakeProvider{compact: "digest text"}
	l := New(testConfig(), "", provider, tools.NewEmptyRegistry())

	st := newRunState("q", research.ResearchContext{})
	const n = 20
	for i := 0; i < n; i++ {
		score := float64(i) / float64(n) // 0.0 .. 0.95, strictly increasing
		st.findings = append(st.findings, research.ScoredFinding{
			Finding:        research.Finding{RawQuote: fmt.Sprintf("finding-%d", i), Source: research.SearchResult{URL: fmt.Sprintf("http://x/%d", i)}},
			RelevanceScore: score,
			QualityScore:   score,
		})
	}

	l.runCompaction(context.Background(), st)

	wantKept := 12 // ceil(20*0.6)
	if len(st.findings) != wantKept+1 {
		t.Fatalf("findings length = %d, want %d (kept + digest)", len(st.findings), wantKept+1)
	}

	// The highest-scored findings (8..19) must survive; the lowest (0..7)
	// must not appear among the kept, non-digest findings.
	keptQuotes := make(map[string]bool)
	for _, f := range st.findings[:wantKept] {
		keptQuotes[f.Finding.RawQuote] = true
	}
	for i := n - wantKept; i < n; i++ {
		q := fmt.Sprintf("finding-%d", i)
		if !keptQuotes[q] {
			t.Errorf("expected top-scored %q to survive compaction", q)
		}
	}
	for i := 0; i < n-wantKept; i++ {
		q := fmt.Sprintf("finding-%d", i)
		if keptQuotes[q] {
			t.Errorf("low-scored %q should have been dropped by compaction", q)
		}
	}

	digest := st.findings[len(st.findings)-1]
	if digest.Finding.ExtractedFields["digest"].Text != "digest text" {
		t.Errorf("digest finding text = %q, want %q", digest.Finding.ExtractedFields["digest"].Text, "digest text")
	}
}

func TestRunCompactionNoDigestWhenNothingDropped(t *testing.T) {
	provider := &fakeProvider{}
	l := New(testConfig(), "", provider, tools.NewEmptyRegistry())

	st := newRunState("q", research.ResearchContext{})
	st.findings = []research.ScoredFinding{
		{Finding: research.Finding{RawQuote: "only one"}, RelevanceScore: 1, QualityScore: 1},
	}

	l.runCompaction(context.Background(), st)

	if len(st.findings) != 1 {
		t.Fatalf("findings length = %d, want 1 (nothing to drop, no digest appended)", len(st.findings))
	}
}

func TestRunExtractSkipsOutOfRangeSourceIndices(t *testing.T) {
	provider := &fakeProvider{
		extract: `{"findings":[{"source_index":5,"raw_quote":"out of range"},{"source_index":0,"raw_quote":"in range","extracted_fields":{}}]}`,
	}
	l := New(testConfig(), "", provider, tools.NewEmptyRegistry())

	st := newRunState("q", research.ResearchContext{})
	results := []research.SearchResult{{URL: "http://a"}}

	findings := l.runExtract(context.Background(), st, results)
	if len(findings) != 1 {
		t.Fatalf("findings length = %d, want 1 (out-of-range source_index dropped)", len(findings))
	}
	if findings[0].RawQuote != "in range" {
		t.Errorf("RawQuote = %q, want %q", findings[0].RawQuote, "in range")
	}
}

func TestRunCompletenessMaxSourcesShortCircuit(t *testing.T) {
	provider := &fakeProvider{}
	cfg := testConfig()
	cfg.Search.Budget.MaxSources = 2
	cfg.Completeness.MaxSources = 2
	l := New(cfg, "", provider, tools.NewEmptyRegistry())

	st := newRunState("q", research.ResearchContext{})
	st.findings = []research.ScoredFinding{{}, {}}

	complete := l.runCompleteness(context.Background(), st)
	if !complete {
		t.Error("runCompleteness should short-circuit complete=true at the max_sources ceiling")
	}
	if provider.callCount("completeness") != 0 {
		t.Errorf("completeness provider called %d times, want 0", provider.callCount("completeness"))
	}
}

func TestRunCompletenessProviderErrorYieldsNotComplete(t *testing.T) {
	provider := &fakeProvider{errOn: map[string]error{"completeness": fmt.Errorf("provider down")}}
	l := New(testConfig(), "", provider, tools.NewEmptyRegistry())

	st := newRunState("q", research.ResearchContext{})
	st.findings = []research.ScoredFinding{{}}

	complete := l.runCompleteness(context.Background(), st)
	if complete {
		t.Error("runCompleteness should yield not-complete when the provider call fails")
	}
}

package loop

import (
	"context"
	"testing"

	"github.com/aperturelabs/deepquery/internal/checkpoint"
	"github.com/aperturelabs/deepquery/internal/research"
	"github.com/aperturelabs/deepquery/internal/tools"
)

func TestNextPhaseAfterCheckpoint(t *testing.T) {
	cases := []struct {
		name           string
		cpPhase        string
		followupsEmpty bool
		want           phase
	}{
		{"plan", checkpoint.PhasePlan, true, phaseIterate},
		{"search", checkpoint.PhaseSearch, true, phaseExtract},
		{"extract", checkpoint.PhaseExtract, true, phaseEvaluate},
		{"evaluate empty followups", checkpoint.PhaseEvaluate, true, phaseSynthesize},
		{"evaluate nonempty followups", checkpoint.PhaseEvaluate, false, phaseCompactionDecision},
		{"compact", checkpoint.PhaseCompact, true, phaseCompleteness},
		{"completeness", checkpoint.PhaseCompleteness, true, phaseIterate},
		{"unknown", "garbage", true, phasePlan},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextPhaseAfterCheckpoint(tc.cpPhase, tc.followupsEmpty)
			if got != tc.want {
				t.Errorf("nextPhaseAfterCheckpoint(%q, %v) = %q, want %q", tc.cpPhase, tc.followupsEmpty, got, tc.want)
			}
		})
	}
}

func TestResumeFromCheckpointContinuesFromCompletenessPhase(t *testing.T) {
	priorFindings := []research.ScoredFinding{
		{
			Finding:        research.Finding{RawQuote: "prior finding", Source: research.SearchResult{URL: "http://prior"}},
			RelevanceScore: 0.7,
			QualityScore:   0.6,
		},
	}
	findingsArr := findingsToAny(priorFindings)

	planMap, err := planToMap(research.Plan{
		SubQueries: []research.SubQuery{{Query: "q1"}},
		Followups:  []research.SubQuery{{Query: "follow-up question"}},
	})
	if err != nil {
		t.Fatalf("encode plan: %v", err)
	}

	cp := checkpoint.Checkpoint{
		CorrelationID: "2026-01-01-deadbeef",
		Question:      "what happened",
		Iteration:     1,
		Phase:         checkpoint.PhaseCompleteness,
		TotalSources:  1,
		Plan:          planMap,
		Findings:      findingsArr,
	}

	provider := &fakeProvider{
		extract:      `{"findings":[{"source_index":0,"raw_quote":"new finding","extracted_fields":{}}]}`,
		evaluate:     `{"evaluations":[{"finding_index":0,"relevance_score":0.8,"quality_score":0.9}]}`,
		completeness: []string{`{"complete":true}`},
		synthesize:   "resumed report",
	}
	registry := tools.NewEmptyRegistry()
	registry.Register(&fakeTool{name: "search", results: []research.SearchResult{{URL: "http://fresh"}}})

	result, err := ResumeFromCheckpoint(context.Background(), cp, testConfig(), "", provider, registry)
	if err != nil {
		t.Fatalf("ResumeFromCheckpoint returned error: %v", err)
	}
	if !result.Metadata.ResumedFromCheckpoint {
		t.Error("ResumedFromCheckpoint should be true")
	}
	if result.Metadata.ResumedAtIteration != 1 {
		t.Errorf("ResumedAtIteration = %d, want 1", result.Metadata.ResumedAtIteration)
	}
	if result.Content != "resumed report" {
		t.Errorf("Content = %q, want resumed report", result.Content)
	}
	if len(result.Findings) != 2 {
		t.Fatalf("Findings length = %d, want 2 (1 prior + 1 from the resumed search/extract/evaluate round)", len(result.Findings))
	}
}

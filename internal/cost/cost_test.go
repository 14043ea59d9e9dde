package cost

import "testing"

func TestRecordAccumulatesTotalAndPhase(t *testing.T) {
	tr := NewTracker("openai/gpt-4o-mini")
	tr.Record("extract", 1000, 200, 0)
	tr.Record("evaluate", 500, 100, 0)

	total := tr.Total()
	if total.InputTokens != 1500 || total.OutputTokens != 300 {
		t.Fatalf("Total() = %+v, want input=1500 output=300", total)
	}
	if total.TotalCost <= 0 {
		t.Error("TotalCost should be positive for a priced model")
	}

	extract := tr.Phase("extract")
	if extract.InputTokens != 1000 {
		t.Errorf("Phase(extract).InputTokens = %d, want 1000", extract.InputTokens)
	}
}

func TestPhaseUnknownReturnsZeroValue(t *testing.T) {
	tr := NewTracker("openai/gpt-4o-mini")
	if got := tr.Phase("never-recorded"); got != (Breakdown{}) {
		t.Errorf("Phase(unknown) = %+v, want zero value", got)
	}
}

func TestNewBreakdownDerivesTotalTokens(t *testing.T) {
	b := NewBreakdown("openai/gpt-4o-mini", 100, 50, 0)
	if b.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want 150", b.TotalTokens)
	}
}

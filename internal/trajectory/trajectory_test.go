package trajectory

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRecordTruncatesLongFields(t *testing.T) {
	r := New("run-1")
	long := strings.Repeat("x", MaxPromptChars+500)
	r.Record("extract", long, long, long, nil, 10)

	summary := r.Finalize()
	if len(summary.Events) != 1 {
		t.Fatalf("Events = %d, want 1", len(summary.Events))
	}
	if len(summary.Events[0].InputSummary) != MaxPromptChars {
		t.Errorf("InputSummary len = %d, want %d", len(summary.Events[0].InputSummary), MaxPromptChars)
	}
}

func TestFinalizeAggregatesDuration(t *testing.T) {
	r := New("run-2")
	r.Record("plan", "q", "p", "", nil, 100)
	r.Record("search", "q", "p", "", nil, 250)

	summary := r.Finalize()
	if summary.TotalSteps != 2 {
		t.Errorf("TotalSteps = %d, want 2", summary.TotalSteps)
	}
	if summary.TotalDurationMs != 350 {
		t.Errorf("TotalDurationMs = %d, want 350", summary.TotalDurationMs)
	}
	if summary.CorrelationID != "run-2" {
		t.Errorf("CorrelationID = %q, want run-2", summary.CorrelationID)
	}
}

type fakeSink struct {
	called        bool
	correlationID string
	recordCount   int
	err           error
}

func (f *fakeSink) Publish(ctx context.Context, correlationID string, records []Record) error {
	f.called = true
	f.correlationID = correlationID
	f.recordCount = len(records)
	return f.err
}

func TestSaveCallsSink(t *testing.T) {
	r := New("run-3")
	r.Record("plan", "q", "p", "", nil, 1)

	sink := &fakeSink{}
	r.Save(context.Background(), sink)

	if !sink.called {
		t.Fatal("sink.Publish was not called")
	}
	if sink.correlationID != "run-3" || sink.recordCount != 1 {
		t.Errorf("sink got correlationID=%q recordCount=%d, want run-3/1", sink.correlationID, sink.recordCount)
	}
}

func TestSaveSwallowsSinkError(t *testing.T) {
	r := New("run-4")
	r.Record("plan", "q", "p", "", nil, 1)

	sink := &fakeSink{err: errors.New("disk full")}
	r.Save(context.Background(), sink) // must not panic
}

func TestSaveNilSinkNoop(t *testing.T) {
	r := New("run-5")
	r.Save(context.Background(), nil) // must not panic
}

// Package trajectory records an append-only, per-step audit log of a Loop
// run: what each phase was given, what it produced, and why.
package trajectory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// MaxPromptChars bounds every free-text field recorded, so a pathological
// prompt or response can't blow up a trajectory dump.
const MaxPromptChars = 4000

// Record is one phase's audit entry.
type Record struct {
	StepName          string         `json:"step_name"`
	InputSummary      string         `json:"input_summary"`
	OutputSummary     string         `json:"output_summary"`
	DecisionRationale string         `json:"decision_rationale"`
	Metrics           map[string]any `json:"metrics,omitempty"`
	DurationMs        int64          `json:"duration_ms"`
	Timestamp         time.Time      `json:"timestamp"`
}

// EventSink is the opaque collaborator a Recorder pushes its aggregate
// through on Save. A Sink failure is logged by the Recorder, never raised.
type EventSink interface {
	Publish(ctx context.Context, correlationID string, records []Record) error
}

// Recorder accumulates Records for one correlation id.
type Recorder struct {
	mu            sync.Mutex
	correlationID string
	records       []Record
}

// New creates a Recorder for correlationID.
func New(correlationID string) *Recorder {
	return &Recorder{correlationID: correlationID}
}

// Record appends one audit entry, truncating free-text fields to
// MaxPromptChars.
func (r *Recorder) Record(stepName, inputSummary, outputSummary, decisionRationale string, metrics map[string]any, durationMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, Record{
		StepName:          stepName,
		InputSummary:      truncate(inputSummary, MaxPromptChars),
		OutputSummary:     truncate(outputSummary, MaxPromptChars),
		DecisionRationale: truncate(decisionRationale, MaxPromptChars),
		Metrics:           metrics,
		DurationMs:        durationMs,
		Timestamp:         time.Now(),
	})
}

// Save pushes the accumulated records through sink. Errors are logged to
// stderr and swallowed — trajectory persistence is best-effort and must
// never abort the Loop.
func (r *Recorder) Save(ctx context.Context, sink EventSink) {
	if sink == nil {
		return
	}
	r.mu.Lock()
	snapshot := make([]Record, len(r.records))
	copy(snapshot, r.records)
	r.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			fmt.Fprintf(os.Stderr, "trajectory: sink panic for %s: %v\n", r.correlationID, rec)
		}
	}()

	if err := sink.Publish(ctx, r.correlationID, snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "trajectory: save failed for %s: %v\n", r.correlationID, err)
	}
}

// Summary is the finalized view returned by Finalize.
type Summary struct {
	CorrelationID    string   `json:"correlation_id"`
	TotalSteps       int      `json:"total_steps"`
	TotalDurationMs  int64    `json:"total_duration_ms"`
	Events           []Record `json:"events"`
}

// Finalize produces an immutable summary of every recorded step.
func (r *Recorder) Finalize() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	events := make([]Record, len(r.records))
	copy(events, r.records)
	for _, rec := range r.records {
		total += rec.DurationMs
	}

	return Summary{
		CorrelationID:   r.correlationID,
		TotalSteps:      len(r.records),
		TotalDurationMs: total,
		Events:          events,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

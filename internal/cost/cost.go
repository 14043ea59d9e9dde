// Package cost accumulates per-phase token usage and estimates a running
// dollar cost from a model price table. It never influences control flow.
package cost

import (
	"sync"

	"github.com/aperturelabs/deepquery/internal/llm"
)

// Breakdown is a single accumulation of token usage and derived cost.
type Breakdown struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	InputCost    float64
	OutputCost   float64
	TotalCost    float64
}

// Add merges other into the receiver.
func (b *Breakdown) Add(other Breakdown) {
	b.InputTokens += other.InputTokens
	b.OutputTokens += other.OutputTokens
	b.TotalTokens += other.TotalTokens
	b.InputCost += other.InputCost
	b.OutputCost += other.OutputCost
	b.TotalCost += other.TotalCost
}

// NewBreakdown prices inputTokens/outputTokens against model's rate card.
func NewBreakdown(model string, inputTokens, outputTokens, totalTokens int) Breakdown {
	if totalTokens == 0 {
		totalTokens = inputTokens + outputTokens
	}
	inputCost, outputCost, totalCost := llm.CalculateCost(model, inputTokens, outputTokens)
	return Breakdown{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  totalTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    totalCost,
	}
}

// Tracker accumulates Breakdowns per phase and overall, for a single Loop run.
type Tracker struct {
	mu       sync.Mutex
	model    string
	total    Breakdown
	byPhase  map[string]Breakdown
}

// NewTracker creates a Tracker pricing usage against model.
func NewTracker(model string) *Tracker {
	return &Tracker{
		model:   model,
		byPhase: make(map[string]Breakdown),
	}
}

// Record adds token usage observed during phase to both the phase bucket and
// the running total.
func (t *Tracker) Record(phase string, promptTokens, completionTokens, totalTokens int) {
	b := NewBreakdown(t.model, promptTokens, completionTokens, totalTokens)

	t.mu.Lock()
	defer t.mu.Unlock()
	phaseBreakdown := t.byPhase[phase]
	phaseBreakdown.Add(b)
	t.byPhase[phase] = phaseBreakdown
	t.total.Add(b)
}

// Total returns the cumulative breakdown across all phases.
func (t *Tracker) Total() Breakdown {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Phase returns the accumulated breakdown for a single phase.
func (t *Tracker) Phase(phase string) Breakdown {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byPhase[phase]
}

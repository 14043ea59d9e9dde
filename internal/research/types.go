// Package research holds the domain model shared by the Loop and its
// collaborators: sub-queries, search results, findings, plans, checkpoints,
// and the final result.
package research

import "time"

// SubQuery is derived from the question by the Plan phase, or appended as a
// followup by Completeness. Never mutated after creation.
type SubQuery struct {
	Query        string `json:"query" yaml:"query"`
	SourceTarget string `json:"source_target" yaml:"source_target"`
	Rationale    string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// SearchResult is emitted by a Tool. URL is the deduplication key within a run.
type SearchResult struct {
	URL             string     `json:"url" yaml:"url"`
	Title           string     `json:"title" yaml:"title"`
	Snippet         string     `json:"snippet" yaml:"snippet"`
	Domain          string     `json:"domain" yaml:"domain"`
	PublishedDate   *time.Time `json:"published_date,omitempty" yaml:"published_date,omitempty"`
}

// RelationshipAssertion is a typed edge between findings.
type RelationshipAssertion struct {
	Type    string `json:"type" yaml:"type"`
	Target  int    `json:"target" yaml:"target"` // index into the findings batch
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// ExtractedValue is a tagged variant over the field types a Config may
// declare: text, number, boolean, date, enum. Exactly one of the typed
// fields is populated, selected by Kind.
type ExtractedValue struct {
	Kind ExtractedKind `json:"kind" yaml:"kind"`
	Text string        `json:"text,omitempty" yaml:"text,omitempty"`
	Num  float64       `json:"num,omitempty" yaml:"num,omitempty"`
	Bool bool          `json:"bool,omitempty" yaml:"bool,omitempty"`
	Date *time.Time    `json:"date,omitempty" yaml:"date,omitempty"`
	Enum string        `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// ExtractedKind names the variant carried by an ExtractedValue.
type ExtractedKind string

const (
	KindText    ExtractedKind = "text"
	KindNumber  ExtractedKind = "number"
	KindBoolean ExtractedKind = "boolean"
	KindDate    ExtractedKind = "date"
	KindEnum    ExtractedKind = "enum"
)

// ExtractedFields is the free-form mapping from extracted-field name to
// value produced by Extract; the shape of the keys is driven by
// Config.Extract.Fields but the map itself stays open (unknown keys round
// trip safely per spec.md §4.10).
type ExtractedFields map[string]ExtractedValue

// Finding is one extracted claim, created in Extract.
type Finding struct {
	Source          SearchResult            `json:"source" yaml:"source"`
	ExtractedFields ExtractedFields         `json:"extracted_fields" yaml:"extracted_fields"`
	RawQuote        string                  `json:"raw_quote,omitempty" yaml:"raw_quote,omitempty"`
	Relationships   []RelationshipAssertion `json:"relationships,omitempty" yaml:"relationships,omitempty"`
}

// ScoredFinding augments a Finding with Evaluate's scores and notes.
type ScoredFinding struct {
	Finding         Finding `json:"finding" yaml:"finding"`
	RelevanceScore  float64 `json:"relevance_score" yaml:"relevance_score"`
	QualityScore    float64 `json:"quality_score" yaml:"quality_score"`
	EvaluationNotes string  `json:"evaluation_notes,omitempty" yaml:"evaluation_notes,omitempty"`
}

// CombinedScore applies the 0.6/0.4 weighting spec.md §4.6.e and §8 use for
// compaction ranking.
func (s ScoredFinding) CombinedScore() float64 {
	return 0.6*s.RelevanceScore + 0.4*s.QualityScore
}

// Clamp01 clamps a score into [0, 1], per spec.md invariant 2.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Plan is the output of the Plan phase. Created once per session; only its
// Followups queue is mutated thereafter (invariant 3: SubQueries never shrinks).
type Plan struct {
	SubQueries    []SubQuery `json:"sub_queries" yaml:"sub_queries"`
	StrategyNotes string     `json:"strategy_notes" yaml:"strategy_notes"`
	Followups     []SubQuery `json:"followups" yaml:"followups"`
}

// ResearchContext carries the run-level inputs beyond the question.
// Immutable per run.
type ResearchContext struct {
	Title          string `json:"title,omitempty" yaml:"title,omitempty"`
	Position       string `json:"position,omitempty" yaml:"position,omitempty"`
	Signals        string `json:"signals,omitempty" yaml:"signals,omitempty"`
	Evidence       string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	GraphContext   string `json:"graph_context,omitempty" yaml:"graph_context,omitempty"`
}

// Block is one node of the block representation of Result.Content, for
// downstream editing. Type is one of heading/paragraph/list_item/quote/code.
type Block struct {
	ID       string            `json:"id" yaml:"id"`
	Type     string            `json:"type" yaml:"type"`
	Content  string            `json:"content" yaml:"content"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Metadata is the Result's metadata bag (spec.md §3).
type Metadata struct {
	Iterations            int      `json:"iterations"`
	TotalSources          int      `json:"total_sources"`
	FindingsCount         int      `json:"findings_count"`
	GenerationTimeMs      int64    `json:"generation_time_ms"`
	NeedsContinuation     bool     `json:"needs_continuation"`
	ResumedFromCheckpoint bool     `json:"resumed_from_checkpoint"`
	ResumedAtIteration    int      `json:"resumed_at_iteration,omitempty"`
	Continuations         int      `json:"continuations,omitempty"`
	Cost                  *CostSummary `json:"cost,omitempty"`
	BudgetUsed            *BudgetSummary `json:"budget_used,omitempty"`
}

// CostSummary is the informational cost aggregate surfaced on Result, when a
// CostTracker is present (spec.md §4.5, §4.6.4).
type CostSummary struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// BudgetSummary is the informational budget aggregate, when a BudgetTracker
// is present.
type BudgetSummary struct {
	ContextWindowTokens int `json:"context_window_tokens"`
	TokensUsed          int `json:"tokens_used"`
	TokensRemaining     int `json:"tokens_remaining"`
}

// Result is the final product of a Loop run.
type Result struct {
	Content  string          `json:"content" yaml:"content"`
	Blocks   []Block         `json:"blocks" yaml:"blocks"`
	Findings []ScoredFinding `json:"findings" yaml:"findings"`
	Plan     Plan            `json:"plan" yaml:"plan"`
	Metadata Metadata        `json:"metadata" yaml:"metadata"`
}

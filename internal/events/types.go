package events

import "time"

// Event represents a system event
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// EventType identifies the kind of event
type EventType int

const (
	// Run lifecycle
	EventRunStarted EventType = iota
	EventRunComplete
	EventRunFailed

	// Loop phase events, one pair per phase in the Plan->Search->Extract->
	// Evaluate->Completeness->Synthesize cycle
	EventPlanStarted
	EventPlanComplete
	EventSearchStarted
	EventSearchProgress
	EventSearchComplete
	EventExtractStarted
	EventExtractComplete
	EventEvaluateStarted
	EventEvaluateComplete
	EventCompactionStarted
	EventCompactionComplete
	EventCompletenessStarted
	EventCompletenessComplete
	EventSynthesizeStarted
	EventSynthesizeComplete

	// Tool-call observability within Search
	EventToolCallStarted
	EventToolCallComplete

	// Checkpoint and continuation
	EventCheckpointSaved
	EventCheckpointLoadFailed
	EventContinuationStarted
	EventContinuationComplete

	// Cost/budget telemetry
	EventCostUpdated
	EventBudgetCompactionTriggered

	// Task-level retry boundary
	EventAgentFailed

	// Trajectory persistence
	EventTrajectorySaved
)

// RunStartedData describes the start of a Loop run.
type RunStartedData struct {
	CorrelationID string
	Question      string
	ResumedFrom   int // checkpoint iteration, -1 if not resumed
}

// PlanCompleteData captures the result of the Plan phase.
type PlanCompleteData struct {
	SubQueryCount int
	StrategyNotes string
}

// SearchProgressData captures fan-out search progress.
type SearchProgressData struct {
	Iteration     int
	QueriesTotal  int
	QueriesDone   int
	NewSources    int
	TotalSources  int
}

// ToolCallData describes an individual Tool invocation inside Search.
type ToolCallData struct {
	Tool         string
	Query        string
	SourceTarget string
	Err          string // empty on success
	ResultCount  int
}

// ExtractCompleteData captures Extract phase output.
type ExtractCompleteData struct {
	Iteration    int
	FindingCount int
}

// EvaluateCompleteData captures Evaluate phase output.
type EvaluateCompleteData struct {
	Iteration      int
	ScoredCount    int
	CumulativeSize int
}

// CompactionData captures a compaction pass.
type CompactionData struct {
	Iteration    int
	BeforeCount  int
	AfterCount   int
	DigestChars  int
}

// CompletenessCompleteData captures a completeness check's verdict.
type CompletenessCompleteData struct {
	Iteration       int
	Complete        bool
	FollowupCount   int
	ShortCircuitHit string // "max_sources", "max_iterations", or ""
}

// SynthesizeCompleteData captures synthesis output size.
type SynthesizeCompleteData struct {
	ContentChars int
	BlockCount   int
}

// CheckpointSavedData records a checkpoint emission.
type CheckpointSavedData struct {
	CorrelationID string
	Phase         string
	Iteration     int
}

// ContinuationData records a Session Continuation handoff.
type ContinuationData struct {
	ContinuationNumber int
	HandoffChars       int
}

// CostUpdateData captures cost information emitted during research.
type CostUpdateData struct {
	Phase        string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	InputCost    float64
	OutputCost   float64
	TotalCost    float64
}

// AgentFailedData records a Provider/Tool failure surfaced at the outer
// retry boundary.
type AgentFailedData struct {
	Phase     string
	Attempt   int
	MaxRetry  int
	Err       string
	Retryable bool
}

// TrajectorySavedData records a finalized trajectory push through an
// EventSink.
type TrajectorySavedData struct {
	CorrelationID string
	TotalSteps    int
	TotalDuration int64
}

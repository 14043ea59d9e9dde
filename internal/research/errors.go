package research

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when a run is cancelled via its context. Callers
// should check with errors.Is.
var ErrCancelled = errors.New("research: run cancelled")

// ConfigInvalidError wraps the accumulated Config.Validate() errors; the
// Loop refuses to run when it is returned.
type ConfigInvalidError struct {
	Errors []error
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("research: config invalid: %d error(s), first: %v", len(e.Errors), e.Errors[0])
}

// ProviderTransientError marks a connect/timeout/5xx failure from a
// Provider. It is retried at the outer task boundary (internal/task), never
// caught inside the Loop itself.
type ProviderTransientError struct {
	Err error
}

func (e *ProviderTransientError) Error() string { return fmt.Sprintf("research: provider transient: %v", e.Err) }
func (e *ProviderTransientError) Unwrap() error  { return e.Err }

// ProviderParseEmptyError marks a Provider response that could not be
// parsed as the expected structured output. Per spec.md §4.6 failure table,
// an unparseable response never propagates as an error to the caller;
// phases recover it into an empty/degraded structured result directly and
// do not construct this type.
type ProviderParseEmptyError struct {
	Phase string
	Raw   string
}

func (e *ProviderParseEmptyError) Error() string {
	return fmt.Sprintf("research: provider returned unparseable output in phase %q", e.Phase)
}

// ToolTransientError marks a single Tool call failure. Dropped per §4.6; a
// single query's failure never aborts the batch.
type ToolTransientError struct {
	Tool  string
	Query string
	Err   error
}

func (e *ToolTransientError) Error() string {
	return fmt.Sprintf("research: tool %q transient failure for query %q: %v", e.Tool, e.Query, e.Err)
}
func (e *ToolTransientError) Unwrap() error { return e.Err }

// ContextExhaustedError describes a BudgetTracker exhaustion beyond what
// compaction could recover. The Loop does not construct it: on exhaustion it
// sets Metadata.NeedsContinuation=true directly, synthesizes what it has and
// returns no error to the caller.
type ContextExhaustedError struct {
	TokensRemaining int
}

func (e *ContextExhaustedError) Error() string {
	return fmt.Sprintf("research: context exhausted, %d tokens remaining", e.TokensRemaining)
}

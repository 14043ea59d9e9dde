// Package loop implements the Research Loop scheduler: Plan -> Search ->
// Extract -> Evaluate -> Completeness -> Synthesize, under budgets, with
// parallel sub-query fan-out, context-aware compaction, and checkpoint/
// resume.
package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/aperturelabs/deepquery/internal/budget"
	"github.com/aperturelabs/deepquery/internal/checkpoint"
	"github.com/aperturelabs/deepquery/internal/cost"
	"github.com/aperturelabs/deepquery/internal/events"
	"github.com/aperturelabs/deepquery/internal/llm"
	"github.com/aperturelabs/deepquery/internal/research"
	"github.com/aperturelabs/deepquery/internal/tools"
	"github.com/aperturelabs/deepquery/internal/trajectory"
)

// Compaction thresholds, taken verbatim from the source system as observed
// (spec.md §9 Open Questions: "not justified by a written policy").
const (
	compactionFloor         = 20
	compactionTokenCeiling  = 60000
	compactionKeepRatio     = 0.60
)

// ProgressFunc reports a human-readable status line for a phase step.
type ProgressFunc func(step, message string)

// Loop is the scheduler. Construction parameters mirror spec.md §4.6:
// config, prompt extension, provider, tools, and optional callbacks.
type Loop struct {
	config    research.Config
	extension string
	provider  llm.Provider
	tools     *tools.Registry

	progress       ProgressFunc
	checkpointSink checkpoint.Sink
	recorder       *trajectory.Recorder
	bus            *events.Bus
	correlationID  string

	budgetTracker *budget.Tracker
	costTracker   *cost.Tracker
}

// Option configures a Loop at construction time.
type Option func(*Loop)

// WithProgress registers a progress callback. Disabled (nil) by default.
func WithProgress(fn ProgressFunc) Option { return func(l *Loop) { l.progress = fn } }

// WithCheckpointSink registers a checkpoint sink. Disabled (nil) by default.
func WithCheckpointSink(sink checkpoint.Sink) Option {
	return func(l *Loop) { l.checkpointSink = sink }
}

// WithTrajectoryRecorder registers a trajectory recorder. Disabled (nil) by
// default.
func WithTrajectoryRecorder(r *trajectory.Recorder) Option {
	return func(l *Loop) { l.recorder = r }
}

// WithBus registers an event bus for progress/cost/tool-call observability.
func WithBus(bus *events.Bus) Option { return func(l *Loop) { l.bus = bus } }

// WithCorrelationID fixes the run's correlation id; otherwise one is minted.
func WithCorrelationID(id string) Option { return func(l *Loop) { l.correlationID = id } }

// New constructs a Loop. Provider.ContextWindowTokens()>0 causes a
// BudgetTracker to be constructed; Provider.Model()!="" causes a CostTracker
// to be constructed (spec.md §4.3's "their presence is probed").
func New(cfg research.Config, extension string, provider llm.Provider, toolRegistry *tools.Registry, opts ...Option) *Loop {
	l := &Loop{
		config:    cfg,
		extension: extension,
		provider:  provider,
		tools:     toolRegistry,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.correlationID == "" {
		l.correlationID = NewCorrelationID()
	}
	if provider != nil {
		if w := provider.ContextWindowTokens(); w > 0 {
			l.budgetTracker = budget.New(w)
		}
		if m := provider.Model(); m != "" {
			l.costTracker = cost.NewTracker(m)
		}
	}
	return l
}

// CorrelationID returns the run's correlation id.
func (l *Loop) CorrelationID() string { return l.correlationID }

// runState is the Loop's mutable per-run state, per §5's "shared-resource
// policy": plan, findings, total_sources, iteration, trackers all live here
// and are only ever mutated by the single Loop task.
type runState struct {
	question     string
	rc           research.ResearchContext
	plan         research.Plan
	findings     []research.ScoredFinding
	seenURLs     map[string]struct{}
	totalSources int
	iteration    int
	searchRounds int
	startedAt    time.Time

	needsContinuation     bool
	resumedFromCheckpoint bool
	resumedAtIteration    int

	// pendingNewResults/pendingFindings carry a phase's output to the next
	// phase within a single drive() iteration; never read across iterations.
	pendingNewResults []research.SearchResult
	pendingFindings   []research.Finding
}

func newRunState(question string, rc research.ResearchContext) *runState {
	return &runState{
		question:  question,
		rc:        rc,
		seenURLs:  make(map[string]struct{}),
		startedAt: time.Now(),
	}
}

// Run executes a fresh session for question under rc.
func (l *Loop) Run(ctx context.Context, question string, rc research.ResearchContext) (research.Result, error) {
	if ok, errs := l.config.Validate(); !ok {
		return research.Result{}, &research.ConfigInvalidError{Errors: errs}
	}
	st := newRunState(question, rc)
	return l.drive(ctx, st, phasePlan)
}

// ResumeFromCheckpoint reconstructs Loop state from cp and re-enters the
// main loop at the phase after cp.Phase, per spec.md §4.6 "Resume from
// checkpoint."
func ResumeFromCheckpoint(ctx context.Context, cp checkpoint.Checkpoint, cfg research.Config, extension string, provider llm.Provider, toolRegistry *tools.Registry, opts ...Option) (research.Result, error) {
	l := New(cfg, extension, provider, toolRegistry, append(opts, WithCorrelationID(cp.CorrelationID))...)

	if ok, errs := l.config.Validate(); !ok {
		return research.Result{}, &research.ConfigInvalidError{Errors: errs}
	}

	st := newRunState(cp.Question, research.ResearchContext{})
	st.iteration = cp.Iteration
	st.totalSources = cp.TotalSources
	st.searchRounds = cp.SearchRounds
	st.resumedFromCheckpoint = true
	st.resumedAtIteration = cp.Iteration

	if cp.Plan != nil {
		var plan research.Plan
		if err := research.DecodeInto(cp.Plan, &plan); err == nil {
			st.plan = plan
		}
	}
	if len(cp.Findings) > 0 {
		var findings []research.ScoredFinding
		if err := research.DecodeArrayInto(cp.Findings, &findings); err == nil {
			st.findings = findings
		}
	}
	for _, f := range st.findings {
		st.seenURLs[f.Finding.Source.URL] = struct{}{}
	}

	start := nextPhaseAfterCheckpoint(cp.Phase, len(st.plan.Followups) == 0)
	return l.drive(ctx, st, start)
}

// phase labels used by the internal dispatcher. These match
// checkpoint.Phase* constants where a checkpoint is actually emitted for
// that phase.
type phase string

const (
	phasePlan         phase = checkpoint.PhasePlan
	phaseIterate      phase = "iterate"
	phaseSearch       phase = checkpoint.PhaseSearch
	phaseExtract      phase = checkpoint.PhaseExtract
	phaseEvaluate     phase = checkpoint.PhaseEvaluate
	phaseCompact      phase = checkpoint.PhaseCompact
	phaseCompleteness phase = checkpoint.PhaseCompleteness
	phaseSynthesize   phase = checkpoint.PhaseSynthesize

	// phaseCompactionDecision is not itself checkpointed; it is the
	// e-step decision point between Evaluate and Completeness (spec.md
	// §4.6 step e).
	phaseCompactionDecision phase = "compaction_decision"
)

// nextPhaseAfterCheckpoint maps a persisted checkpoint phase label to the
// dispatcher entry point that should run next.
func nextPhaseAfterCheckpoint(cpPhase string, followupsEmpty bool) phase {
	switch cpPhase {
	case checkpoint.PhasePlan:
		return phaseIterate
	case checkpoint.PhaseSearch:
		return phaseExtract
	case checkpoint.PhaseExtract:
		return phaseEvaluate
	case checkpoint.PhaseEvaluate:
		if followupsEmpty {
			return phaseSynthesize
		}
		return phaseCompactionDecision
	case checkpoint.PhaseCompact:
		return phaseCompleteness
	case checkpoint.PhaseCompleteness:
		return phaseIterate
	default:
		return phasePlan
	}
}

// drive runs the phase state machine starting at start, returning the
// finalized Result.
func (l *Loop) drive(ctx context.Context, st *runState, start phase) (research.Result, error) {
	cur := start

	for {
		select {
		case <-ctx.Done():
			return l.finalize(st), research.ErrCancelled
		default:
		}

		switch cur {
		case phasePlan:
			if err := l.runPlan(ctx, st); err != nil {
				return l.finalize(st), err
			}
			l.saveCheckpoint(ctx, st, checkpoint.PhasePlan)
			cur = phaseIterate

		case phaseIterate:
			if st.iteration >= l.config.Search.MaxIterations {
				cur = phaseSynthesize
				continue
			}
			cur = phaseSearch

		case phaseSearch:
			newResults, emptySearch := l.runSearch(ctx, st)
			if emptySearch && len(st.plan.Followups) == 0 {
				cur = phaseSynthesize
				continue
			}
			st.pendingNewResults = newResults
			cur = phaseExtract

		case phaseExtract:
			findings := l.runExtract(ctx, st, st.pendingNewResults)
			st.pendingFindings = findings
			cur = phaseEvaluate

		case phaseEvaluate:
			l.runEvaluate(ctx, st, st.pendingFindings)
			l.saveCheckpoint(ctx, st, checkpoint.PhaseEvaluate)
			cur = phaseCompactionDecision

		case phaseCompactionDecision:
			if l.checkShouldCompact(st) {
				cur = phaseCompact
			} else {
				cur = phaseCompleteness
			}

		case phaseCompact:
			l.runCompaction(ctx, st)
			l.saveCheckpointBestEffort(ctx, st, checkpoint.PhaseCompact)
			if l.budgetTracker != nil && l.budgetTracker.Exhausted() {
				// Compaction could not recover enough headroom; stop
				// cleanly and let Session Continuation resume in a fresh
				// session (spec.md §4.6, §4.8).
				st.needsContinuation = true
				cur = phaseSynthesize
				continue
			}
			cur = phaseCompleteness

		case phaseCompleteness:
			complete := l.runCompleteness(ctx, st)
			if complete {
				cur = phaseSynthesize
			} else {
				st.iteration++
				cur = phaseIterate
			}

		case phaseSynthesize:
			result, err := l.runSynthesize(ctx, st)
			if err != nil {
				return l.finalize(st), err
			}
			l.saveCheckpointBestEffort(ctx, st, checkpoint.PhaseSynthesize)
			if l.recorder != nil {
				if l.bus != nil {
					l.recorder.Save(ctx, trajectory.BusSink{Bus: l.bus})
				}
			}
			return result, nil

		default:
			return l.finalize(st), fmt.Errorf("loop: unknown phase %q", cur)
		}
	}
}

func (l *Loop) checkShouldCompact(st *runState) bool {
	if len(st.findings) < compactionFloor {
		return false
	}
	if l.budgetTracker != nil {
		return l.budgetTracker.ShouldCompact()
	}
	return estimateFindingsTokens(st.findings) > compactionTokenCeiling
}

func estimateFindingsTokens(findings []research.ScoredFinding) int {
	total := 0
	for _, f := range findings {
		total += len(f.Finding.RawQuote) / 4
		for _, v := range f.Finding.ExtractedFields {
			total += len(v.Text) / 4
		}
	}
	return total
}

func (l *Loop) saveCheckpoint(ctx context.Context, st *runState, ph string) {
	l.saveCheckpointBestEffort(ctx, st, ph)
}

func (l *Loop) saveCheckpointBestEffort(ctx context.Context, st *runState, ph string) {
	if l.checkpointSink == nil {
		return
	}
	cp := l.toCheckpoint(st, ph)
	if err := l.checkpointSink.Save(ctx, cp); err != nil {
		l.publish(events.EventCheckpointLoadFailed, err.Error())
		return
	}
	if l.bus != nil {
		l.bus.Publish(events.Event{
			Type: events.EventCheckpointSaved,
			Data: events.CheckpointSavedData{CorrelationID: l.correlationID, Phase: ph, Iteration: st.iteration},
		})
	}
}

func (l *Loop) toCheckpoint(st *runState, ph string) checkpoint.Checkpoint {
	planMap, _ := planToMap(st.plan)
	findingsArr := findingsToAny(st.findings)
	cfgMap, _ := l.config.ToDict()

	return checkpoint.Checkpoint{
		CorrelationID: l.correlationID,
		Question:      st.question,
		Iteration:     st.iteration,
		Phase:         ph,
		TotalSources:  st.totalSources,
		SearchRounds:  st.searchRounds,
		Plan:          planMap,
		Findings:      findingsArr,
		Config:        cfgMap,
		Extension:     l.extension,
		Context:       researchContextToMap(st.rc),
	}
}

func (l *Loop) publish(t events.EventType, msg string) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(events.Event{Type: t, Data: msg})
}

func (l *Loop) report(step, message string) {
	if l.progress != nil {
		l.progress(step, message)
	}
}

func (l *Loop) finalize(st *runState) research.Result {
	// iteration is 0-based and only advances after a fully completed round
	// (spec.md §4.6.4: "iterations (1-based count of completed iterations)").
	iterations := st.iteration + 1

	md := research.Metadata{
		Iterations:            iterations,
		TotalSources:          st.totalSources,
		FindingsCount:         len(st.findings),
		GenerationTimeMs:      time.Since(st.startedAt).Milliseconds(),
		NeedsContinuation:     st.needsContinuation,
		ResumedFromCheckpoint: st.resumedFromCheckpoint,
		ResumedAtIteration:    st.resumedAtIteration,
	}
	if l.costTracker != nil {
		total := l.costTracker.Total()
		md.Cost = &research.CostSummary{
			InputTokens:  total.InputTokens,
			OutputTokens: total.OutputTokens,
			TotalTokens:  total.TotalTokens,
			TotalCostUSD: total.TotalCost,
		}
	}
	if l.budgetTracker != nil {
		md.BudgetUsed = &research.BudgetSummary{
			ContextWindowTokens: l.budgetTracker.ContextWindowTokens(),
			TokensUsed:          l.budgetTracker.Used(),
			TokensRemaining:     l.budgetTracker.Remaining(),
		}
	}

	return research.Result{
		Findings: st.findings,
		Plan:     st.plan,
		Metadata: md,
	}
}

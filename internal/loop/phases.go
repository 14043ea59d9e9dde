package loop

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/aperturelabs/deepquery/internal/blocks"
	"github.com/aperturelabs/deepquery/internal/events"
	"github.com/aperturelabs/deepquery/internal/llm"
	"github.com/aperturelabs/deepquery/internal/research"
)

// generate invokes the Provider, accounting usage against the Loop's
// trackers and surfacing it on the bus. Transient provider errors propagate
// unwrapped for the caller (or caller's caller, the outer task boundary) to
// classify.
func (l *Loop) generate(ctx context.Context, phaseName, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	messages := []llm.Message{{Role: "user", Content: userPrompt}}
	text, usage, err := l.provider.Generate(ctx, messages, l.systemPromptFor(systemPrompt), maxTokens, temperature)
	if err != nil {
		return "", err
	}

	if l.budgetTracker != nil {
		l.budgetTracker.Add(usage.PromptTokens, usage.CompletionTokens)
	}
	if l.costTracker != nil {
		l.costTracker.Record(phaseName, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
		b := l.costTracker.Phase(phaseName)
		if l.bus != nil {
			l.bus.Publish(events.Event{
				Type: events.EventCostUpdated,
				Data: events.CostUpdateData{
					Phase: phaseName, InputTokens: b.InputTokens, OutputTokens: b.OutputTokens,
					TotalTokens: b.TotalTokens, InputCost: b.InputCost, OutputCost: b.OutputCost, TotalCost: b.TotalCost,
				},
			})
		}
	}
	return text, nil
}

func (l *Loop) recordStep(stepName, inputSummary, outputSummary, rationale string, metrics map[string]any, durationMs int64) {
	if l.recorder != nil {
		l.recorder.Record(stepName, inputSummary, outputSummary, rationale, metrics, durationMs)
	}
}

// runPlan implements spec.md §4.6 step 1.
func (l *Loop) runPlan(ctx context.Context, st *runState) error {
	l.report("plan", "Planning research strategy...")
	if l.bus != nil {
		l.bus.Publish(events.Event{Type: events.EventPlanStarted, Data: st.question})
	}

	prompt := planPrompt(st.question, st.rc, l.config.Search.Decomposition)
	raw, err := l.generate(ctx, "plan", planSystemPrompt, prompt, 2000, 0.7)
	if err != nil {
		return err
	}

	dict := research.ParseJSONFromResponse(raw)
	var plan research.Plan
	if len(dict) > 0 {
		_ = research.DecodeInto(dict, &plan)
	}
	if len(plan.SubQueries) == 0 {
		plan = research.Plan{SubQueries: []research.SubQuery{{Query: st.question}}}
	}
	plan.Followups = nil
	st.plan = plan

	l.recordStep("plan", st.question, plan.StrategyNotes, "", map[string]any{"sub_query_count": len(plan.SubQueries)}, 0)
	if l.bus != nil {
		l.bus.Publish(events.Event{
			Type: events.EventPlanComplete,
			Data: events.PlanCompleteData{SubQueryCount: len(plan.SubQueries), StrategyNotes: plan.StrategyNotes},
		})
	}
	return nil
}

const planSystemPrompt = "You are a research planner. Decompose questions into focused, independently searchable sub-queries."

// runSearch implements spec.md §4.6 step 2.a-2.b.
func (l *Loop) runSearch(ctx context.Context, st *runState) ([]research.SearchResult, bool) {
	var queries []research.SubQuery
	if st.iteration == 0 {
		queries = st.plan.SubQueries
	} else {
		queries = st.plan.Followups
		st.plan.Followups = nil
	}

	if l.bus != nil {
		l.bus.Publish(events.Event{Type: events.EventSearchStarted, Data: len(queries)})
	}
	l.report("search", fmt.Sprintf("Searching %d sub-queries...", len(queries)))

	width := l.config.Search.ParallelBranches
	if width < 1 {
		width = 1
	}
	sem := make(chan struct{}, width)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var all []research.SearchResult

	for _, sq := range queries {
		sq := sq
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			tool, err := l.tools.Resolve(sq.SourceTarget)
			if err != nil {
				l.emitToolCall(sq, "", err, 0)
				return
			}
			results, err := tool.Execute(ctx, sq.Query, sq.SourceTarget, 10)
			if err != nil {
				// Per §4.6/§7: a single Tool call error is dropped, never
				// aborts the batch.
				l.emitToolCall(sq, tool.Name(), err, 0)
				return
			}
			l.emitToolCall(sq, tool.Name(), nil, len(results))

			mu.Lock()
			all = append(all, results...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var newResults []research.SearchResult
	for _, r := range all {
		if r.URL == "" {
			newResults = append(newResults, r)
			continue
		}
		if _, seen := st.seenURLs[r.URL]; seen {
			continue
		}
		st.seenURLs[r.URL] = struct{}{}
		newResults = append(newResults, r)
	}

	st.totalSources += len(newResults)
	st.searchRounds++

	l.recordStep("search", fmt.Sprintf("%d queries", len(queries)), fmt.Sprintf("%d new sources", len(newResults)), "", map[string]any{"new_sources": len(newResults)}, 0)
	if l.bus != nil {
		l.bus.Publish(events.Event{
			Type: events.EventSearchComplete,
			Data: events.SearchProgressData{
				Iteration: st.iteration, QueriesTotal: len(queries), QueriesDone: len(queries),
				NewSources: len(newResults), TotalSources: st.totalSources,
			},
		})
	}

	return newResults, len(newResults) == 0
}

func (l *Loop) emitToolCall(sq research.SubQuery, toolName string, err error, resultCount int) {
	if l.bus == nil {
		return
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	l.bus.Publish(events.Event{
		Type: events.EventToolCallComplete,
		Data: events.ToolCallData{Tool: toolName, Query: sq.Query, SourceTarget: sq.SourceTarget, Err: errMsg, ResultCount: resultCount},
	})
}

// runExtract implements spec.md §4.6 step 2.c.
func (l *Loop) runExtract(ctx context.Context, st *runState, newResults []research.SearchResult) []research.Finding {
	if len(newResults) == 0 {
		return nil
	}
	if l.bus != nil {
		l.bus.Publish(events.Event{Type: events.EventExtractStarted, Data: len(newResults)})
	}
	l.report("extract", fmt.Sprintf("Extracting findings from %d sources...", len(newResults)))

	prompt := extractPrompt(st.question, newResults, l.config.Extract)
	raw, err := l.generate(ctx, "extract", extractSystemPrompt, prompt, 3000, 0.3)
	if err != nil {
		// Per §7: Provider parse/availability failures inside Extract never
		// propagate; the phase yields zero findings for this batch.
		l.recordStep("extract", fmt.Sprintf("%d sources", len(newResults)), "0 findings (provider error)", err.Error(), nil, 0)
		return nil
	}

	dict := research.ParseJSONFromResponse(raw)
	rawFindings, _ := dict["findings"].([]any)

	findings := make([]research.Finding, 0, len(rawFindings))
	for _, rf := range rawFindings {
		m, ok := rf.(map[string]any)
		if !ok {
			continue
		}
		idx, ok := indexOf(m["source_index"])
		if !ok || idx < 0 || idx >= len(newResults) {
			continue
		}

		var f research.Finding
		if err := research.DecodeInto(m, &f); err != nil {
			continue
		}
		f.Source = newResults[idx]
		findings = append(findings, f)
	}

	l.recordStep("extract", fmt.Sprintf("%d sources", len(newResults)), fmt.Sprintf("%d findings", len(findings)), "", map[string]any{"finding_count": len(findings)}, 0)
	if l.bus != nil {
		l.bus.Publish(events.Event{
			Type: events.EventExtractComplete,
			Data: events.ExtractCompleteData{Iteration: st.iteration, FindingCount: len(findings)},
		})
	}
	return findings
}

const extractSystemPrompt = "You extract structured, source-grounded findings from search results. Never invent claims not present in the source text."

func indexOf(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// runEvaluate implements spec.md §4.6 step 2.d.
func (l *Loop) runEvaluate(ctx context.Context, st *runState, findings []research.Finding) {
	if len(findings) == 0 {
		return
	}
	if l.bus != nil {
		l.bus.Publish(events.Event{Type: events.EventEvaluateStarted, Data: len(findings)})
	}
	l.report("evaluate", fmt.Sprintf("Evaluating %d findings...", len(findings)))

	rubric := l.config.Evaluate.EffectiveRubric()
	prompt := evaluatePrompt(st.question, rubric, findings)
	raw, err := l.generate(ctx, "evaluate", evaluateSystemPrompt, prompt, 2000, 0.2)

	scores := make(map[int]research.ScoredFinding, len(findings))
	for i, f := range findings {
		scores[i] = research.ScoredFinding{Finding: f}
	}

	if err == nil {
		arr := research.ParseJSONArrayFromResponse(raw)
		if arr == nil {
			if dict := research.ParseJSONFromResponse(raw); dict != nil {
				if evals, ok := dict["evaluations"].([]any); ok {
					arr = evals
				}
			}
		}
		for _, item := range arr {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			idx, ok := indexOf(m["finding_index"])
			if !ok {
				continue
			}
			sf, ok := scores[idx]
			if !ok {
				continue
			}
			if rel, ok := m["relevance_score"].(float64); ok {
				sf.RelevanceScore = research.Clamp01(rel)
			}
			if qual, ok := m["quality_score"].(float64); ok {
				sf.QualityScore = research.Clamp01(qual)
			}
			if notes, ok := m["evaluation_notes"].(string); ok {
				sf.EvaluationNotes = notes
			}
			scores[idx] = sf
		}
	}

	ordered := make([]research.ScoredFinding, len(findings))
	for i := range findings {
		ordered[i] = scores[i]
	}
	st.findings = append(st.findings, ordered...)

	l.recordStep("evaluate", fmt.Sprintf("%d findings", len(findings)), fmt.Sprintf("%d cumulative", len(st.findings)), "", map[string]any{"cumulative": len(st.findings)}, 0)
	if l.bus != nil {
		l.bus.Publish(events.Event{
			Type: events.EventEvaluateComplete,
			Data: events.EvaluateCompleteData{Iteration: st.iteration, ScoredCount: len(ordered), CumulativeSize: len(st.findings)},
		})
	}
}

const evaluateSystemPrompt = "You score research findings for relevance and sourcing quality against a rubric. Scores are in [0,1]."

// runCompaction implements spec.md §4.6 step 2.e.
func (l *Loop) runCompaction(ctx context.Context, st *runState) {
	before := len(st.findings)
	if l.bus != nil {
		l.bus.Publish(events.Event{Type: events.EventCompactionStarted, Data: before})
	}
	l.report("compact", "Compacting findings...")

	sorted := make([]research.ScoredFinding, len(st.findings))
	copy(sorted, st.findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CombinedScore() > sorted[j].CombinedScore()
	})

	keepCount := int(math.Ceil(float64(len(sorted)) * compactionKeepRatio))
	if keepCount < 1 {
		keepCount = 1
	}
	if keepCount > len(sorted) {
		keepCount = len(sorted)
	}
	kept := sorted[:keepCount]
	dropped := sorted[keepCount:]

	digest := ""
	if len(dropped) > 0 {
		raw, err := l.generate(ctx, "compact", compactionSystemPrompt, compactionDigestPrompt(dropped), 500, 0.3)
		if err == nil {
			digest = raw
		}
	}

	result := make([]research.ScoredFinding, 0, keepCount+1)
	result = append(result, kept...)
	if digest != "" {
		result = append(result, research.ScoredFinding{
			Finding: research.Finding{
				Source:          research.SearchResult{Title: "Compacted findings digest"},
				ExtractedFields: research.ExtractedFields{"digest": {Kind: research.KindText, Text: digest}},
			},
			RelevanceScore: 1,
			QualityScore:   1,
		})
	}
	st.findings = result

	l.recordStep("compact", fmt.Sprintf("%d findings", before), fmt.Sprintf("%d findings", len(st.findings)), "", map[string]any{"before": before, "after": len(st.findings)}, 0)
	if l.bus != nil {
		l.bus.Publish(events.Event{
			Type: events.EventCompactionComplete,
			Data: events.CompactionData{Iteration: st.iteration, BeforeCount: before, AfterCount: len(st.findings), DigestChars: len(digest)},
		})
	}
}

const compactionSystemPrompt = "You summarize lower-priority research findings into a short digest, preserving information a later report might still need."

// runCompleteness implements spec.md §4.6 step 2.f.
func (l *Loop) runCompleteness(ctx context.Context, st *runState) bool {
	if l.bus != nil {
		l.bus.Publish(events.Event{Type: events.EventCompletenessStarted, Data: len(st.findings)})
	}
	l.report("completeness", "Checking research completeness...")

	if len(st.findings) >= l.config.Search.Budget.MaxSources {
		l.finishCompleteness(st, true, 0, "max_sources")
		return true
	}
	if st.iteration+1 >= l.config.Search.MaxIterations {
		l.finishCompleteness(st, true, 0, "max_iterations")
		return true
	}

	prompt := completenessPrompt(st.question, len(st.findings), l.config.Completeness)
	raw, err := l.generate(ctx, "completeness", completenessSystemPrompt, prompt, 1000, 0.3)
	if err != nil {
		// Per §7: yields "not complete" on Provider failure.
		l.finishCompleteness(st, false, 0, "")
		return false
	}

	dict := research.ParseJSONFromResponse(raw)
	complete, _ := dict["complete"].(bool)

	var followups []research.SubQuery
	if !complete {
		if raw, ok := dict["followup_queries"].([]any); ok {
			_ = research.DecodeArrayInto(raw, &followups)
		}
		st.plan.Followups = append(st.plan.Followups, followups...)
	}

	l.finishCompleteness(st, complete, len(followups), "")
	return complete
}

func (l *Loop) finishCompleteness(st *runState, complete bool, followupCount int, shortCircuit string) {
	l.recordStep("completeness", fmt.Sprintf("%d findings", len(st.findings)), fmt.Sprintf("complete=%v", complete), shortCircuit, map[string]any{"complete": complete}, 0)
	if l.bus != nil {
		l.bus.Publish(events.Event{
			Type: events.EventCompletenessComplete,
			Data: events.CompletenessCompleteData{Iteration: st.iteration, Complete: complete, FollowupCount: followupCount, ShortCircuitHit: shortCircuit},
		})
	}
}

const completenessSystemPrompt = "You decide whether a research investigation has gathered enough evidence to answer its question, and what gaps remain."

// runSynthesize implements spec.md §4.6 step 3-4.
func (l *Loop) runSynthesize(ctx context.Context, st *runState) (research.Result, error) {
	if l.bus != nil {
		l.bus.Publish(events.Event{Type: events.EventSynthesizeStarted, Data: len(st.findings)})
	}
	l.report("synthesize", "Synthesizing final report...")

	rubric := l.config.Evaluate.EffectiveRubric()
	maxTokens := research.TargetLengthToTokens(l.config.Output.TargetLength)
	prompt := synthesizePrompt(st.question, st.findings, rubric, l.config.Output)

	content, err := l.generate(ctx, "synthesize", synthesizeSystemPrompt, prompt, maxTokens, 0.5)
	if err != nil {
		return research.Result{}, err
	}

	result := l.finalize(st)
	result.Content = content
	result.Blocks = blocks.Parse(content)

	l.recordStep("synthesize", fmt.Sprintf("%d findings", len(st.findings)), fmt.Sprintf("%d chars", len(content)), "", map[string]any{"content_chars": len(content)}, 0)
	if l.bus != nil {
		l.bus.Publish(events.Event{
			Type: events.EventSynthesizeComplete,
			Data: events.SynthesizeCompleteData{ContentChars: len(content), BlockCount: len(result.Blocks)},
		})
	}
	return result, nil
}

const synthesizeSystemPrompt = "You write clear, well-cited research reports in markdown from a set of evaluated findings."

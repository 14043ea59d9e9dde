// Package continuation implements the Session Continuation outer
// controller: when a Loop run stops with Metadata.NeedsContinuation set,
// this package hands off to a fresh Loop rather than growing one session's
// context without bound. Grounded on research_workflow.py's continuation
// handling.
package continuation

import (
	"context"
	"fmt"

	"github.com/aperturelabs/deepquery/internal/events"
	"github.com/aperturelabs/deepquery/internal/llm"
	"github.com/aperturelabs/deepquery/internal/research"
	"github.com/aperturelabs/deepquery/internal/tools"
)

// MaxContinuations bounds the number of additional sessions run after the
// first (spec.md §4.8).
const MaxContinuations = 3

// LoopRunner is the capability continuation needs from internal/loop,
// expressed as a narrow interface so this package has no import cycle with
// internal/loop and stays independently testable.
type LoopRunner interface {
	Run(ctx context.Context, question string, rc research.ResearchContext) (research.Result, error)
}

// LoopFactory constructs a fresh Loop for a continuation session, wired
// with the same config/provider/tools but a new prompt extension carrying
// the handoff summary.
type LoopFactory func(cfg research.Config, extension string, provider llm.Provider, toolRegistry *tools.Registry) LoopRunner

// Controller drives the bounded continuation loop described in spec.md §4.8.
type Controller struct {
	provider    llm.Provider
	tools       *tools.Registry
	newLoop     LoopFactory
	bus         *events.Bus
	maxContinue int
}

// New constructs a Controller. newLoop is typically loop.New adapted to the
// LoopFactory shape by the composition root.
func New(provider llm.Provider, toolRegistry *tools.Registry, newLoop LoopFactory, bus *events.Bus) *Controller {
	return &Controller{provider: provider, tools: toolRegistry, newLoop: newLoop, bus: bus, maxContinue: MaxContinuations}
}

// Continue runs up to MaxContinuations additional sessions while
// result.Metadata.NeedsContinuation stays true, merging each continuation's
// output into result per spec.md §4.8 step 4.
func (c *Controller) Continue(ctx context.Context, question string, cfg research.Config, extension string, result research.Result) (research.Result, error) {
	count := 0
	for result.Metadata.NeedsContinuation && count < c.maxContinue {
		count++
		if c.bus != nil {
			c.bus.Publish(events.Event{Type: events.EventContinuationStarted, Data: events.ContinuationData{ContinuationNumber: count}})
		}

		handoff, err := c.handoffSummary(ctx, question, result)
		if err != nil {
			// A failed handoff still stops the loop cleanly; the partial
			// result so far is returned rather than discarded.
			break
		}

		contExtension := extension + "\n\n" + continuationFraming(handoff)
		contLoop := c.newLoop(cfg, contExtension, c.provider, c.tools)

		contResult, err := contLoop.Run(ctx, question, research.ResearchContext{})
		if err != nil {
			break
		}

		result = merge(result, contResult, count)

		if c.bus != nil {
			c.bus.Publish(events.Event{
				Type: events.EventContinuationComplete,
				Data: events.ContinuationData{ContinuationNumber: count, HandoffChars: len(handoff)},
			})
		}
	}
	return result, nil
}

func merge(prior, cont research.Result, continuationNumber int) research.Result {
	prior.Findings = append(prior.Findings, cont.Findings...)
	prior.Blocks = cont.Blocks
	prior.Content = cont.Content
	prior.Metadata.GenerationTimeMs += cont.Metadata.GenerationTimeMs
	prior.Metadata.TotalSources += cont.Metadata.TotalSources
	prior.Metadata.FindingsCount = len(prior.Findings)
	prior.Metadata.Continuations = continuationNumber
	prior.Metadata.NeedsContinuation = cont.Metadata.NeedsContinuation
	return prior
}

// handoffSummary builds the Provider-generated handoff summary from the
// prior result's findings and strategy notes (spec.md §4.8 step 1).
func (c *Controller) handoffSummary(ctx context.Context, question string, result research.Result) (string, error) {
	prompt := fmt.Sprintf(`Research on "%s" ran out of context before finishing. Strategy so far: %s

Established findings:
%s
Write a handoff summary (at most a few hundred tokens) covering: (i) the question, (ii) what has been established, (iii) what remains to be investigated.`,
		question, result.Plan.StrategyNotes, summarizeFindings(result.Findings))

	text, _, err := c.provider.Generate(ctx, []llm.Message{{Role: "user", Content: prompt}}, handoffSystemPrompt, 600, 0.3)
	if err != nil {
		return "", err
	}
	return text, nil
}

const handoffSystemPrompt = "You write concise handoff summaries so a fresh research session can pick up where a prior one left off."

func summarizeFindings(findings []research.ScoredFinding) string {
	var out string
	for _, f := range findings {
		out += "- " + f.Finding.RawQuote + "\n"
	}
	return out
}

func continuationFraming(handoff string) string {
	return "Continuation context from a prior session that ran out of room:\n\n" + handoff
}

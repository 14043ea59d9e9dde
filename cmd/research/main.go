// Command research is a single-shot CLI around the Research Loop engine:
// load process config, build a Provider and Tool registry, run one
// question through internal/loop under the outer retry boundary, and print
// the synthesized report. Pass -resume <correlation-id> to continue a prior
// run from its last saved checkpoint instead of starting a new one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/aperturelabs/deepquery/internal/appconfig"
	"github.com/aperturelabs/deepquery/internal/checkpoint"
	"github.com/aperturelabs/deepquery/internal/continuation"
	"github.com/aperturelabs/deepquery/internal/events"
	"github.com/aperturelabs/deepquery/internal/llm"
	"github.com/aperturelabs/deepquery/internal/loop"
	"github.com/aperturelabs/deepquery/internal/research"
	"github.com/aperturelabs/deepquery/internal/task"
	"github.com/aperturelabs/deepquery/internal/tools"
	"github.com/aperturelabs/deepquery/internal/trajectory"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	dim    = color.New(color.Faint)
	bold   = color.New(color.Bold)
)

func main() {
	resumeID := flag.String("resume", "", "correlation id of a prior run to resume from its last checkpoint")
	flag.Parse()

	cfg := appconfig.Load()

	if cfg.OpenRouterAPIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: OPENROUTER_API_KEY environment variable not set")
		os.Exit(1)
	}

	question := strings.Join(flag.Args(), " ")
	if question == "" && *resumeID == "" {
		question = promptForQuestion()
	}
	if question == "" && *resumeID == "" {
		fmt.Fprintln(os.Stderr, "no question provided")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	bus := events.NewBus(256)
	defer bus.Close()
	startRenderer(bus)

	client := llm.NewClient(cfg)
	provider := llm.NewOpenRouterProvider(client, cfg.ContextWindowTokens)

	toolRegistry := tools.NewRegistry(cfg.BraveAPIKey)
	toolRegistry.Register(tools.NewDocumentReadTool())
	toolRegistry.Register(tools.NewCSVAnalysisTool())

	store, err := checkpoint.NewFileStore(cfg.CheckpointDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating checkpoint store: %v\n", err)
		os.Exit(1)
	}

	correlationID := *resumeID
	if correlationID == "" {
		correlationID = loop.NewCorrelationID()
	}
	runConfig := research.Default()
	rc := research.ResearchContext{}

	var existing *checkpoint.Checkpoint
	if *resumeID != "" {
		existing, err = store.Load(ctx, correlationID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading checkpoint for %q: %v\n", correlationID, err)
			os.Exit(1)
		}
		if existing == nil {
			fmt.Fprintf(os.Stderr, "Error: no checkpoint found for correlation id %q\n", correlationID)
			os.Exit(1)
		}
		question = existing.Question
	}

	recorder := trajectory.New(correlationID)

	runLoop := func(ctx context.Context) (research.Result, error) {
		if existing != nil {
			return loop.ResumeFromCheckpoint(ctx, *existing, runConfig, "", provider, toolRegistry,
				loop.WithBus(bus), loop.WithCheckpointSink(store), loop.WithTrajectoryRecorder(recorder))
		}
		l := loop.New(runConfig, "", provider, toolRegistry,
			loop.WithCorrelationID(correlationID), loop.WithBus(bus),
			loop.WithCheckpointSink(store), loop.WithTrajectoryRecorder(recorder))
		return l.Run(ctx, question, rc)
	}

	result, err := task.RunWithRetry(ctx, bus, "loop", runLoop)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if result.Metadata.NeedsContinuation {
		factory := func(c research.Config, extension string, p llm.Provider, reg *tools.Registry) continuation.LoopRunner {
			return loop.New(c, extension, p, reg, loop.WithBus(bus), loop.WithCheckpointSink(store))
		}
		controller := continuation.New(provider, toolRegistry, factory, bus)
		result, err = controller.Continue(ctx, question, runConfig, "", result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during continuation: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println()
	bold.Println(strings.Repeat("=", 60))
	fmt.Println(result.Content)
	bold.Println(strings.Repeat("=", 60))
	dim.Printf("iterations=%d sources=%d findings=%d duration=%dms\n",
		result.Metadata.Iterations, result.Metadata.TotalSources, result.Metadata.FindingsCount, result.Metadata.GenerationTimeMs)
	if result.Metadata.Cost != nil {
		dim.Printf("cost: $%.4f (%d tokens)\n", result.Metadata.Cost.TotalCostUSD, result.Metadata.Cost.TotalTokens)
	}
}

func promptForQuestion() string {
	rl, err := readline.New("research> ")
	if err != nil {
		return ""
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

// startRenderer subscribes to the phase lifecycle events and prints a
// progress line for each, grounded on the teacher's color-coded Renderer.
func startRenderer(bus *events.Bus) {
	ch := bus.Subscribe(
		events.EventPlanStarted, events.EventPlanComplete,
		events.EventSearchStarted, events.EventSearchComplete,
		events.EventExtractComplete, events.EventEvaluateComplete,
		events.EventCompactionComplete, events.EventCompletenessComplete,
		events.EventSynthesizeStarted, events.EventSynthesizeComplete,
		events.EventCheckpointSaved, events.EventAgentFailed,
		events.EventContinuationStarted, events.EventContinuationComplete,
	)
	go func() {
		for ev := range ch {
			renderEvent(ev)
		}
	}()
}

func renderEvent(ev events.Event) {
	switch ev.Type {
	case events.EventPlanStarted:
		cyan.Println("→ planning...")
	case events.EventPlanComplete:
		if d, ok := ev.Data.(events.PlanCompleteData); ok {
			cyan.Printf("  plan: %d sub-queries\n", d.SubQueryCount)
		}
	case events.EventSearchStarted:
		cyan.Println("→ searching...")
	case events.EventSearchComplete:
		if d, ok := ev.Data.(events.SearchProgressData); ok {
			green.Printf("  +%d sources (total %d)\n", d.NewSources, d.TotalSources)
		}
	case events.EventExtractComplete:
		if d, ok := ev.Data.(events.ExtractCompleteData); ok {
			green.Printf("  extracted %d findings\n", d.FindingCount)
		}
	case events.EventEvaluateComplete:
		if d, ok := ev.Data.(events.EvaluateCompleteData); ok {
			green.Printf("  evaluated, %d findings cumulative\n", d.CumulativeSize)
		}
	case events.EventCompactionComplete:
		if d, ok := ev.Data.(events.CompactionData); ok {
			yellow.Printf("  compacted %d -> %d findings\n", d.BeforeCount, d.AfterCount)
		}
	case events.EventCompletenessComplete:
		if d, ok := ev.Data.(events.CompletenessCompleteData); ok {
			cyan.Printf("  completeness: complete=%v followups=%d\n", d.Complete, d.FollowupCount)
		}
	case events.EventSynthesizeStarted:
		cyan.Println("→ synthesizing report...")
	case events.EventSynthesizeComplete:
		green.Println("  done")
	case events.EventCheckpointSaved:
		if d, ok := ev.Data.(events.CheckpointSavedData); ok {
			dim.Printf("  checkpoint saved (%s, iteration %d)\n", d.Phase, d.Iteration)
		}
	case events.EventAgentFailed:
		if d, ok := ev.Data.(events.AgentFailedData); ok {
			red.Printf("  %s failed (attempt %d/%d): %s\n", d.Phase, d.Attempt, d.MaxRetry+1, d.Err)
		}
	case events.EventContinuationStarted:
		if d, ok := ev.Data.(events.ContinuationData); ok {
			yellow.Printf("→ continuation %d/%d...\n", d.ContinuationNumber, continuation.MaxContinuations)
		}
	case events.EventContinuationComplete:
		yellow.Println("  continuation complete")
	}
}

package continuation

import (
	"context"
	"testing"

	"github.com/aperturelabs/deepquery/internal/llm"
	"github.com/aperturelabs/deepquery/internal/research"
	"github.com/aperturelabs/deepquery/internal/tools"
)

type fakeProvider struct {
	text string
	err  error
}

func (p *fakeProvider) Generate(ctx context.Context, messages []llm.Message, systemPrompt string, maxTokens int, temperature float64) (string, llm.Usage, error) {
	return p.text, llm.Usage{}, p.err
}
func (p *fakeProvider) GenerateWithTools(ctx context.Context, messages []llm.Message, toolSchemas []llm.ToolSchema, systemPrompt string, maxTokens int, temperature float64) (map[string]any, llm.Usage, error) {
	return nil, llm.Usage{}, nil
}
func (p *fakeProvider) ContextWindowTokens() int { return 0 }
func (p *fakeProvider) Model() string            { return "" }

type fakeLoop struct {
	result research.Result
	err    error
}

func (f *fakeLoop) Run(ctx context.Context, question string, rc research.ResearchContext) (research.Result, error) {
	return f.result, f.err
}

func TestContinueNoOpWhenNotNeeded(t *testing.T) {
	c := New(&fakeProvider{}, tools.NewEmptyRegistry(), nil, nil)
	in := research.Result{Metadata: research.Metadata{NeedsContinuation: false}}

	out, err := c.Continue(context.Background(), "q", research.Config{}, "", in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Metadata.Continuations != 0 {
		t.Errorf("Continuations = %d, want 0", out.Metadata.Continuations)
	}
}

func TestContinueMergesFindingsAndStopsWhenSatisfied(t *testing.T) {
	calls := 0
	factory := func(cfg research.Config, extension string, provider llm.Provider, reg *tools.Registry) LoopRunner {
		calls++
		return &fakeLoop{result: research.Result{
			Findings: []research.ScoredFinding{{Finding: research.Finding{RawQuote: "new finding"}}},
			Content:  "continued content",
			Metadata: research.Metadata{NeedsContinuation: false, TotalSources: 2, GenerationTimeMs: 50},
		}}
	}

	c := New(&fakeProvider{text: "handoff summary"}, tools.NewEmptyRegistry(), factory, nil)
	in := research.Result{
		Findings: []research.ScoredFinding{{Finding: research.Finding{RawQuote: "old finding"}}},
		Metadata: research.Metadata{NeedsContinuation: true, TotalSources: 3},
	}

	out, err := c.Continue(context.Background(), "q", research.Config{}, "ext", in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("factory called %d times, want 1", calls)
	}
	if len(out.Findings) != 2 {
		t.Errorf("Findings length = %d, want 2", len(out.Findings))
	}
	if out.Content != "continued content" {
		t.Errorf("Content = %q, want continued content", out.Content)
	}
	if out.Metadata.TotalSources != 5 {
		t.Errorf("TotalSources = %d, want 5", out.Metadata.TotalSources)
	}
	if out.Metadata.Continuations != 1 {
		t.Errorf("Continuations = %d, want 1", out.Metadata.Continuations)
	}
	if out.Metadata.NeedsContinuation {
		t.Error("NeedsContinuation should be false after satisfied continuation")
	}
}

func TestContinueStopsAtMaxContinuations(t *testing.T) {
	calls := 0
	factory := func(cfg research.Config, extension string, provider llm.Provider, reg *tools.Registry) LoopRunner {
		calls++
		return &fakeLoop{result: research.Result{
			Metadata: research.Metadata{NeedsContinuation: true},
		}}
	}

	c := New(&fakeProvider{text: "handoff"}, tools.NewEmptyRegistry(), factory, nil)
	in := research.Result{Metadata: research.Metadata{NeedsContinuation: true}}

	out, err := c.Continue(context.Background(), "q", research.Config{}, "ext", in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != MaxContinuations {
		t.Errorf("factory called %d times, want %d", calls, MaxContinuations)
	}
	if out.Metadata.Continuations != MaxContinuations {
		t.Errorf("Continuations = %d, want %d", out.Metadata.Continuations, MaxContinuations)
	}
	if !out.Metadata.NeedsContinuation {
		t.Error("NeedsContinuation should remain true when bound is hit")
	}
}

func TestContinueBreaksOnHandoffError(t *testing.T) {
	calls := 0
	factory := func(cfg research.Config, extension string, provider llm.Provider, reg *tools.Registry) LoopRunner {
		calls++
		return &fakeLoop{}
	}

	c := New(&fakeProvider{err: context.DeadlineExceeded}, tools.NewEmptyRegistry(), factory, nil)
	in := research.Result{Metadata: research.Metadata{NeedsContinuation: true}}

	out, err := c.Continue(context.Background(), "q", research.Config{}, "ext", in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 {
		t.Errorf("factory called %d times, want 0 (handoff failed before any Loop ran)", calls)
	}
	if out.Metadata.Continuations != 0 {
		t.Errorf("Continuations = %d, want 0", out.Metadata.Continuations)
	}
}

package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFromMapDefaultsMissingKeys(t *testing.T) {
	cp, err := FromMap(map[string]any{"correlation_id": "abc123"})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}
	if cp.Iteration != 0 {
		t.Errorf("Iteration = %d, want 0", cp.Iteration)
	}
	if cp.Phase != "" {
		t.Errorf("Phase = %q, want empty", cp.Phase)
	}
	if len(cp.Findings) != 0 {
		t.Errorf("Findings = %v, want empty", cp.Findings)
	}
	if cp.Plan != nil && len(cp.Plan) != 0 {
		t.Errorf("Plan = %v, want empty/nil", cp.Plan)
	}
}

func TestToMapFromMapRoundTrip(t *testing.T) {
	original := Checkpoint{
		CorrelationID: "run-1",
		Question:      "what is the capital of France",
		Iteration:     2,
		Phase:         PhaseEvaluate,
		TotalSources:  12,
		SearchRounds:  3,
		Plan:          map[string]any{"strategy_notes": "simple"},
		Findings:      []any{map[string]any{"relevance_score": 0.5}},
		Config:        map[string]any{"output": map[string]any{"format": "report"}},
		Extension:     "extra context",
	}

	m, err := original.ToMap()
	if err != nil {
		t.Fatalf("ToMap() error = %v", err)
	}

	restored, err := FromMap(m)
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}

	if restored.CorrelationID != original.CorrelationID || restored.Phase != original.Phase || restored.Iteration != original.Iteration {
		t.Errorf("round trip mismatch: got %+v, want %+v", restored, original)
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	cp := Checkpoint{CorrelationID: "run-xyz", Iteration: 1, Phase: PhasePlan}
	ctx := context.Background()

	if err := store.Save(ctx, cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(ctx, "run-xyz")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() = nil, want a checkpoint")
	}
	if loaded.Iteration != 1 || loaded.Phase != PhasePlan {
		t.Errorf("Load() = %+v, want iteration=1 phase=%q", loaded, PhasePlan)
	}
}

func TestFileStoreLoadMissingReturnsNilNoError(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	loaded, err := store.Load(context.Background(), "never-saved")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if loaded != nil {
		t.Errorf("Load() = %+v, want nil", loaded)
	}
}

func TestFileStoreSanitizesCorrelationIDForFilename(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	cp := Checkpoint{CorrelationID: "run/with:odd*chars", Phase: PhasePlan}
	if err := store.Save(context.Background(), cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got := store.path(cp.CorrelationID); filepath.Dir(got) != dir {
		t.Errorf("path() = %q, want file under %q", got, dir)
	}
}

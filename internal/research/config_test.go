package research

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	ok, errs := Default().Validate()
	if !ok {
		t.Errorf("expected default config to be valid, got errors: %v", errs)
	}
}

func TestValidateCatchesMultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Search.Decomposition = "bogus"
	cfg.Search.ParallelBranches = 99
	cfg.Completeness.MinSources = 100
	cfg.Completeness.MaxSources = 1

	ok, errs := cfg.Validate()
	if ok {
		t.Fatal("expected config to be invalid")
	}
	if len(errs) < 3 {
		t.Errorf("expected at least 3 errors, got %d: %v", len(errs), errs)
	}
}

func TestValidateBudgetBelowCompletenessFloor(t *testing.T) {
	cfg := Default()
	cfg.Search.Budget.MaxSources = 1
	cfg.Completeness.MinSources = 5

	ok, errs := cfg.Validate()
	if ok {
		t.Fatal("expected invalid config")
	}
	found := false
	for _, e := range errs {
		if e != nil {
			found = true
		}
	}
	if !found {
		t.Error("expected at least one error")
	}
}

func TestFromDictMergesOverDefaults(t *testing.T) {
	cfg, err := FromDict(map[string]any{
		"search": map[string]any{
			"max_iterations": 10,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.MaxIterations != 10 {
		t.Errorf("expected max_iterations=10, got %d", cfg.Search.MaxIterations)
	}
	if cfg.Search.ParallelBranches != Default().Search.ParallelBranches {
		t.Errorf("expected untouched field to keep default, got %d", cfg.Search.ParallelBranches)
	}
}

func TestConfigToDictRoundTrip(t *testing.T) {
	cfg := Default()
	dict, err := cfg.ToDict()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	restored, err := FromDict(dict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.Search.MaxIterations != cfg.Search.MaxIterations {
		t.Errorf("round trip lost max_iterations: got %d want %d", restored.Search.MaxIterations, cfg.Search.MaxIterations)
	}
}

func TestTargetLengthToTokens(t *testing.T) {
	cases := map[string]int{
		"brief":    1500,
		"standard": 4000,
		"detailed": 8000,
		"unknown":  4000,
		"":         4000,
	}
	for in, want := range cases {
		if got := TargetLengthToTokens(in); got != want {
			t.Errorf("TargetLengthToTokens(%q) = %d, want %d", in, got, want)
		}
	}
}

// Package checkpoint holds the pure-data snapshot the Loop emits at phase
// boundaries and the opaque sink/source ports used to persist it.
package checkpoint

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Checkpoint is an opaque, serializable snapshot of Loop state captured at a
// phase boundary. Its phase label names the phase just completed; on resume
// execution continues with the phase that follows it.
type Checkpoint struct {
	CorrelationID string         `yaml:"correlation_id"`
	Question      string         `yaml:"question"`
	Iteration     int            `yaml:"iteration"`
	Phase         string         `yaml:"phase"`
	TotalSources  int            `yaml:"total_sources_found"`
	SearchRounds  int            `yaml:"search_rounds"`
	Plan          map[string]any `yaml:"plan_dict"`
	Findings      []any          `yaml:"findings_dicts"`
	Config        map[string]any `yaml:"config_dict"`
	Extension     string         `yaml:"prompt_extension"`
	Context       map[string]any `yaml:"context_dict"`
}

// Phase labels, matching the Loop's recorded trajectory steps.
const (
	PhasePlan         = "plan"
	PhaseSearch       = "search"
	PhaseExtract      = "extract"
	PhaseEvaluate     = "evaluate"
	PhaseCompleteness = "completeness"
	PhaseSynthesize   = "synthesize"
	PhaseCompact      = "compact"
)

// ToMap serializes the checkpoint to a plain nested map suitable for
// round-tripping through any opaque store (JSON file, KV store, blob).
func (c Checkpoint) ToMap() (map[string]any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromMap deserializes a checkpoint from a plain nested map. Missing keys
// default to their zero value (iteration=0, phase="", findings_dicts=[],
// plan_dict={}).
func FromMap(m map[string]any) (Checkpoint, error) {
	var c Checkpoint
	data, err := yaml.Marshal(m)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}

// Sink receives a checkpoint at a phase boundary. Implementations may
// deduplicate but must never block the Loop for long; a Sink error is
// logged by the caller and never raised.
type Sink interface {
	Save(ctx context.Context, cp Checkpoint) error
}

// Source loads the most recent checkpoint for a correlation id, if one
// exists. Called once before Loop construction.
type Source interface {
	Load(ctx context.Context, correlationID string) (*Checkpoint, error)
}

// NopSink discards every checkpoint. Useful when a caller opts out of
// checkpoint/resume entirely.
type NopSink struct{}

// Save implements Sink by doing nothing.
func (NopSink) Save(ctx context.Context, cp Checkpoint) error { return nil }

// NopSource never finds a prior checkpoint.
type NopSource struct{}

// Load implements Source by always reporting no checkpoint found.
func (NopSource) Load(ctx context.Context, correlationID string) (*Checkpoint, error) {
	return nil, nil
}

package llm

import "strings"

// DefaultModel is used when DEEPQUERY_MODEL is unset: a reasoning-tuned
// model suited to the multi-step plan/evaluate/synthesize work this engine
// asks of it, rather than a single fixed-latency chat model.
const DefaultModel = "deepseek/deepseek-r1"

// rate is a per-million-token price pair in USD.
type rate struct {
	InputPer1M  float64
	OutputPer1M float64
}

// tier buckets a model by capability class rather than by exact id.
// OpenRouter's catalog rotates faster than this module's release cadence,
// so pricing and generation defaults key off naming convention instead of
// a table that needs an edit every time a new model id shows up.
type tier int

const (
	tierReasoning tier = iota
	tierStandard
	tierBudget
)

var tierRates = map[tier]rate{
	tierReasoning: {InputPer1M: 0.55, OutputPer1M: 2.19},
	tierStandard:  {InputPer1M: 1.00, OutputPer1M: 3.00},
	tierBudget:    {InputPer1M: 0.15, OutputPer1M: 0.60},
}

// modelTier classifies modelID by substrings common to reasoning and
// budget model names across providers. Anything unrecognized is priced and
// configured as tierStandard.
func modelTier(modelID string) tier {
	switch {
	case containsAny(modelID, "r1", "-thinking", "o1", "o3"):
		return tierReasoning
	case containsAny(modelID, "mini", "haiku", "flash", "nano"):
		return tierBudget
	default:
		return tierStandard
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// CalculateCost computes cost from token counts, feeding internal/cost's
// per-phase breakdown.
func CalculateCost(modelID string, inputTokens, outputTokens int) (inputCost, outputCost, totalCost float64) {
	r := tierRates[modelTier(modelID)]
	inputCost = float64(inputTokens) * r.InputPer1M / 1_000_000
	outputCost = float64(outputTokens) * r.OutputPer1M / 1_000_000
	totalCost = inputCost + outputCost
	return
}

// ModelConfig holds baseline generation parameters for a model.
type ModelConfig struct {
	ID          string
	MaxTokens   int
	Temperature float64
}

// ModelConfigFor returns baseline generation parameters for modelID.
// Reasoning-tier models get a larger completion budget and a lower
// temperature; every other tier gets general-purpose defaults. Callers
// that need a specific per-phase budget (e.g. synthesize's target-length
// mapping) pass their own maxTokens/temperature to Provider.Generate
// instead of relying on this baseline.
func ModelConfigFor(modelID string) ModelConfig {
	if modelTier(modelID) == tierReasoning {
		return ModelConfig{ID: modelID, MaxTokens: 16384, Temperature: 0.5}
	}
	return ModelConfig{ID: modelID, MaxTokens: 8192, Temperature: 0.7}
}

package loop

import (
	"encoding/json"

	"github.com/aperturelabs/deepquery/internal/research"
)

// planToMap and findingsToAny/researchContextToMap convert the Loop's typed
// state into the loosely-typed shapes checkpoint.Checkpoint carries, the
// mirror image of research.DecodeInto/DecodeArrayInto.

func planToMap(plan research.Plan) (map[string]any, error) {
	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findingsToAny(findings []research.ScoredFinding) []any {
	if len(findings) == 0 {
		return nil
	}
	raw, err := json.Marshal(findings)
	if err != nil {
		return nil
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func researchContextToMap(rc research.ResearchContext) map[string]any {
	raw, err := json.Marshal(rc)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

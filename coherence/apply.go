package coherence

import (
	"fmt"

	"github.com/meridianvc/diligence/agent"
)

// Apply writes an adjusted Result back into the scenario projector's record
// so the downstream synthesis step reads the reconciled figures. This is
// the engine's single mutation point; everything else in this package is a
// pure function.
//
// The contract is narrow and exhaustive. Apply overwrites exactly:
//
//	data.findings.scenarios
//	data.findings.probabilityWeightedOutcome.expectedMultiple
//	data.findings.probabilityWeightedOutcome.expectedMultipleCalculation
//	data.coherenceApplied
//	data.coherenceScore
//
// Every other field of the projector's payload, including the rest of the
// probabilityWeightedOutcome sub-object, is left untouched. When the Result
// carries no adjustments Apply is a no-op and the original payload is not
// modified at all.
//
// Callers must not read or write the result map concurrently with Apply.
func Apply(results agent.ResultMap, result *Result) error {
	if result == nil || !result.Adjusted {
		return nil
	}

	r := results.Get(agent.ScenarioProjector)
	if r == nil || !r.Success || r.Data == nil {
		return fmt.Errorf("apply coherence result: %s result unavailable", agent.ScenarioProjector)
	}

	findings, ok := r.Data["findings"].(map[string]any)
	if !ok {
		findings = map[string]any{}
		r.Data["findings"] = findings
	}

	scenarios := make([]any, 0, len(result.AdjustedScenarios))
	for _, s := range result.AdjustedScenarios {
		scenarios = append(scenarios, s.Payload())
	}
	findings["scenarios"] = scenarios

	outcome, ok := findings["probabilityWeightedOutcome"].(map[string]any)
	if !ok {
		outcome = map[string]any{}
		findings["probabilityWeightedOutcome"] = outcome
	}
	outcome["expectedMultiple"] = result.AdjustedProbabilityWeightedOutcome.ExpectedMultiple
	outcome["expectedMultipleCalculation"] = result.AdjustedProbabilityWeightedOutcome.ExpectedMultipleCalculation

	r.Data["coherenceApplied"] = true
	r.Data["coherenceScore"] = result.CoherenceScore

	return nil
}

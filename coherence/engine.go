package coherence

import (
	"fmt"
	"log/slog"

	"github.com/meridianvc/diligence/agent"
)

// Engine runs the coherence pass. It holds no mutable state between
// invocations: every Reconcile call reads the agent-result snapshot it is
// given and computes a fresh Result, so identical inputs always produce
// identical outputs.
type Engine struct {
	policy *Policy
	logger *slog.Logger
}

// NewEngine constructs an Engine. A nil policy selects DefaultPolicy; a nil
// logger selects slog.Default.
func NewEngine(policy *Policy, logger *slog.Logger) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{policy: policy, logger: logger}
}

// Policy returns the engine's active policy.
func (e *Engine) Policy() *Policy {
	return e.policy
}

// Reconcile checks the scenario projector's output against the skepticism
// assessment, the Tier-1 average and the critical red-flag count, and
// returns the adjusted scenario set plus a full audit trail.
//
// Degraded inputs never abort the pass: a missing or failed scenario
// projector yields a terminal zero result with a warning, and a missing
// skepticism signal substitutes the neutral default with a warning. The
// returned Result is complete in every case.
func (e *Engine) Reconcile(results agent.ResultMap) *Result {
	scenarios := ExtractScenarios(results)
	if scenarios == nil {
		warning := fmt.Sprintf("%s produced no scenarios; coherence reconciliation skipped", agent.ScenarioProjector)
		e.logger.Warn("Coherence pass skipped", "reason", warning)
		return &Result{
			Adjusted:       false,
			CoherenceScore: 0,
			Warnings:       []string{warning},
			AdjustedProbabilityWeightedOutcome: WeightedOutcome{
				ExpectedIRR: -100,
				Reliable:    false,
			},
		}
	}

	byName := make(map[string]Scenario, 4)
	for _, s := range scenarios {
		byName[s.Name] = s
	}
	for _, name := range branchOrder {
		if _, ok := byName[name]; !ok {
			byName[name] = Scenario{Name: name}
		}
	}

	var warnings []string
	sig := signals{
		T1Average:        ExtractT1AverageScore(results, e.policy.AnalystRoster),
		CriticalRedFlags: ExtractCriticalRedFlagCount(results),
	}
	if score := ExtractScepticismScore(results); score != nil {
		sig.Scepticism = *score
	} else {
		sig.Scepticism = e.policy.NeutralScepticism
		warnings = append(warnings,
			fmt.Sprintf("%s scepticism score unavailable; assuming neutral %g", agent.DevilsAdvocate, e.policy.NeutralScepticism))
	}

	// Scored before any adjustment: this diagnoses the raw inputs.
	coherenceScore := scoreCoherence(byName, sig)

	st := ruleState{
		Catastrophic: byName[Catastrophic].Probability,
		Bear:         byName[Bear].Probability,
		Base:         byName[Base].Probability,
		Bull:         byName[Bull].Probability,
		BaseMultiple: byName[Base].Multiple,
		BullMultiple: byName[Bull].Multiple,
	}
	probs, baseMultiple, bullMultiple, adjustments := evaluateRules(st, sig, e.policy)

	adjusted := e.buildScenarios(byName, probs, baseMultiple, bullMultiple, sig)
	outcome := recalculateOutcome(adjusted, sig, coherenceScore, e.policy)

	result := &Result{
		Adjusted:                           len(adjustments) > 0,
		Adjustments:                        adjustments,
		AdjustedScenarios:                  adjusted,
		AdjustedProbabilityWeightedOutcome: outcome,
		CoherenceScore:                     coherenceScore,
		Warnings:                           warnings,
	}
	e.logResult(result)
	return result
}

// buildScenarios assembles the four AdjustedScenario records in fixed order
// from the rule engine's output.
func (e *Engine) buildScenarios(byName map[string]Scenario, probs Probabilities, baseMultiple, bullMultiple float64, sig signals) []*AdjustedScenario {
	out := make([]*AdjustedScenario, 0, 4)
	for _, name := range branchOrder {
		raw := byName[name]

		final := raw
		final.Probability = float64(probs.Get(name))
		switch name {
		case Base:
			final.Multiple = baseMultiple
		case Bull:
			final.Multiple = bullMultiple
		}

		s := &AdjustedScenario{
			Scenario: final,
			Reliable: sig.Scepticism < e.policy.ReliabilityScepticismMax || name == Catastrophic || name == Bear,
		}
		if final.Probability != raw.Probability {
			orig := raw.Probability
			s.OriginalProbability = &orig
			s.Adjusted = true
		}
		if final.Multiple != raw.Multiple {
			orig := raw.Multiple
			s.OriginalMultiple = &orig
			s.Adjusted = true
		}
		out = append(out, s)
	}
	return out
}

// logResult emits the diagnostic trail: either a single no-op line or one
// line per applied adjustment.
func (e *Engine) logResult(result *Result) {
	if !result.Adjusted {
		e.logger.Info("No coherence adjustments needed",
			"coherence_score", result.CoherenceScore)
		return
	}
	for _, adj := range result.Adjustments {
		e.logger.Info("Coherence adjustment applied",
			"rule", adj.Rule,
			"field", adj.Field,
			"before", adj.Before,
			"after", adj.After,
			"reason", adj.Reason)
	}
	e.logger.Info("Coherence pass complete",
		"adjustments", len(result.Adjustments),
		"coherence_score", result.CoherenceScore,
		"expected_multiple", result.AdjustedProbabilityWeightedOutcome.ExpectedMultiple)
}

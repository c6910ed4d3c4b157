package coherence

import (
	"testing"

	"github.com/meridianvc/diligence/agent"
)

func TestApplyInjectsAdjustedFindings(t *testing.T) {
	engine := testEngine()
	results := standardResults(85)
	result := engine.Reconcile(results)
	if !result.Adjusted {
		t.Fatal("fixture did not trigger adjustments")
	}

	if err := Apply(results, result); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	data := results.Payload(agent.ScenarioProjector)
	findings, _ := data["findings"].(map[string]any)
	if findings == nil {
		t.Fatal("findings missing after Apply")
	}

	scenarios, _ := findings["scenarios"].([]any)
	if len(scenarios) != 4 {
		t.Fatalf("got %d scenarios, want 4", len(scenarios))
	}
	for i, want := range result.AdjustedScenarios {
		got, _ := scenarios[i].(map[string]any)
		if got == nil {
			t.Fatalf("scenario %d is not a map", i)
		}
		prob, _ := got["probability"].(map[string]any)
		if prob["value"] != want.Probability {
			t.Errorf("%s probability = %v, want %g", want.Name, prob["value"], want.Probability)
		}
		if got["adjusted"] != want.Adjusted {
			t.Errorf("%s adjusted flag = %v, want %v", want.Name, got["adjusted"], want.Adjusted)
		}
	}

	outcome, _ := findings["probabilityWeightedOutcome"].(map[string]any)
	if outcome == nil {
		t.Fatal("probabilityWeightedOutcome missing after Apply")
	}
	if outcome["expectedMultiple"] != result.AdjustedProbabilityWeightedOutcome.ExpectedMultiple {
		t.Errorf("expectedMultiple = %v, want %g",
			outcome["expectedMultiple"], result.AdjustedProbabilityWeightedOutcome.ExpectedMultiple)
	}
	if outcome["expectedMultipleCalculation"] != result.AdjustedProbabilityWeightedOutcome.ExpectedMultipleCalculation {
		t.Errorf("expectedMultipleCalculation = %v", outcome["expectedMultipleCalculation"])
	}
	if outcome["methodology"] != "weighted sum" {
		t.Errorf("sibling outcome field clobbered: methodology = %v", outcome["methodology"])
	}

	if data["coherenceApplied"] != true {
		t.Error("coherenceApplied tag missing")
	}
	if data["coherenceScore"] != result.CoherenceScore {
		t.Errorf("coherenceScore = %v, want %g", data["coherenceScore"], result.CoherenceScore)
	}
}

func TestApplyNoOpWithoutAdjustments(t *testing.T) {
	engine := testEngine()
	results := standardResults(30)
	result := engine.Reconcile(results)
	if result.Adjusted {
		t.Fatal("fixture unexpectedly triggered adjustments")
	}

	if err := Apply(results, result); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	data := results.Payload(agent.ScenarioProjector)
	if _, tagged := data["coherenceApplied"]; tagged {
		t.Error("no-op Apply must not tag the payload")
	}
	findings, _ := data["findings"].(map[string]any)
	scenarios, _ := findings["scenarios"].([]any)
	first, _ := scenarios[0].(map[string]any)
	if first == nil {
		t.Fatal("original scenario list was replaced")
	}
	if _, rewritten := first["adjusted"]; rewritten {
		t.Error("no-op Apply must leave scenario entries untouched")
	}
}

func TestApplyNilResult(t *testing.T) {
	if err := Apply(standardResults(85), nil); err != nil {
		t.Errorf("Apply(nil result) error: %v", err)
	}
}

func TestApplyMissingProjector(t *testing.T) {
	results := standardResults(85)
	result := testEngine().Reconcile(results)

	delete(results, agent.ScenarioProjector)
	if err := Apply(results, result); err == nil {
		t.Error("expected error when projector result is gone")
	}

	results = standardResults(85)
	results[agent.ScenarioProjector].Success = false
	if err := Apply(results, result); err == nil {
		t.Error("expected error when projector result is marked failed")
	}
}

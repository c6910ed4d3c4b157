// Package coherence reconciles conflicting outputs from the Tier-3 analysis
// agents before the synthesis step reads them. The scenario projector's
// probability/return projections are checked against the independent
// skepticism assessment, the Tier-1 average score, and the critical red-flag
// count; when they disagree, an ordered set of deterministic rules adjusts
// the scenario set and records every change for audit.
//
// Everything in this package except Apply is a pure function of its inputs:
// same inputs, same outputs, no I/O. Apply is the single mutation point that
// writes an adjusted result back into the scenario projector's record.
package coherence

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Scenario branch names. Exactly these four branches make up a projection.
const (
	Catastrophic = "CATASTROPHIC"
	Bear         = "BEAR"
	Base         = "BASE"
	Bull         = "BULL"
)

// branchOrder fixes the iteration order everywhere probabilities are
// processed, so a given input always produces byte-identical output.
var branchOrder = [4]string{Catastrophic, Bear, Base, Bull}

// Scenario is one branch of the projector's output, reduced to the two
// numbers the engine reasons about. Raw retains the branch's full payload
// (exit timing, assumptions, risk lists) for passthrough: nothing outside
// probability and multiple is touched.
type Scenario struct {
	Name        string
	Probability float64
	Multiple    float64

	// Raw is the branch's original decoded payload, nil when the branch was
	// synthesized for a projection that omitted it.
	Raw map[string]any
}

// AdjustedScenario is a Scenario after the rule engine has run. Probability
// is an integer at this point (the four always sum to exactly 100).
type AdjustedScenario struct {
	Scenario

	// Adjusted is true when either the probability or the multiple differs
	// from the raw projector output.
	Adjusted bool
	// Reliable marks whether downstream consumers should trust this branch's
	// figures. CATASTROPHIC and BEAR are always reliable; BASE and BULL lose
	// trust once skepticism crosses the reliability threshold.
	Reliable bool

	// Audit trail, set only when the corresponding value changed.
	OriginalProbability *float64
	OriginalMultiple    *float64
}

// Payload renders the adjusted branch back into the projector's wire shape:
// a clone of the raw payload with probability.value, investorReturn.multiple
// and the adjustment metadata overwritten. Fields the engine doesn't know
// about pass through untouched.
func (s *AdjustedScenario) Payload() map[string]any {
	out := cloneMap(s.Raw)
	if out == nil {
		out = map[string]any{"scenario": s.Name}
	}

	prob, _ := out["probability"].(map[string]any)
	prob = cloneMap(prob)
	if prob == nil {
		prob = map[string]any{}
	}
	prob["value"] = s.Probability
	out["probability"] = prob

	ret, _ := out["investorReturn"].(map[string]any)
	ret = cloneMap(ret)
	if ret == nil {
		ret = map[string]any{}
	}
	ret["multiple"] = s.Multiple
	out["investorReturn"] = ret

	out["adjusted"] = s.Adjusted
	out["reliable"] = s.Reliable
	if s.OriginalProbability != nil {
		out["originalProbability"] = *s.OriginalProbability
	}
	if s.OriginalMultiple != nil {
		out["originalMultiple"] = *s.OriginalMultiple
	}
	return out
}

// MarshalJSON serializes the adjusted branch in its wire shape.
func (s *AdjustedScenario) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Payload())
}

// UnmarshalJSON decodes the wire shape produced by MarshalJSON. The full
// payload is retained as Raw so a decoded branch re-marshals unchanged.
func (s *AdjustedScenario) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	label, _ := raw["scenario"].(string)
	if name, ok := normalizeBranchName(label); ok {
		s.Name = name
	} else {
		s.Name = label
	}
	s.Raw = raw

	if prob, ok := raw["probability"].(map[string]any); ok {
		s.Probability, _ = numberField(prob, "value")
	}
	if ret, ok := raw["investorReturn"].(map[string]any); ok {
		s.Multiple, _ = numberField(ret, "multiple")
	}
	s.Adjusted, _ = raw["adjusted"].(bool)
	s.Reliable, _ = raw["reliable"].(bool)
	if v, ok := numberField(raw, "originalProbability"); ok {
		s.OriginalProbability = &v
	}
	if v, ok := numberField(raw, "originalMultiple"); ok {
		s.OriginalMultiple = &v
	}
	return nil
}

// Adjustment is one audit record. A single rule invocation may emit zero,
// one, or several of these, one per individual numeric change.
type Adjustment struct {
	Rule   string  `json:"rule"`
	Field  string  `json:"field"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Reason string  `json:"reason"`
}

func (a Adjustment) String() string {
	return fmt.Sprintf("[%s] %s: %g -> %g (%s)", a.Rule, a.Field, a.Before, a.After, a.Reason)
}

// WeightedOutcome is the probability-weighted expected return recomputed
// from the (possibly adjusted) scenario set.
type WeightedOutcome struct {
	ExpectedMultiple            float64 `json:"expectedMultiple"`
	ExpectedMultipleCalculation string  `json:"expectedMultipleCalculation"`
	// ExpectedIRR assumes a fixed 5-year hold regardless of each branch's
	// stated exit timing; downstream consumers depend on that approximation.
	ExpectedIRR float64 `json:"expectedIRR"`
	Reliable    bool    `json:"reliable"`
}

// Result is the engine's full output for one invocation. Everything here is
// transient, recomputed fresh from the current agent-result snapshot; the
// engine persists nothing.
type Result struct {
	// Adjusted is true iff any adjustment was applied.
	Adjusted    bool         `json:"adjusted"`
	Adjustments []Adjustment `json:"adjustments"`
	// AdjustedScenarios holds the four branches in fixed order
	// (CATASTROPHIC, BEAR, BASE, BULL); nil when no scenarios were available.
	AdjustedScenarios []*AdjustedScenario `json:"adjustedScenarios"`

	AdjustedProbabilityWeightedOutcome WeightedOutcome `json:"adjustedProbabilityWeightedOutcome"`

	// CoherenceScore measures how consistent the raw agent outputs were
	// BEFORE correction (100 = fully consistent). A low score alongside many
	// adjustments is the engine working as intended, not a defect.
	CoherenceScore float64 `json:"coherenceScore"`

	// Warnings describe degraded-input conditions, e.g. a missing
	// skepticism signal. They never abort the run.
	Warnings []string `json:"warnings,omitempty"`
}

// cloneMap returns a shallow copy of m, deep-copying nested maps one level
// where the engine overwrites into them. nil stays nil.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// normalizeBranchName maps a payload's scenario label onto one of the four
// canonical branch names, tolerating case and surrounding whitespace.
func normalizeBranchName(raw string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case Catastrophic:
		return Catastrophic, true
	case Bear:
		return Bear, true
	case Base:
		return Base, true
	case Bull:
		return Bull, true
	}
	return "", false
}

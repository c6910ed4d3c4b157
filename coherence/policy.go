package coherence

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meridianvc/diligence/agent"
)

// Policy collects every threshold, coefficient, floor and cap the rule
// engine and its companions use, so deployments can tune the numbers
// without touching control flow. DefaultPolicy carries the values the
// pipeline has been calibrated against; change them deliberately.
//
// Scepticism thresholds are strict (a rule gated on 70 fires at 70.01, not
// at 70).
type Policy struct {
	// NeutralScepticism substitutes for a missing skepticism signal.
	NeutralScepticism float64 `yaml:"neutral_scepticism"`

	// --- probability rules, in firing order ---

	// ScepticismShiftThreshold gates the proportional shift from BULL/BASE
	// toward CATASTROPHIC. CatastrophicSlope is the per-point boost to
	// CATASTROPHIC above that threshold.
	ScepticismShiftThreshold float64 `yaml:"scepticism_shift_threshold"`
	CatastrophicSlope        float64 `yaml:"catastrophic_slope"`
	CatastrophicCeiling      float64 `yaml:"catastrophic_ceiling"`
	BullProbabilityFloor     float64 `yaml:"bull_probability_floor"`
	BaseProbabilityFloor     float64 `yaml:"base_probability_floor"`

	// BaseCapThreshold hard-caps BASE at BaseCap.
	BaseCapThreshold float64 `yaml:"base_cap_threshold"`
	BaseCap          float64 `yaml:"base_cap"`

	// BullCapThreshold forces BULL strictly under BullCapTrigger.
	BullCapThreshold float64 `yaml:"bull_cap_threshold"`
	BullCapTrigger   float64 `yaml:"bull_cap_trigger"`
	BullCap          float64 `yaml:"bull_cap"`

	// CatastrophicForceThreshold forces CATASTROPHIC strictly over
	// CatastrophicForceTrigger by setting it to CatastrophicForceValue.
	CatastrophicForceThreshold float64 `yaml:"catastrophic_force_threshold"`
	CatastrophicForceTrigger   float64 `yaml:"catastrophic_force_trigger"`
	CatastrophicForceValue     float64 `yaml:"catastrophic_force_value"`

	// WeakTier1Threshold gates the upstream-average rule.
	WeakTier1Threshold         float64 `yaml:"weak_tier1_threshold"`
	WeakTier1CatastrophicFloor float64 `yaml:"weak_tier1_catastrophic_floor"`
	WeakTier1BullCap           float64 `yaml:"weak_tier1_bull_cap"`

	// CriticalRedFlagThreshold gates the red-flag boost; each flag past the
	// threshold adds RedFlagStep to CATASTROPHIC, up to RedFlagMaxBoost.
	CriticalRedFlagThreshold int     `yaml:"critical_red_flag_threshold"`
	RedFlagStep              float64 `yaml:"red_flag_step"`
	RedFlagMaxBoost          float64 `yaml:"red_flag_max_boost"`

	// --- multiple damping ---

	// DampingThreshold gates the quadratic damping of BASE/BULL multiples.
	DampingThreshold  float64 `yaml:"damping_threshold"`
	BaseMultipleFloor float64 `yaml:"base_multiple_floor"`
	BullMultipleFloor float64 `yaml:"bull_multiple_floor"`
	// MultipleEpsilon is the minimum change worth applying and recording.
	MultipleEpsilon float64 `yaml:"multiple_epsilon"`

	// --- reliability and outcome ---

	// ReliabilityScepticismMax: at or above this skepticism, BULL and BASE
	// figures are tagged unreliable and the recalculated outcome loses its
	// reliable flag.
	ReliabilityScepticismMax float64 `yaml:"reliability_scepticism_max"`
	// OutcomeCoherenceMin: the recalculated outcome is only reliable when
	// the pre-adjustment coherence score exceeds this.
	OutcomeCoherenceMin float64 `yaml:"outcome_coherence_min"`
	// HoldYears is the fixed holding period assumed by the IRR estimate.
	HoldYears float64 `yaml:"hold_years"`

	// AnalystRoster lists the upstream analysts contributing to the
	// Tier-1 average. Entries are glob patterns matched against agent names.
	AnalystRoster []string `yaml:"analyst_roster"`
}

// DefaultPolicy returns the calibrated policy the pipeline ships with.
func DefaultPolicy() *Policy {
	return &Policy{
		NeutralScepticism: 50,

		ScepticismShiftThreshold: 50,
		CatastrophicSlope:        0.8,
		CatastrophicCeiling:      80,
		BullProbabilityFloor:     2,
		BaseProbabilityFloor:     10,

		BaseCapThreshold: 70,
		BaseCap:          20,

		BullCapThreshold: 80,
		BullCapTrigger:   5,
		BullCap:          4,

		CatastrophicForceThreshold: 90,
		CatastrophicForceTrigger:   60,
		CatastrophicForceValue:     65,

		WeakTier1Threshold:         40,
		WeakTier1CatastrophicFloor: 45,
		WeakTier1BullCap:           5,

		CriticalRedFlagThreshold: 3,
		RedFlagStep:              5,
		RedFlagMaxBoost:          20,

		DampingThreshold:  60,
		BaseMultipleFloor: 1,
		BullMultipleFloor: 2,
		MultipleEpsilon:   0.1,

		ReliabilityScepticismMax: 60,
		OutcomeCoherenceMin:      60,
		HoldYears:                5,

		AnalystRoster: agent.Tier1Analysts,
	}
}

// Validate checks the policy for values that would make the rule engine
// misbehave rather than merely behave differently.
func (p *Policy) Validate() error {
	if p.CatastrophicCeiling <= 0 || p.CatastrophicCeiling > 100 {
		return fmt.Errorf("catastrophic_ceiling must be in (0,100], got %g", p.CatastrophicCeiling)
	}
	if p.HoldYears <= 0 {
		return fmt.Errorf("hold_years must be positive, got %g", p.HoldYears)
	}
	if p.MultipleEpsilon < 0 {
		return fmt.Errorf("multiple_epsilon must be non-negative, got %g", p.MultipleEpsilon)
	}
	if len(p.AnalystRoster) == 0 {
		return fmt.Errorf("analyst_roster must not be empty")
	}
	return nil
}

// LoadPolicy reads a policy YAML file. Unset fields keep their defaults, so
// a file overriding a single threshold is valid.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	policy := DefaultPolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return policy, nil
}

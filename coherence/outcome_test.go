package coherence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecalculateOutcome(t *testing.T) {
	policy := DefaultPolicy()
	scenarios := []*AdjustedScenario{
		{Scenario: Scenario{Name: Catastrophic, Probability: 20, Multiple: 0}},
		{Scenario: Scenario{Name: Bear, Probability: 30, Multiple: 0.5}},
		{Scenario: Scenario{Name: Base, Probability: 40, Multiple: 3}},
		{Scenario: Scenario{Name: Bull, Probability: 10, Multiple: 8}},
	}

	outcome := recalculateOutcome(scenarios, signals{Scepticism: 40}, 90, policy)
	require.NotEmpty(t, outcome.ExpectedMultipleCalculation)

	// 0.2*0 + 0.3*0.5 + 0.4*3 + 0.1*8 = 2.15
	assert.InDelta(t, 2.15, outcome.ExpectedMultiple, 1e-9)
	assert.Equal(t, "20%×0.00x + 30%×0.50x + 40%×3.00x + 10%×8.00x",
		outcome.ExpectedMultipleCalculation)

	wantIRR := (math.Pow(2.15, 1.0/5) - 1) * 100
	assert.InDelta(t, wantIRR, outcome.ExpectedIRR, 1e-9)
	assert.True(t, outcome.Reliable, "low skepticism and high coherence should be reliable")
}

func TestRecalculateOutcomeTotalLoss(t *testing.T) {
	policy := DefaultPolicy()
	scenarios := []*AdjustedScenario{
		{Scenario: Scenario{Name: Catastrophic, Probability: 100, Multiple: 0}},
		{Scenario: Scenario{Name: Bear, Probability: 0, Multiple: 0.5}},
		{Scenario: Scenario{Name: Base, Probability: 0, Multiple: 3}},
		{Scenario: Scenario{Name: Bull, Probability: 0, Multiple: 8}},
	}

	outcome := recalculateOutcome(scenarios, signals{Scepticism: 40}, 90, policy)

	assert.Zero(t, outcome.ExpectedMultiple)
	assert.Equal(t, -100.0, outcome.ExpectedIRR, "zero expected multiple reads as total loss")
}

func TestRecalculateOutcomeReliability(t *testing.T) {
	policy := DefaultPolicy()
	scenarios := []*AdjustedScenario{
		{Scenario: Scenario{Name: Base, Probability: 100, Multiple: 2}},
	}

	tests := []struct {
		name       string
		scepticism float64
		coherence  float64
		want       bool
	}{
		{"trusted", 40, 80, true},
		{"skepticism at threshold", 60, 80, false},
		{"coherence at threshold", 40, 60, false},
		{"both bad", 90, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := recalculateOutcome(scenarios, signals{Scepticism: tt.scepticism}, tt.coherence, policy)
			assert.Equal(t, tt.want, outcome.Reliable)
		})
	}
}

func TestRecalculateOutcomeHoldYears(t *testing.T) {
	policy := DefaultPolicy()
	policy.HoldYears = 10
	scenarios := []*AdjustedScenario{
		{Scenario: Scenario{Name: Base, Probability: 100, Multiple: 4}},
	}

	outcome := recalculateOutcome(scenarios, signals{Scepticism: 40}, 90, policy)

	wantIRR := (math.Pow(4, 1.0/10) - 1) * 100
	assert.InDelta(t, wantIRR, outcome.ExpectedIRR, 1e-9)
}

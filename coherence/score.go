package coherence

import "math"

// Coherence-score penalty table. These characterize how self-consistent the
// raw agent outputs were BEFORE any correction, so they read the scenarios'
// original values and stay entirely independent of whether the rule engine
// fires. A low score next to a long adjustment list is the expected pairing.
const (
	scoreScepticismGateHigh    = 70
	scoreScepticismGateExtreme = 80

	scoreBullProbLimit   = 20
	scoreBullProbPenalty = 30 // cap; 2 points per % past the limit
	scoreBaseProbLimit   = 30
	scoreBaseProbPenalty = 20 // cap; 1 point per % past the limit
	scoreCatProbFloor    = 30
	scoreCatProbPenalty  = 25 // cap; 1 point per % short of the floor

	scoreWeakT1Limit       = 40
	scoreWeakT1BullMult    = 5
	scoreWeakT1BullPenalty = 15
	scoreWeakT1BaseMult    = 3
	scoreWeakT1BasePenalty = 10

	scoreRedFlagGate    = 3
	scoreRedFlagCatProb = 25
	scoreRedFlagPenalty = 20 // cap; 3 points per critical flag
)

// scoreCoherence computes the 0-100 pre-adjustment consistency diagnostic.
// Individual penalties are not floored, only the final total is.
func scoreCoherence(scenarios map[string]Scenario, sig signals) float64 {
	score := 100.0
	s := sig.Scepticism

	bull := scenarios[Bull]
	base := scenarios[Base]
	cat := scenarios[Catastrophic]

	if s > scoreScepticismGateHigh && bull.Probability > scoreBullProbLimit {
		score -= math.Min(scoreBullProbPenalty, (bull.Probability-scoreBullProbLimit)*2)
	}
	if s > scoreScepticismGateHigh && base.Probability > scoreBaseProbLimit {
		score -= math.Min(scoreBaseProbPenalty, base.Probability-scoreBaseProbLimit)
	}
	if s > scoreScepticismGateExtreme && cat.Probability < scoreCatProbFloor {
		score -= math.Min(scoreCatProbPenalty, scoreCatProbFloor-cat.Probability)
	}

	if sig.T1Average != nil && *sig.T1Average < scoreWeakT1Limit {
		if bull.Multiple > scoreWeakT1BullMult {
			score -= scoreWeakT1BullPenalty
		}
		if base.Multiple > scoreWeakT1BaseMult {
			score -= scoreWeakT1BasePenalty
		}
	}

	if sig.CriticalRedFlags > scoreRedFlagGate && cat.Probability < scoreRedFlagCatProb {
		score -= math.Min(scoreRedFlagPenalty, float64(sig.CriticalRedFlags)*3)
	}

	return math.Max(0, score)
}

package coherence

import (
	"fmt"
	"math"
	"strings"
)

// recalculateOutcome recomputes the probability-weighted expected return
// from the (possibly adjusted) four scenarios, with a human-readable
// calculation string for the memo.
//
// The IRR estimate assumes the policy's fixed holding period for every
// branch rather than each branch's stated exit timing; a non-positive
// expected multiple reads as total loss (-100%).
func recalculateOutcome(scenarios []*AdjustedScenario, sig signals, coherenceScore float64, p *Policy) WeightedOutcome {
	var expected float64
	terms := make([]string, 0, len(scenarios))

	for _, s := range scenarios {
		expected += s.Probability / 100 * s.Multiple
		terms = append(terms, fmt.Sprintf("%.0f%%×%.2fx", s.Probability, s.Multiple))
	}

	irr := -100.0
	if expected > 0 {
		irr = (math.Pow(expected, 1/p.HoldYears) - 1) * 100
	}

	return WeightedOutcome{
		ExpectedMultiple:            expected,
		ExpectedMultipleCalculation: strings.Join(terms, " + "),
		ExpectedIRR:                 irr,
		Reliable:                    sig.Scepticism < p.ReliabilityScepticismMax && coherenceScore > p.OutcomeCoherenceMin,
	}
}

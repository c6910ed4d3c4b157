package coherence

import "math"

// Probabilities holds one integer probability per branch. Post-engine
// invariant: the four values sum to exactly 100 and none is negative.
type Probabilities struct {
	Catastrophic int
	Bear         int
	Base         int
	Bull         int
}

// Sum returns the total across the four branches.
func (p Probabilities) Sum() int {
	return p.Catastrophic + p.Bear + p.Base + p.Bull
}

// Get returns the named branch's value.
func (p Probabilities) Get(name string) int {
	switch name {
	case Catastrophic:
		return p.Catastrophic
	case Bear:
		return p.Bear
	case Base:
		return p.Base
	case Bull:
		return p.Bull
	}
	return 0
}

// NormalizeProbabilities turns four raw scenario weights into integers
// summing exactly to 100. Negative inputs are clamped to zero first; an
// all-zero input yields an even split.
//
// When the clamped total is already within 0.5 of 100, the three
// decision-relevant branches are rounded independently and BEAR absorbs the
// rounding error; BEAR is the least decision-relevant branch in this
// domain. Otherwise all four are scaled by 100/total first. Rounding the
// near-100 case without rescaling avoids compounding rounding artifacts on
// inputs that are already close to a valid distribution.
func NormalizeProbabilities(catastrophic, bear, base, bull float64) Probabilities {
	catastrophic = math.Max(0, catastrophic)
	bear = math.Max(0, bear)
	base = math.Max(0, base)
	bull = math.Max(0, bull)

	total := catastrophic + bear + base + bull
	if total == 0 {
		return Probabilities{Catastrophic: 25, Bear: 25, Base: 25, Bull: 25}
	}

	if math.Abs(total-100) > 0.5 {
		scale := 100 / total
		catastrophic *= scale
		base *= scale
		bull *= scale
	}

	p := Probabilities{
		Catastrophic: int(math.Round(catastrophic)),
		Base:         int(math.Round(base)),
		Bull:         int(math.Round(bull)),
	}
	p.Bear = 100 - p.Catastrophic - p.Base - p.Bull

	// BEAR can only go negative when its weight scaled to nearly nothing and
	// the other three rounded up. Take the deficit out of the largest branch
	// so the sum and non-negativity invariants both hold.
	if p.Bear < 0 {
		deficit := -p.Bear
		p.Bear = 0
		switch {
		case p.Catastrophic >= p.Base && p.Catastrophic >= p.Bull:
			p.Catastrophic -= deficit
		case p.Base >= p.Bull:
			p.Base -= deficit
		default:
			p.Bull -= deficit
		}
	}
	return p
}

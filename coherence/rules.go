package coherence

import (
	"fmt"
	"math"
)

// signals are the extracted upstream inputs the rules are gated on. They
// are fixed for the duration of one engine invocation; rules read them but
// never change them.
type signals struct {
	// Scepticism is the effective skepticism score (0-100). When the
	// devils-advocate agent was missing this holds the neutral default.
	Scepticism float64
	// T1Average is the upstream-tier average score, nil when no analyst
	// contributed. Rules gated on it are skipped entirely when nil.
	T1Average *float64
	// CriticalRedFlags counts CRITICAL entries from the contradiction
	// detector.
	CriticalRedFlags int
}

// ruleState carries the values the ordered rules mutate. Probabilities stay
// floats until renormalization; multiples stay floats throughout.
type ruleState struct {
	Catastrophic float64
	Bear         float64
	Base         float64
	Bull         float64

	BaseMultiple float64
	BullMultiple float64
}

// branchBounds accumulates the hard floors and caps the fired rules
// imposed, so they can be re-enforced after renormalization (scaling can
// push a previously-capped value back past its cap).
type branchBounds struct {
	min map[string]float64
	max map[string]float64
}

func newBranchBounds() *branchBounds {
	return &branchBounds{min: map[string]float64{}, max: map[string]float64{}}
}

func (b *branchBounds) floor(branch string, v float64) {
	if cur, ok := b.min[branch]; !ok || v > cur {
		b.min[branch] = v
	}
}

func (b *branchBounds) cap(branch string, v float64) {
	if cur, ok := b.max[branch]; !ok || v < cur {
		b.max[branch] = v
	}
}

// clamp applies the accumulated bounds to an integer branch value and
// returns the clamped value.
func (b *branchBounds) clamp(branch string, v int) int {
	if m, ok := b.min[branch]; ok && float64(v) < m {
		v = int(math.Ceil(m))
	}
	if m, ok := b.max[branch]; ok && float64(v) > m {
		v = int(math.Floor(m))
	}
	return v
}

// recorder appends one audit record per individual numeric change.
type recorder struct {
	adjustments []Adjustment
}

// change records a single field change when after differs from before, and
// returns after so rules can assign through it.
func (r *recorder) change(rule, field string, before, after float64, reason string) float64 {
	if after != before {
		r.adjustments = append(r.adjustments, Adjustment{
			Rule:   rule,
			Field:  field,
			Before: before,
			After:  after,
			Reason: reason,
		})
	}
	return after
}

// ruleFunc is one independently-gated adjustment step. Rules compose: each
// sees the state as left by the rules before it. The order of the pipeline
// is part of the engine's contract.
type ruleFunc func(st *ruleState, sig signals, p *Policy, rec *recorder, bounds *branchBounds)

// probabilityRules returns the ordered probability-adjustment pipeline.
func probabilityRules() []ruleFunc {
	return []ruleFunc{
		scepticismShiftRule,
		scepticismBaseCapRule,
		scepticismBullCapRule,
		scepticismCatastrophicForceRule,
		weakTier1Rule,
		criticalRedFlagRule,
	}
}

// scepticismShiftRule shifts probability mass from BULL and BASE toward
// CATASTROPHIC proportionally to how far skepticism exceeds the shift
// threshold.
func scepticismShiftRule(st *ruleState, sig signals, p *Policy, rec *recorder, bounds *branchBounds) {
	s := sig.Scepticism
	if s <= p.ScepticismShiftThreshold {
		return
	}
	tag := fmt.Sprintf("SCEPTICISM_>%g_SHIFT", p.ScepticismShiftThreshold)

	boosted := math.Min(p.CatastrophicCeiling, st.Catastrophic+(s-p.ScepticismShiftThreshold)*p.CatastrophicSlope)
	st.Catastrophic = rec.change(tag, Catastrophic+".probability", st.Catastrophic, boosted,
		fmt.Sprintf("scepticism %g raises downside weighting", s))

	damp := (1 - s/100) * (1 - s/100)
	damped := math.Max(p.BullProbabilityFloor, st.Bull*damp)
	st.Bull = rec.change(tag, Bull+".probability", st.Bull, damped,
		fmt.Sprintf("scepticism %g discounts the optimistic branch", s))

	baseDamped := math.Max(p.BaseProbabilityFloor, st.Base*(1-(s-p.ScepticismShiftThreshold)/100))
	st.Base = rec.change(tag, Base+".probability", st.Base, baseDamped,
		fmt.Sprintf("scepticism %g discounts the base case", s))

	bounds.cap(Catastrophic, p.CatastrophicCeiling)
	bounds.floor(Bull, p.BullProbabilityFloor)
	bounds.floor(Base, p.BaseProbabilityFloor)
}

// scepticismBaseCapRule hard-caps BASE under high skepticism.
func scepticismBaseCapRule(st *ruleState, sig signals, p *Policy, rec *recorder, bounds *branchBounds) {
	if sig.Scepticism <= p.BaseCapThreshold {
		return
	}
	tag := fmt.Sprintf("SCEPTICISM_>%g_BASE_CAP", p.BaseCapThreshold)
	capped := math.Min(st.Base, p.BaseCap)
	st.Base = rec.change(tag, Base+".probability", st.Base, capped,
		fmt.Sprintf("base case capped at %g%% under scepticism %g", p.BaseCap, sig.Scepticism))
	bounds.cap(Base, p.BaseCap)
}

// scepticismBullCapRule forces BULL strictly under the cap trigger when it
// was at or above it.
func scepticismBullCapRule(st *ruleState, sig signals, p *Policy, rec *recorder, bounds *branchBounds) {
	if sig.Scepticism <= p.BullCapThreshold || st.Bull < p.BullCapTrigger {
		return
	}
	tag := fmt.Sprintf("SCEPTICISM_>%g_BULL_CAP", p.BullCapThreshold)
	capped := math.Min(st.Bull, p.BullCap)
	st.Bull = rec.change(tag, Bull+".probability", st.Bull, capped,
		fmt.Sprintf("bull case forced under %g%% under scepticism %g", p.BullCapTrigger, sig.Scepticism))
	bounds.cap(Bull, p.BullCap)
}

// scepticismCatastrophicForceRule forces CATASTROPHIC strictly over the
// force trigger when extreme skepticism meets a still-low downside weight.
func scepticismCatastrophicForceRule(st *ruleState, sig signals, p *Policy, rec *recorder, bounds *branchBounds) {
	if sig.Scepticism <= p.CatastrophicForceThreshold {
		return
	}
	if st.Catastrophic <= p.CatastrophicForceTrigger {
		tag := fmt.Sprintf("SCEPTICISM_>%g_CATASTROPHIC_FLOOR", p.CatastrophicForceThreshold)
		st.Catastrophic = rec.change(tag, Catastrophic+".probability", st.Catastrophic, p.CatastrophicForceValue,
			fmt.Sprintf("scepticism %g demands a dominant downside weighting", sig.Scepticism))
	}
	// Renormalization must not scale the downside branch back under the
	// trigger, so the floor holds even when no force was needed.
	bounds.floor(Catastrophic, math.Min(st.Catastrophic, p.CatastrophicForceValue))
}

// weakTier1Rule reacts to a weak upstream-analyst consensus. Skipped
// entirely when no analyst contributed a score.
func weakTier1Rule(st *ruleState, sig signals, p *Policy, rec *recorder, bounds *branchBounds) {
	if sig.T1Average == nil || *sig.T1Average >= p.WeakTier1Threshold {
		return
	}
	tag := "WEAK_T1_AVERAGE"
	avg := *sig.T1Average

	if st.Catastrophic < p.WeakTier1Threshold {
		floored := math.Max(st.Catastrophic, p.WeakTier1CatastrophicFloor)
		st.Catastrophic = rec.change(tag, Catastrophic+".probability", st.Catastrophic, floored,
			fmt.Sprintf("tier-1 average %.1f is below %g", avg, p.WeakTier1Threshold))
		bounds.floor(Catastrophic, p.WeakTier1CatastrophicFloor)
	}

	capped := math.Min(st.Bull, p.WeakTier1BullCap)
	st.Bull = rec.change(tag, Bull+".probability", st.Bull, capped,
		fmt.Sprintf("tier-1 average %.1f caps the optimistic branch", avg))
	bounds.cap(Bull, p.WeakTier1BullCap)
}

// criticalRedFlagRule boosts CATASTROPHIC per critical red flag past the
// threshold, bounded by the maximum boost and the ceiling.
func criticalRedFlagRule(st *ruleState, sig signals, p *Policy, rec *recorder, bounds *branchBounds) {
	c := sig.CriticalRedFlags
	if c <= p.CriticalRedFlagThreshold {
		return
	}
	tag := fmt.Sprintf("CRITICAL_RF_>%d", p.CriticalRedFlagThreshold)
	boost := math.Min(p.RedFlagMaxBoost, float64(c-p.CriticalRedFlagThreshold)*p.RedFlagStep)
	boosted := math.Min(p.CatastrophicCeiling, st.Catastrophic+boost)
	st.Catastrophic = rec.change(tag, Catastrophic+".probability", st.Catastrophic, boosted,
		fmt.Sprintf("%d critical red flags raise downside weighting", c))
	bounds.cap(Catastrophic, p.CatastrophicCeiling)
}

// dampMultiples caps the BASE and BULL money-multiples under elevated
// skepticism using a quadratic damping curve. Changes below the policy
// epsilon are neither applied nor recorded.
func dampMultiples(st *ruleState, sig signals, p *Policy, rec *recorder) {
	s := sig.Scepticism
	if s <= p.DampingThreshold {
		return
	}
	tag := fmt.Sprintf("SCEPTICISM_>%g_MULTIPLE_DAMPING", p.DampingThreshold)
	damping := (1 - (s-p.DampingThreshold)/100) * (1 - (s-p.DampingThreshold)/100)

	if st.BaseMultiple > p.BaseMultipleFloor {
		damped := math.Max(p.BaseMultipleFloor, st.BaseMultiple*damping)
		if st.BaseMultiple-damped > p.MultipleEpsilon {
			st.BaseMultiple = rec.change(tag, Base+".multiple", st.BaseMultiple, damped,
				fmt.Sprintf("scepticism %g damps the base return multiple", s))
		}
	}
	if st.BullMultiple > p.BullMultipleFloor {
		damped := math.Max(p.BullMultipleFloor, st.BullMultiple*damping)
		if st.BullMultiple-damped > p.MultipleEpsilon {
			st.BullMultiple = rec.change(tag, Bull+".multiple", st.BullMultiple, damped,
				fmt.Sprintf("scepticism %g damps the bull return multiple", s))
		}
	}
}

// evaluateRules folds the ordered rule pipeline over the raw state, then
// renormalizes, re-enforces the floors and caps the fired rules imposed
// (transferring any surplus or deficit into BEAR), and renormalizes once
// more to restore the sum-to-100 invariant. Returns the final integer
// probabilities, the damped multiples, and the full audit trail.
func evaluateRules(st ruleState, sig signals, p *Policy) (Probabilities, float64, float64, []Adjustment) {
	rec := &recorder{}
	bounds := newBranchBounds()

	original := st
	for _, rule := range probabilityRules() {
		rule(&st, sig, p, rec, bounds)
	}

	probs := NormalizeProbabilities(st.Catastrophic, st.Bear, st.Base, st.Bull)
	probs = reclamp(probs, bounds)

	recordRenormalization(rec, original, probs)

	dampMultiples(&st, sig, p, rec)

	return probs, st.BaseMultiple, st.BullMultiple, rec.adjustments
}

// reclamp re-applies the fired rules' hard bounds to the normalized values,
// pushing every surplus or deficit into BEAR, then renormalizes again.
func reclamp(probs Probabilities, bounds *branchBounds) Probabilities {
	transferred := 0

	if v := bounds.clamp(Catastrophic, probs.Catastrophic); v != probs.Catastrophic {
		transferred += probs.Catastrophic - v
		probs.Catastrophic = v
	}
	if v := bounds.clamp(Base, probs.Base); v != probs.Base {
		transferred += probs.Base - v
		probs.Base = v
	}
	if v := bounds.clamp(Bull, probs.Bull); v != probs.Bull {
		transferred += probs.Bull - v
		probs.Bull = v
	}
	if transferred == 0 {
		return probs
	}

	probs.Bear += transferred
	return NormalizeProbabilities(
		float64(probs.Catastrophic),
		float64(probs.Bear),
		float64(probs.Base),
		float64(probs.Bull),
	)
}

// recordRenormalization emits one audit record per branch whose final
// integer value differs from the value the rules (or the raw input) left
// behind by more than rounding.
func recordRenormalization(rec *recorder, original ruleState, final Probabilities) {
	ruleEnd := map[string]float64{}
	for _, adj := range rec.adjustments {
		ruleEnd[adj.Field] = adj.After
	}

	for _, name := range branchOrder {
		before := originalBranch(original, name)
		if v, ok := ruleEnd[name+".probability"]; ok {
			before = v
		}
		after := float64(final.Get(name))
		if math.Round(before) != after {
			rec.adjustments = append(rec.adjustments, Adjustment{
				Rule:   "RENORMALIZE_SUM_100",
				Field:  name + ".probability",
				Before: before,
				After:  after,
				Reason: "probabilities rescaled to sum to exactly 100",
			})
		}
	}
}

func originalBranch(st ruleState, name string) float64 {
	switch name {
	case Catastrophic:
		return st.Catastrophic
	case Bear:
		return st.Bear
	case Base:
		return st.Base
	case Bull:
		return st.Bull
	}
	return 0
}

package agent

// Tier-3 Batch-1 agent names. These three run concurrently after the Tier-1
// analysts complete; the coherence reconciler consumes all of their outputs.
const (
	// ScenarioProjector models four probability-weighted return scenarios.
	ScenarioProjector = "scenario-projector"
	// DevilsAdvocate is the independent skepticism critic. Its score (0-100)
	// gates most of the coherence rules.
	DevilsAdvocate = "devils-advocate"
	// ContradictionDetector cross-checks upstream findings for red flags.
	ContradictionDetector = "contradiction-detector"
)

// Tier1Analysts is the fixed roster of prior-stage analyst agents whose
// top-level scores are averaged into the upstream-tier signal. Entries are
// matched against result-map keys as glob patterns, so a deployment can
// roster e.g. "t1-*" without a code change; the defaults are exact names.
var Tier1Analysts = []string{
	"team-analyst",
	"market-analyst",
	"product-analyst",
	"financials-analyst",
	"traction-analyst",
	"competition-analyst",
	"technology-analyst",
	"legal-analyst",
	"gtm-analyst",
	"moat-analyst",
	"operations-analyst",
	"exit-analyst",
}

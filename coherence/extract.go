package coherence

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/meridianvc/diligence/agent"
)

// Field extraction over the heterogeneous agent payloads. Each agent's Data
// has its own ad-hoc shape, so instead of a shared supertype there is one
// narrow accessor per needed field, each independently tolerant of missing
// or failed upstream agents: absence reads as nil/zero, never as a panic.

// ExtractScepticismScore reads the devils-advocate agent's skepticism score
// (0-100). It prefers the nested assessment score and falls back to a
// top-level score field. Returns nil when the agent is absent or failed.
func ExtractScepticismScore(results agent.ResultMap) *float64 {
	data := results.Payload(agent.DevilsAdvocate)
	if data == nil {
		return nil
	}

	for _, holder := range []map[string]any{nestedMap(data, "findings"), data} {
		if assessment := nestedMap(holder, "scepticismAssessment"); assessment != nil {
			if v, ok := numberField(assessment, "score"); ok {
				return &v
			}
		}
	}
	if v, ok := numberField(data, "score"); ok {
		return &v
	}
	return nil
}

// ExtractScenarios reads the scenario projector's branch list. Returns nil
// when the agent is absent, failed, or produced an empty list. Branch labels
// the engine doesn't recognize are skipped.
func ExtractScenarios(results agent.ResultMap) []Scenario {
	data := results.Payload(agent.ScenarioProjector)
	if data == nil {
		return nil
	}

	list := sliceField(nestedMap(data, "findings"), "scenarios")
	if list == nil {
		list = sliceField(data, "scenarios")
	}
	if len(list) == 0 {
		return nil
	}

	scenarios := make([]Scenario, 0, len(list))
	for _, entry := range list {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		label, _ := raw["scenario"].(string)
		if label == "" {
			label, _ = raw["name"].(string)
		}
		name, ok := normalizeBranchName(label)
		if !ok {
			continue
		}

		s := Scenario{Name: name, Raw: raw}
		if prob := nestedMap(raw, "probability"); prob != nil {
			s.Probability, _ = numberField(prob, "value")
		}
		if ret := nestedMap(raw, "investorReturn"); ret != nil {
			s.Multiple, _ = numberField(ret, "multiple")
		}
		scenarios = append(scenarios, s)
	}
	if len(scenarios) == 0 {
		return nil
	}
	return scenarios
}

// ExtractT1AverageScore averages the top-level numeric score across the
// Tier-1 analyst roster, skipping analysts that failed or reported no
// numeric score. Returns nil when none contributed, a normal
// partial-pipeline condition, so callers skip the dependent rules silently.
func ExtractT1AverageScore(results agent.ResultMap, roster []string) *float64 {
	var sum float64
	var count int

	for _, name := range rosterMatches(results, roster) {
		data := results.Payload(name)
		if data == nil {
			continue
		}
		if score, ok := numberField(data, "score"); ok {
			sum += score
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := sum / float64(count)
	return &avg
}

// ExtractCriticalRedFlagCount counts CRITICAL-severity entries in the
// contradiction detector's red-flag list. Returns 0 when the agent is
// absent or failed.
func ExtractCriticalRedFlagCount(results agent.ResultMap) int {
	data := results.Payload(agent.ContradictionDetector)
	if data == nil {
		return 0
	}

	flags := sliceField(nestedMap(data, "findings"), "redFlags")
	if flags == nil {
		flags = sliceField(data, "redFlags")
	}

	count := 0
	for _, entry := range flags {
		flag, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		severity, _ := flag["severity"].(string)
		if strings.EqualFold(severity, "CRITICAL") {
			count++
		}
	}
	return count
}

// rosterMatches expands the roster's glob patterns against the result map's
// agent names, returning the union in deterministic order.
func rosterMatches(results agent.ResultMap, roster []string) []string {
	seen := make(map[string]bool)
	for _, pattern := range roster {
		for name := range results {
			if matched, err := doublestar.Match(pattern, name); err == nil && matched {
				seen[name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// nestedMap returns m[key] as a map, or nil when the key is absent or holds
// something else. Safe on a nil receiver map.
func nestedMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	child, _ := m[key].(map[string]any)
	return child
}

// numberField returns m[key] as a float64. JSON numbers decode to float64,
// but payloads assembled in-process may carry ints or json.Number; all are
// accepted.
func numberField(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// sliceField returns m[key] as a slice, or nil.
func sliceField(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	list, _ := m[key].([]any)
	return list
}

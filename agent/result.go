// Package agent defines the result records produced by the analysis agents
// in the due-diligence pipeline. Every agent, from the Tier-1 analysts to
// the Tier-3 scenario projector, reports through the same envelope; only
// the Data payload differs per agent, and consumers read the fields they
// need out of it without assuming a shared schema.
package agent

import "encoding/json"

// Result is the envelope every analysis agent reports through. Data is the
// agent's structured output, decoded from JSON; its shape is agent-specific
// and treated as opaque by everything except the narrow field accessors in
// the coherence package.
type Result struct {
	AgentName       string         `json:"agentName"`
	Success         bool           `json:"success"`
	ExecutionTimeMs int64          `json:"executionTimeMs,omitempty"`
	Cost            float64        `json:"cost,omitempty"`
	Error           string         `json:"error,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
}

// ResultMap holds one Result per agent, keyed by agent name. A missing key
// means the agent never ran; a present key with Success=false means it ran
// and failed. Both are expected operating conditions downstream.
type ResultMap map[string]*Result

// Get returns the named agent's result, or nil if the agent is absent.
func (m ResultMap) Get(name string) *Result {
	if m == nil {
		return nil
	}
	return m[name]
}

// Payload returns the named agent's Data when the agent ran successfully,
// or nil otherwise. Callers never need to distinguish "absent", "failed",
// and "succeeded with no data": all three read as nil.
func (m ResultMap) Payload(name string) map[string]any {
	r := m.Get(name)
	if r == nil || !r.Success {
		return nil
	}
	return r.Data
}

// UnmarshalResultMap decodes a JSON object of agent results, as captured by
// the orchestrator after a pipeline run. Used by the offline reconcile
// command to replay snapshots.
func UnmarshalResultMap(data []byte) (ResultMap, error) {
	var m ResultMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

package coherencereconciler

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"

	"github.com/meridianvc/diligence/agent"
	"github.com/meridianvc/diligence/coherence"
	"github.com/meridianvc/diligence/pipeline"
)

// ReconcileRequest is published to pipeline.trigger.coherence-reconciler.
// It carries the full agent-result snapshot for one deal so the reconciler
// can cross-check the Tier-2/Tier-3 outputs before synthesis.
//
// Embeds pipeline.CallbackFields to support orchestrator dispatch. When
// dispatched as a pipeline step, the orchestrator injects callback_subject
// and task_id so the reconciler can publish an AsyncStepResult back.
type ReconcileRequest struct {
	pipeline.CallbackFields

	DealID    string          `json:"deal_id"`
	RequestID string          `json:"request_id,omitempty"`
	Results   agent.ResultMap `json:"results"`
}

// Schema implements message.Payload.
func (p *ReconcileRequest) Schema() message.Type {
	return ReconcileRequestType
}

// Validate implements message.Payload.
func (p *ReconcileRequest) Validate() error {
	if p.DealID == "" {
		return fmt.Errorf("deal_id is required")
	}
	if len(p.Results) == 0 {
		return fmt.Errorf("results must not be empty")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *ReconcileRequest) MarshalJSON() ([]byte, error) {
	type Alias ReconcileRequest
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ReconcileRequest) UnmarshalJSON(data []byte) error {
	type Alias ReconcileRequest
	return json.Unmarshal(data, (*Alias)(p))
}

// ReconcileResult is published to pipeline.result.coherence-reconciler.<deal>.
// It carries the full reconciliation outcome: the audit trail, the adjusted
// scenarios, and the recalculated probability-weighted outcome.
type ReconcileResult struct {
	DealID    string            `json:"deal_id"`
	RequestID string            `json:"request_id,omitempty"`
	Outcome   *coherence.Result `json:"outcome"`
}

// Schema implements message.Payload.
func (p *ReconcileResult) Schema() message.Type {
	return ReconcileResultType
}

// Validate implements message.Payload.
func (p *ReconcileResult) Validate() error {
	if p.DealID == "" {
		return fmt.Errorf("deal_id is required")
	}
	if p.Outcome == nil {
		return fmt.Errorf("outcome is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *ReconcileResult) MarshalJSON() ([]byte, error) {
	type Alias ReconcileResult
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ReconcileResult) UnmarshalJSON(data []byte) error {
	type Alias ReconcileResult
	return json.Unmarshal(data, (*Alias)(p))
}

// ReconcileCallback is the AsyncStepResult output handed back to the
// orchestrator. It carries the patched agent-result snapshot so the
// synthesis step reads the reconciled figures, plus the audit outcome.
type ReconcileCallback struct {
	DealID    string            `json:"deal_id"`
	RequestID string            `json:"request_id,omitempty"`
	Outcome   *coherence.Result `json:"outcome"`
	Results   agent.ResultMap   `json:"results"`
}

// ReconcileRequestType is the message type for reconciliation requests.
var ReconcileRequestType = message.Type{
	Domain:   "diligence",
	Category: "coherence-reconcile-request",
	Version:  "v1",
}

// ReconcileResultType is the message type for reconciliation results.
var ReconcileResultType = message.Type{
	Domain:   "diligence",
	Category: "coherence-reconcile-result",
	Version:  "v1",
}

func init() {
	if err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "diligence",
		Category:    "coherence-reconcile-request",
		Version:     "v1",
		Description: "Coherence reconciliation request carrying one deal's agent-result snapshot",
		Factory:     func() any { return &ReconcileRequest{} },
	}); err != nil {
		panic("failed to register ReconcileRequest: " + err.Error())
	}

	if err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "diligence",
		Category:    "coherence-reconcile-result",
		Version:     "v1",
		Description: "Coherence reconciliation result with audit trail and adjusted outcome",
		Factory:     func() any { return &ReconcileResult{} },
	}); err != nil {
		panic("failed to register ReconcileResult: " + err.Error())
	}
}

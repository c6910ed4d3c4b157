package coherencereconciler

import (
	"encoding/json"
	"testing"

	"github.com/meridianvc/diligence/agent"
	"github.com/meridianvc/diligence/coherence"
)

// TestReconcileRequest_CallbackFields verifies that the embedded
// CallbackFields survive a JSON round-trip and that HasCallback reports
// correctly.
func TestReconcileRequest_CallbackFields(t *testing.T) {
	request := &ReconcileRequest{
		DealID: "deal-7",
		Results: agent.ResultMap{
			"scenario-projector": {AgentName: "scenario-projector", Success: true},
		},
	}

	// No callback set → HasCallback should be false.
	if request.HasCallback() {
		t.Error("expected HasCallback()=false when no callback fields set")
	}

	request.SetCallback("task-1", "pipeline.step-callback.exec-1.task-1")
	request.ExecutionID = "exec-1"

	if !request.HasCallback() {
		t.Error("expected HasCallback()=true when callback fields set")
	}

	data, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	var decoded ReconcileRequest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}

	if decoded.DealID != "deal-7" {
		t.Errorf("expected DealID=deal-7, got %q", decoded.DealID)
	}
	if decoded.CallbackSubject != "pipeline.step-callback.exec-1.task-1" {
		t.Errorf("expected CallbackSubject preserved, got %q", decoded.CallbackSubject)
	}
	if !decoded.HasCallback() {
		t.Error("expected HasCallback()=true after JSON round-trip")
	}
	if decoded.Results.Get("scenario-projector") == nil {
		t.Error("expected agent results preserved")
	}
}

// TestReconcileRequest_Validate verifies the validation logic.
func TestReconcileRequest_Validate(t *testing.T) {
	request := &ReconcileRequest{}
	if err := request.Validate(); err == nil {
		t.Error("expected error for empty deal_id")
	}

	request.DealID = "deal-7"
	if err := request.Validate(); err == nil {
		t.Error("expected error for empty results")
	}

	request.Results = agent.ResultMap{
		"scenario-projector": {AgentName: "scenario-projector", Success: true},
	}
	if err := request.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestReconcileResult_Schema verifies the result schema matches registration.
func TestReconcileResult_Schema(t *testing.T) {
	result := &ReconcileResult{
		DealID:  "deal-7",
		Outcome: &coherence.Result{},
	}

	schema := result.Schema()
	if schema.Domain != "diligence" {
		t.Errorf("expected Domain=diligence, got %q", schema.Domain)
	}
	if schema.Category != "coherence-reconcile-result" {
		t.Errorf("expected Category=coherence-reconcile-result, got %q", schema.Category)
	}
	if schema.Version != "v1" {
		t.Errorf("expected Version=v1, got %q", schema.Version)
	}
}

// TestReconcileResult_Validate verifies the validation logic.
func TestReconcileResult_Validate(t *testing.T) {
	result := &ReconcileResult{}
	if err := result.Validate(); err == nil {
		t.Error("expected error for empty deal_id")
	}

	result.DealID = "deal-7"
	if err := result.Validate(); err == nil {
		t.Error("expected error for missing outcome")
	}

	result.Outcome = &coherence.Result{}
	if err := result.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

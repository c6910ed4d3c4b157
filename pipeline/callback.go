// Package pipeline holds the message plumbing shared by the diligence
// pipeline's tier components: callback fields for orchestrator-dispatched
// work and the BaseMessage payload parser.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360studio/semstreams/natsclient"
)

// CallbackFields provides orchestrator callback support for any request
// payload. When the pipeline orchestrator dispatches a tier step it injects
// these fields so the receiving component can publish an AsyncStepResult
// back to the parked execution.
//
// Embed this in any payload type that may be dispatched by the orchestrator:
//
//	type MyRequest struct {
//	    pipeline.CallbackFields
//	    // ... component-specific fields
//	}
//
// Components check HasCallback() to decide between publishing an
// AsyncStepResult or only their standing result message.
type CallbackFields struct {
	// CallbackSubject is where to publish AsyncStepResult when done.
	CallbackSubject string `json:"callback_subject,omitempty"`

	// TaskID correlates this request with the pending orchestrator step.
	TaskID string `json:"task_id,omitempty"`

	// ExecutionID identifies the pipeline execution this belongs to.
	// Optional; used for direct correlation when TaskID lookup fails.
	ExecutionID string `json:"execution_id,omitempty"`
}

// SetCallback injects the correlation fields when the orchestrator
// dispatches a request. Implements the CallbackReceiver interface.
func (c *CallbackFields) SetCallback(taskID, callbackSubject string) {
	c.TaskID = taskID
	c.CallbackSubject = callbackSubject
}

// HasCallback returns true if the orchestrator injected callback fields,
// meaning the component should publish an AsyncStepResult in addition to
// its standing result message.
func (c *CallbackFields) HasCallback() bool {
	return c.CallbackSubject != "" && c.TaskID != ""
}

// AsyncStepResult is the envelope published back to the orchestrator's
// callback subject when a dispatched step finishes.
type AsyncStepResult struct {
	TaskID      string          `json:"task_id"`
	ExecutionID string          `json:"execution_id,omitempty"`
	Status      string          `json:"status"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Async step result status constants.
const (
	AsyncStatusSuccess = "success"
	AsyncStatusFailed  = "failed"
)

// PublishCallbackSuccess publishes a successful AsyncStepResult to the
// callback subject via JetStream. The output should be the component's
// structured result.
func (c *CallbackFields) PublishCallbackSuccess(ctx context.Context, nc *natsclient.Client, output any) error {
	return c.publishCallback(ctx, nc, AsyncStatusSuccess, output, "")
}

// PublishCallbackFailure publishes a failed AsyncStepResult to the
// callback subject via JetStream.
func (c *CallbackFields) PublishCallbackFailure(ctx context.Context, nc *natsclient.Client, errMsg string) error {
	return c.publishCallback(ctx, nc, AsyncStatusFailed, nil, errMsg)
}

func (c *CallbackFields) publishCallback(ctx context.Context, nc *natsclient.Client, status string, output any, errMsg string) error {
	if !c.HasCallback() {
		return fmt.Errorf("no callback configured")
	}

	var outputJSON json.RawMessage
	if output != nil {
		var err error
		outputJSON, err = json.Marshal(output)
		if err != nil {
			return fmt.Errorf("marshal callback output: %w", err)
		}
	}

	result := &AsyncStepResult{
		TaskID:      c.TaskID,
		ExecutionID: c.ExecutionID,
		Status:      status,
		Output:      outputJSON,
		Error:       errMsg,
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal callback result: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream for callback: %w", err)
	}

	if _, err := js.Publish(ctx, c.CallbackSubject, data); err != nil {
		return fmt.Errorf("publish callback to %s: %w", c.CallbackSubject, err)
	}

	return nil
}

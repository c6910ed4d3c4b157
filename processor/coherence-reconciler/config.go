package coherencereconciler

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
)

// coherenceReconcilerSchema defines the configuration schema.
var coherenceReconcilerSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the coherence-reconciler component.
type Config struct {
	// StreamName is the JetStream stream for consuming requests and publishing results.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream for pipeline requests,category:basic,default:PIPELINE"`

	// ConsumerName is the durable consumer name for request consumption.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable consumer name for request consumption,category:basic,default:coherence-reconciler"`

	// PolicyPath is an optional path to a reconciliation policy YAML file.
	// When empty the calibrated default policy is used.
	PolicyPath string `json:"policy_path" schema:"type:string,description:Path to reconciliation policy YAML (empty for defaults),category:basic,default:"`

	// PolicyReload enables watching PolicyPath for changes and hot-swapping
	// the policy without a restart.
	PolicyReload bool `json:"policy_reload" schema:"type:bool,description:Hot-reload the policy file on change,category:advanced,default:false"`

	// ReloadDebounce is how long to wait for further writes before reloading.
	ReloadDebounce string `json:"reload_debounce" schema:"type:string,description:Debounce delay before reloading a changed policy file,category:advanced,default:500ms"`

	// AckWait is the JetStream ack wait for in-flight requests.
	AckWait string `json:"ack_wait" schema:"type:string,description:JetStream ack wait for in-flight requests (duration string),category:advanced,default:30s"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty" schema:"type:ports,description:Input/output port definitions,category:basic"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		StreamName:     "PIPELINE",
		ConsumerName:   "coherence-reconciler",
		ReloadDebounce: "500ms",
		AckWait:        "30s",
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "reconcile-requests",
					Type:        "jetstream",
					Subject:     "pipeline.trigger.coherence-reconciler",
					StreamName:  "PIPELINE",
					Description: "Receive coherence reconciliation requests",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "reconcile-results",
					Type:        "nats",
					Subject:     "pipeline.result.coherence-reconciler.>",
					Description: "Publish coherence reconciliation results",
					Required:    false,
				},
			},
		},
	}
}

// GetReloadDebounce parses the reload debounce duration.
// Returns 500 milliseconds if the field is empty or unparseable.
func (c *Config) GetReloadDebounce() time.Duration {
	if c.ReloadDebounce == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(c.ReloadDebounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// GetAckWait parses the ack wait duration.
// Returns 30 seconds if the field is empty or unparseable.
func (c *Config) GetAckWait() time.Duration {
	if c.AckWait == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.AckWait)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.PolicyReload && c.PolicyPath == "" {
		return fmt.Errorf("policy_reload requires policy_path")
	}
	return nil
}

package coherencereconciler

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface required for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the coherence-reconciler component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "coherence-reconciler",
		Factory:     NewComponent,
		Schema:      coherenceReconcilerSchema,
		Type:        "processor",
		Protocol:    "pipeline",
		Domain:      "diligence",
		Description: "Reconciles scenario projections against skepticism and contradiction signals",
		Version:     "0.1.0",
	})
}

package coherencereconciler

import (
	"testing"

	"github.com/c360studio/semstreams/component"
)

type captureRegistry struct {
	registered []component.RegistrationConfig
}

func (r *captureRegistry) RegisterWithConfig(cfg component.RegistrationConfig) error {
	r.registered = append(r.registered, cfg)
	return nil
}

func TestRegister(t *testing.T) {
	registry := &captureRegistry{}
	if err := Register(registry); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if len(registry.registered) != 1 {
		t.Fatalf("registered %d components, want 1", len(registry.registered))
	}
	cfg := registry.registered[0]
	if cfg.Name != "coherence-reconciler" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Type != "processor" {
		t.Errorf("Type = %q", cfg.Type)
	}
	if cfg.Domain != "diligence" {
		t.Errorf("Domain = %q", cfg.Domain)
	}
	if cfg.Factory == nil {
		t.Error("Factory not set")
	}
}

func TestRegisterNilRegistry(t *testing.T) {
	if err := Register(nil); err == nil {
		t.Error("expected error for nil registry")
	}
}

package coherencereconciler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meridianvc/diligence/coherence"
)

func TestPolicyWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("base_cap: 20\n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	reloaded := make(chan *coherence.Policy, 4)
	watcher, err := NewPolicyWatcher(path, 50*time.Millisecond, slog.Default(), func(p *coherence.Policy) {
		reloaded <- p
	})
	if err != nil {
		t.Fatalf("NewPolicyWatcher() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer watcher.Stop()

	if err := os.WriteFile(path, []byte("base_cap: 15\n"), 0o644); err != nil {
		t.Fatalf("rewrite policy: %v", err)
	}

	select {
	case policy := <-reloaded:
		if policy.BaseCap != 15 {
			t.Errorf("reloaded BaseCap = %g, want 15", policy.BaseCap)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for policy reload")
	}
}

func TestPolicyWatcherRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("base_cap: 20\n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	reloaded := make(chan *coherence.Policy, 4)
	watcher, err := NewPolicyWatcher(path, 50*time.Millisecond, slog.Default(), func(p *coherence.Policy) {
		reloaded <- p
	})
	if err != nil {
		t.Fatalf("NewPolicyWatcher() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer watcher.Stop()

	if err := os.WriteFile(path, []byte("hold_years: 0\n"), 0o644); err != nil {
		t.Fatalf("rewrite policy: %v", err)
	}

	select {
	case <-reloaded:
		t.Error("invalid policy must not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestPolicyWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("base_cap: 20\n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	reloaded := make(chan *coherence.Policy, 4)
	watcher, err := NewPolicyWatcher(path, 50*time.Millisecond, slog.Default(), func(p *coherence.Policy) {
		reloaded <- p
	})
	if err != nil {
		t.Fatalf("NewPolicyWatcher() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer watcher.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	select {
	case <-reloaded:
		t.Error("sibling file change must not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}
}

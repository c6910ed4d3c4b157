package coherencereconciler

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/meridianvc/diligence/coherence"
)

// PolicyWatcher watches a reconciliation policy file and reloads it when the
// file changes. It watches the containing directory rather than the file
// itself so editor save strategies (rename-over, truncate-and-write) are all
// caught. Reloads are debounced and a policy that fails to parse or validate
// is rejected, keeping the last good policy active.
type PolicyWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onReload func(*coherence.Policy)

	// Debouncing: coalesce bursts of write events before reloading.
	pendingMu sync.Mutex
	pending   bool
}

// NewPolicyWatcher creates a watcher for the given policy file. onReload is
// called with each successfully loaded policy.
func NewPolicyWatcher(path string, debounce time.Duration, logger *slog.Logger, onReload func(*coherence.Policy)) (*PolicyWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PolicyWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		onReload: onReload,
	}, nil
}

// Start begins watching the policy file's directory for changes.
func (w *PolicyWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Policy watcher started",
		"path", w.path,
		"debounce", w.debounce)

	return nil
}

// Stop stops the watcher.
func (w *PolicyWatcher) Stop() error {
	return w.watcher.Close()
}

// processEvents handles fsnotify events with debouncing.
func (w *PolicyWatcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Policy watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// handleFSEvent marks a reload pending when the policy file itself changed.
func (w *PolicyWatcher) handleFSEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()

	w.logger.Debug("Policy change detected", "op", event.Op.String())
}

// flushPending reloads the policy if a change was seen since the last tick.
func (w *PolicyWatcher) flushPending() {
	w.pendingMu.Lock()
	pending := w.pending
	w.pending = false
	w.pendingMu.Unlock()

	if !pending {
		return
	}

	policy, err := coherence.LoadPolicy(w.path)
	if err != nil {
		w.logger.Error("Policy reload rejected, keeping previous policy",
			"path", w.path,
			"error", err)
		return
	}

	w.onReload(policy)
	w.logger.Info("Policy reloaded", "path", w.path)
}

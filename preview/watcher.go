package preview

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce is how long to wait for more changes before rebuilding.
const watchDebounce = 750 * time.Millisecond

// watcher collapses bursts of file events from the watched directories
// into single rebuild triggers.
type watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   int

	triggers chan struct{}
}

func newWatcher(dirs []string, debounce time.Duration, logger *slog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fsw.Close()
			return nil, err
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	return &watcher{
		fsw:      fsw,
		debounce: debounce,
		logger:   logger,
		triggers: make(chan struct{}, 1),
	}, nil
}

// Triggers returns the channel rebuild signals arrive on.
func (w *watcher) Triggers() <-chan struct{} {
	return w.triggers
}

// run handles fsnotify events with debouncing.
// The triggers channel is closed when run exits.
func (w *watcher) run(ctx context.Context) {
	defer close(w.triggers)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *watcher) handleEvent(event fsnotify.Event) {
	// Chmod-only events carry no content change.
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.pendingMu.Lock()
	w.pending++
	w.pendingMu.Unlock()

	w.logger.Debug("Change detected", "path", event.Name, "op", event.Op.String())
}

func (w *watcher) flushPending() {
	w.pendingMu.Lock()
	n := w.pending
	w.pending = 0
	w.pendingMu.Unlock()

	if n == 0 {
		return
	}

	select {
	case w.triggers <- struct{}{}:
	default:
		// A rebuild is already queued
	}
}

func (w *watcher) stop() error {
	return w.fsw.Close()
}

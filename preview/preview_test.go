package preview

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestHandlerServesSite(t *testing.T) {
	siteDir := t.TempDir()
	dataDir := filepath.Join(siteDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "profiler.json"), []byte(`[{"id":10}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(siteDir, "catalog.js"), []byte("window.__FOLKEVALGET_BOOTSTRAP__={};\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(NewServer(siteDir).Handler())
	defer srv.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		return resp.StatusCode, string(body)
	}

	if status, body := get("/data/profiler.json"); status != http.StatusOK || !strings.Contains(body, `"id":10`) {
		t.Errorf("profiler.json: status %d body %q", status, body)
	}
	if status, body := get("/catalog.js"); status != http.StatusOK || !strings.HasPrefix(body, "window.__FOLKEVALGET_BOOTSTRAP__=") {
		t.Errorf("catalog.js: status %d body %q", status, body)
	}
	if status, body := get("/healthz"); status != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("healthz: status %d body %q", status, body)
	}
	if status, body := get("/metrics"); status != http.StatusOK || !strings.Contains(body, "folkevalget_run_profiles") {
		t.Errorf("metrics: status %d body %q", status, body[:min(len(body), 200)])
	}
	if status, _ := get("/missing.json"); status != http.StatusNotFound {
		t.Errorf("missing file: status %d, want 404", status)
	}
}

func TestWatcherTriggersOnChange(t *testing.T) {
	rawDir := t.TempDir()

	w, err := newWatcher([]string{rawDir}, 50*time.Millisecond, slog.Default())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.run(ctx)

	if err := os.WriteFile(filepath.Join(rawDir, "stemmer.json"), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case _, ok := <-w.Triggers():
		if !ok {
			t.Fatal("triggers channel closed early")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no rebuild trigger after file change")
	}
}

func TestWatcherCreatesMissingDirs(t *testing.T) {
	rawDir := filepath.Join(t.TempDir(), "not", "yet", "there")

	w, err := newWatcher([]string{rawDir}, 50*time.Millisecond, slog.Default())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.stop()

	if _, err := os.Stat(rawDir); err != nil {
		t.Errorf("watch dir was not created: %v", err)
	}
}

func TestRebuildLoopRunsRebuild(t *testing.T) {
	var rebuilds atomic.Int64
	done := make(chan struct{}, 2)

	s := NewServer(t.TempDir(), WithRebuild(func(context.Context) error {
		rebuilds.Add(1)
		done <- struct{}{}
		return nil
	}))

	triggers := make(chan struct{}, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.rebuildLoop(ctx, triggers)

	triggers <- struct{}{}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("rebuild did not run")
	}

	triggers <- struct{}{}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("second rebuild did not run")
	}

	if got := rebuilds.Load(); got != 2 {
		t.Errorf("rebuilds = %d, want 2", got)
	}
}

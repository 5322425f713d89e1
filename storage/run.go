package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/folkevalget/folkevalget/engine"
)

// EventStream is the JetStream stream that captures run lifecycle events.
const EventStream = "FOLKEVALGET_EVENTS"

const runCompletedPrefix = "folkevalget.run.completed"

// RunCompletedSubject returns the subject a run's completion event is
// published on.
func RunCompletedSubject(runID string) string {
	return runCompletedPrefix + "." + runID
}

// Run records one completed pipeline run.
type Run struct {
	ID          string       `json:"id"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	WindowStart string       `json:"window_start"`
	WindowEnd   string       `json:"window_end"`
	Stats       engine.Stats `json:"stats"`
	Issues      int          `json:"issues"`
}

// NewRunID generates a new unique run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// RecordRun stores the run record and publishes its completion event.
// Run ids are write-once; recording the same id twice fails.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return errors.New("run id is empty")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	if _, err := s.runs.Create(ctx, run.ID, data); err != nil {
		return fmt.Errorf("store run %s: %w", run.ID, err)
	}

	if _, err := s.js.Publish(ctx, RunCompletedSubject(run.ID), data); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}

	return nil
}

// GetRun retrieves a run record by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	entry, err := s.runs.Get(ctx, runID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	var run Run
	if err := json.Unmarshal(entry.Value(), &run); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", runID, err)
	}

	return &run, nil
}

// ListRuns returns all recorded runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	keys, err := s.runs.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list run keys: %w", err)
	}

	runs := make([]*Run, 0, len(keys))
	for _, key := range keys {
		entry, err := s.runs.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var run Run
		if err := json.Unmarshal(entry.Value(), &run); err != nil {
			continue
		}
		runs = append(runs, &run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})

	return runs, nil
}

// Package site writes the static artifacts the published site is
// built from: pretty-printed JSON documents under the data directory
// and compact window-global JS payloads next to it, plus raw API
// snapshots that let the derivation rerun offline.
package site

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/folkevalget/folkevalget/engine"
	"github.com/folkevalget/folkevalget/hverv"
	"github.com/folkevalget/folkevalget/oda"
)

// Artifact file names under the data directory.
const (
	ProfilesFile   = "profiler.json"
	PartiesFile    = "partier.json"
	CommitteesFile = "udvalg.json"
	VotesFile      = "afstemninger.json"
	StatsFile      = "site_stats.json"
	InterestsFile  = "hverv.json"

	// JS payloads land next to the data directory.
	CatalogFile     = "catalog.js"
	VoteCatalogFile = "vote-catalog.js"

	catalogVariable     = "__FOLKEVALGET_BOOTSTRAP__"
	voteCatalogVariable = "__FOLKEVALGET_VOTES__"
)

// Counts summarizes one run for the stats document.
type Counts struct {
	People          int `json:"people"`
	Parties         int `json:"parties"`
	Committees      int `json:"committees"`
	ActorRelations  int `json:"actor_relations"`
	Votes           int `json:"votes"`
	IndividualVotes int `json:"individual_votes"`
	Profiles        int `json:"profiles"`
}

// Stats is the site_stats.json document.
type Stats struct {
	GeneratedAt string         `json:"generated_at"`
	Source      string         `json:"source"`
	StartDate   string         `json:"start_date"`
	VoteWindow  oda.VoteWindow `json:"vote_window"`
	Counts      Counts         `json:"counts"`
}

// NewStats assembles the stats document for a run.
func NewStats(window oda.VoteWindow, counts Counts, now time.Time) Stats {
	return Stats{
		GeneratedAt: now.UTC().Truncate(time.Second).Format(time.RFC3339),
		Source:      "Folketinget ODA API",
		StartDate:   window.StartDate,
		VoteWindow:  window,
		Counts:      counts,
	}
}

// Artifacts bundles everything one run publishes.
type Artifacts struct {
	Profiles   []engine.Profile
	Parties    []engine.OrgSummary
	Committees []engine.OrgSummary
	Votes      []engine.VoteSummary
	Stats      Stats
	Interests  *hverv.Report
}

// LoadArtifacts reads published artifacts back from a data directory.
// The interests file is optional; every other artifact must be there.
func LoadArtifacts(dataDir string) (*Artifacts, error) {
	var artifacts Artifacts
	required := []struct {
		name string
		into any
	}{
		{ProfilesFile, &artifacts.Profiles},
		{PartiesFile, &artifacts.Parties},
		{CommitteesFile, &artifacts.Committees},
		{VotesFile, &artifacts.Votes},
		{StatsFile, &artifacts.Stats},
	}
	for _, f := range required {
		if err := readJSONFile(filepath.Join(dataDir, f.name), f.into); err != nil {
			return nil, err
		}
	}

	var interests hverv.Report
	err := readJSONFile(filepath.Join(dataDir, InterestsFile), &interests)
	switch {
	case err == nil:
		artifacts.Interests = &interests
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}
	return &artifacts, nil
}

// Writer writes site artifacts under a data directory.
type Writer struct {
	dataDir string
	logger  *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterLogger sets the logger.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = l
	}
}

// NewWriter creates a writer rooted at dataDir; JS payloads go to that
// directory's parent.
func NewWriter(dataDir string, opts ...WriterOption) *Writer {
	w := &Writer{dataDir: dataDir, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteAll writes every artifact in the bundle. The Danish site reads
// the JSON documents at runtime; the JS payloads bootstrap the pages
// that must render before fetch completes. Absent collections publish
// as empty lists, never null.
func (w *Writer) WriteAll(artifacts Artifacts) error {
	if artifacts.Profiles == nil {
		artifacts.Profiles = []engine.Profile{}
	}
	if artifacts.Parties == nil {
		artifacts.Parties = []engine.OrgSummary{}
	}
	if artifacts.Committees == nil {
		artifacts.Committees = []engine.OrgSummary{}
	}
	if artifacts.Votes == nil {
		artifacts.Votes = []engine.VoteSummary{}
	}

	files := []struct {
		name    string
		payload any
	}{
		{ProfilesFile, artifacts.Profiles},
		{PartiesFile, artifacts.Parties},
		{CommitteesFile, artifacts.Committees},
		{VotesFile, artifacts.Votes},
		{StatsFile, artifacts.Stats},
	}
	for _, f := range files {
		if err := WriteJSON(filepath.Join(w.dataDir, f.name), f.payload); err != nil {
			return err
		}
	}
	if artifacts.Interests != nil {
		if err := WriteJSON(filepath.Join(w.dataDir, InterestsFile), artifacts.Interests); err != nil {
			return err
		}
	}

	siteDir := filepath.Dir(w.dataDir)
	err := WriteJSPayload(filepath.Join(siteDir, CatalogFile), catalogVariable, map[string]any{
		"profiles": artifacts.Profiles,
		"parties":  artifacts.Parties,
		"stats":    artifacts.Stats,
	})
	if err != nil {
		return err
	}
	err = WriteJSPayload(filepath.Join(siteDir, VoteCatalogFile), voteCatalogVariable, map[string]any{
		"votes": artifacts.Votes,
	})
	if err != nil {
		return err
	}

	w.logger.Info("wrote site artifacts",
		"data_dir", w.dataDir,
		"profiles", len(artifacts.Profiles),
		"votes", len(artifacts.Votes))
	return nil
}

// marshalPayload encodes without escaping HTML, so Danish titles and
// ft.dk URLs stay readable in the output files.
func marshalPayload(payload any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes payload as pretty-printed JSON, creating parent
// directories as needed.
func WriteJSON(path string, payload any) error {
	body, err := marshalPayload(payload, "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteJSPayload writes payload as a compact window-global assignment.
func WriteJSPayload(path, variable string, payload any) error {
	body, err := marshalPayload(payload, "")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	// Encoder appends a newline after the document.
	body = bytes.TrimRight(body, "\n")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "window.%s=", variable)
	buf.Write(body)
	buf.WriteString(";\n")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

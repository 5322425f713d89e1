// Package pipeline wires the fetch, derivation, enrichment, and
// publishing stages into complete folkevalget runs. Each stage is a
// method so the CLI commands can run the full sequence or any slice
// of it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/folkevalget/folkevalget/casedocs"
	"github.com/folkevalget/folkevalget/config"
	"github.com/folkevalget/folkevalget/engine"
	"github.com/folkevalget/folkevalget/enrich"
	"github.com/folkevalget/folkevalget/metrics"
	"github.com/folkevalget/folkevalget/oda"
	"github.com/folkevalget/folkevalget/site"
	"github.com/folkevalget/folkevalget/storage"
)

// Pipeline runs the folkevalget stages against one configuration.
type Pipeline struct {
	cfg    *config.Config
	client *oda.Client
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithClient replaces the ODA client built from the configuration.
func WithClient(c *oda.Client) Option {
	return func(p *Pipeline) {
		p.client = c
	}
}

// WithNow pins the clock.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New builds a pipeline from a validated configuration.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = oda.NewClient(
			oda.WithBaseURL(cfg.API.BaseURL),
			oda.WithPageSize(cfg.API.PageSize),
			oda.WithPageDelay(cfg.API.Delay),
			oda.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
			oda.WithLogger(p.logger),
		)
	}
	return p
}

// today returns the run date: the configured override when set,
// otherwise the wall-clock date.
func (p *Pipeline) today() string {
	if p.cfg.Window.Today != "" {
		return p.cfg.Window.Today
	}
	return p.now().UTC().Format("2006-01-02")
}

// Summary is the machine-readable result line of one run.
type Summary struct {
	OK              bool   `json:"ok"`
	OutputDir       string `json:"output_dir"`
	StartDate       string `json:"start_date"`
	Profiles        int    `json:"profiles"`
	Votes           int    `json:"votes"`
	IndividualVotes int    `json:"individual_votes"`
	RunID           string `json:"run_id,omitempty"`
}

// Run executes the full fetch pipeline: pull the window from the API,
// derive the analytics, write the site artifacts, and, when NATS is
// configured, publish the documents and the run record.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	started := p.now().UTC()

	snapshot, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if p.cfg.Output.WriteRaw {
		if err := site.WriteSnapshot(p.cfg.Output.RawDir, snapshot); err != nil {
			return nil, fmt.Errorf("write raw snapshot: %w", err)
		}
		p.logger.Info("raw snapshot written", "dir", p.cfg.Output.RawDir)
	}
	return p.finish(ctx, snapshot, started)
}

// RunFromSnapshot executes the offline pipeline: load a saved raw
// snapshot, derive, and write the site artifacts. The window recorded
// in the snapshot pins the run date, so derivation stays reproducible.
func (p *Pipeline) RunFromSnapshot(ctx context.Context, dir string) (*Summary, error) {
	started := p.now().UTC()

	snapshot, err := site.LoadSnapshot(dir)
	if err != nil {
		return nil, err
	}
	p.logger.Info("raw snapshot loaded",
		"dir", dir,
		"case_steps", len(snapshot.CaseSteps),
		"ballots", len(snapshot.Ballots))
	return p.finish(ctx, snapshot, started)
}

// finish runs the stages shared by the online and offline paths.
func (p *Pipeline) finish(ctx context.Context, snapshot *site.Snapshot, started time.Time) (*Summary, error) {
	result, err := p.Derive(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	if !p.cfg.Enrich.SkipPhotos {
		if err := enrich.ApplyLocalInventory(result.Profiles, p.cfg.Output.PhotosDir); err != nil {
			p.logger.Warn("local photo inventory skipped", "error", err)
		}
	}

	if err := p.WriteSite(snapshot, result, p.now()); err != nil {
		return nil, err
	}

	completed := p.now().UTC()
	metrics.ObserveRun(result.Stats, len(result.Issues), completed.Sub(started))

	summary := &Summary{
		OK:              true,
		OutputDir:       p.cfg.Output.Dir,
		StartDate:       snapshot.Window.StartDate,
		Profiles:        result.Stats.Profiles,
		Votes:           result.Stats.Votes,
		IndividualVotes: result.Stats.Ballots,
	}

	if p.cfg.NATS.Enabled() {
		run := &storage.Run{
			ID:          storage.NewRunID(),
			StartedAt:   started,
			CompletedAt: completed,
			WindowStart: snapshot.Window.StartDate,
			WindowEnd:   snapshot.Window.Today,
			Stats:       result.Stats,
			Issues:      len(result.Issues),
		}
		if err := p.PublishNATS(ctx, result, run); err != nil {
			return nil, err
		}
		summary.RunID = run.ID
	}

	p.logger.Info("run complete",
		"profiles", summary.Profiles,
		"votes", summary.Votes,
		"individual_votes", summary.IndividualVotes,
		"duration", completed.Sub(started))
	return summary, nil
}

// Derive runs the engine over one snapshot and reports what it found.
// With summarize_docs on, linked HTML case documents are fetched and
// condensed before the vote context is assembled.
func (p *Pipeline) Derive(ctx context.Context, snapshot *site.Snapshot) (*engine.Result, error) {
	links := casedocs.Links(snapshot.CaseDocuments)
	if p.cfg.Derive.SummarizeDocs {
		s := casedocs.NewSummarizer(casedocs.WithLogger(p.logger))
		s.Annotate(ctx, links, p.cfg.API.VoteWorkers)
	}
	input := p.buildInput(snapshot, links)

	today, err := engine.ParseDate(snapshot.Window.Today)
	if err != nil {
		return nil, fmt.Errorf("snapshot window: %w", err)
	}
	if today.IsZero() {
		today, err = engine.ParseDate(p.today())
		if err != nil {
			return nil, fmt.Errorf("run date: %w", err)
		}
	}

	result, err := engine.Run(input, engine.Options{
		Today:       today,
		RecentVotes: p.cfg.Derive.RecentVotes,
	})
	if err != nil {
		return nil, err
	}

	if n := len(result.Issues); n > 0 {
		p.logger.Warn("integrity issues found",
			"issues", n,
			"dropped_relations", result.Stats.DroppedRelations,
			"dropped_ballots", result.Stats.DroppedBallots,
			"unknown_choices", result.Stats.UnknownChoices)
	}
	p.logger.Info("derivation complete",
		"profiles", result.Stats.Profiles,
		"parties", result.Stats.Parties,
		"committees", result.Stats.Committees,
		"votes", result.Stats.Votes,
		"ballots", result.Stats.Ballots)
	return result, nil
}

// WriteSite writes the site artifacts for one derived run.
func (p *Pipeline) WriteSite(snapshot *site.Snapshot, result *engine.Result, now time.Time) error {
	counts := site.Counts{
		People:          result.Stats.Profiles,
		Parties:         result.Stats.Parties,
		Committees:      result.Stats.Committees,
		ActorRelations:  len(snapshot.Relations),
		Votes:           result.Stats.Votes,
		IndividualVotes: len(snapshot.Ballots),
		Profiles:        result.Stats.Profiles,
	}
	writer := site.NewWriter(p.cfg.Output.Dir, site.WithWriterLogger(p.logger))
	return writer.WriteAll(site.Artifacts{
		Profiles:   result.Profiles,
		Parties:    result.Parties,
		Committees: result.Committees,
		Votes:      result.Votes,
		Stats:      site.NewStats(snapshot.Window, counts, now),
	})
}

// PublishNATS pushes the derived documents and the run record to
// JetStream KV.
func (p *Pipeline) PublishNATS(ctx context.Context, result *engine.Result, run *storage.Run) error {
	sess, err := storage.Connect(storage.ConnectOptions{
		URL:      p.cfg.NATS.URL,
		Embedded: p.cfg.NATS.Embedded,
		StoreDir: p.cfg.NATS.StoreDir,
	})
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer sess.Close()

	store, err := storage.NewStore(ctx, sess.JetStream())
	if err != nil {
		return err
	}
	if err := store.PutProfiles(ctx, result.Profiles); err != nil {
		return err
	}
	if err := store.PutVotes(ctx, result.Votes); err != nil {
		return err
	}
	if err := store.RecordRun(ctx, run); err != nil {
		return err
	}

	p.logger.Info("documents published",
		"profiles", len(result.Profiles),
		"votes", len(result.Votes),
		"run", run.ID)
	return nil
}

// EnrichPhotos resolves portraits for the given profiles: Wikidata
// lookup through the configured cache, bounded downloads into the
// photos directory, then the local inventory and credit manifest pass
// so the profiles point at what actually landed on disk.
func (p *Pipeline) EnrichPhotos(ctx context.Context, profiles []engine.Profile) error {
	opts := []enrich.WikidataOption{enrich.WithWikidataLogger(p.logger)}
	if p.cfg.Enrich.CacheFile != "" {
		cache, err := enrich.OpenSQLiteCache(p.cfg.Enrich.CacheFile)
		if err != nil {
			return fmt.Errorf("open lookup cache: %w", err)
		}
		defer cache.Close()
		opts = append(opts, enrich.WithWikidataCache(cache))
	}

	portraits := enrich.NewPortraits(
		enrich.NewWikidata(opts...),
		enrich.WithPortraitsLogger(p.logger),
	)
	if err := portraits.FetchAll(ctx, profiles, p.cfg.Output.PhotosDir, p.cfg.Enrich.PhotoWorkers); err != nil {
		return err
	}
	return enrich.ApplyLocalInventory(profiles, p.cfg.Output.PhotosDir)
}

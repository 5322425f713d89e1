package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/folkevalget/folkevalget/engine"
	"github.com/folkevalget/folkevalget/pipeline"
	"github.com/folkevalget/folkevalget/site"
	"github.com/folkevalget/folkevalget/storage"
)

func newPublishCmd(root *rootOptions) *cobra.Command {
	var (
		dataDir string
		natsURL string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the site documents to NATS JetStream",
		Long: `Publish pushes the generated profiles and vote summaries into the
JetStream KV buckets and records a run entry, so consumers on the bus
see the same documents the static site serves.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("data-dir") {
				cfg.Output.Dir = dataDir
			}
			if flags.Changed("nats-url") {
				cfg.NATS.URL = natsURL
				cfg.NATS.Embedded = false
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if !cfg.NATS.Enabled() {
				return fmt.Errorf("no NATS target configured; set nats.url or nats.embedded")
			}

			artifacts, err := site.LoadArtifacts(cfg.Output.Dir)
			if err != nil {
				return fmt.Errorf("load site artifacts: %w", err)
			}

			started := time.Now().UTC()
			result := &engine.Result{
				Profiles: artifacts.Profiles,
				Votes:    artifacts.Votes,
				Stats: engine.Stats{
					Profiles:   len(artifacts.Profiles),
					Parties:    len(artifacts.Parties),
					Committees: len(artifacts.Committees),
					Votes:      len(artifacts.Votes),
					Ballots:    artifacts.Stats.Counts.IndividualVotes,
				},
			}
			run := &storage.Run{
				ID:          storage.NewRunID(),
				StartedAt:   started,
				CompletedAt: time.Now().UTC(),
				WindowStart: artifacts.Stats.VoteWindow.StartDate,
				WindowEnd:   artifacts.Stats.VoteWindow.Today,
				Stats:       result.Stats,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := pipeline.New(cfg, pipeline.WithLogger(slog.Default()))
			if err := p.PublishNATS(ctx, result, run); err != nil {
				return err
			}
			fmt.Println(run.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "Directory holding the site data files")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL")

	return cmd
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/folkevalget/folkevalget/config"
	"github.com/folkevalget/folkevalget/pipeline"
)

func newFetchCmd(root *rootOptions) *cobra.Command {
	var (
		outputDir     string
		rawDir        string
		startDate     string
		today         string
		delay         time.Duration
		pageSize      int
		recentVotes   int
		voteWorkers   int
		writeRaw      bool
		skipPhotos    bool
		summarizeDocs bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the vote window and build the site data",
		Long: `Fetch pulls the configured window of votes, members, and
memberships from the ODA API, derives the analytics, and writes the
site artifacts. With --write-raw the raw API snapshot lands under the
raw directory, ready for offline re-derivation with "derive".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("output-dir") {
				cfg.Output.Dir = outputDir
			}
			if flags.Changed("raw-dir") {
				cfg.Output.RawDir = rawDir
			}
			if flags.Changed("start-date") {
				cfg.Window.StartDate = startDate
			}
			if flags.Changed("today") {
				cfg.Window.Today = today
			}
			if flags.Changed("delay") {
				cfg.API.Delay = delay
			}
			if flags.Changed("page-size") {
				cfg.API.PageSize = pageSize
			}
			if flags.Changed("recent-votes") {
				cfg.Derive.RecentVotes = recentVotes
			}
			if flags.Changed("vote-workers") {
				cfg.API.VoteWorkers = voteWorkers
			}
			if flags.Changed("write-raw") {
				cfg.Output.WriteRaw = writeRaw
			}
			if flags.Changed("skip-photos") {
				cfg.Enrich.SkipPhotos = skipPhotos
			}
			if flags.Changed("summarize-docs") {
				cfg.Derive.SummarizeDocs = summarizeDocs
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := pipeline.New(cfg, pipeline.WithLogger(slog.Default()))
			summary, err := p.Run(ctx)
			if err != nil {
				return err
			}
			return printSummary(summary)
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "data", "Directory for the site data files")
	cmd.Flags().StringVar(&rawDir, "raw-dir", "data/raw", "Directory for the raw API snapshot")
	cmd.Flags().StringVar(&startDate, "start-date", config.DefaultStartDate, "Window start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&today, "today", "", "Pin the window end date (YYYY-MM-DD, default today)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Pause between API pages")
	cmd.Flags().IntVar(&pageSize, "page-size", 100, "Rows per API page")
	cmd.Flags().IntVar(&recentVotes, "recent-votes", 10, "Recent votes kept per member")
	cmd.Flags().IntVar(&voteWorkers, "vote-workers", 6, "Workers draining ballot overflow pages")
	cmd.Flags().BoolVar(&writeRaw, "write-raw", false, "Keep the raw API snapshot")
	cmd.Flags().BoolVar(&skipPhotos, "skip-photos", false, "Skip the local photo inventory pass")
	cmd.Flags().BoolVar(&summarizeDocs, "summarize-docs", false, "Embed excerpts of linked HTML case documents")

	return cmd
}

func newDeriveCmd(root *rootOptions) *cobra.Command {
	var (
		rawDir        string
		outputDir     string
		recentVotes   int
		summarizeDocs bool
	)

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Rebuild the site data from a saved raw snapshot",
		Long: `Derive reruns the analytics from a raw API snapshot written by
"fetch --write-raw", without touching the network. The snapshot pins
the window end date, so the output matches the original run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("raw-dir") {
				cfg.Output.RawDir = rawDir
			}
			if flags.Changed("output-dir") {
				cfg.Output.Dir = outputDir
			}
			if flags.Changed("recent-votes") {
				cfg.Derive.RecentVotes = recentVotes
			}
			if flags.Changed("summarize-docs") {
				cfg.Derive.SummarizeDocs = summarizeDocs
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := pipeline.New(cfg, pipeline.WithLogger(slog.Default()))
			summary, err := p.RunFromSnapshot(ctx, cfg.Output.RawDir)
			if err != nil {
				return err
			}
			return printSummary(summary)
		},
	}

	cmd.Flags().StringVar(&rawDir, "raw-dir", "data/raw", "Directory holding the raw API snapshot")
	cmd.Flags().StringVar(&outputDir, "output-dir", "data", "Directory for the site data files")
	cmd.Flags().IntVar(&recentVotes, "recent-votes", 10, "Recent votes kept per member")
	cmd.Flags().BoolVar(&summarizeDocs, "summarize-docs", false, "Embed excerpts of linked HTML case documents")

	return cmd
}

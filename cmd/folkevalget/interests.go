package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/folkevalget/folkevalget/engine"
	"github.com/folkevalget/folkevalget/enrich"
	"github.com/folkevalget/folkevalget/hverv"
	"github.com/folkevalget/folkevalget/site"
)

func newInterestsCmd(root *rootOptions) *cobra.Command {
	var (
		htmlDir   string
		dataDir   string
		today     string
		withCVR   bool
		cacheFile string
	)

	cmd := &cobra.Command{
		Use:   "interests",
		Short: "Build the offices-and-interests report from saved hverv pages",
		Long: `Interests parses the hverv sections saved from member pages into
the voluntary-register report, one record per published member. Pages
are matched to members by id (<id>.html in the HTML directory). With
--cvr the quoted company names are resolved against the CVR register.

Members already covered by an existing report keep their records when
their page is missing, so partial captures merge instead of erasing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("data-dir") {
				cfg.Output.Dir = dataDir
			}
			if flags.Changed("cache") {
				cfg.Enrich.CacheFile = cacheFile
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			artifacts, err := site.LoadArtifacts(cfg.Output.Dir)
			if err != nil {
				return fmt.Errorf("load site artifacts: %w", err)
			}

			todayText := cfg.Window.Today
			if flags.Changed("today") {
				todayText = today
			}
			if todayText == "" {
				todayText = time.Now().UTC().Format("2006-01-02")
			}
			runDate, err := engine.ParseDate(todayText)
			if err != nil {
				return err
			}

			reportPath := filepath.Join(cfg.Output.Dir, site.InterestsFile)
			opts := []hverv.BuilderOption{hverv.WithLogger(slog.Default())}
			if existing := hverv.LoadReport(reportPath); existing != nil {
				opts = append(opts, hverv.WithExisting(existing))
			}
			if withCVR {
				cvrOpts := []enrich.CVROption{enrich.WithCVRLogger(slog.Default())}
				if cfg.Enrich.CacheFile != "" {
					cache, err := enrich.OpenSQLiteCache(cfg.Enrich.CacheFile)
					if err != nil {
						return fmt.Errorf("open lookup cache: %w", err)
					}
					defer cache.Close()
					cvrOpts = append(cvrOpts, enrich.WithCVRCache(cache))
				}
				opts = append(opts, hverv.WithCVR(enrich.NewCVRClient(cvrOpts...)))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := hverv.NewBuilder(opts...).Build(ctx, artifacts.Profiles, htmlDir, runDate)
			if err != nil {
				return err
			}
			if err := site.WriteJSON(reportPath, report); err != nil {
				return err
			}
			slog.Info("interests report written",
				"path", reportPath,
				"members", len(report.Members))
			return nil
		},
	}

	cmd.Flags().StringVar(&htmlDir, "html-dir", "hverv_html", "Directory of saved member hverv pages")
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "Directory holding the site data files")
	cmd.Flags().StringVar(&today, "today", "", "Report date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&withCVR, "cvr", false, "Resolve company names against the CVR register")
	cmd.Flags().StringVar(&cacheFile, "cache", "", "SQLite lookup cache file")

	return cmd
}

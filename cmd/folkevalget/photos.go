package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/folkevalget/folkevalget/pipeline"
	"github.com/folkevalget/folkevalget/site"
)

func newPhotosCmd(root *rootOptions) *cobra.Command {
	var (
		dataDir   string
		photosDir string
		cacheFile string
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "photos",
		Short: "Resolve member portraits via Wikidata",
		Long: `Photos looks up a Commons portrait for every member in the
published profiles, downloads what it finds into the photos directory,
and rewrites the profiles so they point at the local files. Lookup
responses are cached, so reruns only hit Wikidata for new members.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("data-dir") {
				cfg.Output.Dir = dataDir
			}
			if flags.Changed("photos-dir") {
				cfg.Output.PhotosDir = photosDir
			}
			if flags.Changed("cache") {
				cfg.Enrich.CacheFile = cacheFile
			}
			if flags.Changed("workers") {
				cfg.Enrich.PhotoWorkers = workers
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			artifacts, err := site.LoadArtifacts(cfg.Output.Dir)
			if err != nil {
				return fmt.Errorf("load site artifacts: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := pipeline.New(cfg, pipeline.WithLogger(slog.Default()))
			if err := p.EnrichPhotos(ctx, artifacts.Profiles); err != nil {
				return err
			}

			// Rewrite the whole bundle so the JS payloads pick up the
			// new portrait paths too.
			writer := site.NewWriter(cfg.Output.Dir, site.WithWriterLogger(slog.Default()))
			return writer.WriteAll(*artifacts)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "Directory holding the site data files")
	cmd.Flags().StringVar(&photosDir, "photos-dir", "photos", "Directory for downloaded portraits")
	cmd.Flags().StringVar(&cacheFile, "cache", "", "SQLite lookup cache file")
	cmd.Flags().IntVar(&workers, "workers", 4, "Parallel portrait lookups")

	return cmd
}

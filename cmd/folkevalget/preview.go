package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/folkevalget/folkevalget/pipeline"
	"github.com/folkevalget/folkevalget/preview"
)

func newPreviewCmd(root *rootOptions) *cobra.Command {
	var (
		addr    string
		dataDir string
		rawDir  string
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Serve the generated site locally",
		Long: `Preview serves the site directory over HTTP, with health and
metrics endpoints alongside the static files. While watching is on and
a raw snapshot exists, changes under the raw and photos directories
re-derive the site artifacts automatically.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Preview.Addr = addr
			}
			if flags.Changed("data-dir") {
				cfg.Output.Dir = dataDir
			}
			if flags.Changed("raw-dir") {
				cfg.Output.RawDir = rawDir
			}
			if noWatch {
				cfg.Preview.Watch = false
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slog.Default()
			siteDir := filepath.Dir(cfg.Output.Dir)
			opts := []preview.Option{
				preview.WithAddr(cfg.Preview.Addr),
				preview.WithLogger(logger),
			}
			if cfg.Preview.Watch {
				p := pipeline.New(cfg, pipeline.WithLogger(logger))
				rebuild := func(ctx context.Context) error {
					_, err := p.RunFromSnapshot(ctx, cfg.Output.RawDir)
					return err
				}
				opts = append(opts, preview.WithRebuild(rebuild, cfg.Output.RawDir, cfg.Output.PhotosDir))
			}

			logger.Info("preview server starting",
				"addr", cfg.Preview.Addr,
				"site_dir", siteDir,
				"watch", cfg.Preview.Watch)
			return preview.NewServer(siteDir, opts...).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8090", "Listen address")
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "Directory holding the site data files")
	cmd.Flags().StringVar(&rawDir, "raw-dir", "data/raw", "Directory holding the raw API snapshot")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Disable snapshot watching")

	return cmd
}

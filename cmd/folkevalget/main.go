// Package main provides the folkevalget binary entry point.
// Folkevalget fetches roll-call voting data from the Danish
// parliament's ODA API and builds the static site documents the
// published site runs on.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/folkevalget/folkevalget/config"
	"github.com/folkevalget/folkevalget/pipeline"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "folkevalget"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions carries the persistent flags every subcommand shares.
type rootOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "folkevalget",
		Short: "Folketinget voting analytics pipeline",
		Long: `Folkevalget builds the data behind the member analytics site:
it fetches a window of roll-call votes from the ODA API (oda.ft.dk),
resolves party and committee membership over time, derives attendance
and party-loyalty figures per member, and writes the JSON and JS
artifacts the static site loads.

Raw API snapshots can be kept alongside the output, so the same window
re-derives offline and byte-identically.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(opts.logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newFetchCmd(opts),
		newDeriveCmd(opts),
		newPhotosCmd(opts),
		newInterestsCmd(opts),
		newPublishCmd(opts),
		newPreviewCmd(opts),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// setupLogging configures the default logger. Unknown levels fall back
// to info.
func setupLogging(logLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadConfig resolves the effective configuration: the explicit file
// when --config was given, the layered defaults otherwise.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	loader := config.NewLoader(slog.Default())
	if opts.configPath != "" {
		return loader.LoadFile(opts.configPath)
	}
	return loader.Load()
}

// printSummary emits the machine-readable result line on stdout. The
// log stream stays on stderr, so scripts can consume this directly.
func printSummary(summary *pipeline.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

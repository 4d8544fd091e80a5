// Command dstetl builds the fused DST accident table from raw FARS extracts
// and reference files.
//
// Usage:
//
//	dstetl run                 # build and export the fused table
//	dstetl summary [--ks]      # build and print per-group counts
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/dst-accident-etl/internal/config"
	"github.com/couchcryptid/dst-accident-etl/internal/observability"
	"github.com/spf13/cobra"
)

// app carries what every subcommand shares.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	a := &app{
		cfg:     cfg,
		logger:  observability.NewLogger(cfg),
		metrics: observability.NewMetrics(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand(a).ExecuteContext(ctx); err != nil {
		a.logger.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func rootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "dstetl",
		Short:         "Fuse traffic accidents with DST transitions and solar offsets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.RawDir, "raw-dir", a.cfg.RawDir, "directory holding raw inputs")
	flags.StringVar(&a.cfg.DerivedDir, "derived-dir", a.cfg.DerivedDir, "directory holding cached derived tables")
	flags.IntVar(&a.cfg.FirstYear, "first-year", a.cfg.FirstYear, "first accident year to load")
	flags.IntVar(&a.cfg.LastYear, "last-year", a.cfg.LastYear, "last accident year to load")
	flags.Float64Var(&a.cfg.OffsetBucketMinutes, "bucket", a.cfg.OffsetBucketMinutes, "offset bucket width in minutes")
	flags.BoolVar(&a.cfg.ApplyTZOverride, "apply-tz-override", a.cfg.ApplyTZOverride, "apply per-county meridian overrides")

	root.AddCommand(runCommand(a), summaryCommand(a))
	return root
}

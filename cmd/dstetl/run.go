package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/couchcryptid/dst-accident-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/dst-accident-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/dst-accident-etl/internal/adapter/kafka"
	"github.com/couchcryptid/dst-accident-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/dst-accident-etl/internal/cache"
	"github.com/couchcryptid/dst-accident-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

func runCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the fused table and write it to every configured sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&a.cfg.OutputPath, "output", "o", a.cfg.OutputPath, "path of the exported CSV")
	cmd.Flags().StringVar(&a.cfg.SQLitePath, "sqlite", a.cfg.SQLitePath, "also store the table in this SQLite database")
	cmd.Flags().StringVar(&a.cfg.MetricsAddr, "metrics-addr", a.cfg.MetricsAddr, "serve /metrics, /healthz and /readyz on this address during the run")
	return cmd
}

func (a *app) run(ctx context.Context) error {
	if a.cfg.FirstYear > a.cfg.LastYear {
		return errors.New("first year must not be after last year")
	}
	if a.cfg.OffsetBucketMinutes <= 0 {
		return errors.New("bucket width must be positive")
	}

	sinks, err := a.sinks(ctx)
	if err != nil {
		return err
	}

	p := a.newPipeline(sinks)
	if a.cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(a.cfg.MetricsAddr, p, a.metrics.Registry, a.logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", "error", err)
			}
		}()
		defer a.shutdown(srv)
	}

	res, runErr := p.Run(ctx)
	closeErr := p.Close()
	a.writeMetrics()

	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("close sinks: %w", closeErr)
	}

	a.logger.Info("run complete",
		"rows", len(res.Rows),
		"accidents_dropped", res.Accidents.Dropped(),
		"fusion_dropped", res.Fusion.Dropped(),
		"output", a.cfg.OutputPath,
	)
	return nil
}

func (a *app) newPipeline(sinks []pipeline.Sink) *pipeline.Pipeline {
	store := cache.NewStore(a.cfg.DerivedDir, a.logger, a.metrics)
	return pipeline.New(pipeline.Options{
		RawDir:         a.cfg.RawDir,
		FirstYear:      a.cfg.FirstYear,
		LateSchemaYear: a.cfg.LateSchemaYear,
		LastYear:       a.cfg.LastYear,
		Excluded:       a.cfg.ExcludedStates,
		BucketWidth:    a.cfg.OffsetBucketMinutes,
		ApplyOverrides: a.cfg.ApplyTZOverride,
	}, store, sinks, a.logger, a.metrics)
}

// sinks opens the CSV export plus the optional SQLite and Kafka sinks.
func (a *app) sinks(ctx context.Context) ([]pipeline.Sink, error) {
	sinks := []pipeline.Sink{csvfile.NewSink(a.cfg.OutputPath, a.logger)}

	if a.cfg.SQLitePath != "" {
		s, err := sqlite.Open(ctx, a.cfg.SQLitePath, a.logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
		a.logger.Info("sqlite sink enabled", "path", a.cfg.SQLitePath)
	}

	if a.cfg.KafkaEnabled() {
		sinks = append(sinks, kafkaadapter.NewWriter(a.cfg, a.logger))
		a.logger.Info("kafka sink enabled", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaSinkTopic)
	}
	return sinks, nil
}

func (a *app) shutdown(srv *httpadapter.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
}

func (a *app) writeMetrics() {
	if a.cfg.MetricsTextfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		a.logger.Error("metrics export failed", "error", err)
	}
}

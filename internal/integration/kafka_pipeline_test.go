//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/dst-accident-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/dst-accident-etl/internal/adapter/kafka"
	"github.com/couchcryptid/dst-accident-etl/internal/cache"
	"github.com/couchcryptid/dst-accident-etl/internal/config"
	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	"github.com/couchcryptid/dst-accident-etl/internal/mockdata"
	"github.com/couchcryptid/dst-accident-etl/internal/observability"
	"github.com/couchcryptid/dst-accident-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testSinkTopic = "test-fused-accidents"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := kafkatc.Run(ctx, "confluentinc/confluent-local:7.5.0", kafkatc.WithClusterID("dst-etl-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestPipelineEndToEnd runs the pipeline over the mock dataset with the CSV
// and Kafka sinks and checks that both carry the same rows.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	opts := mockdata.DefaultOptions
	opts.PerYear = 25
	_, err := mockdata.Write(raw, opts)
	require.NoError(t, err)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSinkTopic:     testSinkTopic,
		BatchSize:          10,
		BatchFlushInterval: 50 * time.Millisecond,
	}
	logger := discardLogger()
	metrics := observability.NewMetrics()
	outPath := filepath.Join(root, "_data.csv")

	p := pipeline.New(pipeline.Options{
		RawDir:         raw,
		FirstYear:      opts.FirstYear,
		LateSchemaYear: opts.LateSchemaYear,
		LastYear:       opts.LastYear,
		Excluded:       config.DefaultExcludedStates,
		BucketWidth:    60,
	},
		cache.NewStore(filepath.Join(root, "derived"), logger, metrics),
		[]pipeline.Sink{csvfile.NewSink(outPath, logger), kafka.NewWriter(cfg, logger)},
		logger, metrics,
	)

	res, err := p.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NotEmpty(t, res.Rows)

	exported, err := csvfile.Read(outPath)
	require.NoError(t, err)
	assert.Equal(t, res.Rows, exported)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		StartOffset: kafkago.FirstOffset,
		MaxWait:     500 * time.Millisecond,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	want := make(map[string]domain.FusedAccident, len(res.Rows))
	for _, r := range res.Rows {
		want[r.ID()] = r
	}

	for range res.Rows {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from sink topic")

		var got domain.FusedAccident
		require.NoError(t, json.Unmarshal(msg.Value, &got))
		expected, ok := want[string(msg.Key)]
		require.True(t, ok, "unexpected key %s", msg.Key)
		assert.Equal(t, expected, got)
		delete(want, string(msg.Key))
	}
	assert.Empty(t, want)
}

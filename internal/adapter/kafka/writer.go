package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/dst-accident-etl/internal/config"
	"github.com/couchcryptid/dst-accident-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes fused accidents to a Kafka topic.
// It implements pipeline.Sink.
type Writer struct {
	writer    *kafkago.Writer
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Write serializes rows and publishes them in chunks of the configured batch
// size, one WriteMessages call per chunk.
func (w *Writer) Write(ctx context.Context, rows []domain.FusedAccident) error {
	size := w.batchSize
	if size <= 0 {
		size = len(rows)
	}
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(rows[i])
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("publish rows %d-%d: %w", start, end, err)
		}
	}
	w.logger.Debug("fused table published", "topic", w.writer.Topic, "rows", len(rows))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a fused accident into a Kafka message keyed by
// its table-wide ID, so re-runs land on the same partition.
func serializeToMessage(row domain.FusedAccident) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize fused accident: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.ID()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dst", Value: []byte(row.ActiveDST)},
			{Key: "offset_minutes", Value: []byte(strconv.FormatFloat(row.OffsetMinutes, 'f', -1, 64))},
		},
	}, nil
}

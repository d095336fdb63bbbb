package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/frcm-service/internal/config"
	"github.com/couchcryptid/frcm-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Message header names set on every published prediction.
const (
	HeaderFingerprint = "fingerprint"
	HeaderDangerLevel = "danger_level"
	HeaderProcessedAt = "processed_at"
)

// Writer produces messages to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes predictions to the sink topic in a single WriteMessages
// call. Messages are keyed by fingerprint so repeats of a series land on the
// same partition.
func (w *Writer) LoadBatch(ctx context.Context, predictions []domain.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(predictions))
	for i := range predictions {
		msg, err := serializeToMessage(predictions[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}
	w.logger.Debug("published predictions", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Prediction into a Kafka message.
func serializeToMessage(p domain.Prediction) (kafkago.Message, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize prediction: %w", err)
	}
	fp := p.Fingerprint.String()
	return kafkago.Message{
		Key:   []byte(fp),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderFingerprint, Value: []byte(fp)},
			{Key: HeaderDangerLevel, Value: []byte(p.DangerLevel)},
			{Key: HeaderProcessedAt, Value: []byte(p.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}

// Package alerting delivers high-severity security events to an external
// channel. The Kafka sink publishes events to a topic consumed by the
// on-call pipeline; the log sink is the fallback for deployments without
// a broker.
package alerting

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/perimetra/sentinel/internal/config"
	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/pkg/logger"
)

// messageWriter is the slice of kafka.Writer the sink needs. Kept as an
// interface so tests inject a fake without a broker.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes alerts to a Kafka topic, keyed by event type so
// consumers can partition by attack class.
type KafkaSink struct {
	writer messageWriter
	logger logger.Logger
}

var _ service.AlertSink = (*KafkaSink)(nil)

// NewKafkaSink creates a sink writing to the configured brokers.
func NewKafkaSink(cfg config.AlertingConfig, log logger.Logger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaSink{
		writer: writer,
		logger: log.WithComponent("kafka_alert_sink"),
	}
}

// Dispatch publishes the event. Failures are logged and returned; callers
// decide whether delivery is best-effort.
func (s *KafkaSink) Dispatch(ctx context.Context, event models.SecurityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error(ctx, "failed to marshal alert", err, logger.String("event_id", event.ID))
		return err
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Type),
		Value: payload,
	})
	if err != nil {
		s.logger.Error(ctx, "failed to publish alert", err,
			logger.String("event_id", event.ID),
			logger.String("type", string(event.Type)))
		return err
	}

	s.logger.Debug(ctx, "alert published",
		logger.String("event_id", event.ID),
		logger.String("severity", string(event.Severity)))
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

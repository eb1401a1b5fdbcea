package alerting

import (
	"context"

	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/internal/domain/service"
	"github.com/perimetra/sentinel/pkg/logger"
)

// LogSink writes alerts to the structured log at warn level. Used when no
// broker is configured, and as a dead-simple sink in tests.
type LogSink struct {
	logger logger.Logger
}

var _ service.AlertSink = (*LogSink)(nil)

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: log.WithComponent("log_alert_sink")}
}

func (s *LogSink) Dispatch(ctx context.Context, event models.SecurityEvent) error {
	s.logger.Warn(ctx, "security alert",
		logger.String("event_id", event.ID),
		logger.String("type", string(event.Type)),
		logger.String("severity", string(event.Severity)),
		logger.String("source", event.Source),
		logger.String("description", event.Description))
	return nil
}

package notify

import (
	"context"
	"log/slog"

	"github.com/roach88/geonudge/internal/model"
)

// LogSink writes each notification as an Info record.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, n model.Notification) error {
	s.logger.InfoContext(ctx, "notification",
		"title", n.Title,
		"body", n.Body,
		"reminder_id", n.Data["reminder_id"],
		"store_id", n.Data["store_id"],
		"distance_m", n.Data["distance_m"],
	)
	return nil
}

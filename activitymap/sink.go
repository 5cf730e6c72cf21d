package activitymap

import (
	"context"

	auth "github.com/goliatone/go-dashboard-auth"
)

// LogSink is an auth.ActivitySink that writes normalized records to a logger.
// Failure events are logged at warn level.
type LogSink struct {
	logger auth.Logger
}

var _ auth.ActivitySink = (*LogSink)(nil)

// NewLogSink returns a sink writing to logger
func NewLogSink(logger auth.Logger) *LogSink {
	if logger == nil {
		logger = auth.NoopLogger()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(_ context.Context, event auth.ActivityEvent) error {
	record := Normalize(event)

	args := []any{
		"verb", record.Verb,
		"actor_id", record.ActorID,
		"object_type", record.ObjectType,
		"object_id", record.ObjectID,
		"channel", record.Channel,
	}
	for key, value := range record.Metadata {
		args = append(args, key, value)
	}

	if record.Failure {
		s.logger.Warn("activity", args...)
		return nil
	}
	s.logger.Info("activity", args...)
	return nil
}

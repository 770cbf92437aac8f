package transcript

import "log/slog"

// LogSink writes each event to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "transcript.log")}
}

// Deliver logs the event.
func (s *LogSink) Deliver(e Event) {
	s.logger.Info("transcript",
		"id", e.ID,
		"speaker", string(e.Speaker),
		"text", e.Text,
		"timestamp", e.Time,
	)
}

package audit

import (
	"context"
	"log/slog"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// LogSink writes audit events to the structured logger
type LogSink struct {
	logger *slog.Logger
}

var _ interfaces.AuditSink = &LogSink{}

// NewLogSink creates a sink writing to logger, or to the context logger
// when logger is nil
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, event model.AuditEvent) error {
	logger := s.logger
	if logger == nil {
		logger = logging.From(ctx)
	}

	attrs := []any{
		"kind", event.Kind,
		"occurred_at", event.OccurredAt,
	}
	if event.OwnerID != "" {
		attrs = append(attrs, "owner_id", event.OwnerID)
	}
	if event.SessionID != "" {
		attrs = append(attrs, "session_id", event.SessionID)
	}
	if event.Class != "" {
		attrs = append(attrs, "class", event.Class)
	}
	if len(event.Corpora) > 0 {
		attrs = append(attrs, "corpora", event.Corpora)
	}
	if event.Role != "" {
		attrs = append(attrs, "role", event.Role)
	}
	if event.Kind == model.EventRetrievalCompleted {
		attrs = append(attrs,
			"result_len", event.ResultLen,
			"degraded", event.Degraded,
			"elapsed", event.Elapsed,
		)
	}

	logger.Info("audit event", attrs...)
	return nil
}

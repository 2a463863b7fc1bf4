package audit

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/async"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// Emitter fans audit events out to its sinks. Delivery is best effort;
// a failing sink is logged and never fails the caller.
type Emitter struct {
	sinks []interfaces.AuditSink
}

func New(sinks ...interfaces.AuditSink) *Emitter {
	return &Emitter{sinks: sinks}
}

// Emit delivers the event to every sink synchronously
func (e *Emitter) Emit(ctx context.Context, event model.AuditEvent) {
	for _, sink := range e.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			logging.From(ctx).Warn("audit sink failed",
				"kind", event.Kind, "error", err)
		}
	}
}

// Dispatch delivers the event off the request path
func (e *Emitter) Dispatch(ctx context.Context, event model.AuditEvent) {
	if len(e.sinks) == 0 {
		return
	}
	async.Dispatch(ctx, func(ctx context.Context) error {
		e.Emit(ctx, event)
		return nil
	})
}

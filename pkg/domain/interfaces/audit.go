package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

// AuditSink receives structured audit events. Emit may be slow; callers
// dispatch it off the request path and drop events on failure.
type AuditSink interface {
	Emit(ctx context.Context, event model.AuditEvent) error
}

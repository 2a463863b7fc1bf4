package model

import (
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// AuditEvent is the common shape of fire-and-forget audit records.
// Delivery is best-effort; nothing on the request path waits for it.
type AuditEvent struct {
	Kind       string           `json:"kind"`
	OccurredAt time.Time        `json:"occurred_at"`
	SessionID  types.SessionID  `json:"session_id,omitempty"`
	OwnerID    types.UserID     `json:"owner_id,omitempty"`
	Class      types.QueryClass `json:"class,omitempty"`
	Corpora    []types.CorpusID `json:"corpora,omitempty"`
	Role       types.TurnRole   `json:"role,omitempty"`
	ResultLen  int              `json:"result_len,omitempty"`
	Degraded   bool             `json:"degraded,omitempty"`
	Elapsed    time.Duration    `json:"elapsed,omitempty"`
}

const (
	EventTurnCompleted      = "turn.completed"
	EventRetrievalCompleted = "retrieval.completed"
)

// NewTurnEvent builds the audit event emitted after a turn is appended
func NewTurnEvent(sessionID types.SessionID, owner types.UserID, role types.TurnRole) AuditEvent {
	return AuditEvent{
		Kind:       EventTurnCompleted,
		OccurredAt: time.Now(),
		SessionID:  sessionID,
		OwnerID:    owner,
		Role:       role,
	}
}

// NewRetrievalEvent builds the audit event emitted after a retrieval call
func NewRetrievalEvent(sessionID types.SessionID, owner types.UserID, bundle *EvidenceBundle) AuditEvent {
	ev := AuditEvent{
		Kind:       EventRetrievalCompleted,
		OccurredAt: time.Now(),
		SessionID:  sessionID,
		OwnerID:    owner,
	}
	if bundle != nil {
		ev.Class = bundle.Class
		ev.ResultLen = len(bundle.Results)
		ev.Degraded = bundle.Degraded
		ev.Elapsed = bundle.RetrievedIn
	}
	return ev
}

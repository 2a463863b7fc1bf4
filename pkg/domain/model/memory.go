package model

import (
	"fmt"
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// EmbeddingDimension is the dimension of the embedding vector
const EmbeddingDimension = 768

// MemoryRecord is the tier-agnostic persisted unit of conversational
// memory. A record lives in exactly one tier at a time and only moves
// toward more durable tiers (session -> cache -> durable); the only way
// out is explicit deletion.
type MemoryRecord struct {
	ID        types.RecordID
	OwnerID   types.UserID
	SessionID types.SessionID
	Content   string
	Summary   string // populated only in the durable tier
	Tier      types.Tier
	CreatedAt time.Time
	ExpiresAt *time.Time // set only for the cache tier
}

// PromotionKey is the cache key under which an owner's promoted session
// buffer is stored
func PromotionKey(owner types.UserID, sessionID types.SessionID) string {
	return fmt.Sprintf("%s:%s", owner, sessionID)
}

// PromotionPayload is the bundle written to the cache tier when a session
// is promoted. PromotedAt drives the cache-to-durable aging decision.
type PromotionPayload struct {
	OwnerID    types.UserID    `json:"owner_id"`
	SessionID  types.SessionID `json:"session_id"`
	Turns      []Turn          `json:"turns"`
	PromotedAt time.Time       `json:"promoted_at"`
}

// TurnRange returns the timestamps of the first and last turns in the
// payload. Used to derive the deterministic summary record ID.
func (p *PromotionPayload) TurnRange() (first, last time.Time) {
	if len(p.Turns) == 0 {
		return p.PromotedAt, p.PromotedAt
	}
	return p.Turns[0].Timestamp, p.Turns[len(p.Turns)-1].Timestamp
}

// Transcript renders the payload turns as role-prefixed lines for
// summarization input
func (p *PromotionPayload) Transcript() string {
	var out string
	for _, turn := range p.Turns {
		out += fmt.Sprintf("%s: %s\n", turn.Role, turn.Text)
	}
	return out
}

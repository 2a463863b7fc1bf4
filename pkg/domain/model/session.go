package model

import (
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Turn is a single utterance in a conversation. Turns are immutable once
// created; the embedding is filled in lazily by the indexer and is the
// only field it owns.
type Turn struct {
	Role      types.TurnRole `json:"role"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// Session holds the in-process conversation state for one session_id.
// The turn buffer is bounded; the oldest turn is evicted only after it
// has been queued for promotion to the cache tier.
type Session struct {
	ID           types.SessionID
	UserID       types.UserID
	CreatedAt    time.Time
	LastActiveAt time.Time
	Turns        []Turn
}

// NewSession creates a session for the given user with a fresh ID
func NewSession(userID types.UserID) *Session {
	now := time.Now()
	return &Session{
		ID:           types.NewSessionID(),
		UserID:       userID,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Tail returns up to limit turns from the end of the buffer,
// most-recent-last. limit <= 0 returns all turns.
func (s *Session) Tail(limit int) []Turn {
	n := len(s.Turns)
	if limit > 0 && limit < n {
		return append([]Turn(nil), s.Turns[n-limit:]...)
	}
	return append([]Turn(nil), s.Turns...)
}

// IdleSince reports whether the session has been inactive since before
// the cutoff
func (s *Session) IdleSince(cutoff time.Time) bool {
	return s.LastActiveAt.Before(cutoff)
}

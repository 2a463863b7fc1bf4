package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/session"
)

// CreateSession opens a fresh session buffer for the owner
func (uc *UseCases) CreateSession(ctx context.Context, owner types.UserID) (*model.Session, error) {
	return uc.sessions.Create(ctx, owner)
}

// GetContext returns the most recent limit turns of the session, oldest
// first. A non-positive limit returns the whole buffer.
func (uc *UseCases) GetContext(ctx context.Context, owner types.UserID, sessionID types.SessionID, limit int) ([]model.Turn, error) {
	turns, err := uc.sessions.Context(ctx, owner, sessionID, limit)
	if err != nil {
		return nil, uc.sessionError(err, owner, sessionID)
	}
	return turns, nil
}

// ClearSession empties the session buffer and discards any payload the
// session had queued for promotion. The session itself stays usable.
func (uc *UseCases) ClearSession(ctx context.Context, owner types.UserID, sessionID types.SessionID) error {
	if err := uc.sessions.Clear(ctx, owner, sessionID); err != nil {
		return uc.sessionError(err, owner, sessionID)
	}
	return nil
}

// Touch refreshes the session's idle deadline without recording a turn
func (uc *UseCases) Touch(ctx context.Context, owner types.UserID, sessionID types.SessionID) error {
	if err := uc.sessions.Touch(ctx, owner, sessionID); err != nil {
		return uc.sessionError(err, owner, sessionID)
	}
	return nil
}

// sessionError maps the store's not-found on to the use case sentinel.
// Idle-swept sessions surface here too; to the caller an expired session
// and an unknown one are the same thing.
func (uc *UseCases) sessionError(err error, owner types.UserID, sessionID types.SessionID) error {
	if errors.Is(err, session.ErrNotFound) {
		return goerr.Wrap(ErrSessionNotFound, "session is not resident",
			goerr.V(SessionIDKey, sessionID),
			goerr.V(OwnerIDKey, owner))
	}
	return err
}

package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// CompleteTurn records one finished conversation turn. The turn lands in
// the session buffer on the request path; the conversation indexes and
// the audit trail receive it asynchronously.
func (uc *UseCases) CompleteTurn(ctx context.Context, owner types.UserID, sessionID types.SessionID, role types.TurnRole, text string) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if !role.IsValid() {
		return goerr.New("invalid turn role", goerr.V("role", role))
	}
	if strings.TrimSpace(text) == "" {
		return goerr.New("turn text is required",
			goerr.V(SessionIDKey, sessionID))
	}

	// Stamped here, not in the store, so the buffered turn and its index
	// document carry the same timestamp.
	turn := model.Turn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}

	if err := uc.sessions.Append(ctx, owner, sessionID, turn); err != nil {
		return uc.sessionError(err, owner, sessionID)
	}

	if uc.indexer != nil {
		uc.indexer.Dispatch(ctx, owner, sessionID, turn)
	}
	if uc.audit != nil {
		uc.audit.Dispatch(ctx, model.NewTurnEvent(sessionID, owner, role))
	}

	return nil
}

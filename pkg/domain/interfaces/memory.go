package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// PromotionQueue accepts turns leaving a session buffer and holds them in
// the cache tier until the background sweep promotes them to durable
// storage. Enqueue returns nil only once the turns are safely queued;
// callers must keep their copy on any error.
type PromotionQueue interface {
	// Enqueue appends turns to the pending payload for the session,
	// merging with turns queued earlier
	Enqueue(ctx context.Context, owner types.UserID, sessionID types.SessionID, turns []model.Turn) error

	// Discard drops the pending payload for the session without
	// promoting it
	Discard(ctx context.Context, owner types.UserID, sessionID types.SessionID) error
}

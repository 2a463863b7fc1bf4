package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	embedmock "github.com/secmon-lab/mnemosyne/pkg/service/embedding/mock"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

func TestForget(t *testing.T) {
	ctx := context.Background()

	t.Run("Forget clears every tier of one user", func(t *testing.T) {
		env := newTestEnv(t)

		mine, err := env.uc.CreateSession(ctx, "user-1")
		gt.NoError(t, err).Required()
		gt.NoError(t, env.uc.CompleteTurn(ctx, "user-1", mine.ID, types.TurnRoleUser,
			"please wipe this later"))

		theirs, err := env.uc.CreateSession(ctx, "user-2")
		gt.NoError(t, err).Required()
		gt.NoError(t, env.uc.CompleteTurn(ctx, "user-2", theirs.ID, types.TurnRoleUser,
			"this one stays"))

		gt.NoError(t, env.queue.Enqueue(ctx, "user-1", mine.ID, []model.Turn{
			{Role: types.TurnRoleUser, Text: "evicted turn", Timestamp: time.Now().Add(-time.Hour)},
		}))
		gt.NoError(t, env.queue.Enqueue(ctx, "user-2", theirs.ID, []model.Turn{
			{Role: types.TurnRoleUser, Text: "their evicted turn", Timestamp: time.Now().Add(-time.Hour)},
		}))

		gt.NoError(t, env.durable.Upsert(ctx, &model.MemoryRecord{
			ID: "rec-mine", OwnerID: "user-1", Summary: "old conversation",
			Tier: types.TierDurable, CreatedAt: time.Now().Add(-24 * time.Hour),
		}))
		gt.NoError(t, env.durable.Upsert(ctx, &model.MemoryRecord{
			ID: "rec-theirs", OwnerID: "user-2", Summary: "their conversation",
			Tier: types.TierDurable, CreatedAt: time.Now().Add(-24 * time.Hour),
		}))

		gt.NoError(t, env.uc.Forget(ctx, "user-1"))

		// Session tier: dropped without promotion.
		_, err = env.uc.GetContext(ctx, "user-1", mine.ID, 0)
		gt.Bool(t, errors.Is(err, usecase.ErrSessionNotFound)).True()
		kept, err := env.uc.GetContext(ctx, "user-2", theirs.ID, 0)
		gt.NoError(t, err).Required()
		gt.Array(t, kept).Length(1)

		// Cache tier: only the owner's payloads are purged.
		gt.Bool(t, env.cache.has(model.PromotionKey("user-1", mine.ID))).False()
		gt.Bool(t, env.cache.has(model.PromotionKey("user-2", theirs.ID))).True()

		// Durable tier.
		records, err := env.durable.QueryByOwner(ctx, "user-1")
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(0)
		records, err = env.durable.QueryByOwner(ctx, "user-2")
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(1)

		// Conversation indexes: one delete-by-owner each, scoped to the
		// conversation corpus. Document corpora stay untouched.
		gt.Value(t, env.semantic.removed()).Equal([]removal{
			{corpus: "conversations", owner: "user-1"},
		})
		gt.Value(t, env.lexical.removed()).Equal([]removal{
			{corpus: "conversations", owner: "user-1"},
		})
	})

	t.Run("A failing tier fails the deletion", func(t *testing.T) {
		env := newTestEnv(t)
		sess, err := env.uc.CreateSession(ctx, "user-1")
		gt.NoError(t, err).Required()
		gt.NoError(t, env.uc.CompleteTurn(ctx, "user-1", sess.ID, types.TurnRoleUser, "hello"))

		env.cache.keysErr = errors.New("cache unreachable")

		err = env.uc.Forget(ctx, "user-1")
		gt.Error(t, err)

		// The healthy tiers were still purged, so the retry only has the
		// cache left to clean.
		gt.Array(t, env.semantic.removed()).Length(1)
		gt.Array(t, env.lexical.removed()).Length(1)
		_, err = env.uc.GetContext(ctx, "user-1", sess.ID, 0)
		gt.Bool(t, errors.Is(err, usecase.ErrSessionNotFound)).True()
	})

	t.Run("Owner is validated", func(t *testing.T) {
		env := newTestEnv(t)
		gt.Error(t, env.uc.Forget(ctx, ""))
	})

	t.Run("Forget without optional tiers drops the sessions", func(t *testing.T) {
		env := newTestEnv(t)
		bare, err := usecase.New(env.sessions, env.router, env.engine, embedmock.New())
		gt.NoError(t, err).Required()

		sess, err := bare.CreateSession(ctx, "user-1")
		gt.NoError(t, err).Required()

		gt.NoError(t, bare.Forget(ctx, "user-1"))

		_, err = bare.GetContext(ctx, "user-1", sess.ID, 0)
		gt.Bool(t, errors.Is(err, usecase.ErrSessionNotFound)).True()
		gt.Array(t, env.semantic.removed()).Length(0)
	})
}

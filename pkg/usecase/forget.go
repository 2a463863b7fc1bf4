package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// Forget deletes every tier of one user's conversation memory: resident
// sessions are dropped without promotion, queued payloads are purged, and
// the durable store and conversation indexes delete by owner. Shared
// document corpora are not touched.
//
// The tier deletes run in parallel, but any failure fails the whole call:
// a deletion request is only honored when every tier is clean. Every
// delete is idempotent, so the caller retries the same call.
func (uc *UseCases) Forget(ctx context.Context, owner types.UserID) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	dropped := uc.sessions.DropOwner(ctx, owner)

	var g errgroup.Group
	if uc.cache != nil {
		g.Go(func() error {
			return uc.purgeQueuedPayloads(ctx, owner)
		})
	}
	if uc.durable != nil {
		g.Go(func() error {
			if err := uc.durable.DeleteByOwner(ctx, owner); err != nil {
				return goerr.Wrap(err, "failed to delete durable records")
			}
			return nil
		})
	}
	if uc.semantic != nil {
		g.Go(func() error {
			if err := uc.semantic.DeleteByOwner(ctx, uc.corpus, owner); err != nil {
				return goerr.Wrap(err, "failed to delete conversation embeddings")
			}
			return nil
		})
	}
	if uc.lexical != nil {
		g.Go(func() error {
			if err := uc.lexical.DeleteByOwner(ctx, uc.corpus, owner); err != nil {
				return goerr.Wrap(err, "failed to delete conversation documents")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return goerr.Wrap(err, "user data deletion incomplete",
			goerr.V(OwnerIDKey, owner))
	}

	logging.From(ctx).Info("user data deleted",
		"owner_id", owner,
		"sessions_dropped", dropped)
	return nil
}

// purgeQueuedPayloads removes every promotion payload of the owner. The
// promotion key starts with the owner ID, so the prefix scan catches all
// of the owner's sessions.
func (uc *UseCases) purgeQueuedPayloads(ctx context.Context, owner types.UserID) error {
	keys, err := uc.cache.Keys(ctx, string(owner)+":")
	if err != nil {
		return goerr.Wrap(err, "failed to list queued payloads")
	}
	for _, key := range keys {
		if err := uc.cache.Delete(ctx, key); err != nil {
			return goerr.Wrap(err, "failed to delete queued payload",
				goerr.V("key", key))
		}
	}
	return nil
}

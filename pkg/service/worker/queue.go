package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

const defaultPayloadTTL = 24 * time.Hour

// CacheQueue holds pending promotion payloads in the cache tier. Turns
// enqueued for the same session merge into one payload, and the merged
// payload keeps the earliest PromotedAt so repeated enqueues never push
// the aging deadline forward.
type CacheQueue struct {
	cache interfaces.CacheStore
	ttl   time.Duration
	now   func() time.Time
}

var _ interfaces.PromotionQueue = &CacheQueue{}

type QueueOption func(*CacheQueue)

// WithPayloadTTL overrides the cache TTL of queued payloads
func WithPayloadTTL(ttl time.Duration) QueueOption {
	return func(q *CacheQueue) {
		if ttl > 0 {
			q.ttl = ttl
		}
	}
}

// WithQueueClock replaces the wall clock, for tests
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *CacheQueue) {
		q.now = now
	}
}

func NewCacheQueue(cache interfaces.CacheStore, opts ...QueueOption) (*CacheQueue, error) {
	if cache == nil {
		return nil, goerr.New("cache store is required")
	}

	q := &CacheQueue{
		cache: cache,
		ttl:   defaultPayloadTTL,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

// Enqueue appends turns to the pending payload for the session. Returns
// nil only after the merged payload is stored; on error the caller keeps
// its copy of the turns.
func (q *CacheQueue) Enqueue(ctx context.Context, owner types.UserID, sessionID types.SessionID, turns []model.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	key := model.PromotionKey(owner, sessionID)

	payload := &model.PromotionPayload{
		OwnerID:    owner,
		SessionID:  sessionID,
		PromotedAt: q.now(),
	}

	raw, err := q.cache.Get(ctx, key)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, payload); err != nil {
			// An undecodable payload can never be promoted; start a
			// fresh one instead of wedging the session behind it.
			logging.From(ctx).Warn("replacing corrupt queued payload",
				"key", key,
				"error", err.Error())
			payload = &model.PromotionPayload{
				OwnerID:    owner,
				SessionID:  sessionID,
				PromotedAt: q.now(),
			}
		}
	case !errors.Is(err, interfaces.ErrCacheMiss):
		return goerr.Wrap(err, "failed to read queued payload", goerr.V("key", key))
	}

	payload.Turns = append(payload.Turns, turns...)

	encoded, err := json.Marshal(payload)
	if err != nil {
		return goerr.Wrap(err, "failed to encode payload", goerr.V("key", key))
	}

	if err := q.cache.Set(ctx, key, encoded, q.ttl); err != nil {
		return goerr.Wrap(err, "failed to store payload", goerr.V("key", key))
	}

	return nil
}

// Discard drops the pending payload for the session without promoting it
func (q *CacheQueue) Discard(ctx context.Context, owner types.UserID, sessionID types.SessionID) error {
	key := model.PromotionKey(owner, sessionID)
	if err := q.cache.Delete(ctx, key); err != nil {
		return goerr.Wrap(err, "failed to discard queued payload", goerr.V("key", key))
	}
	return nil
}

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

const (
	defaultInterval       = 5 * time.Minute
	defaultAgingThreshold = time.Hour
	defaultSessionIdle    = 30 * time.Minute
)

// SessionSweeper closes idle session buffers and hands their turns to
// the promotion queue
type SessionSweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) int
}

// PromotionWorker ages conversational memory through the tiers in the
// background: idle session buffers move into the cache tier, and cached
// payloads past the aging threshold are summarized into durable records.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - Promotion is idempotent (deterministic record IDs), so a crash
//   mid-sweep is repaired by the next sweep
type PromotionWorker struct {
	sessions   SessionSweeper
	cache      interfaces.CacheStore
	durable    interfaces.DurableStore
	summarizer interfaces.Summarizer

	semantic interfaces.SemanticIndex
	embedder interfaces.Embedder
	corpus   types.CorpusID

	interval       time.Duration
	agingThreshold time.Duration
	sessionIdle    time.Duration
	retention      time.Duration
	now            func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

type WorkerOption func(*PromotionWorker)

// WithInterval overrides the sweep interval
func WithInterval(interval time.Duration) WorkerOption {
	return func(w *PromotionWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithAgingThreshold overrides how long a payload rests in the cache
// tier before it is summarized into a durable record
func WithAgingThreshold(threshold time.Duration) WorkerOption {
	return func(w *PromotionWorker) {
		if threshold > 0 {
			w.agingThreshold = threshold
		}
	}
}

// WithSessionIdle overrides the inactivity cutoff for the session sweep
func WithSessionIdle(idle time.Duration) WorkerOption {
	return func(w *PromotionWorker) {
		if idle > 0 {
			w.sessionIdle = idle
		}
	}
}

// WithRetention overrides how long a drained payload stays in the cache
// tier after its record reached durable storage
func WithRetention(retention time.Duration) WorkerOption {
	return func(w *PromotionWorker) {
		if retention > 0 {
			w.retention = retention
		}
	}
}

// WithSummaryIndex mirrors promoted summaries into the given semantic
// corpus so recall can reach them without a durable scan
func WithSummaryIndex(index interfaces.SemanticIndex, embedder interfaces.Embedder, corpus types.CorpusID) WorkerOption {
	return func(w *PromotionWorker) {
		w.semantic = index
		w.embedder = embedder
		w.corpus = corpus
	}
}

// WithWorkerClock replaces the wall clock, for tests
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *PromotionWorker) {
		w.now = now
	}
}

// NewPromotionWorker creates the background promotion worker
func NewPromotionWorker(sessions SessionSweeper, cache interfaces.CacheStore, durable interfaces.DurableStore, summarizer interfaces.Summarizer, opts ...WorkerOption) (*PromotionWorker, error) {
	if sessions == nil {
		return nil, goerr.New("session sweeper is required")
	}
	if cache == nil {
		return nil, goerr.New("cache store is required")
	}
	if durable == nil {
		return nil, goerr.New("durable store is required")
	}
	if summarizer == nil {
		return nil, goerr.New("summarizer is required")
	}

	w := &PromotionWorker{
		sessions:       sessions,
		cache:          cache,
		durable:        durable,
		summarizer:     summarizer,
		interval:       defaultInterval,
		agingThreshold: defaultAgingThreshold,
		sessionIdle:    defaultSessionIdle,
		retention:      defaultPayloadTTL,
		now:            time.Now,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.semantic != nil {
		if w.embedder == nil {
			return nil, goerr.New("embedder is required for summary indexing")
		}
		if w.corpus == "" {
			return nil, goerr.New("corpus is required for summary indexing")
		}
	}

	return w, nil
}

// Start begins the background promotion loop
// - Initial sweep and periodic sweeps both run in a background goroutine
// - Does not block server startup
func (w *PromotionWorker) Start(ctx context.Context) error {
	logging.Default().Info("promotion worker starting",
		"interval", w.interval.String(),
		"aging_threshold", w.agingThreshold.String(),
		"session_idle", w.sessionIdle.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *PromotionWorker) Stop() {
	logging.Default().Info("promotion worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("promotion worker stopped")
}

// run is the main worker loop (runs in goroutine)
func (w *PromotionWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.promote(ctx); err != nil {
		logging.Default().Error("initial promotion sweep failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.promote(ctx); err != nil {
				// Log error but continue worker
				logging.Default().Error("promotion sweep failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			logging.Default().Info("promotion worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("promotion worker context cancelled")
			return
		}
	}
}

// promote performs a single sweep: close idle sessions, then move every
// sufficiently aged payload to the durable tier. Per-payload failures
// are logged and retried on the next sweep.
func (w *PromotionWorker) promote(ctx context.Context) error {
	startTime := w.now()

	swept := w.sessions.Sweep(ctx, startTime.Add(-w.sessionIdle))

	keys, err := w.cache.Keys(ctx, "")
	if err != nil {
		return goerr.Wrap(err, "failed to list queued payloads")
	}

	promoted := 0
	for _, key := range keys {
		select {
		case <-ctx.Done():
			return goerr.Wrap(ctx.Err(), "promotion sweep cancelled")
		default:
		}

		ok, err := w.promoteOne(ctx, key, startTime)
		if err != nil {
			logging.Default().Warn("payload promotion failed (will retry next sweep)",
				"key", key,
				"error", err.Error())
			continue
		}
		if ok {
			promoted++
		}
	}

	logging.Default().Info("promotion sweep completed",
		"sessions_swept", swept,
		"payloads_promoted", promoted,
		"duration", time.Since(startTime).String())

	return nil
}

// promoteOne moves a single queued payload to the durable tier. Returns
// false when the payload holds no turns or has not aged enough yet.
func (w *PromotionWorker) promoteOne(ctx context.Context, key string, now time.Time) (bool, error) {
	raw, err := w.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, interfaces.ErrCacheMiss) {
			// expired between Keys and Get
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to read payload")
	}

	var payload model.PromotionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false, goerr.Wrap(err, "failed to decode payload")
	}

	if len(payload.Turns) == 0 {
		return false, nil
	}
	if now.Sub(payload.PromotedAt) < w.agingThreshold {
		return false, nil
	}

	summaryText, err := w.summarizer.Summarize(ctx, &payload)
	if err != nil {
		return false, goerr.Wrap(err, "failed to summarize payload")
	}

	first, last := payload.TurnRange()
	record := &model.MemoryRecord{
		ID:        types.NewSummaryRecordID(payload.OwnerID, first, last),
		OwnerID:   payload.OwnerID,
		SessionID: payload.SessionID,
		Content:   payload.Transcript(),
		Summary:   summaryText,
		Tier:      types.TierDurable,
		CreatedAt: now,
	}

	if err := w.durable.Upsert(ctx, record); err != nil {
		return false, goerr.Wrap(err, "failed to store durable record", goerr.V("record_id", record.ID))
	}

	w.indexSummary(ctx, record)

	// Drain the payload but let the key live out its TTL instead of
	// deleting it, so a reader racing the sweep never sees the turns
	// missing from both tiers at once.
	payload.Turns = nil
	payload.PromotedAt = now
	if encoded, err := json.Marshal(&payload); err != nil {
		logging.Default().Warn("failed to encode drained payload",
			"key", key,
			"error", err.Error())
	} else if err := w.cache.Set(ctx, key, encoded, w.retention); err != nil {
		// The record is already durable; re-promotion next sweep
		// rewrites the same record ID, so a stale payload is harmless.
		logging.Default().Warn("failed to drain promoted payload",
			"key", key,
			"error", err.Error())
	}

	return true, nil
}

// indexSummary mirrors the summary into the conversation corpus. The
// record is already durable, so indexing failures only cost recall.
func (w *PromotionWorker) indexSummary(ctx context.Context, record *model.MemoryRecord) {
	if w.semantic == nil {
		return
	}

	vec, err := w.embedder.Embed(ctx, record.Summary)
	if err != nil {
		logging.Default().Warn("failed to embed promoted summary",
			"record_id", record.ID,
			"error", err.Error())
		return
	}

	doc := &interfaces.Doc{
		ID:        string(record.ID),
		Content:   record.Summary,
		Embedding: vec,
		Owner:     record.OwnerID,
		Timestamp: record.CreatedAt,
	}
	if err := w.semantic.Upsert(ctx, w.corpus, doc); err != nil {
		logging.Default().Warn("failed to index promoted summary",
			"record_id", record.ID,
			"error", err.Error())
	}
}

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// Ask answers one retrieval request: the query is classified and routed,
// both retrieval legs fan out over the routed corpora, and the fused
// evidence comes back together with the conversation memory the response
// generator should answer from. Conversation-aware classes widen the
// context beyond the live buffer: queued payloads fold into Context and
// promoted summaries into Summaries.
//
// A failed query embedding degrades the answer instead of failing it:
// the semantic leg is skipped, the lexical leg carries the query alone,
// and the bundle is marked Degraded.
func (uc *UseCases) Ask(ctx context.Context, owner types.UserID, sessionID types.SessionID, queryText string) (*model.EvidenceBundle, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, goerr.Wrap(ErrEmptyQuery, "cannot retrieve without a query",
			goerr.V(SessionIDKey, sessionID))
	}
	started := time.Now()

	turns, err := uc.sessions.Context(ctx, owner, sessionID, 0)
	if err != nil {
		return nil, uc.sessionError(err, owner, sessionID)
	}

	decision := uc.router.Route(ctx, queryText)

	degraded := false
	var embedding []float32
	if vec, err := uc.embedder.Embed(ctx, queryText); err != nil {
		logging.From(ctx).Warn("query embedding failed, continuing with the lexical leg only",
			"session_id", sessionID,
			"error", err)
		degraded = true
	} else {
		embedding = vec
	}

	if decision.HasTier(types.TierCache) && uc.cache != nil {
		if queued := uc.queuedTurns(ctx, owner, sessionID); len(queued) > 0 {
			// Queued turns predate the live buffer; context stays oldest first.
			turns = append(queued, turns...)
		}
	}

	var summaries []string
	if decision.HasTier(types.TierDurable) && uc.durable != nil {
		summaries = uc.promotedSummaries(ctx, owner)
	}

	results, legDegraded, err := uc.engine.Retrieve(ctx, &model.RetrievalQuery{
		Text:                queryText,
		LexicalText:         decision.LexicalText,
		Embedding:           embedding,
		TargetCorpora:       decision.Corpora,
		Owner:               owner,
		TopK:                uc.topK,
		SimilarityThreshold: uc.threshold,
		Alpha:               uc.alpha,
	})
	if err != nil {
		return nil, err
	}
	if uc.reranker != nil {
		results = uc.reranker.Rerank(results)
	}

	bundle := &model.EvidenceBundle{
		Query:       queryText,
		Class:       decision.Class,
		Results:     results,
		Context:     turns,
		Summaries:   summaries,
		Degraded:    degraded || legDegraded,
		RetrievedIn: time.Since(started),
	}

	if uc.audit != nil {
		event := model.NewRetrievalEvent(sessionID, owner, bundle)
		event.Corpora = decision.Corpora
		uc.audit.Dispatch(ctx, event)
	}

	return bundle, nil
}

// queuedTurns returns the turns evicted from the session buffer that are
// still waiting for promotion. A cache failure only narrows the context,
// it never fails the query.
func (uc *UseCases) queuedTurns(ctx context.Context, owner types.UserID, sessionID types.SessionID) []model.Turn {
	raw, err := uc.cache.Get(ctx, model.PromotionKey(owner, sessionID))
	if err != nil {
		if !errors.Is(err, interfaces.ErrCacheMiss) {
			logging.From(ctx).Warn("failed to read queued payload",
				"session_id", sessionID,
				"error", err)
		}
		return nil
	}

	var payload model.PromotionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		logging.From(ctx).Warn("ignoring corrupt queued payload",
			"session_id", sessionID,
			"error", err)
		return nil
	}
	return payload.Turns
}

// promotedSummaries returns the owner's most recent durable summaries,
// reversed into conversation order so the oldest reads first.
func (uc *UseCases) promotedSummaries(ctx context.Context, owner types.UserID) []string {
	records, err := uc.durable.QueryByOwner(ctx, owner)
	if err != nil {
		logging.From(ctx).Warn("failed to load promoted summaries",
			"owner_id", owner,
			"error", err)
		return nil
	}
	if len(records) > maxContextSummaries {
		records = records[:maxContextSummaries]
	}

	summaries := make([]string, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Summary == "" {
			continue
		}
		summaries = append(summaries, records[i].Summary)
	}
	if len(summaries) == 0 {
		return nil
	}
	return summaries
}

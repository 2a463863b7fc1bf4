package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/async"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// DefaultCorpus is the owner-scoped corpus holding indexed conversation turns
const DefaultCorpus = types.CorpusID("conversations")

const (
	defaultMaxAttempts = 5
	defaultBackoff     = 200 * time.Millisecond
)

// Indexer embeds completed conversation turns and writes them into the
// conversation corpus of both retrieval legs, so semantic and lexical
// search cover conversation memory alike. Indexing is best effort: it
// retries with exponential backoff and gives up after a bounded number
// of attempts, leaving the conversation itself untouched.
type Indexer struct {
	semantic interfaces.SemanticIndex
	lexical  interfaces.LexicalIndex
	embedder interfaces.Embedder

	corpus      types.CorpusID
	maxAttempts int
	backoff     time.Duration
}

type Option func(*Indexer)

// WithCorpus overrides the corpus that turns are indexed into
func WithCorpus(corpus types.CorpusID) Option {
	return func(x *Indexer) {
		x.corpus = corpus
	}
}

// WithMaxAttempts bounds the retries per turn
func WithMaxAttempts(n int) Option {
	return func(x *Indexer) {
		if n > 0 {
			x.maxAttempts = n
		}
	}
}

// WithBackoff sets the first retry delay. Each further retry doubles it.
func WithBackoff(d time.Duration) Option {
	return func(x *Indexer) {
		if d > 0 {
			x.backoff = d
		}
	}
}

// New creates an indexer over the given backends. The lexical index may
// be nil; conversation memory is then reachable through the semantic leg
// only.
func New(semantic interfaces.SemanticIndex, lexical interfaces.LexicalIndex, embedder interfaces.Embedder, opts ...Option) (*Indexer, error) {
	if semantic == nil {
		return nil, goerr.New("semantic index is required")
	}
	if embedder == nil {
		return nil, goerr.New("embedder is required")
	}

	x := &Indexer{
		semantic:    semantic,
		lexical:     lexical,
		embedder:    embedder,
		corpus:      DefaultCorpus,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Dispatch indexes the turn on a background goroutine so the request
// path never waits on embedding
func (x *Indexer) Dispatch(ctx context.Context, owner types.UserID, sessionID types.SessionID, turn model.Turn) {
	async.Dispatch(ctx, func(ctx context.Context) error {
		return x.Index(ctx, owner, sessionID, turn)
	})
}

// Index embeds the turn and upserts it into the conversation corpus,
// retrying transient failures. The doc ID is derived from the session
// and turn timestamp, so a retried turn overwrites rather than
// duplicates.
func (x *Indexer) Index(ctx context.Context, owner types.UserID, sessionID types.SessionID, turn model.Turn) error {
	if strings.TrimSpace(turn.Text) == "" {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= x.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := x.backoff << (attempt - 2)
			select {
			case <-ctx.Done():
				return goerr.Wrap(ctx.Err(), "turn indexing cancelled",
					goerr.V("session_id", sessionID), goerr.V("attempt", attempt))
			case <-time.After(wait):
			}
		}

		if err := x.indexOnce(ctx, owner, sessionID, turn); err != nil {
			lastErr = err
			logging.From(ctx).Warn("turn indexing attempt failed",
				"session_id", sessionID, "attempt", attempt, "error", err)
			continue
		}
		return nil
	}

	return goerr.Wrap(lastErr, "giving up on indexing turn",
		goerr.V("session_id", sessionID), goerr.V("attempts", x.maxAttempts))
}

func (x *Indexer) indexOnce(ctx context.Context, owner types.UserID, sessionID types.SessionID, turn model.Turn) error {
	embedding := turn.Embedding
	if len(embedding) == 0 {
		var err error
		embedding, err = x.embedder.Embed(ctx, turn.Text)
		if err != nil {
			return err
		}
	}

	doc := &interfaces.Doc{
		ID:        turnDocID(sessionID, turn),
		Content:   turnContent(turn),
		Embedding: embedding,
		Owner:     owner,
		Timestamp: turn.Timestamp,
	}
	if err := x.semantic.Upsert(ctx, x.corpus, doc); err != nil {
		return err
	}
	if x.lexical != nil {
		if err := x.lexical.Upsert(ctx, x.corpus, doc); err != nil {
			return err
		}
	}
	return nil
}

// Recall returns the owner's conversation turns most similar to the
// query embedding, best match first.
func (x *Indexer) Recall(ctx context.Context, queryEmbedding []float32, owner types.UserID, topK int) ([]model.Turn, error) {
	if len(queryEmbedding) == 0 {
		return nil, goerr.New("query embedding is required")
	}
	if topK <= 0 {
		return nil, nil
	}

	hits, err := x.semantic.Search(ctx, &interfaces.SemanticQuery{
		Corpus:    x.corpus,
		Embedding: queryEmbedding,
		TopK:      topK,
		Owner:     owner,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to recall turns", goerr.V("owner", owner))
	}

	turns := make([]model.Turn, 0, len(hits))
	for _, hit := range hits {
		turns = append(turns, turnFromHit(hit))
	}
	return turns, nil
}

// turnDocID is deterministic per turn. Two turns of one session never
// share a timestamp at nanosecond resolution.
func turnDocID(sessionID types.SessionID, turn model.Turn) string {
	return fmt.Sprintf("%s:%d", sessionID, turn.Timestamp.UnixNano())
}

// turnContent renders a turn in the same "role: text" form the durable
// transcript uses, so every tier stores conversation text identically.
func turnContent(turn model.Turn) string {
	if turn.Role == "" {
		return turn.Text
	}
	return fmt.Sprintf("%s: %s", turn.Role, turn.Text)
}

// turnFromHit rebuilds a turn from its indexed form. A snippet without a
// recognizable role prefix is kept verbatim.
func turnFromHit(hit *interfaces.Hit) model.Turn {
	turn := model.Turn{Text: hit.Snippet, Timestamp: hit.Timestamp}
	if prefix, rest, ok := strings.Cut(hit.Snippet, ": "); ok {
		if role, err := types.ParseTurnRole(prefix); err == nil {
			turn.Role = role
			turn.Text = rest
		}
	}
	return turn
}

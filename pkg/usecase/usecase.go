package usecase

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/audit"
	"github.com/secmon-lab/mnemosyne/pkg/service/indexer"
	"github.com/secmon-lab/mnemosyne/pkg/service/retrieval"
	"github.com/secmon-lab/mnemosyne/pkg/service/router"
	"github.com/secmon-lab/mnemosyne/pkg/service/session"
)

// Retrieval tuning defaults, shared with the serve command's flags.
const (
	DefaultTopK                = 10
	DefaultSimilarityThreshold = 0.7
	DefaultAlpha               = 0.6
)

// maxContextSummaries caps how many promoted summaries a single query
// folds into its evidence bundle.
const maxContextSummaries = 5

// UseCases binds the memory tiers and the retrieval pipeline into the
// operations the controller exposes. The session store, router, engine
// and embedder are required; the remaining tiers and services are
// optional and the operations narrow gracefully when one is absent.
type UseCases struct {
	sessions *session.Store
	router   *router.Router
	engine   *retrieval.Engine
	embedder interfaces.Embedder

	indexer  *indexer.Indexer
	reranker *retrieval.Reranker
	audit    *audit.Emitter
	cache    interfaces.CacheStore
	durable  interfaces.DurableStore
	semantic interfaces.SemanticIndex
	lexical  interfaces.LexicalIndex
	corpus   types.CorpusID

	topK      int
	threshold float64
	alpha     float64
}

type Option func(*UseCases)

// WithIndexer enables background indexing of completed turns into the
// conversation corpus.
func WithIndexer(x *indexer.Indexer) Option {
	return func(uc *UseCases) {
		uc.indexer = x
	}
}

// WithReranker enables recency-aware reordering of fused results.
func WithReranker(r *retrieval.Reranker) Option {
	return func(uc *UseCases) {
		uc.reranker = r
	}
}

// WithAudit routes audit events through the given emitter.
func WithAudit(emitter *audit.Emitter) Option {
	return func(uc *UseCases) {
		uc.audit = emitter
	}
}

// WithCache lets conversation-aware queries read payloads queued for
// promotion, and gives Forget a cache tier to purge.
func WithCache(cache interfaces.CacheStore) Option {
	return func(uc *UseCases) {
		uc.cache = cache
	}
}

// WithDurable lets analytical queries read promoted summaries, and gives
// Forget a durable tier to purge.
func WithDurable(store interfaces.DurableStore) Option {
	return func(uc *UseCases) {
		uc.durable = store
	}
}

// WithConversationCorpus names the per-user conversation corpus and its
// indexes so Forget can delete a user's entries from them. Shared
// document corpora are never deleted through this path.
func WithConversationCorpus(semantic interfaces.SemanticIndex, lexical interfaces.LexicalIndex, corpus types.CorpusID) Option {
	return func(uc *UseCases) {
		uc.semantic = semantic
		uc.lexical = lexical
		uc.corpus = corpus
	}
}

// WithTopK overrides how many fused results a query returns
func WithTopK(k int) Option {
	return func(uc *UseCases) {
		if k > 0 {
			uc.topK = k
		}
	}
}

// WithSimilarityThreshold overrides the semantic score floor
func WithSimilarityThreshold(threshold float64) Option {
	return func(uc *UseCases) {
		uc.threshold = threshold
	}
}

// WithAlpha overrides the semantic weight of the fusion formula
func WithAlpha(alpha float64) Option {
	return func(uc *UseCases) {
		uc.alpha = alpha
	}
}

func New(sessions *session.Store, rt *router.Router, engine *retrieval.Engine, embedder interfaces.Embedder, opts ...Option) (*UseCases, error) {
	if sessions == nil {
		return nil, goerr.New("session store is required")
	}
	if rt == nil {
		return nil, goerr.New("router is required")
	}
	if engine == nil {
		return nil, goerr.New("retrieval engine is required")
	}
	if embedder == nil {
		return nil, goerr.New("embedder is required")
	}

	uc := &UseCases{
		sessions:  sessions,
		router:    rt,
		engine:    engine,
		embedder:  embedder,
		topK:      DefaultTopK,
		threshold: DefaultSimilarityThreshold,
		alpha:     DefaultAlpha,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc, nil
}

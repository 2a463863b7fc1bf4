package retrieval

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// ErrAllBackendsUnavailable is returned when not a single backend leg
// produced a result set. Partial failures degrade instead.
var ErrAllBackendsUnavailable = errors.New("all retrieval backends unavailable")

const defaultAdapterTimeout = 500 * time.Millisecond

// Engine fans a query out to the semantic and lexical backends of every
// target corpus, normalizes each backend batch, and fuses the scores into
// one ranked evidence list. A failed leg is logged and absorbed; the
// response is marked degraded.
type Engine struct {
	semantic interfaces.SemanticIndex
	lexical  interfaces.LexicalIndex

	adapterTimeout time.Duration
	ownerScoped    map[types.CorpusID]bool
	semanticOnly   map[types.CorpusID]bool
}

type Option func(*Engine)

// WithAdapterTimeout bounds every single backend call
func WithAdapterTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.adapterTimeout = d
		}
	}
}

// WithOwnerScopedCorpora marks corpora whose searches are filtered to the
// querying owner. Conversation corpora must be listed here; shared
// document corpora must not.
func WithOwnerScopedCorpora(corpora ...types.CorpusID) Option {
	return func(e *Engine) {
		for _, c := range corpora {
			e.ownerScoped[c] = true
		}
	}
}

// WithSemanticOnlyCorpora marks corpora that have no lexical leg
func WithSemanticOnlyCorpora(corpora ...types.CorpusID) Option {
	return func(e *Engine) {
		for _, c := range corpora {
			e.semanticOnly[c] = true
		}
	}
}

func New(semantic interfaces.SemanticIndex, lexical interfaces.LexicalIndex, opts ...Option) (*Engine, error) {
	if semantic == nil && lexical == nil {
		return nil, goerr.New("at least one retrieval backend is required")
	}

	e := &Engine{
		semantic:       semantic,
		lexical:        lexical,
		adapterTimeout: defaultAdapterTimeout,
		ownerScoped:    map[types.CorpusID]bool{},
		semanticOnly:   map[types.CorpusID]bool{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// legResult is the outcome of one backend call for one corpus
type legResult struct {
	corpus   types.CorpusID
	semantic bool
	hits     []*interfaces.Hit
	err      error
}

// Retrieve runs the hybrid search. The returned degraded flag is true
// when at least one backend leg failed; the error is non-nil only when
// every leg failed.
func (e *Engine) Retrieve(ctx context.Context, query *model.RetrievalQuery) ([]model.RetrievalResult, bool, error) {
	if err := query.Validate(); err != nil {
		return nil, false, err
	}

	legs := e.planLegs(query)
	if len(legs) == 0 {
		return nil, false, goerr.Wrap(ErrAllBackendsUnavailable, "no backend can serve the query")
	}

	var g errgroup.Group
	for i := range legs {
		leg := &legs[i]
		g.Go(func() error {
			leg.hits, leg.err = e.runLeg(ctx, query, leg)
			return nil
		})
	}
	// Per-leg errors feed the degradation decision; the group itself
	// never fails.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, false, goerr.Wrap(err, "retrieval cancelled")
	}

	var degraded bool
	failed := 0
	for i := range legs {
		if legs[i].err == nil {
			continue
		}
		failed++
		degraded = true
		logging.From(ctx).Warn("retrieval leg failed",
			"corpus", legs[i].corpus, "semantic", legs[i].semantic, "error", legs[i].err)
	}
	if failed == len(legs) {
		return nil, true, goerr.Wrap(ErrAllBackendsUnavailable, "every retrieval leg failed",
			goerr.V("legs", len(legs)))
	}

	return fuse(legs, query), degraded, nil
}

// planLegs decides which backend calls the query needs. A corpus gets a
// semantic leg when an embedding is present and a lexical leg unless the
// corpus is semantic-only.
func (e *Engine) planLegs(query *model.RetrievalQuery) []legResult {
	lexicalText := strings.TrimSpace(query.LexicalQuery())

	var legs []legResult
	for _, corpus := range query.TargetCorpora {
		if e.semantic != nil && len(query.Embedding) > 0 {
			legs = append(legs, legResult{corpus: corpus, semantic: true})
		}
		if e.lexical != nil && lexicalText != "" && !e.semanticOnly[corpus] {
			legs = append(legs, legResult{corpus: corpus, semantic: false})
		}
	}
	return legs
}

func (e *Engine) runLeg(ctx context.Context, query *model.RetrievalQuery, leg *legResult) ([]*interfaces.Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, e.adapterTimeout)
	defer cancel()

	if leg.semantic {
		sq := &interfaces.SemanticQuery{
			Corpus:    leg.corpus,
			Embedding: query.Embedding,
			TopK:      query.TopK,
		}
		if e.ownerScoped[leg.corpus] {
			sq.Owner = query.Owner
		}
		return e.semantic.Search(ctx, sq)
	}

	hits, err := e.lexical.Search(ctx, leg.corpus, query.LexicalQuery(), query.TopK)
	if err != nil {
		return nil, err
	}
	if e.ownerScoped[leg.corpus] {
		// the lexical capability has no owner filter, so scope here
		scoped := hits[:0]
		for _, hit := range hits {
			if hit.Owner == query.Owner {
				scoped = append(scoped, hit)
			}
		}
		hits = scoped
	}
	return hits, nil
}

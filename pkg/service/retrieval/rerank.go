package retrieval

import (
	"sort"
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

const (
	defaultRecencyWeight = 0.1
	defaultRecencyWindow = 7 * 24 * time.Hour
)

// Reranker reorders fused results with a recency bonus. The fused scores
// themselves are never modified; documents without a timestamp keep
// their fused ordering.
type Reranker struct {
	recencyWeight float64
	recencyWindow time.Duration
	now           func() time.Time
}

type RerankOption func(*Reranker)

// WithRecencyWeight sets the maximum bonus a brand-new document receives
func WithRecencyWeight(w float64) RerankOption {
	return func(r *Reranker) {
		if w >= 0 {
			r.recencyWeight = w
		}
	}
}

// WithRecencyWindow sets the age at which the recency bonus reaches zero
func WithRecencyWindow(d time.Duration) RerankOption {
	return func(r *Reranker) {
		if d > 0 {
			r.recencyWindow = d
		}
	}
}

// WithRerankClock overrides the time source. Tests only.
func WithRerankClock(now func() time.Time) RerankOption {
	return func(r *Reranker) {
		r.now = now
	}
}

func NewReranker(opts ...RerankOption) *Reranker {
	r := &Reranker{
		recencyWeight: defaultRecencyWeight,
		recencyWindow: defaultRecencyWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank returns a reordered copy of results, fused score plus recency
// bonus descending
func (r *Reranker) Rerank(results []model.RetrievalResult) []model.RetrievalResult {
	if len(results) < 2 {
		return append([]model.RetrievalResult(nil), results...)
	}

	now := r.now()
	reranked := append([]model.RetrievalResult(nil), results...)
	sort.SliceStable(reranked, func(i, j int) bool {
		return r.adjusted(reranked[i], now) > r.adjusted(reranked[j], now)
	})
	return reranked
}

func (r *Reranker) adjusted(result model.RetrievalResult, now time.Time) float64 {
	return result.FusedScore + r.recencyWeight*r.freshness(result.Timestamp, now)
}

// freshness is 1 for a document dated now, falling linearly to 0 at the
// window edge. Unknown timestamps get no bonus.
func (r *Reranker) freshness(ts time.Time, now time.Time) float64 {
	if ts.IsZero() {
		return 0
	}
	if ts.After(now) {
		return 1
	}

	age := now.Sub(ts)
	if age >= r.recencyWindow {
		return 0
	}
	return 1 - float64(age)/float64(r.recencyWindow)
}

package retrieval_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/service/retrieval"
)

func result(docID string, fused float64, ts time.Time) model.RetrievalResult {
	return model.RetrievalResult{DocID: docID, CorpusID: "documents", FusedScore: fused, Timestamp: ts}
}

func TestReranker(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := retrieval.WithRerankClock(func() time.Time { return now })

	t.Run("Fresh documents overtake slightly better stale ones", func(t *testing.T) {
		reranker := retrieval.NewReranker(clock,
			retrieval.WithRecencyWeight(0.2),
			retrieval.WithRecencyWindow(24*time.Hour))

		results := []model.RetrievalResult{
			result("doc-stale", 0.80, now.Add(-10*24*time.Hour)),
			result("doc-fresh", 0.75, now.Add(-1*time.Hour)),
		}

		reranked := reranker.Rerank(results)
		gt.Value(t, reranked[0].DocID).Equal("doc-fresh")
		gt.Value(t, reranked[1].DocID).Equal("doc-stale")
	})

	t.Run("Fused scores are never modified", func(t *testing.T) {
		reranker := retrieval.NewReranker(clock)

		results := []model.RetrievalResult{
			result("doc-a", 0.9, now.Add(-time.Hour)),
			result("doc-b", 0.7, now.Add(-time.Minute)),
		}

		reranked := reranker.Rerank(results)
		for _, r := range reranked {
			switch r.DocID {
			case "doc-a":
				gt.Value(t, r.FusedScore).Equal(0.9)
			case "doc-b":
				gt.Value(t, r.FusedScore).Equal(0.7)
			}
		}
	})

	t.Run("Documents without timestamps keep their fused order", func(t *testing.T) {
		reranker := retrieval.NewReranker(clock)

		results := []model.RetrievalResult{
			result("doc-a", 0.9, time.Time{}),
			result("doc-b", 0.8, time.Time{}),
			result("doc-c", 0.7, time.Time{}),
		}

		reranked := reranker.Rerank(results)
		gt.Value(t, reranked[0].DocID).Equal("doc-a")
		gt.Value(t, reranked[1].DocID).Equal("doc-b")
		gt.Value(t, reranked[2].DocID).Equal("doc-c")
	})

	t.Run("Documents older than the window get no bonus", func(t *testing.T) {
		reranker := retrieval.NewReranker(clock,
			retrieval.WithRecencyWeight(0.5),
			retrieval.WithRecencyWindow(time.Hour))

		results := []model.RetrievalResult{
			result("doc-old", 0.8, now.Add(-2*time.Hour)),
			result("doc-ancient", 0.79, now.Add(-100*24*time.Hour)),
		}

		reranked := reranker.Rerank(results)
		gt.Value(t, reranked[0].DocID).Equal("doc-old")
	})

	t.Run("The input slice is left untouched", func(t *testing.T) {
		reranker := retrieval.NewReranker(clock, retrieval.WithRecencyWeight(1))

		results := []model.RetrievalResult{
			result("doc-a", 0.9, now.Add(-30*24*time.Hour)),
			result("doc-b", 0.5, now),
		}

		_ = reranker.Rerank(results)
		gt.Value(t, results[0].DocID).Equal("doc-a")
		gt.Value(t, results[1].DocID).Equal("doc-b")
	})
}

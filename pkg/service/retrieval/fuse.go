package retrieval

import (
	"sort"
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// fusedDoc accumulates the per-backend normalized scores for one document
type fusedDoc struct {
	corpus    types.CorpusID
	docID     string
	semantic  *float64
	lexical   *float64
	snippet   string
	timestamp time.Time
}

type fuseKey struct {
	corpus types.CorpusID
	docID  string
}

// fuse normalizes every successful leg batch, merges the batches by
// document, blends the two sides with the query's alpha, and returns the
// thresholded top-k ranking.
func fuse(legs []legResult, query *model.RetrievalQuery) []model.RetrievalResult {
	docs := map[fuseKey]*fusedDoc{}

	for i := range legs {
		leg := &legs[i]
		if leg.err != nil {
			continue
		}

		normalized := normalizeBatch(leg.hits)
		for j, hit := range leg.hits {
			key := fuseKey{corpus: leg.corpus, docID: hit.DocID}
			doc, ok := docs[key]
			if !ok {
				doc = &fusedDoc{corpus: leg.corpus, docID: hit.DocID}
				docs[key] = doc
			}

			score := normalized[j]
			if leg.semantic {
				doc.semantic = &score
			} else {
				doc.lexical = &score
			}
			if doc.snippet == "" {
				doc.snippet = hit.Snippet
			}
			if doc.timestamp.IsZero() {
				doc.timestamp = hit.Timestamp
			}
		}
	}

	results := make([]model.RetrievalResult, 0, len(docs))
	for _, doc := range docs {
		fused := blend(doc, query.Alpha)
		if fused < query.SimilarityThreshold {
			continue
		}
		results = append(results, model.RetrievalResult{
			DocID:         doc.docID,
			CorpusID:      doc.corpus,
			SemanticScore: doc.semantic,
			LexicalScore:  doc.lexical,
			FusedScore:    fused,
			Snippet:       doc.snippet,
			Timestamp:     doc.timestamp,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		if !results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].Timestamp.After(results[j].Timestamp)
		}
		return results[i].DocID < results[j].DocID
	})

	if len(results) > query.TopK {
		results = results[:query.TopK]
	}
	return results
}

// blend computes alpha * semantic + (1 - alpha) * lexical. A side the
// document is missing from contributes zero.
func blend(doc *fusedDoc, alpha float64) float64 {
	var semantic, lexical float64
	if doc.semantic != nil {
		semantic = *doc.semantic
	}
	if doc.lexical != nil {
		lexical = *doc.lexical
	}
	return alpha*semantic + (1-alpha)*lexical
}

// normalizeBatch min-max scales one backend batch onto [0, 1]. A batch
// whose scores are all equal carries no ranking signal, so the raw
// scores are clamped into [0, 1] instead of being mapped to a constant.
func normalizeBatch(hits []*interfaces.Hit) []float64 {
	if len(hits) == 0 {
		return nil
	}

	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, hit := range hits[1:] {
		if hit.Score < minScore {
			minScore = hit.Score
		}
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}

	normalized := make([]float64, len(hits))
	if maxScore == minScore {
		for i, hit := range hits {
			normalized[i] = clamp01(hit.Score)
		}
		return normalized
	}

	for i, hit := range hits {
		normalized[i] = (hit.Score - minScore) / (maxScore - minScore)
	}
	return normalized
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// RetrievalQuery describes one fan-out of the hybrid retrieval engine.
// Embedding may be empty when the semantic leg is unavailable; the
// lexical leg then carries the query alone.
type RetrievalQuery struct {
	Text                string
	LexicalText         string // expanded text for the lexical leg; falls back to Text when empty
	Embedding           []float32
	TargetCorpora       []types.CorpusID
	Owner               types.UserID
	TopK                int
	SimilarityThreshold float64
	Alpha               float64
}

// Validate checks the query against the fusion contract
func (q *RetrievalQuery) Validate() error {
	if len(q.TargetCorpora) == 0 {
		return goerr.New("target corpora must not be empty")
	}
	if q.TopK <= 0 {
		return goerr.New("top_k must be positive", goerr.V("top_k", q.TopK))
	}
	if q.Alpha < 0 || q.Alpha > 1 {
		return goerr.New("alpha must be within [0,1]", goerr.V("alpha", q.Alpha))
	}
	if q.SimilarityThreshold < 0 || q.SimilarityThreshold > 1 {
		return goerr.New("similarity threshold must be within [0,1]",
			goerr.V("threshold", q.SimilarityThreshold))
	}
	return nil
}

// LexicalQuery returns the text used for the lexical leg
func (q *RetrievalQuery) LexicalQuery() string {
	if q.LexicalText != "" {
		return q.LexicalText
	}
	return q.Text
}

// RetrievalResult is one fused evidence item. SemanticScore and
// LexicalScore are the normalized per-backend scores and are nil when the
// corresponding backend did not return the document.
type RetrievalResult struct {
	DocID         string
	CorpusID      types.CorpusID
	SemanticScore *float64
	LexicalScore  *float64
	FusedScore    float64
	Snippet       string
	Timestamp     time.Time // zero when the backend carries no timestamp
}

// EvidenceBundle is what the (external) response generator consumes: the
// fused evidence set plus the conversation memory it should answer from.
// Context holds verbatim turns (live buffer, plus queued turns when the
// cache tier was targeted); Summaries holds promoted conversation
// summaries when the durable tier was targeted, oldest first.
type EvidenceBundle struct {
	Query       string
	Class       types.QueryClass
	Results     []RetrievalResult
	Context     []Turn
	Summaries   []string
	Degraded    bool
	RetrievedIn time.Duration
}

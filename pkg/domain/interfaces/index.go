package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Hit is one ranked result from a semantic or lexical search. Score is
// the backend's raw relevance score; the fusion engine normalizes per
// batch, so backends only need monotonic ordering, not a shared scale.
type Hit struct {
	DocID     string
	Score     float64
	Snippet   string
	Owner     types.UserID
	Timestamp time.Time // zero when unknown
}

// Doc is the unit stored in a semantic or lexical corpus
type Doc struct {
	ID        string
	Content   string
	Embedding []float32 // ignored by lexical backends
	Owner     types.UserID
	Timestamp time.Time
}

// SemanticQuery scopes a vector search to one corpus, optionally
// filtered to a single owner (conversation recall).
type SemanticQuery struct {
	Corpus    types.CorpusID
	Embedding []float32
	TopK      int
	Owner     types.UserID // empty means no owner filter
}

// SemanticIndex is the vector-similarity store capability
type SemanticIndex interface {
	// Upsert writes the doc into the corpus, overwriting by ID
	Upsert(ctx context.Context, corpus types.CorpusID, doc *Doc) error

	// Search returns up to TopK hits ranked by similarity, best first
	Search(ctx context.Context, query *SemanticQuery) ([]*Hit, error)

	// Delete removes a doc by ID. Removing an absent doc is not an error.
	Delete(ctx context.Context, corpus types.CorpusID, docID string) error

	// DeleteByOwner removes every doc in the corpus owned by owner
	DeleteByOwner(ctx context.Context, corpus types.CorpusID, owner types.UserID) error
}

// LexicalIndex is the keyword-search store capability
type LexicalIndex interface {
	// Upsert writes the doc into the corpus, overwriting by ID
	Upsert(ctx context.Context, corpus types.CorpusID, doc *Doc) error

	// Search returns up to k hits for the query text, best first
	Search(ctx context.Context, corpus types.CorpusID, text string, k int) ([]*Hit, error)

	// Delete removes a doc by ID. Removing an absent doc is not an error.
	Delete(ctx context.Context, corpus types.CorpusID, docID string) error

	// DeleteByOwner removes every doc in the corpus owned by owner
	DeleteByOwner(ctx context.Context, corpus types.CorpusID, owner types.UserID) error
}

package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/repository/chromem"
	"github.com/secmon-lab/mnemosyne/pkg/repository/pgvector"
)

func testCorpus() types.CorpusID {
	return types.CorpusID(fmt.Sprintf("t%d", time.Now().UnixNano()))
}

// axisVec returns a unit vector along one embedding axis
func axisVec(axis int) []float32 {
	v := make([]float32, model.EmbeddingDimension)
	v[axis] = 1.0
	return v
}

// diagVec returns a unit vector at 45 degrees between two axes
func diagVec(a, b int) []float32 {
	v := make([]float32, model.EmbeddingDimension)
	v[a] = 0.7071068
	v[b] = 0.7071068
	return v
}

func runSemanticIndexTest(t *testing.T, newIndex func(t *testing.T) interfaces.SemanticIndex) {
	t.Helper()

	t.Run("Search ranks by similarity best first", func(t *testing.T) {
		index := newIndex(t)
		ctx := context.Background()
		corpus := testCorpus()
		now := time.Now().UTC().Truncate(time.Millisecond)

		docs := []*interfaces.Doc{
			{ID: "exact", Content: "deployment deadline is March 15", Embedding: axisVec(0), Timestamp: now},
			{ID: "close", Content: "release planning notes", Embedding: diagVec(0, 1), Timestamp: now},
			{ID: "far", Content: "lunch menu", Embedding: axisVec(1), Timestamp: now},
		}
		for _, doc := range docs {
			gt.NoError(t, index.Upsert(ctx, corpus, doc)).Required()
		}

		hits, err := index.Search(ctx, &interfaces.SemanticQuery{
			Corpus:    corpus,
			Embedding: axisVec(0),
			TopK:      3,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(3)
		gt.Value(t, hits[0].DocID).Equal("exact")
		gt.Value(t, hits[1].DocID).Equal("close")
		gt.Value(t, hits[2].DocID).Equal("far")
		gt.Bool(t, hits[0].Score >= hits[1].Score).True()
		gt.Bool(t, hits[1].Score >= hits[2].Score).True()
		gt.Bool(t, hits[0].Score > 0.99).True()
		gt.Value(t, hits[0].Snippet).Equal("deployment deadline is March 15")
	})

	t.Run("Search truncates to TopK", func(t *testing.T) {
		index := newIndex(t)
		ctx := context.Background()
		corpus := testCorpus()
		now := time.Now().UTC()

		for i := 0; i < 5; i++ {
			gt.NoError(t, index.Upsert(ctx, corpus, &interfaces.Doc{
				ID:        fmt.Sprintf("doc-%d", i),
				Content:   fmt.Sprintf("document %d", i),
				Embedding: diagVec(0, i+1),
				Timestamp: now,
			})).Required()
		}

		hits, err := index.Search(ctx, &interfaces.SemanticQuery{
			Corpus:    corpus,
			Embedding: axisVec(0),
			TopK:      2,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(2)
	})

	t.Run("Search on empty corpus returns no hits", func(t *testing.T) {
		index := newIndex(t)
		ctx := context.Background()

		hits, err := index.Search(ctx, &interfaces.SemanticQuery{
			Corpus:    testCorpus(),
			Embedding: axisVec(0),
			TopK:      5,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(0)
	})

	t.Run("Owner filter hides other owners", func(t *testing.T) {
		index := newIndex(t)
		ctx := context.Background()
		corpus := testCorpus()
		now := time.Now().UTC()

		gt.NoError(t, index.Upsert(ctx, corpus, &interfaces.Doc{
			ID: "mine", Content: "my conversation", Embedding: axisVec(0),
			Owner: "alice", Timestamp: now,
		})).Required()
		gt.NoError(t, index.Upsert(ctx, corpus, &interfaces.Doc{
			ID: "theirs", Content: "their conversation", Embedding: axisVec(0),
			Owner: "bob", Timestamp: now,
		})).Required()

		hits, err := index.Search(ctx, &interfaces.SemanticQuery{
			Corpus:    corpus,
			Embedding: axisVec(0),
			TopK:      10,
			Owner:     "alice",
		})
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(1)
		gt.Value(t, hits[0].DocID).Equal("mine")
		gt.Value(t, hits[0].Owner).Equal(types.UserID("alice"))
	})

	t.Run("Upsert with same ID overwrites", func(t *testing.T) {
		index := newIndex(t)
		ctx := context.Background()
		corpus := testCorpus()
		now := time.Now().UTC()

		gt.NoError(t, index.Upsert(ctx, corpus, &interfaces.Doc{
			ID: "doc", Content: "first draft", Embedding: axisVec(0), Timestamp: now,
		})).Required()
		gt.NoError(t, index.Upsert(ctx, corpus, &interfaces.Doc{
			ID: "doc", Content: "final version", Embedding: axisVec(0), Timestamp: now,
		})).Required()

		hits, err := index.Search(ctx, &interfaces.SemanticQuery{
			Corpus:    corpus,
			Embedding: axisVec(0),
			TopK:      10,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(1)
		gt.Value(t, hits[0].Snippet).Equal("final version")
	})

	t.Run("Delete removes the doc and tolerates absent IDs", func(t *testing.T) {
		index := newIndex(t)
		ctx := context.Background()
		corpus := testCorpus()

		gt.NoError(t, index.Upsert(ctx, corpus, &interfaces.Doc{
			ID: "doc", Content: "ephemeral", Embedding: axisVec(0), Timestamp: time.Now().UTC(),
		})).Required()

		gt.NoError(t, index.Delete(ctx, corpus, "doc")).Required()
		gt.NoError(t, index.Delete(ctx, corpus, "doc")).Required()

		hits, err := index.Search(ctx, &interfaces.SemanticQuery{
			Corpus:    corpus,
			Embedding: axisVec(0),
			TopK:      5,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(0)
	})

	t.Run("DeleteByOwner removes only that owner's docs", func(t *testing.T) {
		index := newIndex(t)
		ctx := context.Background()
		corpus := testCorpus()
		now := time.Now().UTC()

		gt.NoError(t, index.Upsert(ctx, corpus, &interfaces.Doc{
			ID: "a1", Content: "alice one", Embedding: axisVec(0), Owner: "alice", Timestamp: now,
		})).Required()
		gt.NoError(t, index.Upsert(ctx, corpus, &interfaces.Doc{
			ID: "a2", Content: "alice two", Embedding: diagVec(0, 1), Owner: "alice", Timestamp: now,
		})).Required()
		gt.NoError(t, index.Upsert(ctx, corpus, &interfaces.Doc{
			ID: "b1", Content: "bob one", Embedding: axisVec(0), Owner: "bob", Timestamp: now,
		})).Required()

		gt.NoError(t, index.DeleteByOwner(ctx, corpus, "alice")).Required()

		hits, err := index.Search(ctx, &interfaces.SemanticQuery{
			Corpus:    corpus,
			Embedding: axisVec(0),
			TopK:      10,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(1)
		gt.Value(t, hits[0].DocID).Equal("b1")
	})
}

func TestChromemSemanticIndex(t *testing.T) {
	runSemanticIndexTest(t, func(t *testing.T) interfaces.SemanticIndex {
		index, err := chromem.New()
		gt.NoError(t, err).Required()
		return index
	})
}

func TestFirestoreSemanticIndex(t *testing.T) {
	runSemanticIndexTest(t, func(t *testing.T) interfaces.SemanticIndex {
		return newFirestoreClient(t).Documents()
	})
}

func TestPgvectorSemanticIndex(t *testing.T) {
	runSemanticIndexTest(t, func(t *testing.T) interfaces.SemanticIndex {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			t.Skip("TEST_POSTGRES_DSN not set")
		}

		index, err := pgvector.New(context.Background(), dsn)
		gt.NoError(t, err).Required()
		t.Cleanup(func() {
			gt.NoError(t, index.Close())
		})
		return index
	})
}

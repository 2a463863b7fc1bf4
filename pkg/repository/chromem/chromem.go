package chromem

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Index is an embedded SemanticIndex backed by chromem-go. Each corpus
// maps to one chromem collection. Embeddings are always supplied by the
// caller, so no embedding function is configured on the collections.
type Index struct {
	db *chromem.DB

	mu          sync.RWMutex
	collections map[types.CorpusID]*chromem.Collection
}

var _ interfaces.SemanticIndex = &Index{}

type config struct {
	path string
}

type Option func(*config)

// WithPath persists collections under dir instead of keeping them only
// in memory
func WithPath(dir string) Option {
	return func(cfg *config) {
		cfg.path = dir
	}
}

func New(opts ...Option) (*Index, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	var db *chromem.DB
	if cfg.path != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.path, true)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open chromem database", goerr.V("path", cfg.path))
		}
	} else {
		db = chromem.NewDB()
	}

	return &Index{
		db:          db,
		collections: make(map[types.CorpusID]*chromem.Collection),
	}, nil
}

func (x *Index) collection(corpus types.CorpusID) (*chromem.Collection, error) {
	x.mu.RLock()
	col, exists := x.collections[corpus]
	x.mu.RUnlock()
	if exists {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if col, exists := x.collections[corpus]; exists {
		return col, nil
	}

	col, err := x.db.GetOrCreateCollection(string(corpus), nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create collection", goerr.V("corpus", corpus))
	}

	x.collections[corpus] = col
	return col, nil
}

func (x *Index) Upsert(ctx context.Context, corpus types.CorpusID, doc *interfaces.Doc) error {
	col, err := x.collection(corpus)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		"owner":     string(doc.Owner),
		"timestamp": doc.Timestamp.Format(time.RFC3339Nano),
	}

	if err := col.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: doc.Embedding,
		Metadata:  metadata,
	}); err != nil {
		return goerr.Wrap(err, "failed to add document",
			goerr.V("corpus", corpus), goerr.V("docID", doc.ID))
	}

	return nil
}

func (x *Index) Search(ctx context.Context, query *interfaces.SemanticQuery) ([]*interfaces.Hit, error) {
	col, err := x.collection(query.Corpus)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults above the collection size
	n := query.TopK
	if count := col.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return []*interfaces.Hit{}, nil
	}

	var where map[string]string
	if query.Owner != "" {
		where = map[string]string{"owner": string(query.Owner)}
	}

	results, err := col.QueryEmbedding(ctx, query.Embedding, n, where, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query collection", goerr.V("corpus", query.Corpus))
	}

	hits := make([]*interfaces.Hit, 0, len(results))
	for _, r := range results {
		hit := &interfaces.Hit{
			DocID:   r.ID,
			Score:   float64(r.Similarity),
			Snippet: r.Content,
			Owner:   types.UserID(r.Metadata["owner"]),
		}
		if ts, err := time.Parse(time.RFC3339Nano, r.Metadata["timestamp"]); err == nil {
			hit.Timestamp = ts
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

func (x *Index) Delete(ctx context.Context, corpus types.CorpusID, docID string) error {
	col, err := x.collection(corpus)
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, nil, nil, docID); err != nil {
		return goerr.Wrap(err, "failed to delete document",
			goerr.V("corpus", corpus), goerr.V("docID", docID))
	}
	return nil
}

func (x *Index) DeleteByOwner(ctx context.Context, corpus types.CorpusID, owner types.UserID) error {
	col, err := x.collection(corpus)
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, map[string]string{"owner": string(owner)}, nil); err != nil {
		return goerr.Wrap(err, "failed to delete documents",
			goerr.V("corpus", corpus), goerr.V("owner", owner))
	}
	return nil
}

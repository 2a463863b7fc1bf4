package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"google.golang.org/api/iterator"
)

// distanceField receives the computed cosine distance on each hit
const distanceField = "VectorDistance"

// vectorDoc is the Firestore document representation of interfaces.Doc.
// Embedding is stored as firestore.Vector32 so that FindNearest vector
// search works.
type vectorDoc struct {
	DocID          string             `firestore:"DocID"`
	Content        string             `firestore:"Content"`
	Owner          string             `firestore:"Owner"`
	Embedding      firestore.Vector32 `firestore:"Embedding"`
	Timestamp      time.Time          `firestore:"Timestamp"`
	VectorDistance float64            `firestore:"VectorDistance,omitempty"`
}

func toVectorDoc(doc *interfaces.Doc) *vectorDoc {
	return &vectorDoc{
		DocID:     doc.ID,
		Content:   doc.Content,
		Owner:     string(doc.Owner),
		Embedding: firestore.Vector32(doc.Embedding),
		Timestamp: doc.Timestamp,
	}
}

type documentRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.SemanticIndex = &documentRepository{}

func newDocumentRepository(client *firestore.Client) *documentRepository {
	return &documentRepository{
		client: client,
	}
}

func (r *documentRepository) corpusCollection(corpus types.CorpusID) *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "corpora").Doc(string(corpus)).Collection("documents")
}

func (r *documentRepository) Upsert(ctx context.Context, corpus types.CorpusID, doc *interfaces.Doc) error {
	docRef := r.corpusCollection(corpus).Doc(doc.ID)
	if _, err := docRef.Set(ctx, toVectorDoc(doc)); err != nil {
		if isUnavailable(err) {
			return goerr.Wrap(interfaces.ErrBackendUnavailable, "firestore upsert failed",
				goerr.V("corpus", corpus), goerr.V("docID", doc.ID))
		}
		return goerr.Wrap(err, "failed to upsert document",
			goerr.V("corpus", corpus), goerr.V("docID", doc.ID))
	}
	return nil
}

func (r *documentRepository) Search(ctx context.Context, query *interfaces.SemanticQuery) ([]*interfaces.Hit, error) {
	q := r.corpusCollection(query.Corpus).Query
	if query.Owner != "" {
		q = q.Where("Owner", "==", string(query.Owner))
	}

	iter := q.FindNearest("Embedding",
		firestore.Vector32(query.Embedding),
		query.TopK,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceResultField: distanceField,
		},
	).Documents(ctx)
	defer iter.Stop()

	hits := make([]*interfaces.Hit, 0, query.TopK)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if isUnavailable(err) {
				return nil, goerr.Wrap(interfaces.ErrBackendUnavailable, "firestore vector search failed",
					goerr.V("corpus", query.Corpus))
			}
			return nil, goerr.Wrap(err, "failed to iterate vector search results",
				goerr.V("corpus", query.Corpus))
		}

		var d vectorDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document", goerr.V("corpus", query.Corpus))
		}

		hits = append(hits, &interfaces.Hit{
			DocID:     d.DocID,
			Score:     1 - d.VectorDistance,
			Snippet:   d.Content,
			Owner:     types.UserID(d.Owner),
			Timestamp: d.Timestamp,
		})
	}

	return hits, nil
}

func (r *documentRepository) Delete(ctx context.Context, corpus types.CorpusID, docID string) error {
	if _, err := r.corpusCollection(corpus).Doc(docID).Delete(ctx); err != nil {
		if isUnavailable(err) {
			return goerr.Wrap(interfaces.ErrBackendUnavailable, "firestore delete failed",
				goerr.V("corpus", corpus), goerr.V("docID", docID))
		}
		return goerr.Wrap(err, "failed to delete document",
			goerr.V("corpus", corpus), goerr.V("docID", docID))
	}
	return nil
}

func (r *documentRepository) DeleteByOwner(ctx context.Context, corpus types.CorpusID, owner types.UserID) error {
	iter := r.corpusCollection(corpus).
		Where("Owner", "==", string(owner)).
		Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate documents",
				goerr.V("corpus", corpus), goerr.V("owner", owner))
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			return goerr.Wrap(err, "failed to queue document deletion",
				goerr.V("corpus", corpus), goerr.V("owner", owner))
		}
	}
	bw.End()

	return nil
}

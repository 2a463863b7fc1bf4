package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore bundles the durable record store and the semantic document
// index on one Firestore connection. Records live in a top-level
// collection; vector documents live in per-corpus subcollections.
type Firestore struct {
	client  *firestore.Client
	records *recordRepository
	docs    *documentRepository
}

type Option func(*Firestore)

// WithCollectionPrefix prepends prefix to every collection name so that
// tests can isolate runs inside a shared project
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.records.collectionPrefix = prefix
		f.docs.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:  client,
		records: newRecordRepository(client),
		docs:    newDocumentRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Records() interfaces.DurableStore {
	return f.records
}

func (f *Firestore) Documents() interfaces.SemanticIndex {
	return f.docs
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// isUnavailable reports whether the error means the backend cannot be
// reached at all, as opposed to a request-level failure
func isUnavailable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}

package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recordDoc is the Firestore document representation of model.MemoryRecord
type recordDoc struct {
	ID        string     `firestore:"ID"`
	OwnerID   string     `firestore:"OwnerID"`
	SessionID string     `firestore:"SessionID"`
	Content   string     `firestore:"Content"`
	Summary   string     `firestore:"Summary"`
	Tier      string     `firestore:"Tier"`
	CreatedAt time.Time  `firestore:"CreatedAt"`
	ExpiresAt *time.Time `firestore:"ExpiresAt,omitempty"`
}

func toRecordDoc(r *model.MemoryRecord) *recordDoc {
	return &recordDoc{
		ID:        string(r.ID),
		OwnerID:   string(r.OwnerID),
		SessionID: string(r.SessionID),
		Content:   r.Content,
		Summary:   r.Summary,
		Tier:      string(r.Tier),
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

func fromRecordDoc(d *recordDoc) *model.MemoryRecord {
	return &model.MemoryRecord{
		ID:        types.RecordID(d.ID),
		OwnerID:   types.UserID(d.OwnerID),
		SessionID: types.SessionID(d.SessionID),
		Content:   d.Content,
		Summary:   d.Summary,
		Tier:      types.Tier(d.Tier),
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
	}
}

func docToRecord(doc *firestore.DocumentSnapshot) (*model.MemoryRecord, error) {
	var d recordDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return fromRecordDoc(&d), nil
}

type recordRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.DurableStore = &recordRepository{}

func newRecordRepository(client *firestore.Client) *recordRepository {
	return &recordRepository{
		client: client,
	}
}

func (r *recordRepository) recordsCollection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "records")
}

func (r *recordRepository) Upsert(ctx context.Context, record *model.MemoryRecord) error {
	docRef := r.recordsCollection().Doc(string(record.ID))
	if _, err := docRef.Set(ctx, toRecordDoc(record)); err != nil {
		if isUnavailable(err) {
			return goerr.Wrap(interfaces.ErrBackendUnavailable, "firestore upsert failed",
				goerr.V("recordID", record.ID))
		}
		return goerr.Wrap(err, "failed to upsert record", goerr.V("recordID", record.ID))
	}
	return nil
}

func (r *recordRepository) Get(ctx context.Context, id types.RecordID) (*model.MemoryRecord, error) {
	doc, err := r.recordsCollection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrRecordNotFound, "record not found", goerr.V("recordID", id))
		}
		if isUnavailable(err) {
			return nil, goerr.Wrap(interfaces.ErrBackendUnavailable, "firestore get failed", goerr.V("recordID", id))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("recordID", id))
	}

	record, err := docToRecord(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal record", goerr.V("recordID", id))
	}

	return record, nil
}

func (r *recordRepository) QueryByOwner(ctx context.Context, owner types.UserID) ([]*model.MemoryRecord, error) {
	iter := r.recordsCollection().
		Where("OwnerID", "==", string(owner)).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	records := make([]*model.MemoryRecord, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if isUnavailable(err) {
				return nil, goerr.Wrap(interfaces.ErrBackendUnavailable, "firestore query failed",
					goerr.V("owner", owner))
			}
			return nil, goerr.Wrap(err, "failed to iterate records", goerr.V("owner", owner))
		}

		record, err := docToRecord(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal record")
		}

		records = append(records, record)
	}

	return records, nil
}

func (r *recordRepository) Delete(ctx context.Context, id types.RecordID) error {
	docRef := r.recordsCollection().Doc(string(id))
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(interfaces.ErrRecordNotFound, "record not found", goerr.V("recordID", id))
		}
		if isUnavailable(err) {
			return goerr.Wrap(interfaces.ErrBackendUnavailable, "firestore get failed", goerr.V("recordID", id))
		}
		return goerr.Wrap(err, "failed to get record", goerr.V("recordID", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete record", goerr.V("recordID", id))
	}
	return nil
}

func (r *recordRepository) DeleteByOwner(ctx context.Context, owner types.UserID) error {
	iter := r.recordsCollection().
		Where("OwnerID", "==", string(owner)).
		Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate records", goerr.V("owner", owner))
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			return goerr.Wrap(err, "failed to queue record deletion", goerr.V("owner", owner))
		}
	}
	bw.End()

	return nil
}

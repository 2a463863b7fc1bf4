package interfaces

import (
	"context"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// DurableStore is the persistent tier for MemoryRecord. Transactional at
// single-record granularity; records never expire, they are only removed
// by explicit deletion.
type DurableStore interface {
	// Upsert writes the record, overwriting any record with the same ID
	Upsert(ctx context.Context, record *model.MemoryRecord) error

	// Get retrieves a record by ID, or ErrRecordNotFound
	Get(ctx context.Context, id types.RecordID) (*model.MemoryRecord, error)

	// QueryByOwner returns all records for the owner, newest first
	QueryByOwner(ctx context.Context, owner types.UserID) ([]*model.MemoryRecord, error)

	// Delete removes a record by ID, or ErrRecordNotFound
	Delete(ctx context.Context, id types.RecordID) error

	// DeleteByOwner removes every record belonging to the owner
	DeleteByOwner(ctx context.Context, owner types.UserID) error
}

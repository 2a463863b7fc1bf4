package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

// Memory is an in-process DurableStore for development and tests. All
// reads return copies so callers cannot mutate stored state.
type Memory struct {
	mu      sync.RWMutex
	records map[types.RecordID]*model.MemoryRecord
}

var _ interfaces.DurableStore = &Memory{}

func New() *Memory {
	return &Memory{
		records: make(map[types.RecordID]*model.MemoryRecord),
	}
}

func copyRecord(r *model.MemoryRecord) *model.MemoryRecord {
	copied := &model.MemoryRecord{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		SessionID: r.SessionID,
		Content:   r.Content,
		Summary:   r.Summary,
		Tier:      r.Tier,
		CreatedAt: r.CreatedAt,
	}
	if r.ExpiresAt != nil {
		expires := *r.ExpiresAt
		copied.ExpiresAt = &expires
	}
	return copied
}

func (m *Memory) Upsert(ctx context.Context, record *model.MemoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[record.ID] = copyRecord(record)
	return nil
}

func (m *Memory) Get(ctx context.Context, id types.RecordID) (*model.MemoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.records[id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrRecordNotFound, "record not found", goerr.V("recordID", id))
	}

	return copyRecord(record), nil
}

func (m *Memory) QueryByOwner(ctx context.Context, owner types.UserID) ([]*model.MemoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*model.MemoryRecord, 0)
	for _, r := range m.records {
		if r.OwnerID == owner {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (m *Memory) Delete(ctx context.Context, id types.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[id]; !exists {
		return goerr.Wrap(interfaces.ErrRecordNotFound, "record not found", goerr.V("recordID", id))
	}

	delete(m.records, id)
	return nil
}

func (m *Memory) DeleteByOwner(ctx context.Context, owner types.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, r := range m.records {
		if r.OwnerID == owner {
			delete(m.records, id)
		}
	}
	return nil
}

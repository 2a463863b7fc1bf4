package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/session"
)

// mockQueue is a mock implementation of interfaces.PromotionQueue for testing
type mockQueue struct {
	mu            sync.Mutex
	enqueued      map[string][]model.Turn
	enqueueErr    error
	enqueueCalled int
	discardErr    error
	discardCalled int
}

func newMockQueue() *mockQueue {
	return &mockQueue{
		enqueued: map[string][]model.Turn{},
	}
}

func (m *mockQueue) setEnqueueErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueueErr = err
}

func (m *mockQueue) Enqueue(ctx context.Context, owner types.UserID, sessionID types.SessionID, turns []model.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enqueueCalled++
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	key := model.PromotionKey(owner, sessionID)
	m.enqueued[key] = append(m.enqueued[key], turns...)
	return nil
}

func (m *mockQueue) Discard(ctx context.Context, owner types.UserID, sessionID types.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.discardCalled++
	if m.discardErr != nil {
		return m.discardErr
	}
	delete(m.enqueued, model.PromotionKey(owner, sessionID))
	return nil
}

func (m *mockQueue) queuedFor(owner types.UserID, sessionID types.SessionID) []model.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Turn(nil), m.enqueued[model.PromotionKey(owner, sessionID)]...)
}

func userTurn(text string, at time.Time) model.Turn {
	return model.Turn{Role: types.TurnRoleUser, Text: text, Timestamp: at}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	owner := types.UserID("user-1")

	t.Run("Create and Get round trip", func(t *testing.T) {
		store := session.New(newMockQueue())

		created, err := store.Create(ctx, owner)
		gt.NoError(t, err)
		gt.NoError(t, created.ID.Validate())
		gt.Value(t, created.UserID).Equal(owner)
		gt.Array(t, created.Turns).Length(0)

		got, err := store.Get(ctx, owner, created.ID)
		gt.NoError(t, err)
		gt.Value(t, got.ID).Equal(created.ID)
		gt.Value(t, got.UserID).Equal(owner)
	})

	t.Run("Create rejects an empty owner", func(t *testing.T) {
		store := session.New(newMockQueue())

		_, err := store.Create(ctx, "")
		gt.Error(t, err)
	})

	t.Run("Get with the wrong owner reports not found", func(t *testing.T) {
		store := session.New(newMockQueue())
		created, err := store.Create(ctx, owner)
		gt.NoError(t, err)

		_, err = store.Get(ctx, "someone-else", created.ID)
		gt.Bool(t, errors.Is(err, session.ErrNotFound)).True()
	})

	t.Run("Get of an unknown session reports not found", func(t *testing.T) {
		store := session.New(newMockQueue())

		_, err := store.Get(ctx, owner, types.NewSessionID())
		gt.Bool(t, errors.Is(err, session.ErrNotFound)).True()
	})

	t.Run("Returned sessions are copies", func(t *testing.T) {
		store := session.New(newMockQueue())
		created, err := store.Create(ctx, owner)
		gt.NoError(t, err)
		gt.NoError(t, store.Append(ctx, owner, created.ID, userTurn("hello", time.Now())))

		got, err := store.Get(ctx, owner, created.ID)
		gt.NoError(t, err)
		got.Turns[0].Text = "mutated"

		again, err := store.Get(ctx, owner, created.ID)
		gt.NoError(t, err)
		gt.Value(t, again.Turns[0].Text).Equal("hello")
	})
}

func TestStoreAppend(t *testing.T) {
	ctx := context.Background()
	owner := types.UserID("user-1")
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Append grows the buffer and refreshes activity", func(t *testing.T) {
		current := base
		store := session.New(newMockQueue(), session.WithClock(func() time.Time { return current }))
		created, err := store.Create(ctx, owner)
		gt.NoError(t, err)

		current = base.Add(5 * time.Minute)
		gt.NoError(t, store.Append(ctx, owner, created.ID, userTurn("first", current)))

		got, err := store.Get(ctx, owner, created.ID)
		gt.NoError(t, err)
		gt.Array(t, got.Turns).Length(1)
		gt.Value(t, got.LastActiveAt).Equal(base.Add(5 * time.Minute))
	})

	t.Run("Append stamps turns that carry no timestamp", func(t *testing.T) {
		current := base
		store := session.New(newMockQueue(), session.WithClock(func() time.Time { return current }))
		created, err := store.Create(ctx, owner)
		gt.NoError(t, err)

		gt.NoError(t, store.Append(ctx, owner, created.ID, model.Turn{Role: types.TurnRoleUser, Text: "hi"}))

		got, err := store.Get(ctx, owner, created.ID)
		gt.NoError(t, err)
		gt.Value(t, got.Turns[0].Timestamp).Equal(base)
	})

	t.Run("Overflowing turns are queued then evicted oldest first", func(t *testing.T) {
		queue := newMockQueue()
		store := session.New(queue, session.WithMaxTurns(3))
		created, err := store.Create(ctx, owner)
		gt.NoError(t, err)

		for i, text := range []string{"t0", "t1", "t2", "t3"} {
			gt.NoError(t, store.Append(ctx, owner, created.ID, userTurn(text, base.Add(time.Duration(i)*time.Minute))))
		}

		got, err := store.Get(ctx, owner, created.ID)
		gt.NoError(t, err)
		gt.Array(t, got.Turns).Length(3)
		gt.Value(t, got.Turns[0].Text).Equal("t1")
		gt.Value(t, got.Turns[2].Text).Equal("t3")

		queued := queue.queuedFor(owner, created.ID)
		gt.Array(t, queued).Length(1)
		gt.Value(t, queued[0].Text).Equal("t0")
	})

	t.Run("Failed queueing keeps the overflow until the next append", func(t *testing.T) {
		queue := newMockQueue()
		queue.setEnqueueErr(errors.New("cache down"))
		store := session.New(queue, session.WithMaxTurns(3))
		created, err := store.Create(ctx, owner)
		gt.NoError(t, err)

		for i := 0; i < 4; i++ {
			gt.NoError(t, store.Append(ctx, owner, created.ID, userTurn("turn", base.Add(time.Duration(i)*time.Minute))))
		}

		got, err := store.Get(ctx, owner, created.ID)
		gt.NoError(t, err)
		gt.Array(t, got.Turns).Length(4)
		gt.Array(t, queue.queuedFor(owner, created.ID)).Length(0)

		queue.setEnqueueErr(nil)
		gt.NoError(t, store.Append(ctx, owner, created.ID, userTurn("turn", base.Add(5*time.Minute))))

		got, err = store.Get(ctx, owner, created.ID)
		gt.NoError(t, err)
		gt.Array(t, got.Turns).Length(3)
		gt.Array(t, queue.queuedFor(owner, created.ID)).Length(2)
	})

	t.Run("Concurrent appends keep every turn", func(t *testing.T) {
		store := session.New(newMockQueue(), session.WithMaxTurns(1000))
		created, err := store.Create(ctx, owner)
		gt.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					_ = store.Append(ctx, owner, created.ID, userTurn("turn", time.Now()))
				}
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, owner, created.ID)
		gt.NoError(t, err)
		gt.Array(t, got.Turns).Length(200)
	})
}

func TestStoreContext(t *testing.T) {
	ctx := context.Background()
	owner := types.UserID("user-1")
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	store := session.New(newMockQueue())
	created, err := store.Create(ctx, owner)
	gt.NoError(t, err)
	for i, text := range []string{"a", "b", "c", "d"} {
		gt.NoError(t, store.Append(ctx, owner, created.ID, userTurn(text, base.Add(time.Duration(i)*time.Minute))))
	}

	t.Run("Limit keeps the most recent turns oldest first", func(t *testing.T) {
		turns, err := store.Context(ctx, owner, created.ID, 2)
		gt.NoError(t, err)
		gt.Array(t, turns).Length(2)
		gt.Value(t, turns[0].Text).Equal("c")
		gt.Value(t, turns[1].Text).Equal("d")
	})

	t.Run("Zero limit returns the whole buffer", func(t *testing.T) {
		turns, err := store.Context(ctx, owner, created.ID, 0)
		gt.NoError(t, err)
		gt.Array(t, turns).Length(4)
		gt.Value(t, turns[0].Text).Equal("a")
	})

	t.Run("Wrong owner reports not found", func(t *testing.T) {
		_, err := store.Context(ctx, "someone-else", created.ID, 0)
		gt.Bool(t, errors.Is(err, session.ErrNotFound)).True()
	})
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	owner := types.UserID("user-1")

	t.Run("Clear drops the session and its queued payload", func(t *testing.T) {
		queue := newMockQueue()
		store := session.New(queue, session.WithMaxTurns(1))
		created, err := store.Create(ctx, owner)
		gt.NoError(t, err)

		gt.NoError(t, store.Append(ctx, owner, created.ID, userTurn("a", time.Now())))
		gt.NoError(t, store.Append(ctx, owner, created.ID, userTurn("b", time.Now())))
		gt.Array(t, queue.queuedFor(owner, created.ID)).Length(1)

		gt.NoError(t, store.Clear(ctx, owner, created.ID))

		_, err = store.Get(ctx, owner, created.ID)
		gt.Bool(t, errors.Is(err, session.ErrNotFound)).True()
		gt.Array(t, queue.queuedFor(owner, created.ID)).Length(0)
		gt.Value(t, store.Len()).Equal(0)
	})

	t.Run("Clear keeps the session when the payload cannot be discarded", func(t *testing.T) {
		queue := newMockQueue()
		queue.discardErr = errors.New("cache down")
		store := session.New(queue)
		created, err := store.Create(ctx, owner)
		gt.NoError(t, err)

		gt.Error(t, store.Clear(ctx, owner, created.ID))

		_, err = store.Get(ctx, owner, created.ID)
		gt.NoError(t, err)
	})
}

func TestStoreSweep(t *testing.T) {
	ctx := context.Background()
	owner := types.UserID("user-1")
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Idle sessions are queued and dropped", func(t *testing.T) {
		current := base
		queue := newMockQueue()
		store := session.New(queue, session.WithClock(func() time.Time { return current }))

		idle, err := store.Create(ctx, owner)
		gt.NoError(t, err)
		gt.NoError(t, store.Append(ctx, owner, idle.ID, userTurn("old", base)))

		current = base.Add(time.Hour)
		active, err := store.Create(ctx, owner)
		gt.NoError(t, err)
		gt.NoError(t, store.Append(ctx, owner, active.ID, userTurn("new", current)))

		gt.Value(t, store.Sweep(ctx, base.Add(30*time.Minute))).Equal(1)

		_, err = store.Get(ctx, owner, idle.ID)
		gt.Bool(t, errors.Is(err, session.ErrNotFound)).True()
		gt.Array(t, queue.queuedFor(owner, idle.ID)).Length(1)

		_, err = store.Get(ctx, owner, active.ID)
		gt.NoError(t, err)
	})

	t.Run("Sessions that cannot be queued survive the sweep", func(t *testing.T) {
		current := base
		queue := newMockQueue()
		queue.setEnqueueErr(errors.New("cache down"))
		store := session.New(queue, session.WithClock(func() time.Time { return current }))

		idle, err := store.Create(ctx, owner)
		gt.NoError(t, err)
		gt.NoError(t, store.Append(ctx, owner, idle.ID, userTurn("old", base)))

		current = base.Add(time.Hour)
		gt.Value(t, store.Sweep(ctx, base.Add(30*time.Minute))).Equal(0)

		_, err = store.Get(ctx, owner, idle.ID)
		gt.NoError(t, err)

		queue.setEnqueueErr(nil)
		gt.Value(t, store.Sweep(ctx, base.Add(30*time.Minute))).Equal(1)
		gt.Array(t, queue.queuedFor(owner, idle.ID)).Length(1)
	})

	t.Run("Empty idle sessions are dropped without queueing", func(t *testing.T) {
		current := base
		queue := newMockQueue()
		store := session.New(queue, session.WithClock(func() time.Time { return current }))

		idle, err := store.Create(ctx, owner)
		gt.NoError(t, err)

		current = base.Add(time.Hour)
		gt.Value(t, store.Sweep(ctx, base.Add(30*time.Minute))).Equal(1)
		gt.Value(t, queue.enqueueCalled).Equal(0)

		_, err = store.Get(ctx, owner, idle.ID)
		gt.Bool(t, errors.Is(err, session.ErrNotFound)).True()
	})
}

func TestStoreDropOwner(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Only the owner's sessions are dropped, without queueing", func(t *testing.T) {
		queue := newMockQueue()
		store := session.New(queue, session.WithClock(func() time.Time { return base }))

		mine, err := store.Create(ctx, "user-1")
		gt.NoError(t, err)
		gt.NoError(t, store.Append(ctx, "user-1", mine.ID, userTurn("secret", base)))

		other, err := store.Create(ctx, "user-2")
		gt.NoError(t, err)
		gt.NoError(t, store.Append(ctx, "user-2", other.ID, userTurn("keep", base)))

		gt.Value(t, store.DropOwner(ctx, "user-1")).Equal(1)
		gt.Value(t, queue.enqueueCalled).Equal(0)

		_, err = store.Get(ctx, "user-1", mine.ID)
		gt.Bool(t, errors.Is(err, session.ErrNotFound)).True()

		kept, err := store.Get(ctx, "user-2", other.ID)
		gt.NoError(t, err)
		gt.Array(t, kept.Turns).Length(1)
	})

	t.Run("Dropping an owner with no sessions is a no-op", func(t *testing.T) {
		store := session.New(newMockQueue())
		gt.Value(t, store.DropOwner(ctx, "user-9")).Equal(0)
	})
}

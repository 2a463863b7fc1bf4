package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/interfaces"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// ErrNotFound is returned when a session does not exist or belongs to a
// different owner. The two cases are indistinguishable to callers.
var ErrNotFound = errors.New("session not found")

// DefaultMaxTurns bounds the in-process turn buffer per session
const DefaultMaxTurns = 50

// Store holds the active session buffers. Operations on one session
// serialize on its entry lock; the store lock only guards the map.
type Store struct {
	mu       sync.RWMutex
	sessions map[types.SessionID]*entry

	queue    interfaces.PromotionQueue
	maxTurns int
	now      func() time.Time
}

// entry wraps a session with its lock. dropped marks an entry that has
// been cleared or swept but not yet removed from the map; every accessor
// treats a dropped entry as absent.
type entry struct {
	mu      sync.Mutex
	session *model.Session
	dropped bool
}

type Option func(*Store)

// WithMaxTurns overrides the per-session turn buffer bound
func WithMaxTurns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(queue interfaces.PromotionQueue, opts ...Option) *Store {
	s := &Store{
		sessions: make(map[types.SessionID]*entry),
		queue:    queue,
		maxTurns: DefaultMaxTurns,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new session for the owner and returns a copy of it
func (s *Store) Create(ctx context.Context, owner types.UserID) (*model.Session, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	session := model.NewSession(owner)
	session.CreatedAt = s.now()
	session.LastActiveAt = session.CreatedAt

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session}
	s.mu.Unlock()

	return copySession(session), nil
}

// Get returns a copy of the session, or ErrNotFound
func (s *Store) Get(ctx context.Context, owner types.UserID, id types.SessionID) (*model.Session, error) {
	e, err := s.lookup(owner, id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	return copySession(e.session), nil
}

// Append adds a turn to the session buffer and refreshes its activity
// time. When the buffer exceeds its bound the oldest turns are queued for
// promotion and evicted; if queueing fails the buffer keeps the overflow
// and eviction is retried on the next append.
func (s *Store) Append(ctx context.Context, owner types.UserID, id types.SessionID, turn model.Turn) error {
	e, err := s.lookup(owner, id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	e.session.Turns = append(e.session.Turns, turn)
	e.session.LastActiveAt = s.now()

	overflow := len(e.session.Turns) - s.maxTurns
	if overflow <= 0 {
		return nil
	}

	evicted := append([]model.Turn(nil), e.session.Turns[:overflow]...)
	if err := s.queue.Enqueue(ctx, owner, id, evicted); err != nil {
		logging.From(ctx).Warn("failed to queue evicted turns, keeping them buffered",
			"session_id", id, "overflow", overflow, "error", err)
		return nil
	}
	e.session.Turns = append([]model.Turn(nil), e.session.Turns[overflow:]...)

	return nil
}

// Context returns up to limit most recent turns of the session,
// oldest first. limit <= 0 returns the whole buffer.
func (s *Store) Context(ctx context.Context, owner types.UserID, id types.SessionID, limit int) ([]model.Turn, error) {
	e, err := s.lookup(owner, id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	return e.session.Tail(limit), nil
}

// Touch refreshes the session's activity time without appending a turn
func (s *Store) Touch(ctx context.Context, owner types.UserID, id types.SessionID) error {
	e, err := s.lookup(owner, id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	e.session.LastActiveAt = s.now()
	return nil
}

// Clear drops the session and its pending promotion payload. Nothing in
// the buffer is promoted. If the payload cannot be discarded the session
// is kept so the caller can retry; otherwise queued turns would still
// surface in durable storage later.
func (s *Store) Clear(ctx context.Context, owner types.UserID, id types.SessionID) error {
	e, err := s.lookup(owner, id)
	if err != nil {
		return err
	}

	if err := s.queue.Discard(ctx, owner, id); err != nil {
		e.mu.Unlock()
		return goerr.Wrap(err, "failed to discard pending promotion payload",
			goerr.V("session_id", id))
	}
	e.dropped = true
	e.mu.Unlock()

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	return nil
}

// Sweep queues the remaining turns of every session idle since before the
// cutoff and drops the drained sessions. Sessions whose turns cannot be
// queued stay resident and are retried on the next sweep. Returns the
// number of sessions dropped.
func (s *Store) Sweep(ctx context.Context, cutoff time.Time) int {
	s.mu.RLock()
	candidates := make(map[types.SessionID]*entry, len(s.sessions))
	for id, e := range s.sessions {
		candidates[id] = e
	}
	s.mu.RUnlock()

	var dropped []types.SessionID
	for id, e := range candidates {
		e.mu.Lock()
		if e.dropped || !e.session.IdleSince(cutoff) {
			e.mu.Unlock()
			continue
		}

		if len(e.session.Turns) > 0 {
			turns := append([]model.Turn(nil), e.session.Turns...)
			if err := s.queue.Enqueue(ctx, e.session.UserID, id, turns); err != nil {
				logging.From(ctx).Warn("failed to queue idle session turns, keeping session",
					"session_id", id, "turns", len(turns), "error", err)
				e.mu.Unlock()
				continue
			}
			e.session.Turns = nil
		}
		e.dropped = true
		e.mu.Unlock()
		dropped = append(dropped, id)
	}

	if len(dropped) > 0 {
		s.mu.Lock()
		for _, id := range dropped {
			delete(s.sessions, id)
		}
		s.mu.Unlock()
	}

	return len(dropped)
}

// DropOwner discards every resident session of the owner without
// queueing its turns. Used by data-deletion requests, where the buffered
// turns must not resurface in another tier. Returns the number of
// sessions dropped.
func (s *Store) DropOwner(ctx context.Context, owner types.UserID) int {
	s.mu.RLock()
	candidates := make(map[types.SessionID]*entry, len(s.sessions))
	for id, e := range s.sessions {
		candidates[id] = e
	}
	s.mu.RUnlock()

	var dropped []types.SessionID
	for id, e := range candidates {
		e.mu.Lock()
		if e.dropped || e.session.UserID != owner {
			e.mu.Unlock()
			continue
		}
		e.session.Turns = nil
		e.dropped = true
		e.mu.Unlock()
		dropped = append(dropped, id)
	}

	if len(dropped) > 0 {
		s.mu.Lock()
		for _, id := range dropped {
			delete(s.sessions, id)
		}
		s.mu.Unlock()
	}

	return len(dropped)
}

// Len returns the number of resident sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// lookup finds the session entry, verifies ownership, and returns it
// locked. The caller must unlock it.
func (s *Store) lookup(owner types.UserID, id types.SessionID) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "no such session", goerr.V("session_id", id))
	}

	e.mu.Lock()
	if e.dropped || e.session.UserID != owner {
		e.mu.Unlock()
		return nil, goerr.Wrap(ErrNotFound, "no such session", goerr.V("session_id", id))
	}
	return e, nil
}

func copySession(src *model.Session) *model.Session {
	dst := *src
	dst.Turns = append([]model.Turn(nil), src.Turns...)
	return &dst
}

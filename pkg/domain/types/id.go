package types

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/oklog/ulid/v2"
)

// SessionID represents a unique identifier for a conversation session
type SessionID string

// NewSessionID generates a new UUID v4 SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// Validate checks if the SessionID is valid
func (s SessionID) Validate() error {
	if s == "" {
		return goerr.New("session ID cannot be empty")
	}
	if _, err := uuid.Parse(string(s)); err != nil {
		return goerr.Wrap(err, "session ID must be a UUID", goerr.V("id", s))
	}
	return nil
}

// String returns the string representation of SessionID
func (s SessionID) String() string {
	return string(s)
}

// UserID represents the owner of sessions and memory records
type UserID string

// Validate checks if the UserID is valid
func (u UserID) Validate() error {
	if u == "" {
		return goerr.New("user ID cannot be empty")
	}
	return nil
}

// String returns the string representation of UserID
func (u UserID) String() string {
	return string(u)
}

// RecordID is a ULID-based identifier for MemoryRecord. ULIDs sort by
// creation time, which keeps owner scans in write order.
type RecordID string

// NewRecordID generates a new ULID RecordID
func NewRecordID() RecordID {
	return RecordID(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String())
}

// NewSummaryRecordID derives a deterministic RecordID for a promoted
// summary from its owner and source turn range. Re-promoting the same
// range yields the same ID so upserts overwrite instead of duplicating.
func NewSummaryRecordID(owner UserID, first, last time.Time) RecordID {
	return RecordID(fmt.Sprintf("sum-%s-%d-%d", owner, first.UnixMilli(), last.UnixMilli()))
}

// Validate checks if the RecordID is valid
func (r RecordID) Validate() error {
	if r == "" {
		return goerr.New("record ID cannot be empty")
	}
	return nil
}

// String returns the string representation of RecordID
func (r RecordID) String() string {
	return string(r)
}

// CorpusID identifies a named, independently queryable collection in the
// semantic or lexical store
type CorpusID string

var corpusIDPattern = regexp.MustCompile(`^[a-z0-9]+([-_][a-z0-9]+)*$`)

// Validate checks if the CorpusID is valid
func (c CorpusID) Validate() error {
	if c == "" {
		return goerr.New("corpus ID cannot be empty")
	}
	if !corpusIDPattern.MatchString(string(c)) {
		return goerr.New("corpus ID must be lowercase alphanumeric with separators", goerr.V("id", c))
	}
	return nil
}

// String returns the string representation of CorpusID
func (c CorpusID) String() string {
	return string(c)
}

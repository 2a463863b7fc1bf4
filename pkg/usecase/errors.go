package usecase

import "errors"

// Sentinel errors for the use case layer
var (
	// Not found errors
	ErrSessionNotFound = errors.New("session not found")

	// Validation errors
	ErrEmptyQuery = errors.New("query text is empty")
)

// Context keys for error values
const (
	SessionIDKey = "session_id"
	OwnerIDKey   = "owner_id"
)

package storage

import (
	"context"
	"errors"
	"time"
)

// MergeThreshold is the maximum gap between a stored session's end and a
// new session's start for the two to be treated as one continuous session.
const MergeThreshold = 60 * time.Second

// ErrInvalidInterval is returned when a session boundary produces a
// non-positive duration or lies in the future.
var ErrInvalidInterval = errors.New("storage: invalid session interval")

// SessionStore persists closed presence sessions.
//
// Implementations own the persisted sequence exclusively: records are only
// ever appended or extended through CloseSession, never deleted or split.
type SessionStore interface {
	// CloseSession records a finished session. When a record for the same
	// identity and calendar date ends within MergeThreshold of the new
	// session's start, that record is extended instead of appending.
	CloseSession(ctx context.Context, identityID, displayName string, start, end time.Time) error

	// Records returns the full persisted session sequence in stored order.
	// A missing or empty store yields an empty slice, not an error.
	Records(ctx context.Context) ([]SessionRecord, error)
}

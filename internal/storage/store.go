package storage

import (
	"context"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/lockin/internal/lockin"
)

var ErrSessionNotFound = errors.New("session not found")

// Store is the journal of lock-in sessions. It records what was measured and
// how, never the measured results themselves.
type Store interface {
	// CreateSession records the start of a lock-in session and returns its
	// unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - info: Source, negotiated format and configuration of the session.
	//     Format and Config can be string, []byte, or JSON-serializable objects
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, info SessionInfo) (sessionID int64, err error)

	// CloseSession records the end of a session with its final counters.
	// A non-nil cause is stored as the reason the session ended.
	//
	// Returns:
	//   - error: ErrSessionNotFound if the session does not exist or was
	//     already closed, or if the update fails
	CloseSession(ctx context.Context, sessionID int64, stats lockin.Stats, cause error) error

	// Session retrieves a session by its ID.
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns all sessions ordered by start time in ascending order.
	Sessions(ctx context.Context) ([]*Session, error)

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}

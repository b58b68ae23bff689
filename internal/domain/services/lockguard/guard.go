// Package lockguard provides per-account settlement mutual exclusion.
// A guard admits at most one in-flight settlement per account; locks held
// past the timeout are treated as abandoned and reclaimed by the next
// acquirer.
package lockguard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is how long a lock may be held before it is considered stale
const DefaultTimeout = 5 * time.Minute

// Guard is the per-account mutual exclusion primitive. Acquire returns false
// when an unexpired lock already exists; the caller must surface that as a
// LockContention rejection, never retry silently.
type Guard interface {
	Acquire(ctx context.Context, accountID uuid.UUID) (bool, error)
	Release(ctx context.Context, accountID uuid.UUID) error
}

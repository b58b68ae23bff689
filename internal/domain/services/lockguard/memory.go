package lockguard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryGuard is the single-process guard: a map of account id to
// acquisition time behind a mutex. Sufficient only when exactly one instance
// runs the pipelines; multi-process deployments use the Redis guard.
type MemoryGuard struct {
	mu      sync.Mutex
	held    map[uuid.UUID]time.Time
	timeout time.Duration
	now     func() time.Time
}

// NewMemoryGuard creates an in-memory guard with the given stale timeout
func NewMemoryGuard(timeout time.Duration) *MemoryGuard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &MemoryGuard{
		held:    make(map[uuid.UUID]time.Time),
		timeout: timeout,
		now:     time.Now,
	}
}

// Acquire takes the lock for accountID. An existing lock older than the
// timeout is reclaimed silently.
func (g *MemoryGuard) Acquire(_ context.Context, accountID uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if acquiredAt, ok := g.held[accountID]; ok {
		if g.now().Sub(acquiredAt) < g.timeout {
			return false, nil
		}
		// stale, reclaim
	}
	g.held[accountID] = g.now()
	return true, nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (g *MemoryGuard) Release(_ context.Context, accountID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, accountID)
	return nil
}

package cache

import (
	"context"
	gosync "sync"

	"github.com/google/uuid"
)

// InMemoryClientLocker implements ClientLocker with process-local state.
// Suitable for single-instance deployments and tests; distributed
// deployments need RedisClientLocker.
type InMemoryClientLocker struct {
	mu   gosync.Mutex
	held map[uuid.UUID]struct{}
}

// NewInMemoryClientLocker creates a new in-memory client locker
func NewInMemoryClientLocker() *InMemoryClientLocker {
	return &InMemoryClientLocker{
		held: make(map[uuid.UUID]struct{}),
	}
}

// Acquire takes the per-client lock, failing fast when it is held
func (l *InMemoryClientLocker) Acquire(_ context.Context, clientID uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[clientID]; ok {
		return nil, ErrClientBusy
	}
	l.held[clientID] = struct{}{}

	var once gosync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.held, clientID)
		})
	}
	return release, nil
}

// Ensure InMemoryClientLocker implements ClientLocker
var _ ClientLocker = (*InMemoryClientLocker)(nil)

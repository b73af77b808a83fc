package cache

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrClientBusy is returned when another saga run currently holds the
// client's lock. Callers surface it rather than waiting: two concurrent
// writes to the same client must not interleave, and queueing behind a
// multi-platform saga is worse than telling the caller to retry.
var ErrClientBusy = errors.New("client is locked by another sync operation")

// ClientLocker serializes saga runs per client. Acquire fails fast with
// ErrClientBusy when the lock is held; the returned release function is
// safe to call exactly once.
type ClientLocker interface {
	Acquire(ctx context.Context, clientID uuid.UUID) (release func(), err error)
}

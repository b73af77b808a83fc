package cache

import (
	"context"
	gosync "sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryClientLocker_Acquire(t *testing.T) {
	t.Run("acquires and releases", func(t *testing.T) {
		locker := NewInMemoryClientLocker()
		clientID := uuid.New()

		release, err := locker.Acquire(context.Background(), clientID)
		require.NoError(t, err)

		// Held lock rejects a second acquire.
		_, err = locker.Acquire(context.Background(), clientID)
		assert.ErrorIs(t, err, ErrClientBusy)

		release()

		// Released lock can be taken again.
		release2, err := locker.Acquire(context.Background(), clientID)
		require.NoError(t, err)
		release2()
	})

	t.Run("different clients are independent", func(t *testing.T) {
		locker := NewInMemoryClientLocker()

		release1, err := locker.Acquire(context.Background(), uuid.New())
		require.NoError(t, err)
		defer release1()

		release2, err := locker.Acquire(context.Background(), uuid.New())
		require.NoError(t, err)
		defer release2()
	})

	t.Run("double release is safe", func(t *testing.T) {
		locker := NewInMemoryClientLocker()
		clientID := uuid.New()

		release, err := locker.Acquire(context.Background(), clientID)
		require.NoError(t, err)

		release()
		release()

		_, err = locker.Acquire(context.Background(), clientID)
		assert.NoError(t, err)
	})

	t.Run("concurrent acquires grant exactly one winner", func(t *testing.T) {
		locker := NewInMemoryClientLocker()
		clientID := uuid.New()

		const goroutines = 32
		var wg gosync.WaitGroup
		var mu gosync.Mutex
		granted := 0

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := locker.Acquire(context.Background(), clientID); err == nil {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, granted)
	})
}

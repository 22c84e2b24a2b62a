package usecase_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/stockledger/internal/usecase"
)

func TestKeyLocker_SerializesSameKey(t *testing.T) {
	l := usecase.NewKeyLocker()
	k := key("alpha", "rifle")

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock, err := l.Acquire(context.Background(), k)
			if err != nil {
				t.Error(err)
				return
			}

			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)

			unlock()
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, l.Len())
}

func TestKeyLocker_IndependentKeysDoNotBlock(t *testing.T) {
	l := usecase.NewKeyLocker()

	unlockA, err := l.Acquire(t.Context(), key("alpha", "rifle"))
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()

	unlockB, err := l.Acquire(ctx, key("bravo", "rifle"))
	require.NoError(t, err)
	unlockB()
}

func TestKeyLocker_CancelledWaitReleasesNothing(t *testing.T) {
	l := usecase.NewKeyLocker()
	a, b := key("alpha", "rifle"), key("bravo", "rifle")

	unlockB, err := l.Acquire(t.Context(), b)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	// a is free and taken first; b is held, so the wait times out and a
	// must be released again.
	_, err = l.Acquire(ctx, b, a)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlockA, err := l.Acquire(t.Context(), a)
	require.NoError(t, err)
	unlockA()
	unlockB()

	assert.Equal(t, 0, l.Len())
}

func TestKeyLocker_DuplicateKeys(t *testing.T) {
	l := usecase.NewKeyLocker()
	k := key("alpha", "rifle")

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()

	unlock, err := l.Acquire(ctx, k, k)
	require.NoError(t, err)
	unlock()
	assert.Equal(t, 0, l.Len())
}

package usecase

import (
	"context"
	"slices"
	"sync"

	"github.com/iho/stockledger/internal/domain"
)

// KeyLocker serializes work per account key. Locks for several keys are
// always taken in domain.SortAccountKeys order so two transfers touching
// the same pair cannot deadlock.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[domain.AccountKey]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyLocker creates an empty KeyLocker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[domain.AccountKey]*keyLock)}
}

// Acquire locks every key and returns a function that releases them.
// It blocks until all locks are held or ctx is done; on cancellation no
// lock is left held.
func (l *KeyLocker) Acquire(ctx context.Context, keys ...domain.AccountKey) (func(), error) {
	ordered := slices.Clone(keys)
	domain.SortAccountKeys(ordered)
	ordered = slices.Compact(ordered)

	held := make([]domain.AccountKey, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, key := range ordered {
		if err := l.lock(ctx, key); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}

	return release, nil
}

func (l *KeyLocker) lock(ctx context.Context, key domain.AccountKey) error {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(key, kl)
		return ctx.Err()
	}
}

func (l *KeyLocker) unlock(key domain.AccountKey) {
	l.mu.Lock()
	kl := l.locks[key]
	l.mu.Unlock()

	<-kl.ch
	l.drop(key, kl)
}

func (l *KeyLocker) drop(key domain.AccountKey, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// Len reports how many keys currently have holders or waiters.
func (l *KeyLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}

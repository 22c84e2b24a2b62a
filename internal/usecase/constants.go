package usecase

import "time"

const (
	// DefaultAppendTimeout bounds how long an append may wait for durable
	// confirmation before it is reported as a storage failure.
	DefaultAppendTimeout = 5 * time.Second

	// DefaultCacheCapacity is the number of snapshots the aggregator keeps.
	DefaultCacheCapacity = 4096

	// IdempotencyKeyTTL is how long idempotency keys are cached.
	IdempotencyKeyTTL = 24 * time.Hour
)

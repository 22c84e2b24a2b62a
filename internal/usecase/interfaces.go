package usecase

import (
	"context"
	"iter"
	"time"

	"github.com/iho/stockledger/internal/domain"
)

// TransactionLog is the durable, append-only record of movements.
type TransactionLog interface {
	// Append writes recs in one storage transaction and returns them with
	// Seq assigned. Either every record becomes visible or none does.
	// Records whose request id was already committed are not written
	// again; the stored records are returned instead.
	Append(ctx context.Context, recs []domain.Transaction) ([]domain.Transaction, error)
	// ByRequest returns the records committed under requestID in ascending
	// Seq order, or none if the request was never committed.
	ByRequest(ctx context.Context, requestID string) ([]domain.Transaction, error)
	// ReadByAccount yields the account's records with Seq > sinceSeq in
	// ascending order. The sequence is lazy and may be ranged over again.
	ReadByAccount(ctx context.Context, key domain.AccountKey, sinceSeq int64) iter.Seq2[domain.Transaction, error]
	// ReadAll yields every record with Seq > sinceSeq in ascending order.
	ReadAll(ctx context.Context, sinceSeq int64) iter.Seq2[domain.Transaction, error]
	// History returns one page of records in descending Seq order.
	History(ctx context.Context, filter HistoryFilter) ([]domain.Transaction, error)
	// LastSeq returns the highest Seq recorded for the account, 0 if none.
	LastSeq(ctx context.Context, key domain.AccountKey) (int64, error)
	// Accounts lists every account key that has at least one record.
	Accounts(ctx context.Context) ([]domain.AccountKey, error)
}

// PeriodStore persists reporting period boundaries.
type PeriodStore interface {
	AppendPeriod(ctx context.Context, period domain.Period) error
	// Periods returns the account's periods in ascending Number order.
	Periods(ctx context.Context, key domain.AccountKey) ([]domain.Period, error)
	// LatestPeriod returns the highest period number for the account, 0 if none.
	LatestPeriod(ctx context.Context, key domain.AccountKey) (int64, error)
}

// Store is a backing store that provides both the log and period boundaries.
type Store interface {
	TransactionLog
	PeriodStore
}

// HistoryFilter selects a page of history. Zero-valued fields do not filter.
type HistoryFilter struct {
	Account   *domain.AccountKey
	Kind      domain.Kind
	BeforeSeq int64
	Limit     int
}

// Matches reports whether rec passes the filter, ignoring paging.
func (f HistoryFilter) Matches(rec domain.Transaction) bool {
	if f.Account != nil && rec.Account != *f.Account {
		return false
	}

	if f.Kind != "" && rec.Kind != f.Kind {
		return false
	}

	return f.BeforeSeq <= 0 || rec.Seq < f.BeforeSeq
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock timestamps records.
type Clock interface {
	Now() time.Time
}

// Retrier runs an operation, retrying transient failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so a later request may use it.
	Release(ctx context.Context, key string) error
}

// Metrics receives ledger instrumentation.
type Metrics interface {
	MovementCommitted(kind domain.Kind, quantity int64)
	MovementRejected(kind domain.Kind, reason domain.Reason)
	SubmitDuration(kind domain.Kind, d time.Duration)
	AppendRetried()
	StorageFailed(op string)
	SnapshotCacheHit()
	SnapshotCacheMiss()
	SnapshotRebuilt(d time.Duration)
	StaleSnapshotDetected()
	PeriodStruck()
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) MovementCommitted(domain.Kind, int64) {}
func (NopMetrics) MovementRejected(domain.Kind, domain.Reason) {}
func (NopMetrics) SubmitDuration(domain.Kind, time.Duration) {}
func (NopMetrics) AppendRetried() {}
func (NopMetrics) StorageFailed(string) {}
func (NopMetrics) SnapshotCacheHit() {}
func (NopMetrics) SnapshotCacheMiss() {}
func (NopMetrics) SnapshotRebuilt(time.Duration) {}
func (NopMetrics) StaleSnapshotDetected() {}
func (NopMetrics) PeriodStruck() {}

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/domain"
)

// Aggregator serves the current balance snapshot of each account key from a
// bounded LRU cache, folding the log on a miss.
//
// Every cached snapshot carries the highest sequence id it reflects. Cache
// installs go through install, which keeps whichever snapshot is newer, so
// a slow rebuild never overwrites an increment applied while it ran.
type Aggregator struct {
	log     TransactionLog
	periods PeriodStore
	cache   *lru.Cache[domain.AccountKey, domain.Snapshot]
	clock   Clock
	metrics Metrics
	logger  zerolog.Logger

	mu sync.Mutex
}

// NewAggregator creates an aggregator holding at most capacity snapshots.
func NewAggregator(
	log TransactionLog,
	periods PeriodStore,
	capacity int,
	clock Clock,
	metrics Metrics,
	logger zerolog.Logger,
) (*Aggregator, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}

	cache, err := lru.New[domain.AccountKey, domain.Snapshot](capacity)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}

	if clock == nil {
		clock = SystemClock{}
	}

	if metrics == nil {
		metrics = NopMetrics{}
	}

	return &Aggregator{
		log:     log,
		periods: periods,
		cache:   cache,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// CurrentBalance returns the cached snapshot for key, rebuilding it from the
// log if it is not cached. It does not take the mutation lock, so the result
// may miss a movement that is being committed concurrently.
func (a *Aggregator) CurrentBalance(ctx context.Context, key domain.AccountKey) (domain.Snapshot, error) {
	if snap, ok := a.cache.Get(key); ok {
		a.metrics.SnapshotCacheHit()
		return snap, nil
	}

	a.metrics.SnapshotCacheMiss()

	return a.Rebuild(ctx, key)
}

// Rebuild folds the account's full history and installs the result unless a
// newer snapshot was cached meanwhile. It returns the snapshot left in cache.
func (a *Aggregator) Rebuild(ctx context.Context, key domain.AccountKey) (domain.Snapshot, error) {
	start := time.Now()

	snap, err := Replay(ctx, a.log, a.periods, key)
	if err != nil {
		return domain.Snapshot{}, err
	}

	a.metrics.SnapshotRebuilt(time.Since(start))

	return a.install(snap), nil
}

// Verified returns the snapshot for key after checking that it reflects the
// log's last record and the latest struck period for the key. A mismatch
// means the cache drifted from the log; the entry is dropped and rebuilt.
// Callers must hold the key's mutation lock for the result to stay current.
func (a *Aggregator) Verified(ctx context.Context, key domain.AccountKey) (domain.Snapshot, error) {
	snap, err := a.CurrentBalance(ctx, key)
	if err != nil {
		return domain.Snapshot{}, err
	}

	lastSeq, err := a.log.LastSeq(ctx, key)
	if err != nil {
		return domain.Snapshot{}, err
	}

	latest, err := a.periods.LatestPeriod(ctx, key)
	if err != nil {
		return domain.Snapshot{}, err
	}

	if snap.Version == lastSeq && snap.Period == latest {
		return snap, nil
	}

	a.metrics.StaleSnapshotDetected()
	a.logger.Warn().
		Err(domain.ErrStaleSnapshot).
		Str("base", key.Base).
		Str("equipment_type", key.EquipmentType).
		Int64("cached_version", snap.Version).
		Int64("log_version", lastSeq).
		Int64("cached_period", snap.Period).
		Int64("log_period", latest).
		Msg("rebuilding snapshot")

	a.Invalidate(key)

	return a.Rebuild(ctx, key)
}

// ApplyCommitted folds committed records into the cached snapshots of the
// accounts they touch. Records already folded are skipped. An account with
// no cached snapshot is rebuilt from the log, which already holds the record.
func (a *Aggregator) ApplyCommitted(ctx context.Context, recs ...domain.Transaction) error {
	for _, rec := range recs {
		if rec.Seq <= 0 {
			return fmt.Errorf("apply %s to %s: record is not committed", rec.Kind, rec.Account)
		}

		applied, err := a.applyCached(rec)
		if err != nil {
			return err
		}

		if applied {
			continue
		}

		if _, err := a.Rebuild(ctx, rec.Account); err != nil {
			return err
		}
	}

	return nil
}

// applyCached reports false when the account has no cached snapshot.
func (a *Aggregator) applyCached(rec domain.Transaction) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, ok := a.cache.Peek(rec.Account)
	if !ok {
		return false, nil
	}

	next, changed, err := cur.Apply(rec)
	if err != nil {
		return true, err
	}

	if changed {
		a.cache.Add(rec.Account, next)
	}

	return true, nil
}

// StrikeNewPeriod closes the account's current period and opens the next one
// with openingBalance, which must equal the current closing balance. The
// boundary is persisted before the cache is updated. A mismatch is returned
// as a *domain.Rejection. Callers must hold the key's mutation lock.
func (a *Aggregator) StrikeNewPeriod(
	ctx context.Context,
	key domain.AccountKey,
	openingBalance int64,
) (domain.Period, domain.Snapshot, error) {
	current, err := a.CurrentBalance(ctx, key)
	if err != nil {
		return domain.Period{}, domain.Snapshot{}, err
	}

	period, err := domain.NextPeriod(current, openingBalance, a.clock.Now())
	if err != nil {
		return domain.Period{}, domain.Snapshot{}, err
	}

	next, err := current.Strike(period)
	if err != nil {
		return domain.Period{}, current, err
	}

	if err := a.periods.AppendPeriod(ctx, period); err != nil {
		return domain.Period{}, current, err
	}

	a.metrics.PeriodStruck()

	return period, a.install(next), nil
}

// Cached returns the cached snapshot without touching recency or the log.
func (a *Aggregator) Cached(key domain.AccountKey) (domain.Snapshot, bool) {
	return a.cache.Peek(key)
}

// Invalidate drops the cached snapshots for keys.
func (a *Aggregator) Invalidate(keys ...domain.AccountKey) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, key := range keys {
		a.cache.Remove(key)
	}
}

// Len returns the number of cached snapshots.
func (a *Aggregator) Len() int {
	return a.cache.Len()
}

func (a *Aggregator) install(snap domain.Snapshot) domain.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cur, ok := a.cache.Peek(snap.Account); ok && !snap.Newer(cur) {
		return cur
	}

	a.cache.Add(snap.Account, snap)

	return snap
}

// Replay folds the account's periods and records from sequence 0.
func Replay(ctx context.Context, log TransactionLog, periods PeriodStore, key domain.AccountKey) (domain.Snapshot, error) {
	bounds, err := periods.Periods(ctx, key)
	if err != nil {
		return domain.Snapshot{}, err
	}

	folder := domain.NewFolder(key, bounds)

	for rec, err := range log.ReadByAccount(ctx, key, 0) {
		if err != nil {
			return domain.Snapshot{}, err
		}

		if err := folder.Add(rec); err != nil {
			return domain.Snapshot{}, fmt.Errorf("replay %s: %w", key, err)
		}
	}

	return folder.Snapshot()
}

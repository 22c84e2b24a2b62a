package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/domain"
)

// ReconciliationUseCase compares cached snapshots against a full log replay.
type ReconciliationUseCase struct {
	log        TransactionLog
	periods    PeriodStore
	aggregator *Aggregator
	clock      Clock
	logger     zerolog.Logger
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	log TransactionLog,
	periods PeriodStore,
	aggregator *Aggregator,
	clock Clock,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	if clock == nil {
		clock = SystemClock{}
	}

	return &ReconciliationUseCase{
		log:        log,
		periods:    periods,
		aggregator: aggregator,
		clock:      clock,
		logger:     logger,
	}
}

// Discrepancy is an account whose cached snapshot disagrees with the log.
type Discrepancy struct {
	Account  domain.AccountKey
	Cached   domain.Snapshot
	Replayed domain.Snapshot
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	CheckedAt     time.Time
	Discrepancies []Discrepancy
	// Unbalanced lists accounts whose replayed snapshot breaks the closing
	// balance identity or goes negative.
	Unbalanced     []domain.AccountKey
	TotalAccounts  int
	CachedAccounts int
}

// Consistent reports whether no problems were found.
func (r *ReconciliationReport) Consistent() bool {
	return len(r.Discrepancies) == 0 && len(r.Unbalanced) == 0
}

// CheckConsistency replays every account from the log and compares the
// result with the cached snapshot, if any. Mismatched cache entries are
// invalidated so the next read rebuilds them.
//
// Cached snapshots that lag the replay because a movement committed during
// the check are not reported.
func (uc *ReconciliationUseCase) CheckConsistency(ctx context.Context) (*ReconciliationReport, error) {
	keys, err := uc.log.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	domain.SortAccountKeys(keys)

	report := &ReconciliationReport{
		TotalAccounts: len(keys),
		CheckedAt:     uc.clock.Now(),
	}

	for _, key := range keys {
		replayed, err := Replay(ctx, uc.log, uc.periods, key)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", key, err)
		}

		if !replayed.Balanced() {
			report.Unbalanced = append(report.Unbalanced, key)
		}

		cached, ok := uc.aggregator.Cached(key)
		if !ok {
			continue
		}

		report.CachedAccounts++

		if cached.Version != replayed.Version || cached.Period != replayed.Period {
			continue
		}

		if sameBalances(cached, replayed) {
			continue
		}

		report.Discrepancies = append(report.Discrepancies, Discrepancy{
			Account:  key,
			Cached:   cached,
			Replayed: replayed,
		})

		uc.logger.Warn().
			Str("base", key.Base).
			Str("equipment_type", key.EquipmentType).
			Int64("cached_closing", cached.ClosingBalance).
			Int64("replayed_closing", replayed.ClosingBalance).
			Msg("snapshot disagrees with log replay, invalidating")

		uc.aggregator.Invalidate(key)
	}

	return report, nil
}

func sameBalances(a, b domain.Snapshot) bool {
	return a.OpeningBalance == b.OpeningBalance &&
		a.ClosingBalance == b.ClosingBalance &&
		a.Assigned == b.Assigned &&
		a.Expended == b.Expended &&
		a.Purchased == b.Purchased &&
		a.TransferredIn == b.TransferredIn &&
		a.TransferredOut == b.TransferredOut
}

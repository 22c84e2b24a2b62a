package usecase

import (
	"context"

	"github.com/iho/stockledger/internal/domain"
)

// HistoryPage is one page of history, most recent first.
type HistoryPage struct {
	Records []domain.Transaction
	// NextCursor is the continuation token for the next page: the last
	// sequence id on this page. Zero means there are no more records.
	NextCursor int64
}

// QueryUseCase is the read-only projection used by dashboards and history views.
type QueryUseCase struct {
	log        TransactionLog
	aggregator *Aggregator
}

// NewQueryUseCase creates a new QueryUseCase.
func NewQueryUseCase(log TransactionLog, aggregator *Aggregator) *QueryUseCase {
	return &QueryUseCase{log: log, aggregator: aggregator}
}

// Dashboard returns one snapshot per known account key, ordered by key.
func (uc *QueryUseCase) Dashboard(ctx context.Context) ([]domain.Snapshot, error) {
	keys, err := uc.log.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	domain.SortAccountKeys(keys)

	snapshots := make([]domain.Snapshot, 0, len(keys))
	for _, key := range keys {
		snap, err := uc.aggregator.CurrentBalance(ctx, key)
		if err != nil {
			return nil, err
		}

		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}

// Balance returns the snapshot of a single account key. Unknown keys have
// an empty snapshot.
func (uc *QueryUseCase) Balance(ctx context.Context, key domain.AccountKey) (domain.Snapshot, error) {
	if err := key.Validate(); err != nil {
		return domain.Snapshot{}, err
	}

	return uc.aggregator.CurrentBalance(ctx, key)
}

// History returns one page of records matching filter in descending sequence
// order. Pass the previous page's NextCursor as filter.BeforeSeq to continue.
func (uc *QueryUseCase) History(ctx context.Context, filter HistoryFilter) (HistoryPage, error) {
	if filter.BeforeSeq < 0 {
		return HistoryPage{}, domain.ErrInvalidCursor
	}

	if filter.Kind != "" && !filter.Kind.IsValid() {
		return HistoryPage{}, domain.ErrInvalidKind
	}

	if filter.Account != nil {
		if err := filter.Account.Validate(); err != nil {
			return HistoryPage{}, err
		}
	}

	filter.Limit = domain.ValidatePagination(filter.Limit)

	// One extra record tells whether another page exists.
	lookahead := filter
	lookahead.Limit++

	recs, err := uc.log.History(ctx, lookahead)
	if err != nil {
		return HistoryPage{}, err
	}

	page := HistoryPage{Records: recs}
	if len(recs) > filter.Limit {
		page.Records = recs[:filter.Limit]
		page.NextCursor = page.Records[len(page.Records)-1].Seq
	}

	return page, nil
}

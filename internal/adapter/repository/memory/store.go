// Package memory provides a process-local Store. It backs tests and
// single-process deployments that do not need durability across restarts.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// ErrPeriodConflict is returned when a period number is not the next one.
var ErrPeriodConflict = errors.New("period number conflicts with existing periods")

// FaultFunc is called before each leg of an append is staged. A non-nil
// error aborts the whole append.
type FaultFunc func(leg int, rec domain.Transaction) error

type requestLeg struct {
	requestID string
	leg       domain.Leg
}

// Store is an in-memory usecase.Store.
type Store struct {
	mu        sync.RWMutex
	records   []domain.Transaction
	byAccount map[domain.AccountKey][]int64
	byRequest map[requestLeg]int64
	periods   map[domain.AccountKey][]domain.Period
	cursors   map[string]int64
	fault     FaultFunc
	batch     int
}

var _ usecase.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		byAccount: make(map[domain.AccountKey][]int64),
		byRequest: make(map[requestLeg]int64),
		periods:   make(map[domain.AccountKey][]domain.Period),
		cursors:   make(map[string]int64),
		batch:     usecase.DefaultScanBatch,
	}
}

// SetFault installs a fault hook for appends; nil removes it.
func (s *Store) SetFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fault = fn
}

// SetScanBatch changes the page size used by lazy scans.
func (s *Store) SetScanBatch(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch = n
}

// Len returns the number of committed records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Append commits recs together. Legs are staged first and published only
// after every leg staged, so readers never observe half a transfer.
func (s *Store) Append(ctx context.Context, recs []domain.Transaction) ([]domain.Transaction, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("append", true, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.committedRequest(recs); ok {
		return existing, nil
	}

	staged := make([]domain.Transaction, 0, len(recs))
	next := int64(len(s.records))

	for i, rec := range recs {
		if s.fault != nil {
			if err := s.fault(i, rec); err != nil {
				return nil, domain.NewStorageError("append", false, err)
			}
		}

		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("append leg %d: %w", i, err)
		}

		next++
		rec.Seq = next
		staged = append(staged, rec)
	}

	for _, rec := range staged {
		s.records = append(s.records, rec)
		s.byAccount[rec.Account] = append(s.byAccount[rec.Account], rec.Seq)

		if rec.RequestID != "" {
			s.byRequest[requestLeg{rec.RequestID, rec.Leg}] = rec.Seq
		}
	}

	return slices.Clone(staged), nil
}

func (s *Store) committedRequest(recs []domain.Transaction) ([]domain.Transaction, bool) {
	out := make([]domain.Transaction, 0, len(recs))

	for _, rec := range recs {
		if rec.RequestID == "" {
			return nil, false
		}

		seq, ok := s.byRequest[requestLeg{rec.RequestID, rec.Leg}]
		if !ok {
			return nil, false
		}

		out = append(out, s.records[seq-1])
	}

	return out, true
}

// ByRequest returns the records committed under requestID.
func (s *Store) ByRequest(_ context.Context, requestID string) ([]domain.Transaction, error) {
	if requestID == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Transaction

	for _, leg := range []domain.Leg{"", domain.LegOutbound, domain.LegInbound} {
		if seq, ok := s.byRequest[requestLeg{requestID, leg}]; ok {
			out = append(out, s.records[seq-1])
		}
	}

	slices.SortFunc(out, func(a, b domain.Transaction) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	return out, nil
}

// ReadByAccount yields the account's records after sinceSeq.
func (s *Store) ReadByAccount(ctx context.Context, key domain.AccountKey, sinceSeq int64) iter.Seq2[domain.Transaction, error] {
	return usecase.ScanPages(ctx, sinceSeq, s.scanBatch(), func(_ context.Context, afterSeq int64, limit int) ([]domain.Transaction, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		seqs := s.byAccount[key]
		start, _ := slices.BinarySearch(seqs, afterSeq+1)

		page := make([]domain.Transaction, 0, min(limit, len(seqs)-start))
		for _, seq := range seqs[start:] {
			if len(page) == limit {
				break
			}
			page = append(page, s.records[seq-1])
		}

		return page, nil
	})
}

// ReadAll yields every record after sinceSeq.
func (s *Store) ReadAll(ctx context.Context, sinceSeq int64) iter.Seq2[domain.Transaction, error] {
	return usecase.ScanPages(ctx, sinceSeq, s.scanBatch(), func(_ context.Context, afterSeq int64, limit int) ([]domain.Transaction, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		start := int(max(afterSeq, 0))
		if start >= len(s.records) {
			return nil, nil
		}

		end := min(start+limit, len(s.records))

		return slices.Clone(s.records[start:end]), nil
	})
}

// History returns one page of matching records, newest first.
func (s *Store) History(ctx context.Context, filter usecase.HistoryFilter) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Transaction

	visit := func(seq int64) bool {
		rec := s.records[seq-1]
		if filter.Matches(rec) {
			out = append(out, rec)
		}
		return filter.Limit <= 0 || len(out) < filter.Limit
	}

	if filter.Account != nil {
		seqs := s.byAccount[*filter.Account]
		for i := len(seqs) - 1; i >= 0; i-- {
			if !visit(seqs[i]) {
				break
			}
		}

		return out, nil
	}

	for seq := int64(len(s.records)); seq > 0; seq-- {
		if !visit(seq) {
			break
		}
	}

	return out, nil
}

// LastSeq returns the account's highest sequence id.
func (s *Store) LastSeq(_ context.Context, key domain.AccountKey) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seqs := s.byAccount[key]
	if len(seqs) == 0 {
		return 0, nil
	}

	return seqs[len(seqs)-1], nil
}

// Accounts returns every account key with history, sorted.
func (s *Store) Accounts(_ context.Context) ([]domain.AccountKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]domain.AccountKey, 0, len(s.byAccount))
	for key := range s.byAccount {
		keys = append(keys, key)
	}

	domain.SortAccountKeys(keys)

	return keys, nil
}

// AppendPeriod records a period boundary. Numbers must be consecutive.
func (s *Store) AppendPeriod(_ context.Context, period domain.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.periods[period.Account]
	if period.Number != int64(len(existing))+1 {
		return fmt.Errorf("%w: %s period %d", ErrPeriodConflict, period.Account, period.Number)
	}

	s.periods[period.Account] = append(existing, period)

	return nil
}

// Periods returns the account's periods in ascending order.
func (s *Store) Periods(_ context.Context, key domain.AccountKey) ([]domain.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.periods[key]), nil
}

// LatestPeriod returns the account's highest period number.
func (s *Store) LatestPeriod(_ context.Context, key domain.AccountKey) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.periods[key])), nil
}

// LoadCursor returns the last published sequence id for name, 0 if none.
func (s *Store) LoadCursor(_ context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cursors[name], nil
}

// SaveCursor stores the last published sequence id for name.
func (s *Store) SaveCursor(_ context.Context, name string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[name] = seq

	return nil
}

func (s *Store) scanBatch() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.batch
}

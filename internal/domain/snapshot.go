package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrForeignRecord is returned when a record is folded into another account's snapshot.
var ErrForeignRecord = errors.New("record does not belong to snapshot account")

// Snapshot is the derived balance state of one account key. It is never the
// system of record: it can always be rebuilt by folding the log.
type Snapshot struct {
	UpdatedAt      time.Time
	Account        AccountKey
	OpeningBalance int64
	ClosingBalance int64
	Assigned       int64
	Expended       int64
	Purchased      int64
	TransferredIn  int64
	TransferredOut int64
	// Period is the number of the current period, 0 before the first strike.
	Period int64
	// PeriodStartSeq is the highest sequence id that belongs to earlier periods.
	PeriodStartSeq int64
	// Version is the highest sequence id folded into the snapshot.
	Version int64
}

// EmptySnapshot is the state of an account with no history.
func EmptySnapshot(key AccountKey) Snapshot {
	return Snapshot{Account: key}
}

// NetMovement is closing minus opening for the current period.
func (s Snapshot) NetMovement() int64 {
	return s.ClosingBalance - s.OpeningBalance
}

// Unassigned is the stock that may still be assigned.
func (s Snapshot) Unassigned() int64 {
	return s.ClosingBalance - s.Assigned
}

// Newer reports whether s reflects strictly more history than other.
// Periods compare first: a snapshot folded without a struck boundary is
// never newer than one that has it, whatever its version.
func (s Snapshot) Newer(other Snapshot) bool {
	if s.Period != other.Period {
		return s.Period > other.Period
	}

	return s.Version > other.Version
}

// Balanced checks the closing balance identity for the current period.
func (s Snapshot) Balanced() bool {
	expected := s.OpeningBalance + s.Purchased + s.TransferredIn - s.TransferredOut - s.Assigned - s.Expended
	return expected == s.ClosingBalance && s.ClosingBalance >= 0
}

// Apply folds one committed record. Records at or below Version are
// already folded and leave the snapshot unchanged (applied == false).
func (s Snapshot) Apply(rec Transaction) (next Snapshot, applied bool, err error) {
	if rec.Account != s.Account {
		return s, false, fmt.Errorf("%w: %s into %s", ErrForeignRecord, rec.Account, s.Account)
	}

	if rec.Seq <= s.Version {
		return s, false, nil
	}

	next = s
	next.ClosingBalance += rec.Delta()

	switch rec.Kind {
	case KindPurchase:
		next.Purchased += rec.Quantity
	case KindTransfer:
		if rec.Leg == LegInbound {
			next.TransferredIn += rec.Quantity
		} else {
			next.TransferredOut += rec.Quantity
		}
	case KindAssignment:
		next.Assigned += rec.Quantity
	case KindExpenditure:
		next.Expended += rec.Quantity
	default:
		return s, false, ErrInvalidKind
	}

	next.Version = rec.Seq
	next.UpdatedAt = rec.RecordedAt

	return next, true, nil
}

// Strike closes the current period and opens the next one with p's opening
// balance. The opening balance must equal the current closing balance.
func (s Snapshot) Strike(p Period) (Snapshot, error) {
	if p.OpeningBalance != s.ClosingBalance {
		return s, &Rejection{
			Reason:    ReasonInvalidPeriodBoundary,
			Account:   s.Account,
			Requested: p.OpeningBalance,
			Available: s.ClosingBalance,
		}
	}

	next := s
	next.OpeningBalance = p.OpeningBalance
	next.Assigned = 0
	next.Expended = 0
	next.Purchased = 0
	next.TransferredIn = 0
	next.TransferredOut = 0
	next.Period = p.Number
	next.PeriodStartSeq = p.AfterSeq
	next.UpdatedAt = p.StruckAt

	return next, nil
}

// Folder replays an account's records and period boundaries in sequence order.
type Folder struct {
	snap    Snapshot
	periods []Period
	next    int
}

// NewFolder starts a replay for key. periods must be in ascending Number order.
func NewFolder(key AccountKey, periods []Period) *Folder {
	return &Folder{snap: EmptySnapshot(key), periods: periods}
}

// Add folds rec, first striking every period whose boundary precedes it.
func (f *Folder) Add(rec Transaction) error {
	if err := f.strikeUntil(rec.Seq - 1); err != nil {
		return err
	}

	next, _, err := f.snap.Apply(rec)
	if err != nil {
		return err
	}

	f.snap = next

	return nil
}

// Snapshot strikes any remaining periods and returns the folded state.
func (f *Folder) Snapshot() (Snapshot, error) {
	if err := f.strikeUntil(-1); err != nil {
		return Snapshot{}, err
	}

	return f.snap, nil
}

// strikeUntil applies periods with AfterSeq <= seq; a negative seq applies all.
func (f *Folder) strikeUntil(seq int64) error {
	for f.next < len(f.periods) {
		p := f.periods[f.next]
		if seq >= 0 && p.AfterSeq > seq {
			return nil
		}

		next, err := f.snap.Strike(p)
		if err != nil {
			return fmt.Errorf("replay period %d of %s: %w", p.Number, f.snap.Account, err)
		}

		f.snap = next
		f.next++
	}

	return nil
}

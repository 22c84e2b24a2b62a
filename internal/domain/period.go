package domain

import "time"

// Period marks the start of a reporting period for one account key.
//
// AfterSeq is the snapshot version at the time of the strike: records with a
// higher sequence id belong to this period.
type Period struct {
	StruckAt       time.Time
	Account        AccountKey
	Number         int64
	OpeningBalance int64
	AfterSeq       int64
}

// NextPeriod builds the period that follows the snapshot's current one.
func NextPeriod(s Snapshot, openingBalance int64, struckAt time.Time) (Period, error) {
	if openingBalance < 0 {
		return Period{}, ErrInvalidOpeningBalance
	}

	return Period{
		Account:        s.Account,
		Number:         s.Period + 1,
		OpeningBalance: openingBalance,
		AfterSeq:       s.Version,
		StruckAt:       struckAt,
	}, nil
}

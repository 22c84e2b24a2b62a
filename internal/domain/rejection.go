package domain

import "fmt"

// Reason names a business rule a request violated.
type Reason string

const (
	ReasonInsufficientStock     Reason = "insufficient_stock"
	ReasonInvalidPeriodBoundary Reason = "invalid_period_boundary"
)

// Rejection is a terminal business-rule outcome. It is never retried and
// nothing is written to the log for it.
type Rejection struct {
	Reason    Reason
	Account   AccountKey
	Kind      Kind
	Requested int64
	Available int64
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonInsufficientStock:
		return fmt.Sprintf("%s: %s %s requested %d, available %d",
			ErrInsufficientStock, r.Kind, r.Account, r.Requested, r.Available)
	case ReasonInvalidPeriodBoundary:
		return fmt.Sprintf("%s: %s opening %d, closing %d",
			ErrInvalidPeriodBoundary, r.Account, r.Requested, r.Available)
	default:
		return fmt.Sprintf("rejected: %s", r.Reason)
	}
}

// Is lets errors.Is match a Rejection against its sentinel.
func (r *Rejection) Is(target error) bool {
	switch r.Reason {
	case ReasonInsufficientStock:
		return target == ErrInsufficientStock
	case ReasonInvalidPeriodBoundary:
		return target == ErrInvalidPeriodBoundary
	}

	return false
}

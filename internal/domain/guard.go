package domain

// Admit decides whether p may be appended given the current snapshot of the
// account stock leaves (the source account for transfers). It returns nil to
// accept. Admit has no side effects.
//
// The inbound leg of a transfer is never checked: it is admitted together
// with its outbound leg.
func Admit(p Proposal, current Snapshot) *Rejection {
	var available int64

	switch p.Kind {
	case KindPurchase:
		return nil
	case KindTransfer, KindExpenditure:
		available = current.ClosingBalance
	case KindAssignment:
		available = current.Unassigned()
	default:
		return nil
	}

	if p.Quantity <= available {
		return nil
	}

	return &Rejection{
		Reason:    ReasonInsufficientStock,
		Account:   p.Account,
		Kind:      p.Kind,
		Requested: p.Quantity,
		Available: max(available, 0),
	}
}

package domain

import (
	"strings"
	"time"
)

// Kind discriminates transaction records.
type Kind string

const (
	KindPurchase    Kind = "purchase"
	KindTransfer    Kind = "transfer"
	KindAssignment  Kind = "assignment"
	KindExpenditure Kind = "expenditure"
)

var validKinds = map[Kind]bool{
	KindPurchase:    true,
	KindTransfer:    true,
	KindAssignment:  true,
	KindExpenditure: true,
}

// IsValid reports whether k is one of the four movement kinds.
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", ErrInvalidKind
	}

	return k, nil
}

// Leg tells which half of a transfer a record is. Empty for other kinds.
type Leg string

const (
	LegOutbound Leg = "out"
	LegInbound  Leg = "in"
)

// Transaction is one immutable record of the log.
//
// A transfer is stored as two records sharing TransferID: the outbound leg
// on the source account and the inbound leg on the destination account.
// Counterparty holds the other leg's account.
type Transaction struct {
	OccurredAt   time.Time
	RecordedAt   time.Time
	Seq          int64
	Kind         Kind
	Account      AccountKey
	Counterparty AccountKey
	Leg          Leg
	TransferID   string
	RequestID    string
	Quantity     int64
	Notes        string
	Personnel    string
}

// Delta returns the signed effect of the record on its account's closing balance.
func (t Transaction) Delta() int64 {
	switch t.Kind {
	case KindPurchase:
		return t.Quantity
	case KindTransfer:
		if t.Leg == LegInbound {
			return t.Quantity
		}
		return -t.Quantity
	case KindAssignment, KindExpenditure:
		return -t.Quantity
	default:
		return 0
	}
}

// Source returns the account stock leaves (transfers) or the single account.
func (t Transaction) Source() AccountKey {
	if t.Kind == KindTransfer && t.Leg == LegInbound {
		return t.Counterparty
	}

	return t.Account
}

// Destination returns the account stock arrives at for transfers, or the single account.
func (t Transaction) Destination() AccountKey {
	if t.Kind == KindTransfer && t.Leg == LegOutbound {
		return t.Counterparty
	}

	return t.Account
}

// Validate checks record-level invariants: a known kind, a positive quantity,
// and kind-specific optional fields present only where they belong.
func (t Transaction) Validate() error {
	if !t.Kind.IsValid() {
		return ErrInvalidKind
	}

	if err := ValidateQuantity(t.Quantity); err != nil {
		return err
	}

	if err := t.Account.Validate(); err != nil {
		return err
	}

	if t.Kind == KindAssignment {
		if strings.TrimSpace(t.Personnel) == "" {
			return ErrMissingPersonnel
		}
	} else if t.Personnel != "" {
		return ErrUnexpectedPersonnel
	}

	if t.Kind != KindExpenditure && t.Notes != "" {
		return ErrUnexpectedNotes
	}

	if t.Kind == KindTransfer {
		if t.Leg != LegOutbound && t.Leg != LegInbound {
			return ErrInvalidKind
		}

		if err := t.Counterparty.Validate(); err != nil {
			return err
		}

		if t.Counterparty.Base == t.Account.Base {
			return ErrSameBase
		}
	}

	return nil
}

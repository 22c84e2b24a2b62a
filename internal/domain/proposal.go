package domain

import (
	"strings"
	"time"
)

// Proposal is a movement request that has not been admitted to the log yet.
// Constructors validate the kind-specific fields so every Proposal that
// exists is well formed.
type Proposal struct {
	OccurredAt  time.Time
	Kind        Kind
	Account     AccountKey
	Destination AccountKey
	Quantity    int64
	Notes       string
	Personnel   string
}

// NewPurchase proposes adding stock to an account.
func NewPurchase(key AccountKey, quantity int64, occurredAt time.Time) (Proposal, error) {
	p := Proposal{Kind: KindPurchase, Account: key, Quantity: quantity, OccurredAt: occurredAt}
	return validated(p)
}

// NewTransfer proposes moving stock of one equipment type between two bases.
func NewTransfer(fromBase, toBase, equipmentType string, quantity int64, occurredAt time.Time) (Proposal, error) {
	from, err := NewAccountKey(fromBase, equipmentType)
	if err != nil {
		return Proposal{}, err
	}

	to, err := NewAccountKey(toBase, equipmentType)
	if err != nil {
		return Proposal{}, err
	}

	p := Proposal{Kind: KindTransfer, Account: from, Destination: to, Quantity: quantity, OccurredAt: occurredAt}
	return validated(p)
}

// NewAssignment proposes issuing stock to a named person.
func NewAssignment(key AccountKey, quantity int64, personnel string, occurredAt time.Time) (Proposal, error) {
	p := Proposal{
		Kind:       KindAssignment,
		Account:    key,
		Quantity:   quantity,
		Personnel:  strings.TrimSpace(personnel),
		OccurredAt: occurredAt,
	}
	return validated(p)
}

// NewExpenditure proposes consuming stock.
func NewExpenditure(key AccountKey, quantity int64, notes string, occurredAt time.Time) (Proposal, error) {
	p := Proposal{
		Kind:       KindExpenditure,
		Account:    key,
		Quantity:   quantity,
		Notes:      strings.TrimSpace(notes),
		OccurredAt: occurredAt,
	}
	return validated(p)
}

func validated(p Proposal) (Proposal, error) {
	if err := p.Validate(); err != nil {
		return Proposal{}, err
	}

	return p, nil
}

// Validate checks the proposal shape. It does not look at balances.
func (p Proposal) Validate() error {
	if !p.Kind.IsValid() {
		return ErrInvalidKind
	}

	if err := ValidateQuantity(p.Quantity); err != nil {
		return err
	}

	if err := p.Account.Validate(); err != nil {
		return err
	}

	if err := ValidateNotes(p.Notes); err != nil {
		return err
	}

	if p.Kind == KindAssignment {
		if err := ValidatePersonnel(p.Personnel); err != nil {
			return err
		}
	} else if p.Personnel != "" {
		return ErrUnexpectedPersonnel
	}

	if p.Kind != KindExpenditure && p.Notes != "" {
		return ErrUnexpectedNotes
	}

	if p.Kind == KindTransfer {
		if err := p.Destination.Validate(); err != nil {
			return err
		}

		if p.Destination.Base == p.Account.Base {
			return ErrSameBase
		}
	}

	return nil
}

// Keys returns the account keys the proposal touches, in lock order.
func (p Proposal) Keys() []AccountKey {
	if p.Kind != KindTransfer {
		return []AccountKey{p.Account}
	}

	keys := []AccountKey{p.Account, p.Destination}
	SortAccountKeys(keys)

	return keys
}

// Records materializes the proposal into the record(s) to append.
// Seq is left zero; the log assigns it.
func (p Proposal) Records(requestID, transferID string, recordedAt time.Time) []Transaction {
	base := Transaction{
		OccurredAt: p.OccurredAt,
		RecordedAt: recordedAt,
		Kind:       p.Kind,
		Account:    p.Account,
		RequestID:  requestID,
		Quantity:   p.Quantity,
		Notes:      p.Notes,
		Personnel:  p.Personnel,
	}

	if p.Kind != KindTransfer {
		return []Transaction{base}
	}

	out := base
	out.Leg = LegOutbound
	out.Counterparty = p.Destination
	out.TransferID = transferID

	in := base
	in.Account = p.Destination
	in.Counterparty = p.Account
	in.Leg = LegInbound
	in.TransferID = transferID

	return []Transaction{out, in}
}

// Matches reports whether recs are the records p commits, ignoring sequence
// ids, timestamps and transfer ids. It identifies a replayed request.
func (p Proposal) Matches(recs []Transaction) bool {
	want := p.Records("", "", time.Time{})
	if len(recs) != len(want) {
		return false
	}

	for i, rec := range recs {
		w := want[i]
		if rec.Kind != w.Kind ||
			rec.Account != w.Account ||
			rec.Counterparty != w.Counterparty ||
			rec.Leg != w.Leg ||
			rec.Quantity != w.Quantity ||
			rec.Personnel != w.Personnel ||
			rec.Notes != w.Notes {
			return false
		}
	}

	return true
}

package dto

import (
	"time"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// SnapshotResponse represents an account balance snapshot.
type SnapshotResponse struct {
	Base           string    `json:"base"`
	EquipmentType  string    `json:"equipment_type"`
	OpeningBalance int64     `json:"opening_balance"`
	ClosingBalance int64     `json:"closing_balance"`
	NetMovement    int64     `json:"net_movement"`
	Purchased      int64     `json:"purchased"`
	TransferredIn  int64     `json:"transferred_in"`
	TransferredOut int64     `json:"transferred_out"`
	Assigned       int64     `json:"assigned"`
	Unassigned     int64     `json:"unassigned"`
	Expended       int64     `json:"expended"`
	Period         int64     `json:"period"`
	Version        int64     `json:"version"`
	UpdatedAt      time.Time `json:"updated_at,omitzero"`
}

// SnapshotFromDomain converts a domain snapshot to response.
func SnapshotFromDomain(s domain.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		Base:           s.Account.Base,
		EquipmentType:  s.Account.EquipmentType,
		OpeningBalance: s.OpeningBalance,
		ClosingBalance: s.ClosingBalance,
		NetMovement:    s.NetMovement(),
		Purchased:      s.Purchased,
		TransferredIn:  s.TransferredIn,
		TransferredOut: s.TransferredOut,
		Assigned:       s.Assigned,
		Unassigned:     s.Unassigned(),
		Expended:       s.Expended,
		Period:         s.Period,
		Version:        s.Version,
		UpdatedAt:      s.UpdatedAt,
	}
}

// DashboardResponse lists every account snapshot.
type DashboardResponse struct {
	Accounts []SnapshotResponse `json:"accounts"`
}

// DashboardFromDomain converts snapshots to a dashboard response.
func DashboardFromDomain(snaps []domain.Snapshot) DashboardResponse {
	accounts := make([]SnapshotResponse, len(snaps))
	for i, s := range snaps {
		accounts[i] = SnapshotFromDomain(s)
	}

	return DashboardResponse{Accounts: accounts}
}

// RecordResponse represents a committed transaction record.
type RecordResponse struct {
	SequenceID       int64     `json:"sequence_id"`
	Kind             string    `json:"kind"`
	Base             string    `json:"base"`
	EquipmentType    string    `json:"equipment_type"`
	Leg              string    `json:"leg,omitempty"`
	CounterpartyBase string    `json:"counterparty_base,omitempty"`
	TransferID       string    `json:"transfer_id,omitempty"`
	RequestID        string    `json:"request_id,omitempty"`
	Quantity         int64     `json:"quantity"`
	Personnel        string    `json:"personnel,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	Date             string    `json:"date,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// RecordFromDomain converts a domain transaction to response.
func RecordFromDomain(t domain.Transaction) RecordResponse {
	resp := RecordResponse{
		SequenceID:       t.Seq,
		Kind:             string(t.Kind),
		Base:             t.Account.Base,
		EquipmentType:    t.Account.EquipmentType,
		Leg:              string(t.Leg),
		CounterpartyBase: t.Counterparty.Base,
		TransferID:       t.TransferID,
		RequestID:        t.RequestID,
		Quantity:         t.Quantity,
		Personnel:        t.Personnel,
		Notes:            t.Notes,
		RecordedAt:       t.RecordedAt,
	}

	if !t.OccurredAt.IsZero() {
		resp.Date = t.OccurredAt.Format(domain.DateLayout)
	}

	return resp
}

// RecordsFromDomain converts domain transactions to responses.
func RecordsFromDomain(recs []domain.Transaction) []RecordResponse {
	result := make([]RecordResponse, len(recs))
	for i, r := range recs {
		result[i] = RecordFromDomain(r)
	}
	return result
}

// SubmitResponse is returned for an accepted submission.
type SubmitResponse struct {
	SequenceID int64            `json:"sequence_id"`
	TransferID string           `json:"transfer_id,omitempty"`
	Records    []RecordResponse `json:"records"`
}

// SubmitFromResult converts an accepted result to response.
func SubmitFromResult(res usecase.Result) SubmitResponse {
	return SubmitResponse{
		SequenceID: res.Seq,
		TransferID: res.TransferID,
		Records:    RecordsFromDomain(res.Records),
	}
}

// RejectionResponse is returned when a business rule rejects a request.
type RejectionResponse struct {
	Error         string `json:"error"`
	Reason        string `json:"reason"`
	Message       string `json:"message"`
	Base          string `json:"base"`
	EquipmentType string `json:"equipment_type"`
	Kind          string `json:"kind,omitempty"`
	Requested     int64  `json:"requested"`
	Available     int64  `json:"available"`
}

// RejectionFromDomain converts a rejection to response.
func RejectionFromDomain(r *domain.Rejection) RejectionResponse {
	return RejectionResponse{
		Error:         "rejected",
		Reason:        string(r.Reason),
		Message:       r.Error(),
		Base:          r.Account.Base,
		EquipmentType: r.Account.EquipmentType,
		Kind:          string(r.Kind),
		Requested:     r.Requested,
		Available:     r.Available,
	}
}

// PeriodResponse is returned for an accepted period strike.
type PeriodResponse struct {
	Base           string           `json:"base"`
	EquipmentType  string           `json:"equipment_type"`
	Number         int64            `json:"number"`
	OpeningBalance int64            `json:"opening_balance"`
	AfterSequence  int64            `json:"after_sequence_id"`
	StruckAt       time.Time        `json:"struck_at"`
	Snapshot       SnapshotResponse `json:"snapshot"`
}

// PeriodFromResult converts an accepted strike to response.
func PeriodFromResult(res usecase.StrikeResult) PeriodResponse {
	return PeriodResponse{
		Base:           res.Period.Account.Base,
		EquipmentType:  res.Period.Account.EquipmentType,
		Number:         res.Period.Number,
		OpeningBalance: res.Period.OpeningBalance,
		AfterSequence:  res.Period.AfterSeq,
		StruckAt:       res.Period.StruckAt,
		Snapshot:       SnapshotFromDomain(res.Snapshot),
	}
}

// HistoryResponse is one page of history, newest first.
type HistoryResponse struct {
	Records []RecordResponse `json:"records"`
	// NextBefore is the cursor for the next page; 0 when this is the last page.
	NextBefore int64 `json:"next_before,omitempty"`
}

// HistoryFromPage converts a history page to response.
func HistoryFromPage(page usecase.HistoryPage) HistoryResponse {
	return HistoryResponse{
		Records:    RecordsFromDomain(page.Records),
		NextBefore: page.NextCursor,
	}
}

// DiscrepancyResponse describes an account whose cache disagreed with the log.
type DiscrepancyResponse struct {
	Base          string           `json:"base"`
	EquipmentType string           `json:"equipment_type"`
	Cached        SnapshotResponse `json:"cached"`
	Replayed      SnapshotResponse `json:"replayed"`
}

// ConsistencyResponse reports a reconciliation run.
type ConsistencyResponse struct {
	Status         string                `json:"status"`
	Consistent     bool                  `json:"consistent"`
	CheckedAt      time.Time             `json:"checked_at"`
	TotalAccounts  int                   `json:"total_accounts"`
	CachedAccounts int                   `json:"cached_accounts"`
	Discrepancies  []DiscrepancyResponse `json:"discrepancies,omitempty"`
	Unbalanced     []string              `json:"unbalanced,omitempty"`
}

// ConsistencyFromReport converts a reconciliation report to response.
func ConsistencyFromReport(r *usecase.ReconciliationReport) ConsistencyResponse {
	resp := ConsistencyResponse{
		Status:         "consistent",
		Consistent:     r.Consistent(),
		CheckedAt:      r.CheckedAt,
		TotalAccounts:  r.TotalAccounts,
		CachedAccounts: r.CachedAccounts,
	}

	if !resp.Consistent {
		resp.Status = "inconsistent"
	}

	for _, d := range r.Discrepancies {
		resp.Discrepancies = append(resp.Discrepancies, DiscrepancyResponse{
			Base:          d.Account.Base,
			EquipmentType: d.Account.EquipmentType,
			Cached:        SnapshotFromDomain(d.Cached),
			Replayed:      SnapshotFromDomain(d.Replayed),
		})
	}

	for _, key := range r.Unbalanced {
		resp.Unbalanced = append(resp.Unbalanced, key.String())
	}

	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

package dto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

func TestSnapshotFromDomain_DerivedFields(t *testing.T) {
	snap := domain.Snapshot{
		Account:        domain.AccountKey{Base: "alpha", EquipmentType: "rifle"},
		OpeningBalance: 500,
		ClosingBalance: 580,
		Purchased:      100,
		Assigned:       15,
		Expended:       5,
		Period:         1,
		Version:        9,
	}

	resp := SnapshotFromDomain(snap)

	if resp.NetMovement != 80 {
		t.Fatalf("expected net movement 80, got %d", resp.NetMovement)
	}

	if resp.Unassigned != 565 {
		t.Fatalf("expected unassigned 565, got %d", resp.Unassigned)
	}
}

func TestSubmitFromResult_TransferLegs(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	res := usecase.Result{
		Seq:        11,
		TransferID: "tr-1",
		Records: []domain.Transaction{
			{Seq: 11, Kind: domain.KindTransfer, Leg: domain.LegOutbound, TransferID: "tr-1", Quantity: 5, OccurredAt: at},
			{Seq: 12, Kind: domain.KindTransfer, Leg: domain.LegInbound, TransferID: "tr-1", Quantity: 5},
		},
	}

	resp := SubmitFromResult(res)

	if resp.SequenceID != 11 || resp.TransferID != "tr-1" || len(resp.Records) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if resp.Records[0].Date != "2025-03-01" || resp.Records[1].Date != "" {
		t.Fatalf("unexpected dates: %q %q", resp.Records[0].Date, resp.Records[1].Date)
	}
}

func TestRejectionFromDomain(t *testing.T) {
	rej := &domain.Rejection{
		Reason:    domain.ReasonInsufficientStock,
		Account:   domain.AccountKey{Base: "alpha", EquipmentType: "rifle"},
		Kind:      domain.KindExpenditure,
		Requested: 60,
		Available: 40,
	}

	body, err := json.Marshal(RejectionFromDomain(rej))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	for _, want := range []string{`"error":"rejected"`, `"reason":"insufficient_stock"`, `"requested":60`, `"available":40`} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}
}

func TestConsistencyFromReport(t *testing.T) {
	key := domain.AccountKey{Base: "alpha", EquipmentType: "rifle"}
	report := &usecase.ReconciliationReport{
		TotalAccounts: 2,
		Discrepancies: []usecase.Discrepancy{{Account: key}},
	}

	resp := ConsistencyFromReport(report)

	if resp.Consistent || resp.Status != "inconsistent" || len(resp.Discrepancies) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	resp = ConsistencyFromReport(&usecase.ReconciliationReport{TotalAccounts: 2})
	if !resp.Consistent || resp.Status != "consistent" {
		t.Fatalf("expected consistent report, got %+v", resp)
	}
}

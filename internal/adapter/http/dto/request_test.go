package dto

import (
	"testing"

	"github.com/iho/stockledger/internal/usecase"
)

func TestTransferRequest_ToUseCaseInput(t *testing.T) {
	req := &TransferRequest{
		FromBase:      "alpha",
		ToBase:        "bravo",
		EquipmentType: "rifle",
		Quantity:      5,
		Date:          "2025-03-01",
	}

	got := req.ToUseCaseInput("req-1")
	want := usecase.TransferInput{
		Date:          "2025-03-01",
		RequestID:     "req-1",
		FromBase:      "alpha",
		ToBase:        "bravo",
		EquipmentType: "rifle",
		Quantity:      5,
	}

	if got != want {
		t.Fatalf("ToUseCaseInput() = %+v, want %+v", got, want)
	}
}

func TestMovementRequests_CarryKindSpecificFields(t *testing.T) {
	assign := (&AssignmentRequest{Base: "alpha", EquipmentType: "radio", Quantity: 2, Personnel: "cpl. diaz"}).ToUseCaseInput("")
	if assign.Personnel != "cpl. diaz" || assign.Quantity != 2 {
		t.Fatalf("unexpected assignment input: %+v", assign)
	}

	expend := (&ExpenditureRequest{Base: "alpha", EquipmentType: "ammo", Quantity: 200, Notes: "range day"}).ToUseCaseInput("r")
	if expend.Notes != "range day" || expend.RequestID != "r" {
		t.Fatalf("unexpected expenditure input: %+v", expend)
	}

	purchase := (&PurchaseRequest{Base: "alpha", EquipmentType: "ammo", Quantity: 1000}).ToUseCaseInput("")
	if purchase.Quantity != 1000 || purchase.Date != "" {
		t.Fatalf("unexpected purchase input: %+v", purchase)
	}

	period := (&PeriodRequest{Base: "alpha", EquipmentType: "ammo", OpeningBalance: 800}).ToUseCaseInput()
	if period.OpeningBalance != 800 {
		t.Fatalf("unexpected period input: %+v", period)
	}
}

package dto

import (
	"github.com/iho/stockledger/internal/usecase"
)

// PurchaseRequest represents a request to record incoming stock.
type PurchaseRequest struct {
	Base          string `json:"base"`
	EquipmentType string `json:"equipment_type"`
	Quantity      int64  `json:"quantity"`
	Date          string `json:"date,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *PurchaseRequest) ToUseCaseInput(requestID string) usecase.PurchaseInput {
	return usecase.PurchaseInput{
		Date:          r.Date,
		RequestID:     requestID,
		Base:          r.Base,
		EquipmentType: r.EquipmentType,
		Quantity:      r.Quantity,
	}
}

// TransferRequest represents a request to move stock between bases.
type TransferRequest struct {
	FromBase      string `json:"from_base"`
	ToBase        string `json:"to_base"`
	EquipmentType string `json:"equipment_type"`
	Quantity      int64  `json:"quantity"`
	Date          string `json:"date,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *TransferRequest) ToUseCaseInput(requestID string) usecase.TransferInput {
	return usecase.TransferInput{
		Date:          r.Date,
		RequestID:     requestID,
		FromBase:      r.FromBase,
		ToBase:        r.ToBase,
		EquipmentType: r.EquipmentType,
		Quantity:      r.Quantity,
	}
}

// AssignmentRequest represents a request to issue stock to personnel.
type AssignmentRequest struct {
	Base          string `json:"base"`
	EquipmentType string `json:"equipment_type"`
	Quantity      int64  `json:"quantity"`
	Personnel     string `json:"personnel"`
	Date          string `json:"date,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *AssignmentRequest) ToUseCaseInput(requestID string) usecase.AssignmentInput {
	return usecase.AssignmentInput{
		Date:          r.Date,
		RequestID:     requestID,
		Base:          r.Base,
		EquipmentType: r.EquipmentType,
		Personnel:     r.Personnel,
		Quantity:      r.Quantity,
	}
}

// ExpenditureRequest represents a request to record consumed stock.
type ExpenditureRequest struct {
	Base          string `json:"base"`
	EquipmentType string `json:"equipment_type"`
	Quantity      int64  `json:"quantity"`
	Notes         string `json:"notes,omitempty"`
	Date          string `json:"date,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *ExpenditureRequest) ToUseCaseInput(requestID string) usecase.ExpenditureInput {
	return usecase.ExpenditureInput{
		Date:          r.Date,
		RequestID:     requestID,
		Base:          r.Base,
		EquipmentType: r.EquipmentType,
		Notes:         r.Notes,
		Quantity:      r.Quantity,
	}
}

// PeriodRequest represents a request to strike a new reporting period.
type PeriodRequest struct {
	Base           string `json:"base"`
	EquipmentType  string `json:"equipment_type"`
	OpeningBalance int64  `json:"opening_balance"`
}

// ToUseCaseInput converts to use case input.
func (r *PeriodRequest) ToUseCaseInput() usecase.PeriodInput {
	return usecase.PeriodInput{
		Base:           r.Base,
		EquipmentType:  r.EquipmentType,
		OpeningBalance: r.OpeningBalance,
	}
}

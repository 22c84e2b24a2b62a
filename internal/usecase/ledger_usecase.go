package usecase

import (
	"context"
	"time"

	"github.com/iho/stockledger/internal/domain"
)

// LedgerUseCase is the entry point for callers outside the core. It turns
// raw request fields into proposals and delegates to the coordinator and the
// query use case.
type LedgerUseCase struct {
	coordinator *Coordinator
	query       *QueryUseCase
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(coordinator *Coordinator, query *QueryUseCase) *LedgerUseCase {
	return &LedgerUseCase{
		coordinator: coordinator,
		query:       query,
	}
}

// PurchaseInput represents input for recording a purchase.
type PurchaseInput struct {
	Date          string
	RequestID     string
	Base          string
	EquipmentType string
	Quantity      int64
}

// TransferInput represents input for moving stock between bases.
type TransferInput struct {
	Date          string
	RequestID     string
	FromBase      string
	ToBase        string
	EquipmentType string
	Quantity      int64
}

// AssignmentInput represents input for issuing stock to personnel.
type AssignmentInput struct {
	Date          string
	RequestID     string
	Base          string
	EquipmentType string
	Personnel     string
	Quantity      int64
}

// ExpenditureInput represents input for recording consumed stock.
type ExpenditureInput struct {
	Date          string
	RequestID     string
	Base          string
	EquipmentType string
	Notes         string
	Quantity      int64
}

// PeriodInput represents input for striking a new reporting period.
type PeriodInput struct {
	Base           string
	EquipmentType  string
	OpeningBalance int64
}

// SubmitPurchase records a purchase.
func (uc *LedgerUseCase) SubmitPurchase(ctx context.Context, input PurchaseInput) (Result, error) {
	key, at, err := parseKeyAndDate(input.Base, input.EquipmentType, input.Date)
	if err != nil {
		return Result{}, err
	}

	p, err := domain.NewPurchase(key, input.Quantity, at)
	if err != nil {
		return Result{}, err
	}

	return uc.coordinator.Submit(ctx, p, input.RequestID)
}

// SubmitTransfer moves stock of one equipment type between two bases.
func (uc *LedgerUseCase) SubmitTransfer(ctx context.Context, input TransferInput) (Result, error) {
	at, err := domain.ParseDate(input.Date)
	if err != nil {
		return Result{}, err
	}

	p, err := domain.NewTransfer(input.FromBase, input.ToBase, input.EquipmentType, input.Quantity, at)
	if err != nil {
		return Result{}, err
	}

	return uc.coordinator.Submit(ctx, p, input.RequestID)
}

// SubmitAssignment issues stock to personnel.
func (uc *LedgerUseCase) SubmitAssignment(ctx context.Context, input AssignmentInput) (Result, error) {
	key, at, err := parseKeyAndDate(input.Base, input.EquipmentType, input.Date)
	if err != nil {
		return Result{}, err
	}

	p, err := domain.NewAssignment(key, input.Quantity, input.Personnel, at)
	if err != nil {
		return Result{}, err
	}

	return uc.coordinator.Submit(ctx, p, input.RequestID)
}

// SubmitExpenditure records consumed stock.
func (uc *LedgerUseCase) SubmitExpenditure(ctx context.Context, input ExpenditureInput) (Result, error) {
	key, at, err := parseKeyAndDate(input.Base, input.EquipmentType, input.Date)
	if err != nil {
		return Result{}, err
	}

	p, err := domain.NewExpenditure(key, input.Quantity, input.Notes, at)
	if err != nil {
		return Result{}, err
	}

	return uc.coordinator.Submit(ctx, p, input.RequestID)
}

// StrikePeriod opens a new reporting period.
func (uc *LedgerUseCase) StrikePeriod(ctx context.Context, input PeriodInput) (StrikeResult, error) {
	key, err := domain.NewAccountKey(input.Base, input.EquipmentType)
	if err != nil {
		return StrikeResult{}, err
	}

	return uc.coordinator.StrikePeriod(ctx, key, input.OpeningBalance)
}

// GetDashboard returns every account snapshot ordered by account key.
func (uc *LedgerUseCase) GetDashboard(ctx context.Context) ([]domain.Snapshot, error) {
	return uc.query.Dashboard(ctx)
}

// GetBalance returns the snapshot for one account key.
func (uc *LedgerUseCase) GetBalance(ctx context.Context, base, equipmentType string) (domain.Snapshot, error) {
	key, err := domain.NewAccountKey(base, equipmentType)
	if err != nil {
		return domain.Snapshot{}, err
	}

	return uc.query.Balance(ctx, key)
}

// GetHistory returns one page of history.
func (uc *LedgerUseCase) GetHistory(ctx context.Context, filter HistoryFilter) (HistoryPage, error) {
	return uc.query.History(ctx, filter)
}

func parseKeyAndDate(base, equipmentType, date string) (domain.AccountKey, time.Time, error) {
	key, err := domain.NewAccountKey(base, equipmentType)
	if err != nil {
		return domain.AccountKey{}, time.Time{}, err
	}

	at, err := domain.ParseDate(date)
	if err != nil {
		return domain.AccountKey{}, time.Time{}, err
	}

	return key, at, nil
}

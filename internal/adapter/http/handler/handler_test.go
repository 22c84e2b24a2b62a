package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/adapter/http/middleware"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

var alphaRifle = domain.AccountKey{Base: "alpha", EquipmentType: "rifle"}

type ledgerServiceStub struct {
	purchaseFn    func(ctx context.Context, input usecase.PurchaseInput) (usecase.Result, error)
	transferFn    func(ctx context.Context, input usecase.TransferInput) (usecase.Result, error)
	assignmentFn  func(ctx context.Context, input usecase.AssignmentInput) (usecase.Result, error)
	expenditureFn func(ctx context.Context, input usecase.ExpenditureInput) (usecase.Result, error)
	strikeFn      func(ctx context.Context, input usecase.PeriodInput) (usecase.StrikeResult, error)
	dashboardFn   func(ctx context.Context) ([]domain.Snapshot, error)
	balanceFn     func(ctx context.Context, base, equipmentType string) (domain.Snapshot, error)
	historyFn     func(ctx context.Context, filter usecase.HistoryFilter) (usecase.HistoryPage, error)
}

func (s *ledgerServiceStub) SubmitPurchase(ctx context.Context, input usecase.PurchaseInput) (usecase.Result, error) {
	return s.purchaseFn(ctx, input)
}

func (s *ledgerServiceStub) SubmitTransfer(ctx context.Context, input usecase.TransferInput) (usecase.Result, error) {
	return s.transferFn(ctx, input)
}

func (s *ledgerServiceStub) SubmitAssignment(ctx context.Context, input usecase.AssignmentInput) (usecase.Result, error) {
	return s.assignmentFn(ctx, input)
}

func (s *ledgerServiceStub) SubmitExpenditure(ctx context.Context, input usecase.ExpenditureInput) (usecase.Result, error) {
	return s.expenditureFn(ctx, input)
}

func (s *ledgerServiceStub) StrikePeriod(ctx context.Context, input usecase.PeriodInput) (usecase.StrikeResult, error) {
	return s.strikeFn(ctx, input)
}

func (s *ledgerServiceStub) GetDashboard(ctx context.Context) ([]domain.Snapshot, error) {
	return s.dashboardFn(ctx)
}

func (s *ledgerServiceStub) GetBalance(ctx context.Context, base, equipmentType string) (domain.Snapshot, error) {
	return s.balanceFn(ctx, base, equipmentType)
}

func (s *ledgerServiceStub) GetHistory(ctx context.Context, filter usecase.HistoryFilter) (usecase.HistoryPage, error) {
	return s.historyFn(ctx, filter)
}

func postJSON(t *testing.T, h http.HandlerFunc, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h(rec, req)

	return rec
}

func TestMovementHandler_Transfer_Success(t *testing.T) {
	var captured usecase.TransferInput

	h := NewMovementHandler(&ledgerServiceStub{
		transferFn: func(_ context.Context, input usecase.TransferInput) (usecase.Result, error) {
			captured = input
			return usecase.Result{
				Seq:        3,
				TransferID: "tr-1",
				Records: []domain.Transaction{
					{Seq: 3, Kind: domain.KindTransfer, Account: alphaRifle, Leg: domain.LegOutbound, TransferID: "tr-1", Quantity: 5},
					{Seq: 4, Kind: domain.KindTransfer, Account: domain.AccountKey{Base: "bravo", EquipmentType: "rifle"}, Leg: domain.LegInbound, TransferID: "tr-1", Quantity: 5},
				},
			}, nil
		},
	})

	rec := postJSON(t, h.Transfer, dto.TransferRequest{
		FromBase: "alpha", ToBase: "bravo", EquipmentType: "rifle", Quantity: 5, Date: "2025-03-01",
	}, map[string]string{middleware.IdempotencyKeyHeader: "key-1"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if captured.RequestID != "key-1" || captured.FromBase != "alpha" || captured.Quantity != 5 {
		t.Fatalf("unexpected input passed to use case: %+v", captured)
	}

	var resp dto.SubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.SequenceID != 3 || resp.TransferID != "tr-1" || len(resp.Records) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestMovementHandler_Expenditure_Rejected(t *testing.T) {
	h := NewMovementHandler(&ledgerServiceStub{
		expenditureFn: func(context.Context, usecase.ExpenditureInput) (usecase.Result, error) {
			return usecase.Result{Rejection: &domain.Rejection{
				Reason:    domain.ReasonInsufficientStock,
				Account:   alphaRifle,
				Kind:      domain.KindExpenditure,
				Requested: 60,
				Available: 40,
			}}, nil
		},
	})

	rec := postJSON(t, h.Expenditure, dto.ExpenditureRequest{Base: "alpha", EquipmentType: "rifle", Quantity: 60}, nil)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}

	var resp dto.RejectionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Reason != string(domain.ReasonInsufficientStock) || resp.Available != 40 {
		t.Fatalf("unexpected rejection body: %+v", resp)
	}
}

func TestMovementHandler_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"input error", domain.ErrInvalidQuantity, http.StatusBadRequest},
		{"storage failure", domain.NewStorageError("append", true, errors.New("timeout")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMovementHandler(&ledgerServiceStub{
				purchaseFn: func(context.Context, usecase.PurchaseInput) (usecase.Result, error) {
					return usecase.Result{}, tt.err
				},
			})

			rec := postJSON(t, h.Purchase, dto.PurchaseRequest{Base: "alpha", EquipmentType: "rifle", Quantity: 1}, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestMovementHandler_RejectsMalformedBody(t *testing.T) {
	h := NewMovementHandler(&ledgerServiceStub{})

	for _, body := range []string{`{`, `{"base":"alpha","unknown":1}`, `{"quantity":"ten"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Assignment(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestPeriodHandler_Strike(t *testing.T) {
	h := NewPeriodHandler(&ledgerServiceStub{
		strikeFn: func(_ context.Context, input usecase.PeriodInput) (usecase.StrikeResult, error) {
			if input.OpeningBalance != 40 {
				return usecase.StrikeResult{Rejection: &domain.Rejection{
					Reason:    domain.ReasonInvalidPeriodBoundary,
					Account:   alphaRifle,
					Requested: input.OpeningBalance,
					Available: 40,
				}}, nil
			}

			return usecase.StrikeResult{
				Period:   domain.Period{Account: alphaRifle, Number: 2, OpeningBalance: 40, AfterSeq: 8},
				Snapshot: domain.Snapshot{Account: alphaRifle, OpeningBalance: 40, ClosingBalance: 40, Period: 2, Version: 8},
			}, nil
		},
	})

	rec := postJSON(t, h.Strike, dto.PeriodRequest{Base: "alpha", EquipmentType: "rifle", OpeningBalance: 40}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp dto.PeriodResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Number != 2 || resp.Snapshot.OpeningBalance != 40 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rec = postJSON(t, h.Strike, dto.PeriodRequest{Base: "alpha", EquipmentType: "rifle", OpeningBalance: 41}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for boundary mismatch, got %d", rec.Code)
	}
}

func TestQueryHandler_Dashboard(t *testing.T) {
	h := NewQueryHandler(&ledgerServiceStub{
		dashboardFn: func(context.Context) ([]domain.Snapshot, error) {
			return []domain.Snapshot{{Account: alphaRifle, ClosingBalance: 7}}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.DashboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(resp.Accounts) != 1 || resp.Accounts[0].ClosingBalance != 7 {
		t.Fatalf("unexpected dashboard: %+v", resp)
	}
}

func TestQueryHandler_Balance(t *testing.T) {
	h := NewQueryHandler(&ledgerServiceStub{
		balanceFn: func(_ context.Context, base, equipmentType string) (domain.Snapshot, error) {
			if base == "" {
				return domain.Snapshot{}, domain.ErrInvalidBase
			}
			return domain.Snapshot{Account: domain.AccountKey{Base: base, EquipmentType: equipmentType}, ClosingBalance: 3}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Balance(rec, httptest.NewRequest(http.MethodGet, "/api/v1/balance?base=alpha&equipment_type=rifle", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"closing_balance":3`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Balance(rec, httptest.NewRequest(http.MethodGet, "/api/v1/balance?equipment_type=rifle", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing base, got %d", rec.Code)
	}
}

func TestQueryHandler_HistoryParsesFilter(t *testing.T) {
	var captured usecase.HistoryFilter

	h := NewQueryHandler(&ledgerServiceStub{
		historyFn: func(_ context.Context, filter usecase.HistoryFilter) (usecase.HistoryPage, error) {
			captured = filter
			return usecase.HistoryPage{
				Records:    []domain.Transaction{{Seq: 9, Kind: domain.KindPurchase, Account: alphaRifle, Quantity: 1}},
				NextCursor: 9,
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?base=alpha&equipment_type=rifle&kind=purchase&limit=1&before=12", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if captured.Account == nil || *captured.Account != alphaRifle {
		t.Fatalf("expected account filter, got %+v", captured.Account)
	}

	if captured.Kind != domain.KindPurchase || captured.Limit != 1 || captured.BeforeSeq != 12 {
		t.Fatalf("unexpected filter: %+v", captured)
	}

	var resp dto.HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.NextBefore != 9 || len(resp.Records) != 1 {
		t.Fatalf("unexpected page: %+v", resp)
	}
}

func TestQueryHandler_HistoryKindIsCaseInsensitive(t *testing.T) {
	var captured usecase.HistoryFilter

	h := NewQueryHandler(&ledgerServiceStub{
		historyFn: func(_ context.Context, filter usecase.HistoryFilter) (usecase.HistoryPage, error) {
			captured = filter
			return usecase.HistoryPage{}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?kind=%20Expenditure%20", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if captured.Kind != domain.KindExpenditure {
		t.Fatalf("expected expenditure filter, got %q", captured.Kind)
	}

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?kind=refund", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", rec.Code)
	}
}

func TestQueryHandler_HistoryRejectsBadCursor(t *testing.T) {
	h := NewQueryHandler(&ledgerServiceStub{})

	for _, target := range []string{
		"/api/v1/history?before=abc",
		"/api/v1/history?before=-3",
		"/api/v1/history?base=alpha",
	} {
		rec := httptest.NewRecorder()
		h.History(rec, httptest.NewRequest(http.MethodGet, target, nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

type checkerStub struct {
	report *usecase.ReconciliationReport
	err    error
}

func (s checkerStub) CheckConsistency(context.Context) (*usecase.ReconciliationReport, error) {
	return s.report, s.err
}

func TestLedgerHandler_CheckConsistency(t *testing.T) {
	rec := httptest.NewRecorder()
	NewLedgerHandler(checkerStub{report: &usecase.ReconciliationReport{TotalAccounts: 1}}).
		CheckConsistency(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewLedgerHandler(checkerStub{report: &usecase.ReconciliationReport{Unbalanced: []domain.AccountKey{alphaRifle}}}).
		CheckConsistency(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewLedgerHandler(checkerStub{err: domain.NewStorageError("accounts", false, errors.New("down"))}).
		CheckConsistency(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	healthy := NewHealthHandler(map[string]Pinger{
		"store": PingFunc(func(context.Context) error { return nil }),
	})

	rec := httptest.NewRecorder()
	healthy.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"store":"ok"`) {
		t.Fatalf("unexpected readiness %d: %s", rec.Code, rec.Body.String())
	}

	failing := NewHealthHandler(map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("refused") }),
	})

	rec = httptest.NewRecorder()
	failing.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

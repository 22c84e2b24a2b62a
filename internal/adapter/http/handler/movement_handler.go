package handler

import (
	"context"
	"net/http"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/adapter/http/middleware"
	"github.com/iho/stockledger/internal/usecase"
)

// MovementService submits stock movements.
type MovementService interface {
	SubmitPurchase(ctx context.Context, input usecase.PurchaseInput) (usecase.Result, error)
	SubmitTransfer(ctx context.Context, input usecase.TransferInput) (usecase.Result, error)
	SubmitAssignment(ctx context.Context, input usecase.AssignmentInput) (usecase.Result, error)
	SubmitExpenditure(ctx context.Context, input usecase.ExpenditureInput) (usecase.Result, error)
}

// MovementHandler handles movement submissions.
type MovementHandler struct {
	movements MovementService
}

// NewMovementHandler creates a new MovementHandler.
func NewMovementHandler(movements MovementService) *MovementHandler {
	return &MovementHandler{movements: movements}
}

// Purchase records incoming stock.
func (h *MovementHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req dto.PurchaseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.movements.SubmitPurchase(r.Context(), req.ToUseCaseInput(requestID(r)))
	writeSubmitResult(w, "failed to record purchase", res, err)
}

// Transfer moves stock between bases.
func (h *MovementHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.movements.SubmitTransfer(r.Context(), req.ToUseCaseInput(requestID(r)))
	writeSubmitResult(w, "failed to record transfer", res, err)
}

// Assignment issues stock to personnel.
func (h *MovementHandler) Assignment(w http.ResponseWriter, r *http.Request) {
	var req dto.AssignmentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.movements.SubmitAssignment(r.Context(), req.ToUseCaseInput(requestID(r)))
	writeSubmitResult(w, "failed to record assignment", res, err)
}

// Expenditure records consumed stock.
func (h *MovementHandler) Expenditure(w http.ResponseWriter, r *http.Request) {
	var req dto.ExpenditureRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.movements.SubmitExpenditure(r.Context(), req.ToUseCaseInput(requestID(r)))
	writeSubmitResult(w, "failed to record expenditure", res, err)
}

func writeSubmitResult(w http.ResponseWriter, message string, res usecase.Result, err error) {
	if err != nil {
		writeDomainError(w, message, err)
		return
	}

	if res.Rejection != nil {
		writeRejection(w, res.Rejection)
		return
	}

	writeJSON(w, http.StatusCreated, dto.SubmitFromResult(res))
}

// requestID is the client's idempotency key; empty lets the ledger generate one.
func requestID(r *http.Request) string {
	return r.Header.Get(middleware.IdempotencyKeyHeader)
}

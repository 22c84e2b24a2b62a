package handler

import (
	"context"
	"net/http"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/usecase"
)

// PeriodService strikes reporting periods.
type PeriodService interface {
	StrikePeriod(ctx context.Context, input usecase.PeriodInput) (usecase.StrikeResult, error)
}

// PeriodHandler handles period strikes.
type PeriodHandler struct {
	periods PeriodService
}

// NewPeriodHandler creates a new PeriodHandler.
func NewPeriodHandler(periods PeriodService) *PeriodHandler {
	return &PeriodHandler{periods: periods}
}

// Strike opens a new reporting period for one account.
func (h *PeriodHandler) Strike(w http.ResponseWriter, r *http.Request) {
	var req dto.PeriodRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	res, err := h.periods.StrikePeriod(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to strike period", err)
		return
	}

	if res.Rejection != nil {
		writeRejection(w, res.Rejection)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PeriodFromResult(res))
}

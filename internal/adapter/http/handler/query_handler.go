package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/iho/stockledger/internal/adapter/http/dto"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// QueryService reads balances and history.
type QueryService interface {
	GetDashboard(ctx context.Context) ([]domain.Snapshot, error)
	GetBalance(ctx context.Context, base, equipmentType string) (domain.Snapshot, error)
	GetHistory(ctx context.Context, filter usecase.HistoryFilter) (usecase.HistoryPage, error)
}

// QueryHandler handles read-only ledger requests.
type QueryHandler struct {
	query QueryService
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(query QueryService) *QueryHandler {
	return &QueryHandler{query: query}
}

// Dashboard lists every account snapshot.
func (h *QueryHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.query.GetDashboard(r.Context())
	if err != nil {
		writeDomainError(w, "failed to load dashboard", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DashboardFromDomain(snaps))
}

// Balance returns one account snapshot.
func (h *QueryHandler) Balance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	snap, err := h.query.GetBalance(r.Context(), q.Get("base"), q.Get("equipment_type"))
	if err != nil {
		writeDomainError(w, "failed to load balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SnapshotFromDomain(snap))
}

// History returns one page of records, newest first.
func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilter(r)
	if err != nil {
		writeDomainError(w, "invalid history query", err)
		return
	}

	page, err := h.query.GetHistory(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "failed to load history", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.HistoryFromPage(page))
}

// historyFilter reads base, equipment_type, kind, limit and before. Base and
// equipment type filter together; giving only one is an error.
func historyFilter(r *http.Request) (usecase.HistoryFilter, error) {
	q := r.URL.Query()

	filter := usecase.HistoryFilter{
		Limit: parseIntQuery(r, "limit", 0),
	}

	if kind := strings.TrimSpace(q.Get("kind")); kind != "" {
		parsed, err := domain.ParseKind(kind)
		if err != nil {
			return usecase.HistoryFilter{}, err
		}
		filter.Kind = parsed
	}

	base, equipmentType := q.Get("base"), q.Get("equipment_type")
	if base != "" || equipmentType != "" {
		key, err := domain.NewAccountKey(base, equipmentType)
		if err != nil {
			return usecase.HistoryFilter{}, err
		}
		filter.Account = &key
	}

	if before := q.Get("before"); before != "" {
		seq, err := strconv.ParseInt(before, 10, 64)
		if err != nil || seq <= 0 {
			return usecase.HistoryFilter{}, domain.ErrInvalidCursor
		}
		filter.BeforeSeq = seq
	}

	return filter, nil
}

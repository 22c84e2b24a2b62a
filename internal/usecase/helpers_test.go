package usecase_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iho/stockledger/internal/adapter/repository/memory"
	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
	"github.com/iho/stockledger/internal/usecase/mocks"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	store       *memory.Store
	aggregator  *usecase.Aggregator
	coordinator *usecase.Coordinator
	query       *usecase.QueryUseCase
	ledger      *usecase.LedgerUseCase
	metrics     *mocks.MockMetrics
	clock       *mocks.ManualClock
}

func newHarness(t *testing.T, capacity int) *harness {
	t.Helper()

	store := memory.New()
	metrics := mocks.NewMockMetrics()
	clock := mocks.NewManualClock(testNow)
	logger := zerolog.Nop()

	agg, err := usecase.NewAggregator(store, store, capacity, clock, metrics, logger)
	require.NoError(t, err)

	coord := usecase.NewCoordinator(
		store,
		agg,
		mocks.NoRetry{},
		&mocks.SequentialIDGenerator{},
		clock,
		metrics,
		logger,
		usecase.CoordinatorConfig{AppendTimeout: time.Second},
	)
	query := usecase.NewQueryUseCase(store, agg)

	return &harness{
		store:       store,
		aggregator:  agg,
		coordinator: coord,
		query:       query,
		ledger:      usecase.NewLedgerUseCase(coord, query),
		metrics:     metrics,
		clock:       clock,
	}
}

func key(base, equipmentType string) domain.AccountKey {
	return domain.AccountKey{Base: base, EquipmentType: equipmentType}
}

func mustPurchase(t *testing.T, h *harness, k domain.AccountKey, qty int64) usecase.Result {
	t.Helper()

	p, err := domain.NewPurchase(k, qty, testNow)
	require.NoError(t, err)

	res, err := h.coordinator.Submit(t.Context(), p, "")
	require.NoError(t, err)
	require.True(t, res.Accepted())

	return res
}

package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

func TestQueryUseCase_DashboardOrderedByKey(t *testing.T) {
	h := newHarness(t, 16)
	ctx := t.Context()

	mustPurchase(t, h, key("charlie", "rifle"), 3)
	mustPurchase(t, h, key("alpha", "radio"), 1)
	mustPurchase(t, h, key("alpha", "ammo"), 2)

	snaps, err := h.query.Dashboard(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	assert.Equal(t, key("alpha", "ammo"), snaps[0].Account)
	assert.Equal(t, key("alpha", "radio"), snaps[1].Account)
	assert.Equal(t, key("charlie", "rifle"), snaps[2].Account)
	assert.Equal(t, int64(2), snaps[0].ClosingBalance)
}

func TestQueryUseCase_DashboardEmpty(t *testing.T) {
	h := newHarness(t, 16)

	snaps, err := h.query.Dashboard(t.Context())
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestQueryUseCase_BalanceOfUnknownKey(t *testing.T) {
	h := newHarness(t, 16)

	snap, err := h.query.Balance(t.Context(), key("nowhere", "rifle"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.ClosingBalance)
	assert.Equal(t, int64(0), snap.Version)

	_, err = h.query.Balance(t.Context(), key("", "rifle"))
	assert.ErrorIs(t, err, domain.ErrInvalidBase)
}

func TestQueryUseCase_HistoryPaging(t *testing.T) {
	h := newHarness(t, 16)
	ctx := t.Context()
	k := key("alpha", "rifle")

	for range 5 {
		mustPurchase(t, h, k, 1)
	}
	mustPurchase(t, h, key("bravo", "rifle"), 1)

	filter := usecase.HistoryFilter{Account: &k, Limit: 2}

	var seen []int64
	for {
		page, err := h.query.History(ctx, filter)
		require.NoError(t, err)

		for _, rec := range page.Records {
			assert.Equal(t, k, rec.Account)
			seen = append(seen, rec.Seq)
		}

		if page.NextCursor == 0 {
			break
		}
		filter.BeforeSeq = page.NextCursor
	}

	assert.Equal(t, []int64{5, 4, 3, 2, 1}, seen)
}

func TestQueryUseCase_HistoryByKindIncludesBothLegs(t *testing.T) {
	h := newHarness(t, 16)
	ctx := t.Context()
	mustPurchase(t, h, key("A", "radio"), 10)

	p, err := domain.NewTransfer("A", "B", "radio", 4, testNow)
	require.NoError(t, err)
	res, err := h.coordinator.Submit(ctx, p, "")
	require.NoError(t, err)

	page, err := h.query.History(ctx, usecase.HistoryFilter{Kind: domain.KindTransfer})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, domain.LegInbound, page.Records[0].Leg)
	assert.Equal(t, domain.LegOutbound, page.Records[1].Leg)
	assert.Equal(t, res.TransferID, page.Records[0].TransferID)
	assert.Zero(t, page.NextCursor)
}

func TestQueryUseCase_HistoryRejectsBadFilters(t *testing.T) {
	h := newHarness(t, 16)
	ctx := t.Context()

	_, err := h.query.History(ctx, usecase.HistoryFilter{BeforeSeq: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)

	_, err = h.query.History(ctx, usecase.HistoryFilter{Kind: "refund"})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)
}

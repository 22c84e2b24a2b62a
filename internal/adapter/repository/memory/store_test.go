package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

var (
	alphaRifle = domain.AccountKey{Base: "alpha", EquipmentType: "rifle"}
	bravoRifle = domain.AccountKey{Base: "bravo", EquipmentType: "rifle"}
	recordedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

func purchase(key domain.AccountKey, qty int64, requestID string) domain.Transaction {
	return domain.Transaction{
		Kind: domain.KindPurchase, Account: key, Quantity: qty, RequestID: requestID, RecordedAt: recordedAt,
	}
}

func transfer(from, to domain.AccountKey, qty int64, requestID string) []domain.Transaction {
	p := domain.Proposal{Kind: domain.KindTransfer, Account: from, Destination: to, Quantity: qty}
	return p.Records(requestID, "tr-1", recordedAt)
}

func collect(t *testing.T, seq func(func(domain.Transaction, error) bool)) []int64 {
	t.Helper()

	var out []int64
	for rec, err := range seq {
		require.NoError(t, err)
		out = append(out, rec.Seq)
	}

	return out
}

func TestStore_AppendAssignsSequence(t *testing.T) {
	s := New()
	ctx := t.Context()

	out, err := s.Append(ctx, []domain.Transaction{purchase(alphaRifle, 5, "r1")})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].Seq)

	out, err = s.Append(ctx, transfer(alphaRifle, bravoRifle, 2, "r2"))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].Seq)
	assert.Equal(t, int64(3), out[1].Seq)

	last, err := s.LastSeq(ctx, bravoRifle)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)

	keys, err := s.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.AccountKey{alphaRifle, bravoRifle}, keys)
}

func TestStore_AppendDeduplicatesRequestID(t *testing.T) {
	s := New()
	ctx := t.Context()

	first, err := s.Append(ctx, transfer(alphaRifle, bravoRifle, 2, "r1"))
	require.NoError(t, err)

	again, err := s.Append(ctx, transfer(alphaRifle, bravoRifle, 2, "r1"))
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, 2, s.Len())
}

func TestStore_ByRequest(t *testing.T) {
	s := New()
	ctx := t.Context()

	_, err := s.Append(ctx, []domain.Transaction{purchase(alphaRifle, 5, "r1")})
	require.NoError(t, err)
	legs, err := s.Append(ctx, transfer(alphaRifle, bravoRifle, 2, "r2"))
	require.NoError(t, err)

	got, err := s.ByRequest(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, legs, got)

	got, err = s.ByRequest(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Seq)

	got, err = s.ByRequest(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_FaultAbortsWholeAppend(t *testing.T) {
	s := New()
	ctx := t.Context()

	s.SetFault(func(leg int, _ domain.Transaction) error {
		if leg == 1 {
			return errors.New("power cut")
		}
		return nil
	})

	_, err := s.Append(ctx, transfer(alphaRifle, bravoRifle, 2, "r1"))
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.False(t, domain.IsTransientStorageError(err))

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, collect(t, s.ReadAll(ctx, 0)))

	last, err := s.LastSeq(ctx, alphaRifle)
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestStore_AppendRejectsMalformedRecords(t *testing.T) {
	s := New()

	_, err := s.Append(t.Context(), []domain.Transaction{purchase(alphaRifle, 0, "")})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ReadByAccountIsLazyAndRestartable(t *testing.T) {
	s := New()
	s.SetScanBatch(2)
	ctx := t.Context()

	for i := range 5 {
		key := alphaRifle
		if i%2 == 1 {
			key = bravoRifle
		}
		_, err := s.Append(ctx, []domain.Transaction{purchase(key, 1, "")})
		require.NoError(t, err)
	}

	seq := s.ReadByAccount(ctx, alphaRifle, 0)
	assert.Equal(t, []int64{1, 3, 5}, collect(t, seq))
	assert.Equal(t, []int64{1, 3, 5}, collect(t, seq))
	assert.Equal(t, []int64{3, 5}, collect(t, s.ReadByAccount(ctx, alphaRifle, 1)))
	assert.Equal(t, []int64{4, 5}, collect(t, s.ReadAll(ctx, 3)))
}

func TestStore_History(t *testing.T) {
	s := New()
	ctx := t.Context()

	_, err := s.Append(ctx, []domain.Transaction{purchase(alphaRifle, 9, "")})
	require.NoError(t, err)
	_, err = s.Append(ctx, transfer(alphaRifle, bravoRifle, 2, ""))
	require.NoError(t, err)
	_, err = s.Append(ctx, []domain.Transaction{purchase(bravoRifle, 1, "")})
	require.NoError(t, err)

	key := bravoRifle
	recs, err := s.History(ctx, usecase.HistoryFilter{Account: &key})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(4), recs[0].Seq)
	assert.Equal(t, int64(3), recs[1].Seq)

	recs, err = s.History(ctx, usecase.HistoryFilter{Kind: domain.KindPurchase, BeforeSeq: 4, Limit: 5})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1), recs[0].Seq)

	recs, err = s.History(ctx, usecase.HistoryFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestStore_Periods(t *testing.T) {
	s := New()
	ctx := t.Context()

	require.NoError(t, s.AppendPeriod(ctx, domain.Period{Account: alphaRifle, Number: 1, OpeningBalance: 3}))
	require.NoError(t, s.AppendPeriod(ctx, domain.Period{Account: alphaRifle, Number: 2, OpeningBalance: 4, AfterSeq: 7}))

	err := s.AppendPeriod(ctx, domain.Period{Account: alphaRifle, Number: 2})
	assert.ErrorIs(t, err, ErrPeriodConflict)

	periods, err := s.Periods(ctx, alphaRifle)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, int64(7), periods[1].AfterSeq)

	latest, err := s.LatestPeriod(ctx, alphaRifle)
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest)

	latest, err = s.LatestPeriod(ctx, bravoRifle)
	require.NoError(t, err)
	assert.Zero(t, latest)
}

func TestStore_Cursor(t *testing.T) {
	s := New()
	ctx := t.Context()

	seq, err := s.LoadCursor(ctx, "movements")
	require.NoError(t, err)
	assert.Zero(t, seq)

	require.NoError(t, s.SaveCursor(ctx, "movements", 12))

	seq, err = s.LoadCursor(ctx, "movements")
	require.NoError(t, err)
	assert.Equal(t, int64(12), seq)
}

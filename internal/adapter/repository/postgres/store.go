package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// appendLockKey is the advisory lock that serializes appends so sequence
// ids become visible in commit order.
const appendLockKey int64 = 0x53544f434b4c4752

const selectColumns = `
SELECT seq, kind, base, equipment_type, leg, counterparty_base, counterparty_equipment_type,
       transfer_id, request_id, quantity, notes, personnel, occurred_at, recorded_at
FROM transactions`

// errPartialReplay means only some legs of a request were found committed.
var errPartialReplay = errors.New("request id matches only part of the records")

// Store is a PostgreSQL-backed usecase.Store.
type Store struct {
	pool  pgxPool
	batch int
}

var _ usecase.Store = (*Store)(nil)

// NewStore creates a Store on a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return newStoreWithPool(pool)
}

func newStoreWithPool(pool pgxPool) *Store {
	return &Store{pool: pool, batch: usecase.DefaultScanBatch}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Append inserts recs in one transaction. Appends are serialized with a
// transaction-scoped advisory lock, so a reader that sees seq N has also
// seen every seq below N. Records whose (request_id, leg) already exists
// are not inserted; the committed ones are returned instead.
func (s *Store) Append(ctx context.Context, recs []domain.Transaction) ([]domain.Transaction, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("append leg %d: %w", i, err)
		}
	}

	var out []domain.Transaction

	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
			return err
		}

		out = make([]domain.Transaction, 0, len(recs))
		replayed := 0

		for _, rec := range recs {
			var seq int64

			err := tx.QueryRow(ctx, `
INSERT INTO transactions (
	kind, base, equipment_type, leg, counterparty_base, counterparty_equipment_type,
	transfer_id, request_id, quantity, notes, personnel, occurred_at, recorded_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (request_id, leg) DO NOTHING
RETURNING seq`,
				string(rec.Kind),
				rec.Account.Base,
				rec.Account.EquipmentType,
				string(rec.Leg),
				rec.Counterparty.Base,
				rec.Counterparty.EquipmentType,
				rec.TransferID,
				nullString(rec.RequestID),
				rec.Quantity,
				rec.Notes,
				rec.Personnel,
				nullTime(rec.OccurredAt),
				rec.RecordedAt.UTC(),
			).Scan(&seq)

			if errors.Is(err, pgx.ErrNoRows) {
				replayed++
				continue
			}

			if err != nil {
				return err
			}

			rec.Seq = seq
			out = append(out, rec)
		}

		switch replayed {
		case 0:
			return nil
		case len(recs):
			existing, err := s.query(ctx, tx, selectColumns+` WHERE request_id = $1 ORDER BY seq`, recs[0].RequestID)
			if err != nil {
				return err
			}

			out = existing

			return nil
		default:
			return errPartialReplay
		}
	})
	if err != nil {
		if errors.Is(err, errPartialReplay) {
			return nil, domain.NewStorageError("append", false, err)
		}

		return nil, storageError("append", err)
	}

	return out, nil
}

// ByRequest returns the records committed under requestID.
func (s *Store) ByRequest(ctx context.Context, requestID string) ([]domain.Transaction, error) {
	if requestID == "" {
		return nil, nil
	}

	recs, err := s.query(ctx, s.pool, selectColumns+` WHERE request_id = $1 ORDER BY seq`, requestID)

	return recs, storageError("by_request", err)
}

// ReadByAccount yields the account's records after sinceSeq.
func (s *Store) ReadByAccount(ctx context.Context, key domain.AccountKey, sinceSeq int64) iter.Seq2[domain.Transaction, error] {
	return usecase.ScanPages(ctx, sinceSeq, s.batch, func(ctx context.Context, afterSeq int64, limit int) ([]domain.Transaction, error) {
		recs, err := s.query(ctx, s.pool, selectColumns+`
WHERE base = $1 AND equipment_type = $2 AND seq > $3
ORDER BY seq
LIMIT $4`, key.Base, key.EquipmentType, afterSeq, limit)

		return recs, storageError("read_by_account", err)
	})
}

// ReadAll yields every record after sinceSeq.
func (s *Store) ReadAll(ctx context.Context, sinceSeq int64) iter.Seq2[domain.Transaction, error] {
	return usecase.ScanPages(ctx, sinceSeq, s.batch, func(ctx context.Context, afterSeq int64, limit int) ([]domain.Transaction, error) {
		recs, err := s.query(ctx, s.pool, selectColumns+` WHERE seq > $1 ORDER BY seq LIMIT $2`, afterSeq, limit)

		return recs, storageError("read_all", err)
	})
}

// History returns one page of matching records, newest first.
func (s *Store) History(ctx context.Context, filter usecase.HistoryFilter) ([]domain.Transaction, error) {
	var (
		where []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Account != nil {
		where = append(where, "base = "+arg(filter.Account.Base)+" AND equipment_type = "+arg(filter.Account.EquipmentType))
	}

	if filter.Kind != "" {
		where = append(where, "kind = "+arg(string(filter.Kind)))
	}

	if filter.BeforeSeq > 0 {
		where = append(where, "seq < "+arg(filter.BeforeSeq))
	}

	q := selectColumns
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	q += " ORDER BY seq DESC"

	if filter.Limit > 0 {
		q += " LIMIT " + arg(filter.Limit)
	}

	recs, err := s.query(ctx, s.pool, q, args...)

	return recs, storageError("history", err)
}

// LastSeq returns the account's highest sequence id.
func (s *Store) LastSeq(ctx context.Context, key domain.AccountKey) (int64, error) {
	var seq int64

	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM transactions WHERE base = $1 AND equipment_type = $2`,
		key.Base, key.EquipmentType,
	).Scan(&seq)
	if err != nil {
		return 0, storageError("last_seq", err)
	}

	return seq, nil
}

// Accounts returns every account key with history, sorted.
func (s *Store) Accounts(ctx context.Context) ([]domain.AccountKey, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT base, equipment_type FROM transactions`)
	if err != nil {
		return nil, storageError("accounts", err)
	}
	defer rows.Close()

	var keys []domain.AccountKey
	for rows.Next() {
		var key domain.AccountKey
		if err := rows.Scan(&key.Base, &key.EquipmentType); err != nil {
			return nil, storageError("accounts", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("accounts", err)
	}

	domain.SortAccountKeys(keys)

	return keys, nil
}

// AppendPeriod records a period boundary.
func (s *Store) AppendPeriod(ctx context.Context, period domain.Period) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO periods (base, equipment_type, number, opening_balance, after_seq, struck_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		period.Account.Base,
		period.Account.EquipmentType,
		period.Number,
		period.OpeningBalance,
		period.AfterSeq,
		period.StruckAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewStorageError("append_period", false,
				fmt.Errorf("period %d of %s already exists: %w", period.Number, period.Account, err))
		}

		return storageError("append_period", err)
	}

	return nil
}

// Periods returns the account's periods in ascending order.
func (s *Store) Periods(ctx context.Context, key domain.AccountKey) ([]domain.Period, error) {
	rows, err := s.pool.Query(ctx, `
SELECT number, opening_balance, after_seq, struck_at
FROM periods
WHERE base = $1 AND equipment_type = $2
ORDER BY number`, key.Base, key.EquipmentType)
	if err != nil {
		return nil, storageError("periods", err)
	}
	defer rows.Close()

	var periods []domain.Period
	for rows.Next() {
		p := domain.Period{Account: key}
		if err := rows.Scan(&p.Number, &p.OpeningBalance, &p.AfterSeq, &p.StruckAt); err != nil {
			return nil, storageError("periods", err)
		}

		p.StruckAt = p.StruckAt.UTC()
		periods = append(periods, p)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("periods", err)
	}

	return periods, nil
}

// LatestPeriod returns the account's highest period number.
func (s *Store) LatestPeriod(ctx context.Context, key domain.AccountKey) (int64, error) {
	var n int64

	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(number), 0) FROM periods WHERE base = $1 AND equipment_type = $2`,
		key.Base, key.EquipmentType,
	).Scan(&n)
	if err != nil {
		return 0, storageError("latest_period", err)
	}

	return n, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) query(ctx context.Context, q querier, sql string, args ...any) ([]domain.Transaction, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.Transaction
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		rec        domain.Transaction
		kind, leg  string
		requestID  *string
		occurredAt *time.Time
	)

	err := row.Scan(
		&rec.Seq,
		&kind,
		&rec.Account.Base,
		&rec.Account.EquipmentType,
		&leg,
		&rec.Counterparty.Base,
		&rec.Counterparty.EquipmentType,
		&rec.TransferID,
		&requestID,
		&rec.Quantity,
		&rec.Notes,
		&rec.Personnel,
		&occurredAt,
		&rec.RecordedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}

	rec.Kind = domain.Kind(kind)
	rec.Leg = domain.Leg(leg)
	rec.RecordedAt = rec.RecordedAt.UTC()

	if requestID != nil {
		rec.RequestID = *requestID
	}

	if occurredAt != nil {
		rec.OccurredAt = occurredAt.UTC()
	}

	return rec, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	t = t.UTC()

	return &t
}

// Package sqlite implements the transaction log and period store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/iho/stockledger/internal/domain"
	"github.com/iho/stockledger/internal/usecase"
)

// Store is a SQLite-backed usecase.Store.
type Store struct {
	db    *sql.DB
	batch int
}

var _ usecase.Store = (*Store)(nil)

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, batch: usecase.DefaultScanBatch}
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectColumns = `
SELECT seq, kind, base, equipment_type, leg, counterparty_base, counterparty_equipment_type,
       transfer_id, request_id, quantity, notes, personnel, occurred_at, recorded_at
FROM transactions`

// Append inserts recs in one transaction. A unique violation on
// (request_id, leg) means the request was already committed; the stored
// records are returned.
func (s *Store) Append(ctx context.Context, recs []domain.Transaction) ([]domain.Transaction, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("append leg %d: %w", i, err)
		}
	}

	out, err := s.insert(ctx, recs)
	if err == nil {
		return out, nil
	}

	if !isUniqueViolation(err) || recs[0].RequestID == "" {
		return nil, storageError("append", err)
	}

	existing, err := s.byRequest(ctx, recs[0].RequestID)
	if err != nil {
		return nil, storageError("append", err)
	}

	if len(existing) != len(recs) {
		return nil, domain.NewStorageError("append", false,
			fmt.Errorf("request %s committed %d records, got %d", recs[0].RequestID, len(existing), len(recs)))
	}

	return existing, nil
}

func (s *Store) insert(ctx context.Context, recs []domain.Transaction) ([]domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	out := make([]domain.Transaction, 0, len(recs))

	for _, rec := range recs {
		res, err := tx.ExecContext(ctx, `
INSERT INTO transactions (
	kind, base, equipment_type, leg, counterparty_base, counterparty_equipment_type,
	transfer_id, request_id, quantity, notes, personnel, occurred_at, recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
			rec.RecordedAt.UTC().UnixMilli(),
		)
		if err != nil {
			return nil, err
		}

		seq, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}

		rec.Seq = seq
		out = append(out, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return out, nil
}

func (s *Store) byRequest(ctx context.Context, requestID string) ([]domain.Transaction, error) {
	return s.query(ctx, selectColumns+` WHERE request_id = ? ORDER BY seq`, requestID)
}

// ByRequest returns the records committed under requestID.
func (s *Store) ByRequest(ctx context.Context, requestID string) ([]domain.Transaction, error) {
	if requestID == "" {
		return nil, nil
	}

	recs, err := s.byRequest(ctx, requestID)

	return recs, storageError("by_request", err)
}

// ReadByAccount yields the account's records after sinceSeq.
func (s *Store) ReadByAccount(ctx context.Context, key domain.AccountKey, sinceSeq int64) iter.Seq2[domain.Transaction, error] {
	return usecase.ScanPages(ctx, sinceSeq, s.batch, func(ctx context.Context, afterSeq int64, limit int) ([]domain.Transaction, error) {
		recs, err := s.query(ctx, selectColumns+`
WHERE base = ? AND equipment_type = ? AND seq > ?
ORDER BY seq
LIMIT ?`, key.Base, key.EquipmentType, afterSeq, limit)

		return recs, storageError("read_by_account", err)
	})
}

// ReadAll yields every record after sinceSeq.
func (s *Store) ReadAll(ctx context.Context, sinceSeq int64) iter.Seq2[domain.Transaction, error] {
	return usecase.ScanPages(ctx, sinceSeq, s.batch, func(ctx context.Context, afterSeq int64, limit int) ([]domain.Transaction, error) {
		recs, err := s.query(ctx, selectColumns+` WHERE seq > ? ORDER BY seq LIMIT ?`, afterSeq, limit)

		return recs, storageError("read_all", err)
	})
}

// History returns one page of matching records, newest first.
func (s *Store) History(ctx context.Context, filter usecase.HistoryFilter) ([]domain.Transaction, error) {
	var (
		where []string
		args  []any
	)

	if filter.Account != nil {
		where = append(where, "base = ? AND equipment_type = ?")
		args = append(args, filter.Account.Base, filter.Account.EquipmentType)
	}

	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}

	if filter.BeforeSeq > 0 {
		where = append(where, "seq < ?")
		args = append(args, filter.BeforeSeq)
	}

	q := selectColumns
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}

	q += " ORDER BY seq DESC"

	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	recs, err := s.query(ctx, q, args...)

	return recs, storageError("history", err)
}

// LastSeq returns the account's highest sequence id.
func (s *Store) LastSeq(ctx context.Context, key domain.AccountKey) (int64, error) {
	var seq int64

	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM transactions WHERE base = ? AND equipment_type = ?`,
		key.Base, key.EquipmentType,
	).Scan(&seq)
	if err != nil {
		return 0, storageError("last_seq", err)
	}

	return seq, nil
}

// Accounts returns every account key with history, sorted.
func (s *Store) Accounts(ctx context.Context) ([]domain.AccountKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT base, equipment_type FROM transactions ORDER BY base, equipment_type`)
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

	// SQLite compares TEXT bytewise, which matches AccountKey.Less.
	return keys, nil
}

// AppendPeriod records a period boundary.
func (s *Store) AppendPeriod(ctx context.Context, period domain.Period) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO periods (base, equipment_type, number, opening_balance, after_seq, struck_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		period.Account.Base,
		period.Account.EquipmentType,
		period.Number,
		period.OpeningBalance,
		period.AfterSeq,
		period.StruckAt.UTC().UnixMilli(),
	)
	if err != nil {
		return storageError("append_period", err)
	}

	return nil
}

// Periods returns the account's periods in ascending order.
func (s *Store) Periods(ctx context.Context, key domain.AccountKey) ([]domain.Period, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT number, opening_balance, after_seq, struck_at
FROM periods
WHERE base = ? AND equipment_type = ?
ORDER BY number`, key.Base, key.EquipmentType)
	if err != nil {
		return nil, storageError("periods", err)
	}
	defer rows.Close()

	var periods []domain.Period
	for rows.Next() {
		p := domain.Period{Account: key}

		var struckAt int64
		if err := rows.Scan(&p.Number, &p.OpeningBalance, &p.AfterSeq, &struckAt); err != nil {
			return nil, storageError("periods", err)
		}

		p.StruckAt = time.UnixMilli(struckAt).UTC()
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

	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) FROM periods WHERE base = ? AND equipment_type = ?`,
		key.Base, key.EquipmentType,
	).Scan(&n)
	if err != nil {
		return 0, storageError("latest_period", err)
	}

	return n, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
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

func scanTransaction(rows *sql.Rows) (domain.Transaction, error) {
	var (
		rec        domain.Transaction
		kind, leg  string
		requestID  sql.NullString
		occurredAt sql.NullInt64
		recordedAt int64
	)

	err := rows.Scan(
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
		&recordedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}

	rec.Kind = domain.Kind(kind)
	rec.Leg = domain.Leg(leg)
	rec.RequestID = requestID.String
	rec.RecordedAt = time.UnixMilli(recordedAt).UTC()

	if occurredAt.Valid {
		rec.OccurredAt = time.UnixMilli(occurredAt.Int64).UTC()
	}

	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: t.UTC().UnixMilli(), Valid: true}
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LoadCursor returns the last published sequence id for name, 0 if none.
func (s *Store) LoadCursor(ctx context.Context, name string) (int64, error) {
	var seq int64

	err := s.db.QueryRowContext(ctx, `SELECT seq FROM publisher_cursors WHERE name = ?`, name).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, storageError("load_cursor", err)
	}

	return seq, nil
}

// SaveCursor stores the last published sequence id for name.
func (s *Store) SaveCursor(ctx context.Context, name string, seq int64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO publisher_cursors (name, seq, updated_at) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET seq = excluded.seq, updated_at = excluded.updated_at`,
		name, seq, time.Now().UTC().UnixMilli(),
	)

	return storageError("save_cursor", err)
}

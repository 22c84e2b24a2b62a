package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// LoadCursor returns the last published sequence id for name, 0 if none.
func (s *Store) LoadCursor(ctx context.Context, name string) (int64, error) {
	var seq int64

	err := s.pool.QueryRow(ctx, `SELECT seq FROM publisher_cursors WHERE name = $1`, name).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, storageError("load_cursor", err)
	}

	return seq, nil
}

// SaveCursor stores the last published sequence id for name.
func (s *Store) SaveCursor(ctx context.Context, name string, seq int64) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO publisher_cursors (name, seq, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (name) DO UPDATE SET seq = EXCLUDED.seq, updated_at = EXCLUDED.updated_at`,
		name, seq,
	)

	return storageError("save_cursor", err)
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetCursor returns the last fully applied history checkpoint. ok is false
// when no sync has ever completed.
func (s *DB) GetCursor(ctx context.Context) (uint64, bool, error) {
	var cursor uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT history_id FROM sync_cursor WHERE id = 1`,
	).Scan(&cursor)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get sync cursor: %w", err)
	}
	return cursor, true, nil
}

// SetCursor advances the checkpoint. The stored value is monotonically
// non-decreasing: writing a smaller checkpoint keeps the current one.
func (s *DB) SetCursor(ctx context.Context, cursor uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_cursor (id, history_id, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			history_id = MAX(history_id, excluded.history_id),
			updated_at = excluded.updated_at`,
		cursor,
	)
	if err != nil {
		return fmt.Errorf("failed to set sync cursor to %d: %w", cursor, err)
	}
	return nil
}

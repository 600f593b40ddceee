package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kusius/letterbox/internal/store"
)

// upsertQuery keeps an already hydrated body when a summary-only record for
// the same id comes in later (e.g. a listing refresh after a full fetch).
const upsertQuery = `
	INSERT INTO mails (id, title, sender, sender_email, summary,
		received_at_unix_millis, is_read, raw)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title                   = excluded.title,
		sender                  = excluded.sender,
		sender_email            = excluded.sender_email,
		summary                 = excluded.summary,
		received_at_unix_millis = excluded.received_at_unix_millis,
		is_read                 = excluded.is_read,
		raw                     = COALESCE(excluded.raw, raw)`

// UpsertMail inserts or updates a single mail record.
func (s *DB) UpsertMail(ctx context.Context, rec *store.MailRecord) error {
	_, err := s.db.ExecContext(ctx, upsertQuery,
		rec.ID, rec.Title, rec.Sender, rec.SenderEmail, rec.Summary,
		rec.ReceivedAtUnixMillis, rec.IsRead, rec.Raw,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mail %s: %w", rec.ID, err)
	}
	s.notify()
	return nil
}

// UpsertMails inserts or updates a batch of records in a single transaction.
func (s *DB) UpsertMails(ctx context.Context, recs []store.MailRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range recs {
		if err := upsertTx(ctx, tx, &recs[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mail batch: %w", err)
	}
	s.notify()
	return nil
}

func upsertTx(ctx context.Context, tx *sql.Tx, rec *store.MailRecord) error {
	_, err := tx.ExecContext(ctx, upsertQuery,
		rec.ID, rec.Title, rec.Sender, rec.SenderEmail, rec.Summary,
		rec.ReceivedAtUnixMillis, rec.IsRead, rec.Raw,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mail %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `id, title, sender, sender_email, summary,
	received_at_unix_millis, is_read, raw`

// GetMail retrieves a single record by id. Returns store.ErrNotFound when
// the record does not exist.
func (s *DB) GetMail(ctx context.Context, id string) (*store.MailRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM mails WHERE id = ?`, id)

	rec, err := scanMail(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mail %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mail %s: %w", id, err)
	}
	return rec, nil
}

// ListMails returns all records ordered newest first.
func (s *DB) ListMails(ctx context.Context) ([]store.MailRecord, error) {
	return s.list(ctx,
		`SELECT `+selectColumns+` FROM mails ORDER BY received_at_unix_millis DESC`)
}

// ListUnread returns all unread records ordered newest first.
func (s *DB) ListUnread(ctx context.Context) ([]store.MailRecord, error) {
	return s.list(ctx,
		`SELECT `+selectColumns+` FROM mails WHERE is_read = FALSE ORDER BY received_at_unix_millis DESC`)
}

func (s *DB) list(ctx context.Context, query string) ([]store.MailRecord, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list mails: %w", err)
	}
	defer rows.Close()

	var recs []store.MailRecord
	for rows.Next() {
		rec, err := scanMail(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mail row: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mails: %w", err)
	}
	return recs, nil
}

func scanMail(scan func(dest ...any) error) (*store.MailRecord, error) {
	var rec store.MailRecord
	var summary sql.NullString
	if err := scan(
		&rec.ID, &rec.Title, &rec.Sender, &rec.SenderEmail, &summary,
		&rec.ReceivedAtUnixMillis, &rec.IsRead, &rec.Raw,
	); err != nil {
		return nil, err
	}
	rec.Summary = summary.String
	return &rec, nil
}

// DeleteMail removes a record by id.
func (s *DB) DeleteMail(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM mails WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mail %s: %w", id, err)
	}
	s.notify()
	return nil
}

// Apply commits a mutation batch in a single transaction, so observers never
// see a partially applied batch.
func (s *DB) Apply(ctx context.Context, batch []store.Mutation) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range batch {
		switch m.Kind {
		case store.MutationAdded:
			for i := range m.Mails {
				if err := upsertTx(ctx, tx, &m.Mails[i]); err != nil {
					return err
				}
			}

		case store.MutationDeleted:
			for _, id := range m.IDs {
				if _, err := tx.ExecContext(ctx, `DELETE FROM mails WHERE id = ?`, id); err != nil {
					return fmt.Errorf("failed to delete mail %s: %w", id, err)
				}
			}

		case store.MutationToggleRead:
			res, err := tx.ExecContext(ctx,
				`UPDATE mails SET is_read = NOT is_read WHERE id = ?`, m.MailID)
			if err != nil {
				return fmt.Errorf("failed to toggle read on mail %s: %w", m.MailID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to check toggle result for mail %s: %w", m.MailID, err)
			}
			if n == 0 {
				return fmt.Errorf("mail %s: %w", m.MailID, store.ErrNotFound)
			}

		case store.MutationDelete:
			if _, err := tx.ExecContext(ctx, `DELETE FROM mails WHERE id = ?`, m.MailID); err != nil {
				return fmt.Errorf("failed to delete mail %s: %w", m.MailID, err)
			}

		default:
			return fmt.Errorf("unknown mutation kind %d", m.Kind)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mutation batch: %w", err)
	}
	s.notify()
	return nil
}

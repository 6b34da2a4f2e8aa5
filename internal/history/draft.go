package history

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const draftSlot = "current"

// Draft returns the saved draft. A missing draft is the zero Draft.
func (s *Store) Draft(ctx context.Context) (Draft, error) {
	var (
		d         Draft
		directory sql.NullString
		updated   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT text, directory, updated_at FROM drafts WHERE slot = ?`, draftSlot).
		Scan(&d.Text, &directory, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, nil
	}
	if err != nil {
		return Draft{}, err
	}
	d.Directory = directory.String
	d.UpdatedAt = time.UnixMilli(updated)
	return d, nil
}

// SaveDraftText stores the draft text, keeping the saved directory.
func (s *Store) SaveDraftText(ctx context.Context, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (slot, text, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at`,
		draftSlot, text, time.Now().UnixMilli())
	return err
}

// ClearDraftText empties the draft text after a paste.
func (s *Store) ClearDraftText(ctx context.Context) error {
	return s.SaveDraftText(ctx, "")
}

// SavedDirectory returns the directory of the last detection, or "".
func (s *Store) SavedDirectory(ctx context.Context) (string, error) {
	d, err := s.Draft(ctx)
	if err != nil {
		return "", err
	}
	return d.Directory, nil
}

// SetSavedDirectory records the most recently detected directory.
func (s *Store) SetSavedDirectory(ctx context.Context, directory string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (slot, directory, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET directory = excluded.directory, updated_at = excluded.updated_at`,
		draftSlot, directory, time.Now().UnixMilli())
	return err
}

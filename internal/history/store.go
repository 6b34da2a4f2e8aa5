// Package history stores pasted inputs and the in-progress draft.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an item does not exist.
var ErrNotFound = errors.New("history item not found")

// Item is one pasted input.
type Item struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AppName   string    `json:"appName,omitempty"`
	Directory string    `json:"directory,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Draft is the in-progress input and the directory it was written against.
type Draft struct {
	Text      string    `json:"text"`
	Directory string    `json:"directory,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a SQLite-backed history and draft store.
type Store struct {
	db       *sql.DB
	maxItems int

	mu      sync.Mutex
	entropy *rand.Rand
}

// DefaultMaxItems bounds the history table.
const DefaultMaxItems = 1000

// Open opens or creates the database at path.
func Open(path string, maxItems int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	s := &Store{
		db:       db,
		maxItems: maxItems,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) newID(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id         TEXT PRIMARY KEY,
		text       TEXT NOT NULL,
		app_name   TEXT,
		directory  TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_created ON history(created_at DESC);

	CREATE TABLE IF NOT EXISTS drafts (
		slot       TEXT PRIMARY KEY,
		text       TEXT NOT NULL DEFAULT '',
		directory  TEXT,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Add records a pasted input. Pasting the same text as the most recent item
// refreshes that item instead of adding a duplicate.
func (s *Store) Add(ctx context.Context, text, appName, directory string) (*Item, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("history text is empty")
	}
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var lastID, lastText string
	err = tx.QueryRowContext(ctx, `SELECT id, text FROM history ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&lastID, &lastText)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read last item: %w", err)
	}

	item := &Item{Text: text, AppName: appName, Directory: directory, Timestamp: now}
	if lastText == text {
		item.ID = lastID
		_, err = tx.ExecContext(ctx,
			`UPDATE history SET created_at = ?, app_name = ?, directory = ? WHERE id = ?`,
			now.UnixMilli(), appName, directory, lastID)
	} else {
		item.ID = s.newID(now)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO history (id, text, app_name, directory, created_at) VALUES (?, ?, ?, ?, ?)`,
			item.ID, text, appName, directory, now.UnixMilli())
	}
	if err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}

	// Trim to the newest maxItems
	_, err = tx.ExecContext(ctx,
		`DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY created_at DESC, id DESC LIMIT ?)`,
		s.maxItems)
	if err != nil {
		return nil, fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return item, nil
}

// Recent returns the newest items first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx,
		`SELECT id, text, app_name, directory, created_at FROM history ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit)
}

// Search returns items containing query, case-insensitively, newest first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.Recent(ctx, limit)
	}
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	return s.query(ctx,
		`SELECT id, text, app_name, directory, created_at FROM history
		 WHERE lower(text) LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		pattern, limit)
}

// Get returns one item.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	items, err := s.query(ctx,
		`SELECT id, text, app_name, directory, created_at FROM history WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

// Remove deletes one item.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear deletes all history items. The draft is kept.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	return err
}

// Count returns the number of stored items.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n)
	return n, err
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			item      Item
			appName   sql.NullString
			directory sql.NullString
			created   int64
		)
		if err := rows.Scan(&item.ID, &item.Text, &appName, &directory, &created); err != nil {
			return nil, err
		}
		item.AppName = appName.String
		item.Directory = directory.String
		item.Timestamp = time.UnixMilli(created)
		items = append(items, item)
	}
	return items, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

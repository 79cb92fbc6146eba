package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hazyhaar/pagewatch/dbopen"
)

// Schema is the DDL for the snapshots table.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    page_id     TEXT PRIMARY KEY,
    content     TEXT NOT NULL,
    observed_at INTEGER NOT NULL,
    changed_at  INTEGER NOT NULL
);
`

// SQLite is a Store persisted in an SQLite database.
type SQLite struct {
	DB *sql.DB

	// mu serialises Observe across pages. Contention is low: each page has
	// a single watcher and polls are seconds apart.
	mu  sync.Mutex
	now func() time.Time
}

// OpenSQLite opens (or creates) the snapshot database at path. The caller
// must blank-import modernc.org/sqlite.
func OpenSQLite(path string, opts ...dbopen.Option) (*SQLite, error) {
	all := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return NewSQLite(db), nil
}

// NewSQLite wraps an already opened database. The schema must be applied.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db, now: time.Now}
}

func (s *SQLite) Observe(ctx context.Context, pageID, content string) (*Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ch *Change
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		ch = nil
		now := s.now().UnixMilli()

		var prev string
		err := tx.QueryRowContext(ctx,
			`SELECT content FROM snapshots WHERE page_id = ?`, pageID).Scan(&prev)
		existed := true
		if errors.Is(err, sql.ErrNoRows) {
			existed = false
		} else if err != nil {
			return err
		}

		var write bool
		ch, write = decide(pageID, prev, existed, content)
		switch {
		case !existed:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO snapshots (page_id, content, observed_at, changed_at) VALUES (?, ?, ?, ?)`,
				pageID, content, now, now)
		case write:
			_, err = tx.ExecContext(ctx,
				`UPDATE snapshots SET content = ?, observed_at = ?, changed_at = ? WHERE page_id = ?`,
				content, now, now, pageID)
		default:
			_, err = tx.ExecContext(ctx,
				`UPDATE snapshots SET observed_at = ? WHERE page_id = ?`, now, pageID)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: observe %s: %w", pageID, err)
	}
	return ch, nil
}

func (s *SQLite) Get(ctx context.Context, pageID string) (string, bool, error) {
	var content string
	err := s.DB.QueryRowContext(ctx,
		`SELECT content FROM snapshots WHERE page_id = ?`, pageID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("snapshot: get %s: %w", pageID, err)
	}
	return content, true, nil
}

// Entry is a stored snapshot with its timestamps.
type Entry struct {
	PageID     string
	Content    string
	ObservedAt time.Time
	ChangedAt  time.Time
}

// List returns every stored snapshot ordered by page ID.
func (s *SQLite) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT page_id, content, observed_at, changed_at FROM snapshots ORDER BY page_id`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var obs, chg int64
		if err := rows.Scan(&e.PageID, &e.Content, &obs, &chg); err != nil {
			return nil, fmt.Errorf("snapshot: list: %w", err)
		}
		e.ObservedAt = time.UnixMilli(obs)
		e.ChangedAt = time.UnixMilli(chg)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := dbopen.Exec(ctx, s.DB, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("snapshot: clear: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.DB.Close()
}

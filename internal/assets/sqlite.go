package assets

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL,
	format     TEXT NOT NULL,
	scale      REAL NOT NULL,
	width      INTEGER NOT NULL,
	height     INTEGER NOT NULL,
	file_size  INTEGER NOT NULL,
	file_url   TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assets_created ON assets(created_at);
`

// SQLiteStore persists assets in a SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	newID func() string
	now   func() time.Time
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string, newID func() string, now func() time.Time) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if now == nil {
		now = time.Now
	}
	return &SQLiteStore{db: db, path: path, newID: newID, now: now}, nil
}

// createdLayout is fixed width so created_at sorts chronologically as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Create(ctx context.Context, a Asset) (Asset, error) {
	if err := a.Validate(); err != nil {
		return Asset{}, err
	}
	a.ID = s.newID()
	a.CreatedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, session_id, name, format, scale, width, height, file_size, file_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.Name, a.Format, a.Scale, a.Width, a.Height, a.FileSize, a.FileURL,
		a.CreatedAt.Format(createdLayout),
	)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to insert asset: %w", err)
	}
	return a, nil
}

// List returns assets oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, name, format, scale, width, height, file_size, file_url, created_at
		FROM assets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	out := []Asset{}
	for rows.Next() {
		var (
			a       Asset
			created string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Name, &a.Format, &a.Scale, &a.Width, &a.Height,
			&a.FileSize, &a.FileURL, &created); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("invalid created_at for asset %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("asset %s not found", id), nil)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

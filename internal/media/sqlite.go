package media

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS audio_files (
	item_id      TEXT    NOT NULL,
	track_index  INTEGER NOT NULL,
	path         TEXT    NOT NULL,
	display_name TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (item_id, track_index)
);
CREATE TABLE IF NOT EXISTS items (
	item_id TEXT PRIMARY KEY
);
`

// SQLiteLibrary reads item tracks from a SQLite catalog.
type SQLiteLibrary struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the catalog at path.
func OpenSQLite(path string) (*SQLiteLibrary, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure catalog dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteLibrary{db: db, path: path}, nil
}

// AudioSources returns the item's tracks by track_index. An item present in
// items but without tracks yields an empty list; an unknown item is
// ErrItemNotFound.
func (l *SQLiteLibrary) AudioSources(ctx context.Context, itemID string) ([]AudioSource, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT path, display_name FROM audio_files
		WHERE item_id = ?
		ORDER BY track_index
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query audio files: %w", err)
	}
	defer rows.Close()

	var sources []AudioSource
	for rows.Next() {
		var s AudioSource
		if err := rows.Scan(&s.Path, &s.DisplayName); err != nil {
			return nil, err
		}
		if s.DisplayName == "" {
			s.DisplayName = DisplayName(s.Path)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		return sources, nil
	}

	var found int
	err = l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE item_id = ?`, itemID).Scan(&found)
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	if found == 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return nil, nil
}

// AddItem registers an item and replaces its tracks.
func (l *SQLiteLibrary) AddItem(ctx context.Context, itemID string, sources []AudioSource) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO items (item_id) VALUES (?)`, itemID); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM audio_files WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("clear tracks: %w", err)
	}
	for i, s := range sources {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO audio_files (item_id, track_index, path, display_name)
			VALUES (?, ?, ?, ?)
		`, itemID, i, s.Path, s.DisplayName); err != nil {
			return fmt.Errorf("insert track %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (l *SQLiteLibrary) Path() string { return l.path }

// HealthCheck pings the database file.
func (l *SQLiteLibrary) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return l.db.PingContext(ctx)
}

func (l *SQLiteLibrary) Close() error { return l.db.Close() }

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"housing-notifier/models"
)

// SQLiteStore is the default DedupStore backend, persisting admitted
// listings to a local database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path, runs schema
// migrations, and returns a ready-to-use store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// Admission is check-then-insert; a single writer keeps it race-free.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id      TEXT    NOT NULL UNIQUE,
			repost_of    TEXT    NOT NULL DEFAULT '',
			title        TEXT    NOT NULL DEFAULT '',
			url          TEXT    NOT NULL UNIQUE,
			posted_at    TIMESTAMP NOT NULL,
			price        INTEGER NOT NULL DEFAULT 0,
			neighborhood TEXT    NOT NULL DEFAULT '',
			address      TEXT    NOT NULL DEFAULT '',
			housing_type TEXT    NOT NULL DEFAULT '',
			laundry      TEXT    NOT NULL DEFAULT '',
			parking      TEXT    NOT NULL DEFAULT '',
			bedrooms     INTEGER NOT NULL DEFAULT 0,
			area_sqft    INTEGER NOT NULL DEFAULT 0,
			first_seen   TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_posts_posted_at ON posts(posted_at);
	`)
	return err
}

// Admit inserts each listing whose post_id is not yet present and returns
// the newly admitted ones in input order. ON CONFLICT DO NOTHING makes the
// check-then-insert atomic per listing; rows-affected tells us who won.
func (s *SQLiteStore) Admit(ctx context.Context, listings []*models.Listing) ([]*models.Listing, error) {
	admitted := make([]*models.Listing, 0, len(listings))

	for _, l := range listings {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO posts (
				post_id, repost_of, title, url, posted_at, price,
				neighborhood, address, housing_type, laundry, parking,
				bedrooms, area_sqft, first_seen
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING`,
			l.ID, l.RepostOf, l.Title, l.URL, l.PostedAt, l.Price,
			l.Neighborhood, l.Address, l.HousingType, l.Laundry, l.Parking,
			l.Bedrooms, l.AreaSqFt, time.Now().UTC(),
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: admit %s: %w", l.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("sqlite: rows affected: %w", err)
		}
		if n > 0 {
			admitted = append(admitted, l)
		}
	}

	return admitted, nil
}

// Reset clears all admitted records.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return fmt.Errorf("sqlite: reset: %w", err)
	}
	return nil
}

// Count returns the number of admitted records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"housing-notifier/models"
)

// PostgresStore is the shared-server DedupStore backend.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id           SERIAL PRIMARY KEY,
			post_id      TEXT        NOT NULL UNIQUE,
			repost_of    TEXT        NOT NULL DEFAULT '',
			title        TEXT        NOT NULL DEFAULT '',
			url          TEXT        NOT NULL UNIQUE,
			posted_at    TIMESTAMPTZ NOT NULL,
			price        BIGINT      NOT NULL DEFAULT 0,
			neighborhood TEXT        NOT NULL DEFAULT '',
			address      TEXT        NOT NULL DEFAULT '',
			housing_type TEXT        NOT NULL DEFAULT '',
			laundry      TEXT        NOT NULL DEFAULT '',
			parking      TEXT        NOT NULL DEFAULT '',
			bedrooms     INT         NOT NULL DEFAULT 0,
			area_sqft    INT         NOT NULL DEFAULT 0,
			first_seen   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_posts_posted_at ON posts(posted_at);
	`)
	return err
}

// Admit inserts each listing whose post_id is not yet present and returns
// the newly admitted ones in input order. The bare ON CONFLICT DO NOTHING
// also swallows url-uniqueness races: the loser is simply not re-admitted.
func (s *PostgresStore) Admit(ctx context.Context, listings []*models.Listing) ([]*models.Listing, error) {
	admitted := make([]*models.Listing, 0, len(listings))

	for _, l := range listings {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO posts (
				post_id, repost_of, title, url, posted_at, price,
				neighborhood, address, housing_type, laundry, parking,
				bedrooms, area_sqft
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT DO NOTHING`,
			l.ID, l.RepostOf, l.Title, l.URL, l.PostedAt, l.Price,
			l.Neighborhood, l.Address, l.HousingType, l.Laundry, l.Parking,
			l.Bedrooms, l.AreaSqFt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: admit %s: %w", l.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("postgres: rows affected: %w", err)
		}
		if n > 0 {
			admitted = append(admitted, l)
		}
	}

	return admitted, nil
}

// Reset clears all admitted records.
func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return fmt.Errorf("postgres: reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

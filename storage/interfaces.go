package storage

import (
	"context"

	"housing-notifier/models"
)

// DedupStore is the persistent record of listing identities already admitted.
// Admit is the only gate through which listings reach the notification
// channel: each id passes at most once for the lifetime of the store.
type DedupStore interface {
	// Admit persists every listing not yet present and returns the newly
	// admitted ones, preserving input order. Already-seen ids are silently
	// excluded. Check-then-insert is atomic per listing, so concurrent
	// callers racing on the same id never both succeed.
	Admit(ctx context.Context, listings []*models.Listing) ([]*models.Listing, error)

	// Reset clears all records. Called exactly once, at subscription start,
	// before anything has been surfaced to a user.
	Reset(ctx context.Context) error

	Close() error
}

// RawArchiver is the interface for persisting unprocessed upstream batches.
type RawArchiver interface {
	Archive(user string, listings []*models.RawListing) error
	Close() error
}

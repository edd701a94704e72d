package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"housing-notifier/models"
)

// CSVWriter archives raw (unnormalized) batches to an append-only CSV file,
// kept for debugging malformed upstream records. Safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter opens (or creates) the CSV file at the given path in append
// mode, writing the header row only when the file is new. Intermediate
// directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if fresh {
		if err := w.Write([]string{
			"user", "post_id", "repost_of", "title", "url",
			"date_updated", "time_updated", "price", "neighborhood", "address",
			"housing_type", "laundry", "parking", "bedrooms", "area_ft2", "fetched_at",
		}); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &CSVWriter{file: f, writer: w}, nil
}

// Archive appends one user's raw batch to the CSV file.
func (c *CSVWriter) Archive(user string, listings []*models.RawListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		row := []string{
			user,
			l.PostID,
			l.RepostOf,
			l.Title,
			l.URL,
			l.DateUpdated,
			l.TimeUpdated,
			l.Price,
			l.Neighborhood,
			l.Address,
			l.HousingType,
			l.Laundry,
			l.Parking,
			l.Bedrooms,
			l.AreaFt2,
			l.FetchedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

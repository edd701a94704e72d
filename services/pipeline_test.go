package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"housing-notifier/models"
	"housing-notifier/storage"
)

func mkListing(id, repostOf string, postedAt time.Time) *models.Listing {
	return &models.Listing{
		ID:       id,
		RepostOf: repostOf,
		URL:      "https://sfbay.craigslist.org/apa/" + id + ".html",
		PostedAt: postedAt,
		Price:    1000,
	}
}

func TestCollapseReposts(t *testing.T) {
	now := time.Now()
	in := []*models.Listing{
		mkListing("1", "", now),
		mkListing("2", "X", now),
		mkListing("3", "X", now),
	}

	out := CollapseReposts(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(out))
	}
	if out[0].ID != "1" {
		t.Errorf("original should survive, got %s", out[0].ID)
	}
	if out[1].ID != "2" {
		t.Errorf("first repost per origin should survive, got %s", out[1].ID)
	}
}

func TestCollapseRepostsKeepsDistinctOrigins(t *testing.T) {
	now := time.Now()
	in := []*models.Listing{
		mkListing("1", "X", now),
		mkListing("2", "Y", now),
		mkListing("3", "X", now),
		mkListing("4", "", now),
	}

	out := CollapseReposts(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(out))
	}
}

func TestFilterRecentStrictCutoff(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	window := 7 * 24 * time.Hour

	in := []*models.Listing{
		mkListing("fresh", "", now.Add(-time.Hour)),
		mkListing("boundary", "", now.Add(-window)), // exactly now-window: excluded
		mkListing("stale", "", now.Add(-window-time.Minute)),
	}

	out := FilterRecent(in, now, window)
	if len(out) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(out))
	}
	if out[0].ID != "fresh" {
		t.Errorf("expected fresh to survive, got %s", out[0].ID)
	}
}

func TestSortNewestFirst(t *testing.T) {
	in := []*models.Listing{
		mkListing("morning", "", time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)),
		mkListing("evening", "", time.Date(2024, 1, 2, 17, 0, 0, 0, time.UTC)),
		mkListing("lastnight", "", time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)),
	}

	SortNewestFirst(in)

	want := []string{"evening", "morning", "lastnight"}
	for i, w := range want {
		if in[i].ID != w {
			t.Errorf("position %d: got %s, want %s", i, in[i].ID, w)
		}
	}
}

// passthroughChecker skips network verification in stage-level tests.
type passthroughChecker struct{}

func (passthroughChecker) FilterLive(_ context.Context, listings []*models.Listing) []*models.Listing {
	return listings
}

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "posts.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPipelineEmptyBatchShortCircuits(t *testing.T) {
	store := newTestStore(t)
	p := NewPipeline(passthroughChecker{}, store, 7*24*time.Hour, newTestLogger())

	out, err := p.Run(context.Background(), nil, time.Now())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty output, got %d", len(out))
	}

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("store should be untouched, holds %d records", n)
	}
}

func TestPipelineSkipsMalformedAndContinues(t *testing.T) {
	store := newTestStore(t)
	p := NewPipeline(passthroughChecker{}, store, 7*24*time.Hour, newTestLogger())

	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	raw := []*models.RawListing{
		{PostID: "1", URL: "", DateUpdated: "2024-01-04", Price: "$900"}, // malformed
		{PostID: "2", URL: "https://x/2.html", DateUpdated: "2024-01-04", TimeUpdated: "10:00", Price: "$1,200"},
	}

	out, err := p.Run(context.Background(), raw, now)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(out) != 1 || out[0].ID != "2" {
		t.Fatalf("expected only listing 2 admitted, got %d", len(out))
	}
}

func TestPipelineIdempotentAcrossRuns(t *testing.T) {
	store := newTestStore(t)
	p := NewPipeline(passthroughChecker{}, store, 7*24*time.Hour, newTestLogger())

	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	raw := []*models.RawListing{
		{PostID: "1", URL: "https://x/1.html", DateUpdated: "2024-01-04", Price: "$900"},
	}

	first, err := p.Run(context.Background(), raw, now)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first run should admit 1, got %d", len(first))
	}

	second, err := p.Run(context.Background(), raw, now)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second run should admit 0, got %d", len(second))
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dead.html" {
			fmt.Fprint(w, "This posting has been deleted by its author.")
			return
		}
		fmt.Fprint(w, "<html><body>Spacious flat</body></html>")
	}))
	defer srv.Close()

	store := newTestStore(t)
	verifier := NewVerifier(testMarkers, 4, 2*time.Second, newTestLogger())
	p := NewPipeline(verifier, store, 7*24*time.Hour, newTestLogger())

	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	raw := []*models.RawListing{
		{PostID: "1", URL: "", DateUpdated: "2024-01-04", Price: "$900"}, // malformed: no url
		{PostID: "2", URL: srv.URL + "/dead.html", DateUpdated: "2024-01-04", Price: "$1,100"},
		{PostID: "3", URL: srv.URL + "/live.html", DateUpdated: "2024-01-04", TimeUpdated: "08:30", Price: "$1,500"},
	}

	out, err := p.Run(context.Background(), raw, now)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected exactly 1 admitted listing, got %d", len(out))
	}
	if out[0].ID != "3" {
		t.Errorf("expected listing 3, got %s", out[0].ID)
	}

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("store should hold exactly 1 record, holds %d", n)
	}
}

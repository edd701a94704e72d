package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"housing-notifier/models"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "posts.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testListing(id string) *models.Listing {
	return &models.Listing{
		ID:       id,
		Title:    "listing " + id,
		URL:      "https://sfbay.craigslist.org/apa/" + id + ".html",
		PostedAt: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
		Price:    1500,
	}
}

func TestAdmitIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	batch := []*models.Listing{testListing("1"), testListing("2")}

	first, err := store.Admit(ctx, batch)
	if err != nil {
		t.Fatalf("first Admit: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first Admit: got %d, want 2", len(first))
	}

	second, err := store.Admit(ctx, batch)
	if err != nil {
		t.Fatalf("second Admit: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second Admit: got %d, want 0", len(second))
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
}

func TestAdmitPreservesBatchOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	batch := []*models.Listing{testListing("c"), testListing("a"), testListing("b")}

	admitted, err := store.Admit(ctx, batch)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	for i, want := range []string{"c", "a", "b"} {
		if admitted[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, admitted[i].ID, want)
		}
	}
}

func TestAdmitExcludesDuplicateURL(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := testListing("1")
	b := testListing("2")
	b.URL = a.URL // distinct id, same detail page

	admitted, err := store.Admit(ctx, []*models.Listing{a, b})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if len(admitted) != 1 || admitted[0].ID != "1" {
		t.Fatalf("expected only listing 1 admitted, got %d", len(admitted))
	}
}

func TestAdmitConcurrentRaceSingleWinner(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	const callers = 8
	results := make([][]*models.Listing, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = store.Admit(ctx, []*models.Listing{testListing("contested")})
		}()
	}
	wg.Wait()

	winners := 0
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		winners += len(results[i])
	}
	if winners != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners)
	}
}

func TestResetReadmits(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Admit(ctx, []*models.Listing{testListing("1")}); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	again, err := store.Admit(ctx, []*models.Listing{testListing("1")})
	if err != nil {
		t.Fatalf("Admit after Reset: %v", err)
	}
	if len(again) != 1 {
		t.Errorf("expected re-admission after reset, got %d", len(again))
	}
}

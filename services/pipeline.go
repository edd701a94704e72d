package services

import (
	"context"
	"sort"
	"time"

	"housing-notifier/models"
	"housing-notifier/storage"
	"housing-notifier/utils"
)

// LivenessChecker confirms listing detail pages still exist upstream.
type LivenessChecker interface {
	FilterLive(ctx context.Context, listings []*models.Listing) []*models.Listing
}

// Pipeline threads one raw batch through normalization, repost collapsing,
// recency filtering, ordering, liveness verification, and dedup admission.
type Pipeline struct {
	normalizer *Normalizer
	checker    LivenessChecker
	store      storage.DedupStore
	window     time.Duration
	logger     *utils.Logger
}

// NewPipeline creates a Pipeline with the given retention window.
func NewPipeline(checker LivenessChecker, store storage.DedupStore, window time.Duration, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		normalizer: NewNormalizer(logger),
		checker:    checker,
		store:      store,
		window:     window,
		logger:     logger,
	}
}

// Run processes one raw batch and returns the listings newly admitted to the
// dedup store, ordered newest-first. Malformed records are logged and
// skipped, never fatal. An empty batch returns immediately without touching
// the verifier or the store.
func (p *Pipeline) Run(ctx context.Context, raw []*models.RawListing, now time.Time) ([]*models.Listing, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	listings := make([]*models.Listing, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		l, err := p.normalizer.Normalize(r)
		if err != nil {
			skipped++
			p.logger.Warn("[pipeline] Skipping record %q: %v", r.PostID, err)
			continue
		}
		listings = append(listings, l)
	}
	if skipped > 0 {
		p.logger.Info("[pipeline] Normalized %d/%d records (%d malformed)",
			len(listings), len(raw), skipped)
	}

	listings = CollapseReposts(listings)
	listings = FilterRecent(listings, now, p.window)
	SortNewestFirst(listings)

	if len(listings) == 0 {
		return nil, nil
	}

	live := p.checker.FilterLive(ctx, listings)
	p.logger.Info("[pipeline] %d/%d listings verified live", len(live), len(listings))

	admitted, err := p.store.Admit(ctx, live)
	if err != nil {
		return nil, err
	}

	p.logger.Info("[pipeline] Admitted %d new listings", len(admitted))
	return admitted, nil
}

// CollapseReposts removes in-batch duplicates caused by reposting. Listings
// with no repost origin pass through untouched; among listings sharing a
// repost origin, only the first occurrence survives. The persistent store is
// deliberately not consulted here.
func CollapseReposts(listings []*models.Listing) []*models.Listing {
	originals := make([]*models.Listing, 0, len(listings))
	var reposts []*models.Listing
	seenOrigin := make(map[string]struct{})

	for _, l := range listings {
		if l.RepostOf == "" {
			originals = append(originals, l)
			continue
		}
		if _, dup := seenOrigin[l.RepostOf]; dup {
			continue
		}
		seenOrigin[l.RepostOf] = struct{}{}
		reposts = append(reposts, l)
	}

	return append(originals, reposts...)
}

// FilterRecent keeps listings posted strictly after now minus the window.
func FilterRecent(listings []*models.Listing, now time.Time, window time.Duration) []*models.Listing {
	cutoff := now.Add(-window)
	recent := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if l.PostedAt.After(cutoff) {
			recent = append(recent, l)
		}
	}
	return recent
}

// SortNewestFirst orders listings descending by posted timestamp, date first
// and then time-of-day. The two keys arrive merged, so a single timestamp
// comparison keeps ordering correct across midnight boundaries.
func SortNewestFirst(listings []*models.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		return listings[i].PostedAt.After(listings[j].PostedAt)
	})
}

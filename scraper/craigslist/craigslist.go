package craigslist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"housing-notifier/config"
	"housing-notifier/models"
	"housing-notifier/utils"
)

// blockedMarker appears on Craigslist's throttling interstitial.
const blockedMarker = "This IP has been automatically blocked"

const maxSearchPages = 3

// Scraper queries Craigslist apartment/housing search for one user filter
// and returns raw, untrusted listing records.
type Scraper struct {
	cfg        *config.Config
	logger     *utils.Logger
	pool       *utils.WorkerPool
	visitedURL *utils.URLSet
	retry      *utils.RetryConfig

	mu       sync.Mutex
	listings []*models.RawListing
}

// New creates a ready-to-use Craigslist Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:        cfg,
		logger:     logger,
		pool:       utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		visitedURL: utils.NewURLSet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// Search runs the user's housing query and returns the raw batch. Returns
// models.ErrRateLimited when Craigslist throttles the session; the caller
// owns backoff policy.
func (s *Scraper) Search(user *models.UserFilter) ([]*models.RawListing, error) {
	s.mu.Lock()
	s.listings = nil
	s.mu.Unlock()
	s.visitedURL = utils.NewURLSet()

	searchURL := s.buildSearchURL(user)
	s.logger.Info("[craigslist] Searching for %s — %s", user.Name, searchURL)

	chromeBin := s.cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancelAlloc()

	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelSilent()
	allocCtx = silentCtx

	currentURL := searchURL
	for page := 1; page <= maxSearchPages; page++ {
		pageListings, nextURL, err := s.scrapePage(allocCtx, currentURL, page)
		if err != nil {
			return nil, err
		}
		if len(pageListings) == 0 {
			break
		}

		s.enrichListings(allocCtx, pageListings)

		s.mu.Lock()
		s.listings = append(s.listings, pageListings...)
		s.mu.Unlock()

		s.logger.Info("[craigslist] Page %d done — %d listings so far", page, len(s.listings))

		if nextURL == "" {
			break
		}
		currentURL = nextURL
		time.Sleep(time.Duration(s.cfg.RateLimitMs) * time.Millisecond)
	}

	s.logger.Info("[craigslist] Search complete — %d raw listings", len(s.listings))
	return s.listings, nil
}

// buildSearchURL assembles the apa search URL from the user's site, area,
// zip, search distance, and extra query filters.
func (s *Scraper) buildSearchURL(user *models.UserFilter) string {
	base := fmt.Sprintf("https://%s.craigslist.org/search", user.Site)
	if user.Area != "" {
		base += "/" + user.Area
	}
	base += "/apa"

	q := url.Values{}
	q.Set("postal", user.ZipCode)
	q.Set("search_distance", fmt.Sprintf("%d", user.SearchDistance))

	keys := make([]string, 0, len(user.Filters))
	for k := range user.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, user.Filters[k])
	}

	return base + "?" + q.Encode()
}

// scrapePage loads one search results page and extracts listing rows.
func (s *Scraper) scrapePage(allocCtx context.Context, pageURL string, pageNum int) ([]*models.RawListing, string, error) {
	var rawListings []*models.RawListing
	var nextURL string

	err := s.retry.Do(fmt.Sprintf("search-page-%d", pageNum), func() error {
		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
		defer cancelTimeout()

		type rowData struct {
			PostID       string `json:"postId"`
			Title        string `json:"title"`
			Price        string `json:"price"`
			Neighborhood string `json:"neighborhood"`
			URL          string `json:"url"`
		}

		var blocked bool
		var rows []rowData
		var nextPageURL string

		err := chromedp.Run(ctx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(3*time.Second),

			chromedp.Evaluate(`document.body.innerText.includes(`+fmt.Sprintf("%q", blockedMarker)+`)`, &blocked),

			chromedp.Evaluate(`
				(function() {
					var results = [];
					var rows = document.querySelectorAll('li.cl-search-result, li.result-row');
					for (var i = 0; i < rows.length; i++) {
						var row = rows[i];
						var link = row.querySelector('a.cl-app-anchor, a.result-title, a[href*=".html"]');
						if (!link || !link.href) continue;

						var priceEl = row.querySelector('.priceinfo, .result-price, .price');
						var hoodEl = row.querySelector('.meta, .result-hood, .supertitle');
						var hood = hoodEl ? hoodEl.innerText.trim() : '';
						hood = hood.replace(/^\(/, '').replace(/\)$/, '');

						results.push({
							postId:       row.getAttribute('data-pid') || '',
							title:        link.innerText.trim(),
							price:        priceEl ? priceEl.innerText.trim() : '',
							neighborhood: hood,
							url:          link.href
						});
					}
					return results;
				})()
			`, &rows),

			chromedp.Evaluate(`
				(function() {
					var next = document.querySelector('a.cl-next-page, a.next, link[rel="next"]');
					if (next && next.href && !next.classList.contains('bd-disabled')) {
						return next.href;
					}
					return '';
				})()
			`, &nextPageURL),
		)
		if err != nil {
			return fmt.Errorf("chromedp page scrape: %w", err)
		}
		if blocked {
			return models.ErrRateLimited
		}

		s.logger.Debug("[craigslist] Page %d — found %d rows", pageNum, len(rows))

		for _, r := range rows {
			if r.URL == "" {
				continue
			}
			if !s.visitedURL.Add(r.URL) {
				s.logger.Debug("[craigslist] Skipping duplicate: %s", r.URL)
				continue
			}

			rawListings = append(rawListings, &models.RawListing{
				PostID:       r.PostID,
				Title:        r.Title,
				Price:        r.Price,
				Neighborhood: r.Neighborhood,
				URL:          r.URL,
				FetchedAt:    time.Now(),
			})
		}

		nextURL = nextPageURL
		return nil
	})

	// Surface rate limiting as the sentinel so the caller can classify it.
	if errors.Is(err, models.ErrRateLimited) {
		return nil, "", fmt.Errorf("page %d: %w", pageNum, models.ErrRateLimited)
	}

	return rawListings, nextURL, err
}

// enrichListings visits each detail page through the worker pool to fill in
// posting timestamps, repost origin, and housing attributes.
func (s *Scraper) enrichListings(allocCtx context.Context, listings []*models.RawListing) {
	for _, listing := range listings {
		l := listing
		if l.URL == "" {
			continue
		}

		s.pool.Submit(func() {
			if err := s.scrapeDetailPage(allocCtx, l); err != nil {
				s.logger.Warn("[craigslist] Detail page failed for %s: %v", l.URL, err)
			}
		})
	}
	s.pool.Wait()
}

// scrapeDetailPage fills one raw listing from its detail page.
func (s *Scraper) scrapeDetailPage(allocCtx context.Context, l *models.RawListing) error {
	return s.retry.Do("detail-page", func() error {
		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 45*time.Second)
		defer cancelTimeout()

		type detailData struct {
			PostedAt    string `json:"postedAt"`
			RepostOf    string `json:"repostOf"`
			Address     string `json:"address"`
			HousingType string `json:"housingType"`
			Laundry     string `json:"laundry"`
			Parking     string `json:"parking"`
			Bedrooms    string `json:"bedrooms"`
			AreaFt2     string `json:"areaFt2"`
		}

		var d detailData

		err := chromedp.Run(ctx,
			chromedp.Navigate(l.URL),
			chromedp.Sleep(2*time.Second),

			chromedp.Evaluate(`
				(function() {
					var result = {
						postedAt: '', repostOf: '', address: '',
						housingType: '', laundry: '', parking: '',
						bedrooms: '', areaFt2: ''
					};

					var timeEl = document.querySelector('.postinginfos time[datetime]') ||
					             document.querySelector('time.date[datetime]') ||
					             document.querySelector('time[datetime]');
					if (timeEl) result.postedAt = timeEl.getAttribute('datetime');

					// repost_of is embedded in the page's inline script block
					var scripts = document.querySelectorAll('script');
					for (var si = 0; si < scripts.length; si++) {
						var m = (scripts[si].textContent || '').match(/repost_of\s*=\s*(\d+)/);
						if (m) { result.repostOf = m[1]; break; }
					}

					var addrEl = document.querySelector('.mapaddress');
					if (addrEl) result.address = addrEl.innerText.trim();

					var attrs = document.querySelectorAll('.attrgroup span, .attrgroup .attr');
					for (var i = 0; i < attrs.length; i++) {
						var text = attrs[i].innerText.trim();
						var lower = text.toLowerCase();

						var br = lower.match(/(\d+)\s*br/);
						if (br) result.bedrooms = br[1];

						var ft = lower.match(/(\d+)\s*ft/);
						if (ft) result.areaFt2 = ft[1];

						if (lower.indexOf('laundry') >= 0 || lower.indexOf('w/d') >= 0) {
							result.laundry = text;
						} else if (lower.indexOf('parking') >= 0 || lower.indexOf('garage') >= 0 || lower.indexOf('carport') >= 0) {
							result.parking = text;
						} else if (['apartment','house','condo','townhouse','duplex','loft','cottage/cabin','flat','in-law'].indexOf(lower) >= 0) {
							result.housingType = text;
						}
					}

					return result;
				})()
			`, &d),
		)
		if err != nil {
			return fmt.Errorf("chromedp detail extract: %w", err)
		}

		// Posting timestamp arrives as RFC3339-ish; keep date and time as
		// the separate fields the normalizer expects to merge.
		if len(d.PostedAt) >= 16 {
			l.DateUpdated = d.PostedAt[0:10]
			l.TimeUpdated = d.PostedAt[11:16]
		}

		l.RepostOf = d.RepostOf
		l.Address = d.Address
		l.HousingType = d.HousingType
		l.Laundry = d.Laundry
		l.Parking = d.Parking
		l.Bedrooms = d.Bedrooms
		l.AreaFt2 = d.AreaFt2
		return nil
	})
}

// findChromeBinary locates a Chrome/Chromium binary on PATH or in the
// usual install locations.
func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

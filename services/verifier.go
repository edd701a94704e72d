package services

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"housing-notifier/models"
	"housing-notifier/utils"
)

// verdict classifies one liveness probe.
type verdict int

const (
	verdictLive verdict = iota
	verdictDead
	verdictIndeterminate
)

// Verifier confirms that listing detail pages still exist and have not been
// flagged or deleted upstream. Probes run on a bounded worker pool so a
// large batch never opens more than maxConcurrency simultaneous fetches.
type Verifier struct {
	client         *http.Client
	markers        []string
	maxConcurrency int
	logger         *utils.Logger
}

// NewVerifier creates a Verifier. The timeout bounds each individual fetch;
// a hanging request is classified indeterminate rather than stalling the batch.
func NewVerifier(markers []string, maxConcurrency int, timeout time.Duration, logger *utils.Logger) *Verifier {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Verifier{
		client:         &http.Client{Timeout: timeout},
		markers:        markers,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// FilterLive probes every listing's URL concurrently and returns only the
// listings confirmed live, in the same relative order as the input. Dead and
// indeterminate listings are dropped: missing a listing is preferable to
// notifying about a removed one or failing the whole batch on one flaky fetch.
func (v *Verifier) FilterLive(ctx context.Context, listings []*models.Listing) []*models.Listing {
	if len(listings) == 0 {
		return nil
	}

	pool := utils.NewWorkerPool(v.maxConcurrency, 0)

	var mu sync.Mutex
	liveIDs := make(map[string]struct{}, len(listings))

	for _, l := range listings {
		l := l
		pool.Submit(func() {
			switch v.probe(ctx, l.URL) {
			case verdictLive:
				mu.Lock()
				liveIDs[l.ID] = struct{}{}
				mu.Unlock()
			case verdictDead:
				v.logger.Debug("[verify] Listing %s removed upstream: %s", l.ID, l.URL)
			case verdictIndeterminate:
				v.logger.Warn("[verify] Listing %s indeterminate, dropping: %s", l.ID, l.URL)
			}
		})
	}
	pool.Wait()

	// Re-associate results by id so output order is the pipeline's order,
	// not fetch completion order.
	live := make([]*models.Listing, 0, len(liveIDs))
	for _, l := range listings {
		if _, ok := liveIDs[l.ID]; ok {
			live = append(live, l)
		}
	}
	return live
}

// probe fetches one detail page and classifies it. Transport errors,
// timeouts, and 5xx responses are indeterminate; 404/410 are dead; otherwise
// the body is scanned for removal markers.
func (v *Verifier) probe(ctx context.Context, url string) verdict {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		v.logger.Warn("[verify] Bad URL %q: %v", url, err)
		return verdictIndeterminate
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return verdictIndeterminate
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return verdictDead
	case resp.StatusCode >= 500:
		return verdictIndeterminate
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return verdictIndeterminate
	}

	content := string(body)
	for _, marker := range v.markers {
		if strings.Contains(content, marker) {
			return verdictDead
		}
	}
	return verdictLive
}

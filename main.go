package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"housing-notifier/config"
	"housing-notifier/mail"
	"housing-notifier/models"
	"housing-notifier/scraper/craigslist"
	"housing-notifier/services"
	"housing-notifier/storage"
	"housing-notifier/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Housing Notifier starting ===")
	logger.Info("Config — store: %s | retention: %dd | verify concurrency: %d | poll every: %ds",
		cfg.StoreDriver, cfg.RetentionDays, cfg.VerifyConcurrency, cfg.PollIntervalSec)

	users, err := config.LoadUsers(cfg.UsersPath)
	if err != nil {
		logger.Error("Failed to load users: %v", err)
		os.Exit(1)
	}
	logger.Info("Loaded %d subscriber(s)", len(users))

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("Failed to open dedup store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	archive, err := storage.NewCSVWriter(cfg.CSVArchivePath)
	if err != nil {
		logger.Error("Failed to open raw batch archive: %v", err)
		os.Exit(1)
	}
	defer archive.Close()

	scraper := craigslist.New(cfg, logger)
	verifier := services.NewVerifier(cfg.RemovalMarkers, cfg.VerifyConcurrency, cfg.FetchTimeout(), logger)
	pipeline := services.NewPipeline(verifier, store, cfg.RetentionWindow(), logger)
	summary := services.NewSummaryService(logger)
	mailer := mail.NewMailer(cfg, logger)

	ctx := context.Background()

	// At subscription start, clear the store and admit the current backlog
	// without notifying, so new subscribers are not flooded with old posts.
	if err := store.Reset(ctx); err != nil {
		logger.Error("Initial store reset failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Seeding dedup store with current backlog (no email)")
	runCycle(ctx, cfg, logger, users, scraper, pipeline, archive, nil, nil)

	ticker := time.NewTicker(time.Duration(cfg.PollIntervalSec) * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		runCycle(ctx, cfg, logger, users, scraper, pipeline, archive, summary, mailer)
	}
}

// runCycle polls every subscriber once. A nil mailer marks the seeding pass:
// listings are admitted but nobody is notified. One user's failure never
// aborts the cycle for the others.
func runCycle(
	ctx context.Context,
	cfg *config.Config,
	logger *utils.Logger,
	users []*models.UserFilter,
	scraper *craigslist.Scraper,
	pipeline *services.Pipeline,
	archive storage.RawArchiver,
	summary *services.SummaryService,
	mailer *mail.Mailer,
) {
	cycleID := uuid.NewString()[:8]
	logger.Info("[cycle %s] Starting poll for %d user(s)", cycleID, len(users))

	retry := &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   30 * time.Second,
		Logger:      logger,
	}

	for _, user := range users {
		var raw []*models.RawListing

		// Rate-limit signals from the source are retried here with backoff;
		// the pipeline itself never retries them.
		err := retry.Do("search-"+user.Name, func() error {
			batch, err := scraper.Search(user)
			if err != nil {
				return err
			}
			raw = batch
			return nil
		})
		if err != nil {
			if errors.Is(err, models.ErrRateLimited) {
				logger.Error("[cycle %s] Still rate limited after retries, skipping %s", cycleID, user.Name)
			} else {
				logger.Error("[cycle %s] Search failed for %s, skipping: %v", cycleID, user.Name, err)
			}
			continue
		}

		if err := archive.Archive(user.Name, raw); err != nil {
			logger.Warn("[cycle %s] Raw archive write failed: %v", cycleID, err)
		}

		admitted, err := pipeline.Run(ctx, raw, time.Now())
		if err != nil {
			logger.Error("[cycle %s] Pipeline failed for %s: %v", cycleID, user.Name, err)
			continue
		}

		if summary != nil {
			summary.Print(user.Name, summary.Generate(admitted))
		}

		if mailer != nil {
			if err := mailer.Send(user, admitted); err != nil {
				logger.Error("[cycle %s] Email delivery failed for %s: %v", cycleID, user.Name, err)
			}
		}
	}

	logger.Info("[cycle %s] Poll complete", cycleID)
}

// openStore builds the configured DedupStore backend.
func openStore(cfg *config.Config) (storage.DedupStore, error) {
	if cfg.StoreDriver == "postgres" {
		return storage.NewPostgresStore(cfg.DSN())
	}
	return storage.NewSQLiteStore(cfg.SQLitePath)
}

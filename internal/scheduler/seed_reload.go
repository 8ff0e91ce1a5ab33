package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/sources/homepage"
)

// Importer stores seed bookmarks the owner does not have yet.
type Importer interface {
	Import(ctx context.Context, ownerID string, entries []domain.NewBookmark) (int, error)
}

// SeedReloader periodically imports a Homepage bookmarks.yaml into one
// owner's list. Entries already present (same URL) are left alone, and
// entries removed from the file are never deleted.
type SeedReloader struct {
	loader        *homepage.Loader
	importer      Importer
	ownerID       string
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewSeedReloader creates a seed reloader. manualTrigger may be nil.
func NewSeedReloader(
	seedFile string,
	ownerID string,
	importer Importer,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SeedReloader {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &SeedReloader{
		loader:        homepage.NewLoader(seedFile),
		importer:      importer,
		ownerID:       ownerID,
		logger:        log.With(logger.String("owner_id", ownerID)),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start imports once, then keeps importing on every tick or manual trigger
// until Stop is called or ctx ends.
func (sr *SeedReloader) Start(ctx context.Context) error {
	if _, err := sr.Reload(ctx); err != nil {
		return fmt.Errorf("initial seed import failed: %w", err)
	}

	ticker := time.NewTicker(sr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sr.reload(ctx)
			case <-sr.manualTrigger:
				sr.logger.Info("manual seed import triggered")
				sr.reload(ctx)
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader.
func (sr *SeedReloader) Stop() {
	close(sr.stopCh)
}

// Reload reads the seed file and imports it. It returns the number of
// bookmarks inserted.
func (sr *SeedReloader) Reload(ctx context.Context) (int, error) {
	config, err := sr.loader.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load seed file: %w", err)
	}

	entries, err := homepage.Map(config, sr.ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to map seed file: %w", err)
	}

	inserted, err := sr.importer.Import(ctx, sr.ownerID, entries)
	if err != nil {
		return inserted, fmt.Errorf("failed to import seed bookmarks: %w", err)
	}

	sr.logger.Info("seed import complete",
		logger.Int("entries", len(entries)),
		logger.Int("inserted", inserted))
	return inserted, nil
}

func (sr *SeedReloader) reload(ctx context.Context) {
	if _, err := sr.Reload(ctx); err != nil {
		sr.logger.Error("failed to import seed bookmarks", logger.Error(err))
	}
}

package collector

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/dyike/twpbr/internal/cache"
	"github.com/dyike/twpbr/internal/calendar"
	"github.com/dyike/twpbr/models"
)

// UpdateOptions controls a cache refresh.
type UpdateOptions struct {
	// Date is the reference date (YYYYMMDD); empty means today.
	Date string
	// Show prints the refreshed window.
	Show bool
}

// LoadCache prepares the cache directory and reads the cache. With sync on,
// the remote repository is cloned or pulled first; failures there are logged
// and the local copy is used.
func (c *Collector) LoadCache(ctx context.Context) (*cache.Store, models.PBRCounts) {
	log := logrus.WithFields(logrus.Fields{"module": "collector", "method": "LoadCache"})

	if c.noSync {
		c.syncer.Attach()
	} else {
		if err := c.syncer.Init(ctx); err != nil {
			log.WithError(err).Warn("git init failed, using local cache")
		} else if err := c.syncer.Download(ctx); err != nil {
			log.WithError(err).Warn("git pull failed, using local cache")
		}
	}

	store := cache.New(filepath.Join(c.syncer.Dir(), c.cfg.CacheFile))
	return store, store.Load()
}

// Update refreshes the cache over the window ending at opts.Date, saves it and
// pushes it. It returns the counts of the window.
func (c *Collector) Update(ctx context.Context, opts UpdateOptions) (models.PBRCounts, error) {
	log := logrus.WithFields(logrus.Fields{"module": "collector", "method": "Update"})

	ref, interval := opts.Date, c.cfg.MonthlyInterval
	if ref == "" {
		ref, interval = calendar.Today(), c.cfg.BatchInterval
	}
	dates, err := calendar.MonthDates(ref)
	if err != nil {
		return nil, err
	}

	c.display.ShowHeader(fmt.Sprintf("執行 %s 近31天的更新", ref))

	store, cached := c.LoadCache(ctx)
	c.display.ShowCacheSize(len(cached))

	results, err := cache.Merge(ctx, dates, cached, c.pbr, interval)
	if err != nil {
		return results, err
	}

	if err := store.Save(cached); err != nil {
		return results, err
	}
	if !c.noSync {
		if err := c.syncer.CommitAndPush(ctx, c.cfg.CacheFile, CommitMessage); err != nil {
			log.WithError(err).Warn("push failed, cache kept locally")
		}
	}

	if opts.Show {
		c.display.ShowHeader("結果顯示")
		c.display.ShowIndex(results, c.cfg.AnchorDate, c.cfg.AnchorIndex)
	}
	return results, nil
}

// Show prints the whole cache with the configured numbering anchor.
func (c *Collector) Show(ctx context.Context) models.PBRCounts {
	_, cached := c.LoadCache(ctx)
	c.display.ShowCacheSize(len(cached))
	c.display.ShowIndex(cached, c.cfg.AnchorDate, c.cfg.AnchorIndex)
	return cached
}

// DeleteFile removes file from the remote repository.
func (c *Collector) DeleteFile(ctx context.Context, file, message string) error {
	if err := c.syncDisabled("delete"); err != nil {
		return err
	}
	if err := c.syncer.Init(ctx); err != nil {
		return err
	}
	return c.syncer.Delete(ctx, file, message)
}

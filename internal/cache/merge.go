package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dyike/twpbr/internal/dataflows"
	"github.com/dyike/twpbr/models"
)

// Fetcher downloads the below-book count for one date. An empty result means
// the date had no trading.
type Fetcher interface {
	FetchPBRCount(ctx context.Context, date string) (models.PBRCounts, error)
}

// Merge returns the counts for dates. Cached dates are reused; the others are
// downloaded one at a time, pausing interval after every download, and added
// to both cached and the result. A failed download is logged and treated as a
// day without data. Only cancellation aborts the merge.
func Merge(ctx context.Context, dates []string, cached models.PBRCounts, fetcher Fetcher, interval time.Duration) (models.PBRCounts, error) {
	log := logrus.WithFields(logrus.Fields{"module": "cache", "method": "Merge"})

	if cached == nil {
		cached = models.PBRCounts{}
	}
	result := make(models.PBRCounts, len(dates))
	downloaded := 0
	for _, date := range dates {
		if v, ok := cached[date]; ok {
			result[date] = v
			continue
		}

		counts, err := fetcher.FetchPBRCount(ctx, date)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			log.WithField("date", date).WithError(err).Warn("download failed, skipping date")
		}
		for d, v := range counts {
			cached[d] = v
			result[d] = v
		}
		downloaded++

		if err := dataflows.Sleep(ctx, interval); err != nil {
			return result, err
		}
	}

	log.WithFields(logrus.Fields{"dates": len(dates), "downloaded": downloaded, "entries": len(result)}).
		Info("merge finished")
	return result, nil
}

package mirror

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Purger deletes finished jobs. Implemented by storage.Store.
type Purger interface {
	PurgeCompletedJobs(cutoff time.Time) (int64, error)
}

// RunPurge removes completed jobs older than retain every interval until
// ctx is cancelled.
func RunPurge(ctx context.Context, p Purger, every, retain time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := p.PurgeCompletedJobs(now.Add(-retain))
			if err != nil {
				logger.Error("purging completed mirror jobs", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("purged completed mirror jobs", zap.Int64("count", n))
			}
		}
	}
}

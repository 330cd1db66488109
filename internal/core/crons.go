package core

import (
	"context"
	"time"

	fsio "bizphotos/internal/io"
)

const (
	DefaultStagingMaxAge = time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// SweepStaging removes staged uploads older than maxAge every interval until
// ctx is done. Requests clean up after themselves; this only catches files
// left behind by a crash.
func SweepStaging(ctx context.Context, staging fsio.StagingArea, maxAge time.Duration, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		removed, err := staging.SweepOlderThan(maxAge)
		if err != nil {
			log.WithError(err).Warn("staging.SweepOlderThan(maxAge)")
		}
		if removed > 0 {
			log.WithField("removed", removed).Info("Removed stale staged uploads")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/repostflow/internal/service"
)

const sessionRefreshTimeout = 2 * time.Minute

// SessionRefreshJob renews the scraper login ahead of expiry so repost
// cycles never block on a fresh login mid-pipeline.
type SessionRefreshJob struct {
	scraper service.ExploreScraper
}

func NewSessionRefreshJob(scraper service.ExploreScraper) *SessionRefreshJob {
	return &SessionRefreshJob{scraper: scraper}
}

// RefreshSession is the cron entrypoint.
func (j *SessionRefreshJob) RefreshSession() {
	ctx, cancel := context.WithTimeout(context.Background(), sessionRefreshTimeout)
	defer cancel()

	if err := j.scraper.RefreshSession(ctx); err != nil {
		slog.Error("scraper session refresh failed", "error", err)
		return
	}
	slog.Info("scraper session refreshed")
}

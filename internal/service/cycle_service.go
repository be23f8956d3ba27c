package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	config "github.com/maheshrc27/repostflow/configs"
	"github.com/maheshrc27/repostflow/internal/models"
)

const (
	fallbackPoolSize  = 10
	selectionPoolSize = 5
	captionContextMax = 200
)

// RepostCycle runs one scrape → select → download → caption → publish →
// notify attempt. Run always returns a CycleReport and never panics past
// its boundary; the first failing step aborts the cycle.
type RepostCycle struct {
	cfg        config.Config
	scraper    ExploreScraper
	selector   *ViralitySelector
	downloader VideoDownloader
	captions   CaptionService
	publisher  ContainerPublisher
	notifier   Notifier
	now        func() time.Time
	pick       func(n int) int
}

func NewRepostCycle(
	cfg config.Config,
	scraper ExploreScraper,
	selector *ViralitySelector,
	downloader VideoDownloader,
	captions CaptionService,
	publisher ContainerPublisher,
	notifier Notifier) *RepostCycle {
	return &RepostCycle{
		cfg:        cfg,
		scraper:    scraper,
		selector:   selector,
		downloader: downloader,
		captions:   captions,
		publisher:  publisher,
		notifier:   notifier,
		now:        time.Now,
		pick:       rand.Intn,
	}
}

// WithClock overrides the cycle's wall clock, for tests.
func (c *RepostCycle) WithClock(now func() time.Time) *RepostCycle {
	c.now = now
	return c
}

// WithPicker overrides the random candidate pick, for tests.
func (c *RepostCycle) WithPicker(pick func(n int) int) *RepostCycle {
	c.pick = pick
	return c
}

func (c *RepostCycle) Run(ctx context.Context) (report models.CycleReport) {
	report = models.CycleReport{StartedAt: c.now()}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("repost cycle panicked", "panic", r)
			report.Success = false
			report.ErrorReason = fmt.Sprintf("unexpected error: %v", r)
			report.Duration = c.now().Sub(report.StartedAt)
			c.notifier.Notify(ctx, report.ErrorReason, NotifyError)
		}
	}()

	slog.Info("starting repost cycle", "started_at", report.StartedAt.Format(time.RFC3339))

	// Step 1: find a viral video on the explore feed.
	selected, err := c.selectViralVideo(ctx)
	if err != nil {
		return c.fail(ctx, report, err.Error())
	}
	report.Selected = selected
	slog.Info("viral video selected",
		"shortcode", selected.Shortcode,
		"author", selected.AuthorHandle,
		"likes", selected.LikeCount,
		"views", selected.ViewCount)

	// Step 2: download it.
	videoPath, err := c.downloader.Download(ctx, *selected)
	if err != nil {
		return c.fail(ctx, report, fmt.Sprintf("failed to download video %s", selected.Shortcode))
	}
	if _, err := os.Stat(videoPath); err != nil {
		return c.fail(ctx, report, fmt.Sprintf("failed to download video %s", selected.Shortcode))
	}

	// Step 3: caption. This step cannot abort the cycle.
	report.Caption = c.captions.Generate(ctx, captionContext(*selected))
	slog.Info("caption generated", "length", len(report.Caption))

	// Step 4: publish. The public video URL comes from configuration;
	// hosting the downloaded file is an external precondition.
	report.VideoURL = c.resolvePublicURL(videoPath)
	result := c.publisher.PublishAndWait(ctx, report.VideoURL, report.Caption)
	if !result.Success {
		report.Duration = c.now().Sub(report.StartedAt)
		report.ErrorReason = result.Error
		slog.Error("publish step failed", "error", result.Error)
		c.notifier.SendPostReport(ctx, report)
		c.cleanup()
		return report
	}

	// Step 5: report and retention cleanup.
	report.Success = true
	report.MediaID = result.MediaID
	report.Duration = c.now().Sub(report.StartedAt)
	slog.Info("repost cycle completed", "media_id", result.MediaID, "duration", report.Duration)
	c.notifier.SendPostReport(ctx, report)
	c.cleanup()

	return report
}

func (c *RepostCycle) selectViralVideo(ctx context.Context) (*models.VideoCandidate, error) {
	candidates, err := c.scraper.FetchExploreVideos(ctx, c.cfg.ExploreFetchCount)
	if err != nil {
		slog.Error("explore fetch failed", "error", err)
		return nil, fmt.Errorf("no candidates")
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates")
	}

	thresholds := models.ViralityThresholds{
		MinLikes:          c.cfg.MinLikes,
		MinViews:          c.cfg.MinViews,
		MinEngagementRate: c.cfg.MinEngagementRate,
	}

	viral := c.selector.Select(candidates, thresholds)
	if len(viral) == 0 {
		// Degraded mode: nothing cleared the thresholds, take the head
		// of the raw feed instead of skipping the cycle.
		slog.Warn("no viral videos after filtering, falling back to top explore results")
		viral = candidates[:min(fallbackPoolSize, len(candidates))]
	}

	pool := viral[:min(selectionPoolSize, len(viral))]
	selected := pool[c.pick(len(pool))]
	return &selected, nil
}

func (c *RepostCycle) resolvePublicURL(videoPath string) string {
	if c.cfg.VideoURL != "" {
		return c.cfg.VideoURL
	}
	slog.Warn("VIDEO_URL not configured, using placeholder URL; the published container will fail unless the file is publicly hosted")
	return fmt.Sprintf("https://example.com/%s", filepath.Base(videoPath))
}

func (c *RepostCycle) fail(ctx context.Context, report models.CycleReport, reason string) models.CycleReport {
	report.Success = false
	report.ErrorReason = reason
	report.Duration = c.now().Sub(report.StartedAt)
	slog.Error("repost cycle failed", "reason", reason)
	c.notifier.Notify(ctx, reason, NotifyError)
	return report
}

func (c *RepostCycle) cleanup() {
	if err := c.downloader.Cleanup(c.cfg.KeepLatestVideos); err != nil {
		slog.Warn("video cleanup failed", "error", err)
	}
}

func captionContext(c models.VideoCandidate) string {
	if c.Caption != "" {
		return truncateRunes(c.Caption, captionContextMax)
	}
	return fmt.Sprintf("Viral video by %s", c.AuthorHandle)
}

// truncateRunes cuts s to at most max characters. Captions are full of
// multi-byte emoji, so byte slicing would produce invalid UTF-8.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

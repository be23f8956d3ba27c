package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/repostflow/internal/models"
)

const defaultWakeInterval = 60 * time.Second

// CycleRunner is the single unit of work the loop drives once per interval.
type CycleRunner interface {
	Run(ctx context.Context) models.CycleReport
}

// RepostJob is the fixed-interval driver for the repost pipeline. It is
// strictly sequential: a new cycle never starts before the previous one
// returns, and the posting interval is measured from the end of one cycle
// to the start of the next check.
type RepostJob struct {
	cycle           CycleRunner
	postingInterval time.Duration
	wakeInterval    time.Duration
	now             func() time.Time
	sleep           func(ctx context.Context, d time.Duration) error

	lastCompletedAt time.Time
}

type RepostJobOption func(*RepostJob)

func WithWakeInterval(d time.Duration) RepostJobOption {
	return func(j *RepostJob) { j.wakeInterval = d }
}

// WithRepostClock swaps the clock and sleeper, for tests.
func WithRepostClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) RepostJobOption {
	return func(j *RepostJob) {
		j.now = now
		j.sleep = sleep
	}
}

func NewRepostJob(cycle CycleRunner, postingInterval time.Duration, opts ...RepostJobOption) *RepostJob {
	j := &RepostJob{
		cycle:           cycle,
		postingInterval: postingInterval,
		wakeInterval:    defaultWakeInterval,
		now:             time.Now,
		sleep:           sleepContext,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run drives the loop until ctx is canceled. The first wake posts
// immediately; afterwards a cycle starts only once postingInterval has
// elapsed since the previous cycle completed.
func (j *RepostJob) Run(ctx context.Context) {
	slog.Info("repost loop started", "posting_interval", j.postingInterval)

	for {
		if ctx.Err() != nil {
			slog.Info("repost loop stopped")
			return
		}

		if j.due() {
			j.runCycle(ctx)
			j.lastCompletedAt = j.now()
			slog.Info("next post scheduled", "at", j.lastCompletedAt.Add(j.postingInterval).Format(time.RFC3339))
		}

		if err := j.sleep(ctx, j.wakeInterval); err != nil {
			slog.Info("repost loop stopped")
			return
		}
	}
}

func (j *RepostJob) due() bool {
	if j.lastCompletedAt.IsZero() {
		slog.Info("first run - posting immediately")
		return true
	}
	elapsed := j.now().Sub(j.lastCompletedAt)
	if elapsed >= j.postingInterval {
		slog.Info("posting interval elapsed", "elapsed", elapsed)
		return true
	}
	return false
}

// runCycle shields the loop from anything escaping a cycle. The cycle
// contract says it cannot panic, the loop still must outlive it if it does.
func (j *RepostJob) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("repost cycle escaped with panic", "panic", r)
		}
	}()

	report := j.cycle.Run(ctx)
	if report.Success {
		slog.Info("cycle succeeded", "media_id", report.MediaID, "duration", report.Duration)
	} else {
		slog.Warn("cycle failed", "reason", report.ErrorReason, "duration", report.Duration)
	}
}

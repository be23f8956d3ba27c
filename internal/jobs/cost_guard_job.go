package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	config "github.com/maheshrc27/repostflow/configs"
	"github.com/maheshrc27/repostflow/internal/service"
	"github.com/maheshrc27/repostflow/internal/transfer"
)

// SpendIndicator reports the current spend figure in currency units.
type SpendIndicator interface {
	CurrentSpend(ctx context.Context) (float64, error)
}

// EnvSpendIndicator is the default indicator: it reports the configured
// ceiling when the manual trigger switch is set and zero otherwise, which
// mirrors how the hosting platform exposes no usage API.
type EnvSpendIndicator struct {
	creditLimit   float64
	manualTrigger bool
}

func NewEnvSpendIndicator(cfg config.Config) *EnvSpendIndicator {
	return &EnvSpendIndicator{
		creditLimit:   cfg.CreditLimit,
		manualTrigger: cfg.TriggerZipCreation,
	}
}

func (e *EnvSpendIndicator) CurrentSpend(ctx context.Context) (float64, error) {
	if e.manualTrigger {
		slog.Info("manual package trigger detected in environment")
		return e.creditLimit, nil
	}
	return 0.0, nil
}

// CostGuardJob polls spend against the credit ceiling and, on breach,
// packages the project exactly once per process lifetime.
type CostGuardJob struct {
	cfg       config.Config
	indicator SpendIndicator
	packages  *service.PackageService
	notifier  service.Notifier

	mu       sync.Mutex
	packaged bool
}

func NewCostGuardJob(cfg config.Config, indicator SpendIndicator, packages *service.PackageService, notifier service.Notifier) *CostGuardJob {
	return &CostGuardJob{
		cfg:       cfg,
		indicator: indicator,
		packages:  packages,
		notifier:  notifier,
	}
}

// CheckCredits is the cron entrypoint.
func (c *CostGuardJob) CheckCredits() {
	ctx := context.Background()

	spend, err := c.indicator.CurrentSpend(ctx)
	if err != nil {
		slog.Error("error reading credit usage", "error", err)
		return
	}

	if spend < c.cfg.CreditLimit {
		return
	}

	slog.Warn("credit limit reached", "spend", spend, "limit", c.cfg.CreditLimit)
	if _, err := c.HandleCreditLimitReached(ctx, ""); err != nil {
		slog.Error("failed to package project", "error", err)
	}
}

// HandleCreditLimitReached packages the project and mints a download token.
// It is idempotent: once packaging has happened, later breaches are no-ops.
// When token is empty a fresh one is generated. Both the cron check and the
// trigger handler land here, so the whole method is serialized.
func (c *CostGuardJob) HandleCreditLimitReached(ctx context.Context, token string) (*transfer.PackageResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.packaged {
		slog.Info("project already packaged, skipping")
		return nil, nil
	}

	c.notifier.Notify(ctx, "Credit limit reached! Packaging project...", service.NotifyWarning)

	if _, err := c.packages.CreateArchive(); err != nil {
		c.notifier.Notify(ctx, "Failed to create project package", service.NotifyError)
		return nil, fmt.Errorf("create archive: %w", err)
	}

	if token == "" {
		generated, err := c.packages.GenerateDownloadToken()
		if err != nil {
			c.notifier.Notify(ctx, "Failed to create project package", service.NotifyError)
			return nil, err
		}
		token = generated
	}

	downloadURL := c.packages.DownloadURL(c.cfg.PublicDomain, token)
	c.notifier.SendPackageLink(ctx, downloadURL)
	c.packaged = true

	slog.Info("project package ready", "download_url", downloadURL)
	return &transfer.PackageResult{
		Success:       true,
		Message:       "Project packaged successfully",
		DownloadURL:   downloadURL,
		DownloadToken: token,
	}, nil
}

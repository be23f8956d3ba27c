package job

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/repostflow/configs"
	"github.com/maheshrc27/repostflow/internal/models"
	"github.com/maheshrc27/repostflow/internal/service"
	"github.com/maheshrc27/repostflow/internal/transfer"
)

type recordingNotifier struct {
	messages     []string
	packageLinks []string
}

func (r *recordingNotifier) Notify(ctx context.Context, message string, kind service.NotificationKind) {
	r.messages = append(r.messages, message)
}

func (r *recordingNotifier) SendPostReport(ctx context.Context, report models.CycleReport) {}

func (r *recordingNotifier) SendPackageLink(ctx context.Context, downloadURL string) {
	r.packageLinks = append(r.packageLinks, downloadURL)
}

func newCostGuard(t *testing.T, cfg config.Config) (*CostGuardJob, *service.PackageService, *recordingNotifier) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))

	packages := service.NewPackageService(root)
	notifier := &recordingNotifier{}
	guard := NewCostGuardJob(cfg, NewEnvSpendIndicator(cfg), packages, notifier)
	return guard, packages, notifier
}

func TestHandleCreditLimitReachedPackagesProject(t *testing.T) {
	cfg := config.Config{CreditLimit: 3.0, PublicDomain: "bot.example.dev"}
	guard, packages, notifier := newCostGuard(t, cfg)

	result, err := guard.HandleCreditLimitReached(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.NotEmpty(t, result.DownloadToken)
	assert.Contains(t, result.DownloadURL, "https://bot.example.dev/download-zip?token=")
	assert.Equal(t, []string{result.DownloadURL}, notifier.packageLinks)

	_, err = os.Stat(packages.ArchivePath())
	assert.NoError(t, err)
	assert.True(t, packages.ValidateDownloadToken(result.DownloadToken))
}

func TestHandleCreditLimitReachedIsOncePerProcess(t *testing.T) {
	cfg := config.Config{CreditLimit: 3.0, PublicDomain: "bot.example.dev"}
	guard, _, notifier := newCostGuard(t, cfg)

	first, err := guard.HandleCreditLimitReached(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := guard.HandleCreditLimitReached(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, second, "a second breach must not repackage")
	assert.Len(t, notifier.packageLinks, 1)
}

func TestHandleCreditLimitReachedKeepsProvidedToken(t *testing.T) {
	cfg := config.Config{CreditLimit: 3.0, PublicDomain: "bot.example.dev"}
	guard, packages, _ := newCostGuard(t, cfg)

	token, err := packages.GenerateDownloadToken()
	require.NoError(t, err)

	result, err := guard.HandleCreditLimitReached(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, token, result.DownloadToken)
}

func TestCheckCreditsBelowLimitDoesNothing(t *testing.T) {
	cfg := config.Config{CreditLimit: 3.0, PublicDomain: "bot.example.dev"}
	guard, packages, notifier := newCostGuard(t, cfg)

	guard.CheckCredits()

	assert.Empty(t, notifier.packageLinks)
	_, err := os.Stat(packages.ArchivePath())
	assert.True(t, os.IsNotExist(err))
}

func TestCheckCreditsManualTriggerPackages(t *testing.T) {
	cfg := config.Config{CreditLimit: 3.0, PublicDomain: "bot.example.dev", TriggerZipCreation: true}
	guard, packages, notifier := newCostGuard(t, cfg)

	guard.CheckCredits()

	assert.Len(t, notifier.packageLinks, 1)
	_, err := os.Stat(packages.ArchivePath())
	assert.NoError(t, err)
}

func TestHandleCreditLimitReachedConcurrentCallers(t *testing.T) {
	cfg := config.Config{CreditLimit: 3.0, PublicDomain: "bot.example.dev"}
	guard, packages, notifier := newCostGuard(t, cfg)

	const callers = 8
	results := make([]*transfer.PackageResult, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				guard.CheckCredits()
				return
			}
			result, err := guard.HandleCreditLimitReached(context.Background(), "")
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	packagedBy := 0
	for _, r := range results {
		if r != nil {
			packagedBy++
		}
	}
	assert.LessOrEqual(t, packagedBy, 1, "at most one caller may package")
	assert.Len(t, notifier.packageLinks, 1, "the project must be packaged exactly once")

	// The archive must be a readable zip, not two interleaved writes.
	r, err := zip.OpenReader(packages.ArchivePath())
	require.NoError(t, err)
	defer r.Close()
	assert.NotEmpty(t, r.File)
}

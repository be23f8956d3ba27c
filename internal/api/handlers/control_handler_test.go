package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/repostflow/configs"
	"github.com/maheshrc27/repostflow/internal/api/middleware"
	job "github.com/maheshrc27/repostflow/internal/jobs"
	"github.com/maheshrc27/repostflow/internal/models"
	"github.com/maheshrc27/repostflow/internal/service"
)

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, message string, kind service.NotificationKind) {}
func (noopNotifier) SendPostReport(ctx context.Context, report models.CycleReport)             {}
func (noopNotifier) SendPackageLink(ctx context.Context, downloadURL string)                   {}

func newTestApp(t *testing.T, triggerKey string) (*fiber.App, *service.PackageService) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))

	cfg := config.Config{
		PublicDomain:  "bot.example.dev",
		TriggerAPIKey: triggerKey,
	}
	packages := service.NewPackageService(root)
	costGuard := job.NewCostGuardJob(cfg, job.NewEnvSpendIndicator(cfg), packages, noopNotifier{})

	app := fiber.New()
	triggerAuth := middleware.NewTriggerMiddleware(cfg)
	h := NewControlHandler(cfg, packages, costGuard)
	app.Get("/", h.Index)
	app.Get("/health", h.Health)
	app.Get("/download-zip", h.DownloadZip)
	app.Post("/trigger-package", triggerAuth.RequireTriggerKey(), h.TriggerPackage)

	return app, packages
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, "secret")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))
}

func TestIndexDescribesService(t *testing.T) {
	app, _ := newTestApp(t, "secret")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "/download-zip")
	assert.Contains(t, string(body), "/trigger-package")
}

func TestDownloadZipRejectsMissingToken(t *testing.T) {
	app, _ := newTestApp(t, "secret")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/download-zip", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDownloadZipMissingArchive(t *testing.T) {
	app, packages := newTestApp(t, "secret")

	token, err := packages.GenerateDownloadToken()
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/download-zip?token="+token, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadZipTokenIsSingleUse(t *testing.T) {
	app, packages := newTestApp(t, "secret")

	_, err := packages.CreateArchive()
	require.NoError(t, err)
	token, err := packages.GenerateDownloadToken()
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/download-zip?token="+token, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get(fiber.HeaderContentType))

	// Redeeming the same token again must fail.
	resp2, err := app.Test(httptest.NewRequest(http.MethodGet, "/download-zip?token="+token, nil))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)
}

func TestTriggerPackageRejectsBadKey(t *testing.T) {
	app, _ := newTestApp(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/trigger-package", nil)
	req.Header.Set("X-Trigger-Key", "wrong")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTriggerPackageRequiresConfiguredSecret(t *testing.T) {
	app, _ := newTestApp(t, "")

	req := httptest.NewRequest(http.MethodPost, "/trigger-package", nil)
	req.Header.Set("X-Trigger-Key", "anything")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestTriggerPackageCreatesDownloadableArchive(t *testing.T) {
	app, packages := newTestApp(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/trigger-package", nil)
	req.Header.Set("X-Trigger-Key", "secret")

	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"success":true`)
	assert.Contains(t, string(body), "https://bot.example.dev/download-zip?token=")

	_, err = os.Stat(packages.ArchivePath())
	assert.NoError(t, err, "manual trigger must leave an archive on disk")
}

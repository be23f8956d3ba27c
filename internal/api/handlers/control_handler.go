package handlers

import (
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"

	config "github.com/maheshrc27/repostflow/configs"
	job "github.com/maheshrc27/repostflow/internal/jobs"
	"github.com/maheshrc27/repostflow/internal/service"
)

type ControlHandler struct {
	cfg       config.Config
	packages  *service.PackageService
	costGuard *job.CostGuardJob
}

func NewControlHandler(cfg config.Config, packages *service.PackageService, costGuard *job.CostGuardJob) *ControlHandler {
	return &ControlHandler{cfg: cfg, packages: packages, costGuard: costGuard}
}

func (h *ControlHandler) Index(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "running",
		"service": "Instagram Auto-Repost Bot",
		"endpoints": fiber.Map{
			"/download-zip":    "GET with ?token=TOKEN - Download project package (secured)",
			"/trigger-package": "POST with X-Trigger-Key header - Manually trigger packaging (secured)",
			"/health":          "Health check",
		},
		"security": "All sensitive endpoints are protected with authentication",
	})
}

func (h *ControlHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
}

// DownloadZip streams the project archive to a caller presenting the
// current download token, then burns the token.
func (h *ControlHandler) DownloadZip(c *fiber.Ctx) error {
	token := c.Query("token")
	if !h.packages.ValidateDownloadToken(token) {
		slog.Warn("invalid download token attempt", "ip", c.IP())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Invalid or missing download token",
		})
	}

	archivePath := h.packages.ArchivePath()
	if _, err := os.Stat(archivePath); err != nil {
		slog.Error("archive not found for authorized download", "path", archivePath)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "ZIP file not found. Package not created yet.",
		})
	}

	slog.Info("authorized archive download", "ip", c.IP())
	h.packages.InvalidateDownloadToken()

	c.Set(fiber.HeaderContentType, "application/zip")
	return c.Download(archivePath, service.ArchiveFileName)
}

// TriggerPackage builds the archive on demand and returns a fresh
// single-use download link. Auth happens in the trigger middleware.
func (h *ControlHandler) TriggerPackage(c *fiber.Ctx) error {
	token, err := h.packages.GenerateDownloadToken()
	if err != nil {
		slog.Error("failed to generate download token", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate download token",
		})
	}

	if _, err := h.costGuard.HandleCreditLimitReached(c.Context(), token); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create project package",
		})
	}

	downloadURL := h.packages.DownloadURL(h.cfg.PublicDomain, token)
	slog.Info("package created via manual trigger", "download_url", downloadURL)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":        true,
		"message":        "Project packaged successfully",
		"download_url":   downloadURL,
		"download_token": token,
	})
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	"github.com/robfig/cron"

	config "github.com/maheshrc27/repostflow/configs"
	"github.com/maheshrc27/repostflow/internal/api/handlers"
	"github.com/maheshrc27/repostflow/internal/api/middleware"
	job "github.com/maheshrc27/repostflow/internal/jobs"
	"github.com/maheshrc27/repostflow/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	if missing := cfg.MissingRequiredVars(); len(missing) > 0 {
		log.Printf("Missing required environment variables: %s", strings.Join(missing, ", "))
		log.Println("Subsystems with missing credentials will not start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := service.NewTelegramNotifier(*cfg)
	packages := service.NewPackageService(".", cfg.Scraper.SessionFile)
	costGuard := job.NewCostGuardJob(*cfg, job.NewEnvSpendIndicator(*cfg), packages, notifier)

	var wg sync.WaitGroup
	var scraper service.ExploreScraper

	// The repost pipeline needs the full credential set; the control
	// surface and cost guard run regardless so a degraded bot can still
	// be packaged and downloaded.
	posterMissing := append(cfg.MissingPosterVars(), cfg.MissingScraperVars()...)
	if len(posterMissing) == 0 {
		scraper = service.NewScraperService(*cfg)
		downloader, err := service.NewVideoDownloader(*cfg)
		if err != nil {
			log.Fatalf("Failed to prepare download directory: %v", err)
		}

		cycle := service.NewRepostCycle(
			*cfg,
			scraper,
			service.NewViralitySelector(),
			downloader,
			service.NewCaptionService(*cfg),
			service.NewContainerPublisher(*cfg),
			notifier,
		)

		repostJob := job.NewRepostJob(cycle, cfg.PostingInterval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			repostJob.Run(ctx)
		}()
		log.Printf("Auto-repost loop started, posting every %s", cfg.PostingInterval)
	} else {
		log.Printf("Repost loop disabled, missing: %s", strings.Join(posterMissing, ", "))
	}

	c := cron.New()
	c.AddFunc(cronEvery(cfg.CreditCheckInterval), costGuard.CheckCredits)
	if scraper != nil {
		sessionJob := job.NewSessionRefreshJob(scraper)
		c.AddFunc("@every 12h00m00s", sessionJob.RefreshSession)
	}
	c.Start()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New())

	triggerAuth := middleware.NewTriggerMiddleware(*cfg)
	control := handlers.NewControlHandler(*cfg, packages, costGuard)
	app.Get("/", control.Index)
	app.Get("/health", control.Health)
	app.Get("/download-zip", control.DownloadZip)
	app.Post("/trigger-package", triggerAuth.RequireTriggerKey(), control.TriggerPackage)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	notifier.Notify(ctx, "Instagram Auto-Repost Bot Started", service.NotifySuccess)

	gracefulShutdown(app, c, cancel, &wg, scraper, notifier)
}

func cronEvery(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("@every %02dh%02dm%02ds", h, m, s)
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, cancel context.CancelFunc, wg *sync.WaitGroup, scraper service.ExploreScraper, notifier service.Notifier) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down bot...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	notifier.Notify(shutdownCtx, "Instagram Auto-Repost Bot Stopped", service.NotifyInfo)

	cancel()
	c.Stop()
	wg.Wait()

	if scraper != nil {
		scraper.Logout(shutdownCtx)
	}

	if err := app.Shutdown(); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}

	log.Println("Bot shutdown complete.")
}

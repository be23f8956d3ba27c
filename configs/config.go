package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Instagram struct {
	AccessToken     string
	UserID          string
	GraphAPIVersion string
}

type Scraper struct {
	Username    string
	Password    string
	SessionFile string
	APIBaseURL  string
}

type Telegram struct {
	BotToken string
	ChatID   string
}

type Config struct {
	PostingInterval   time.Duration
	ExploreFetchCount int
	MinLikes          int
	MinViews          int
	MinEngagementRate float64
	VideoDownloadPath string
	VideoURL          string
	KeepLatestVideos  int

	CreditLimit         float64
	CreditCheckInterval time.Duration
	TriggerZipCreation  bool

	Port          string
	PublicDomain  string
	TriggerAPIKey string

	Instagram Instagram
	Scraper   Scraper
	Telegram  Telegram

	OpenAIAPIKey  string
	UseAICaptions bool

	SecretKey string
}

func LoadConfig() *Config {
	return &Config{
		PostingInterval:   time.Duration(getEnvInt("POSTING_INTERVAL_HOURS", 3)) * time.Hour,
		ExploreFetchCount: getEnvInt("EXPLORE_FETCH_COUNT", 50),
		MinLikes:          getEnvInt("MIN_LIKES", 10000),
		MinViews:          getEnvInt("MIN_VIEWS", 50000),
		MinEngagementRate: getEnvFloat("MIN_ENGAGEMENT_RATE", 0.05),
		VideoDownloadPath: getEnv("VIDEO_DOWNLOAD_PATH", "downloaded_videos"),
		VideoURL:          getEnv("VIDEO_URL", ""),
		KeepLatestVideos:  getEnvInt("KEEP_LATEST_VIDEOS", 5),

		CreditLimit:         getEnvFloat("CREDIT_LIMIT", 3.0),
		CreditCheckInterval: time.Duration(getEnvInt("CREDIT_CHECK_INTERVAL", 3600)) * time.Second,
		TriggerZipCreation:  getEnvBool("TRIGGER_ZIP_CREATION", false),

		Port:          getEnv("PORT", "5000"),
		PublicDomain:  getEnv("PUBLIC_DOMAIN", "localhost:5000"),
		TriggerAPIKey: getEnv("TRIGGER_API_KEY", ""),

		Instagram: Instagram{
			AccessToken:     getEnv("INSTAGRAM_ACCESS_TOKEN", ""),
			UserID:          getEnv("INSTAGRAM_USER_ID", ""),
			GraphAPIVersion: getEnv("GRAPH_API_VERSION", "v21.0"),
		},
		Scraper: Scraper{
			Username:    getEnv("INSTAGRAM_SCRAPER_USERNAME", ""),
			Password:    getEnv("INSTAGRAM_SCRAPER_PASSWORD", ""),
			SessionFile: getEnv("INSTAGRAM_SESSION_FILE", "instagram_session.json"),
			APIBaseURL:  getEnv("SCRAPER_API_BASE_URL", "https://i.instagram.com"),
		},
		Telegram: Telegram{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		UseAICaptions: getEnvBool("USE_AI_CAPTIONS", true),

		SecretKey: getEnv("SECRET_KEY", ""),
	}
}

// MissingRequiredVars reports which required environment variables are
// absent. An empty result means the full bot can start; a non-empty one
// lists exactly what the operator has to configure.
func (c *Config) MissingRequiredVars() []string {
	var missing []string
	missing = append(missing, c.MissingPosterVars()...)
	missing = append(missing, c.MissingScraperVars()...)
	missing = append(missing, c.MissingNotifierVars()...)
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.TriggerAPIKey == "" {
		missing = append(missing, "TRIGGER_API_KEY")
	}
	return missing
}

func (c *Config) MissingPosterVars() []string {
	var missing []string
	if c.Instagram.AccessToken == "" {
		missing = append(missing, "INSTAGRAM_ACCESS_TOKEN")
	}
	if c.Instagram.UserID == "" {
		missing = append(missing, "INSTAGRAM_USER_ID")
	}
	return missing
}

func (c *Config) MissingScraperVars() []string {
	var missing []string
	if c.Scraper.Username == "" {
		missing = append(missing, "INSTAGRAM_SCRAPER_USERNAME")
	}
	if c.Scraper.Password == "" {
		missing = append(missing, "INSTAGRAM_SCRAPER_PASSWORD")
	}
	return missing
}

func (c *Config) MissingNotifierVars() []string {
	var missing []string
	if c.Telegram.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.Telegram.ChatID == "" {
		missing = append(missing, "TELEGRAM_CHAT_ID")
	}
	return missing
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.EqualFold(strings.TrimSpace(value), "true")
	}
	return defaultValue
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	config "github.com/maheshrc27/repostflow/configs"
	"github.com/maheshrc27/repostflow/internal/models"
	"github.com/maheshrc27/repostflow/internal/transfer"
)

const (
	telegramBaseURL     = "https://api.telegram.org"
	telegramCallTimeout = 30 * time.Second
)

// NotificationKind selects the emoji prefix for a plain notification.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyWarning NotificationKind = "warning"
	NotifyInfo    NotificationKind = "info"
	NotifyPosted  NotificationKind = "posted"
	NotifyZip     NotificationKind = "zip"
)

var kindEmoji = map[NotificationKind]string{
	NotifySuccess: "✅",
	NotifyError:   "❌",
	NotifyWarning: "⚠️",
	NotifyInfo:    "ℹ️",
	NotifyPosted:  "📸",
	NotifyZip:     "📦",
}

// Notifier delivers operator notifications. Delivery is best effort: send
// failures are logged and never escalate into the calling component.
type Notifier interface {
	Notify(ctx context.Context, message string, kind NotificationKind)
	SendPostReport(ctx context.Context, report models.CycleReport)
	SendPackageLink(ctx context.Context, downloadURL string)
}

type telegramNotifier struct {
	botToken   string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

type NotifierOption func(*telegramNotifier)

func WithNotifierBaseURL(base string) NotifierOption {
	return func(n *telegramNotifier) { n.baseURL = strings.TrimRight(base, "/") }
}

func WithNotifierHTTPClient(client *http.Client) NotifierOption {
	return func(n *telegramNotifier) { n.httpClient = client }
}

func NewTelegramNotifier(cfg config.Config, opts ...NotifierOption) Notifier {
	n := &telegramNotifier{
		botToken:   cfg.Telegram.BotToken,
		chatID:     cfg.Telegram.ChatID,
		baseURL:    telegramBaseURL,
		httpClient: &http.Client{Timeout: telegramCallTimeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *telegramNotifier) Notify(ctx context.Context, message string, kind NotificationKind) {
	emoji, ok := kindEmoji[kind]
	if !ok {
		emoji = kindEmoji[NotifyInfo]
	}
	n.send(ctx, fmt.Sprintf("%s %s", emoji, message))
}

func (n *telegramNotifier) SendPostReport(ctx context.Context, report models.CycleReport) {
	var sb strings.Builder

	title := "N/A"
	author := "N/A"
	likes, views := 0, 0
	if report.Selected != nil {
		title = videoTitle(*report.Selected)
		author = "@" + report.Selected.AuthorHandle
		likes = report.Selected.LikeCount
		views = report.Selected.ViewCount
	}

	captionPreview := report.Caption
	if truncated := truncateRunes(captionPreview, 150); truncated != captionPreview {
		captionPreview = truncated + "..."
	}
	if captionPreview == "" {
		captionPreview = "N/A"
	}

	if report.Success {
		sb.WriteString("📸 <b>Instagram Post Published!</b>\n\n")
	} else {
		sb.WriteString("❌ <b>Instagram Post Failed!</b>\n\n")
	}
	fmt.Fprintf(&sb, "🎬 <b>Video:</b> %s\n", title)
	fmt.Fprintf(&sb, "👤 <b>Author:</b> %s\n", author)
	fmt.Fprintf(&sb, "❤️ <b>Likes:</b> %d | 👁 <b>Views:</b> %d\n\n", likes, views)
	fmt.Fprintf(&sb, "📝 <b>Caption Preview:</b>\n%s\n\n", captionPreview)

	if report.Success {
		sb.WriteString("✅ <b>Status:</b> Posted Successfully\n")
		fmt.Fprintf(&sb, "🆔 <b>Media ID:</b> %s\n", report.MediaID)
		fmt.Fprintf(&sb, "⏰ <b>Posted At:</b> %s\n", report.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&sb, "⚡ <b>Duration:</b> %.1fs\n", report.Duration.Seconds())
	} else {
		sb.WriteString("❌ <b>Status:</b> Failed\n")
		fmt.Fprintf(&sb, "🔴 <b>Error:</b> %s\n", report.ErrorReason)
		fmt.Fprintf(&sb, "⏰ <b>Attempted At:</b> %s\n", report.StartedAt.Format("2006-01-02 15:04:05"))
	}

	n.send(ctx, sb.String())
}

func (n *telegramNotifier) SendPackageLink(ctx context.Context, downloadURL string) {
	message := fmt.Sprintf(`📦 <b>Credit Limit Reached!</b>

Your bot has been packaged and is ready for download.

<b>Download Link:</b> %s

The bot will continue running but you should download the package and deploy it to your own VPS to avoid additional charges.`, downloadURL)

	n.send(ctx, message)
}

func (n *telegramNotifier) send(ctx context.Context, text string) {
	payload := transfer.TelegramSendMessage{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: "HTML",
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		slog.Error("error marshalling telegram payload", "error", err)
		return
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(encoded))
	if err != nil {
		slog.Error("error creating telegram request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		slog.Error("error sending telegram notification", "error", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("error reading telegram response", "error", err)
		return
	}

	var result transfer.TelegramResponse
	if err := json.Unmarshal(body, &result); err != nil || !result.OK {
		slog.Error("telegram notification rejected", "status", resp.StatusCode, "description", result.Description)
		return
	}

	slog.Info("telegram notification sent")
}

func videoTitle(c models.VideoCandidate) string {
	if c.Caption != "" {
		if truncated := truncateRunes(c.Caption, 50); truncated != c.Caption {
			return truncated + "..."
		}
		return c.Caption
	}
	return fmt.Sprintf("Video by @%s", c.AuthorHandle)
}

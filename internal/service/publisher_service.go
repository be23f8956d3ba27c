package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	config "github.com/maheshrc27/repostflow/configs"
	"github.com/maheshrc27/repostflow/internal/models"
	"github.com/maheshrc27/repostflow/internal/transfer"
)

const (
	defaultPublishMaxWait   = 600 * time.Second
	defaultPollInterval     = 5 * time.Second
	defaultGraphCallTimeout = 30 * time.Second
	graphBaseURL            = "https://graph.facebook.com"
)

// PublishResult is the single terminal outcome of a PublishAndWait call.
// Error is non-empty exactly when Success is false.
type PublishResult struct {
	Success bool
	MediaID string
	Status  models.PublishStatus
	Error   string
}

// ContainerPublisher drives one Graph API upload: create a media container,
// poll it until processing finishes, then publish it. It never lets a
// transport error escape; every call returns a PublishResult.
type ContainerPublisher interface {
	PublishAndWait(ctx context.Context, videoURL, caption string) PublishResult
}

type containerPublisher struct {
	accessToken  string
	igUserID     string
	baseURL      string
	maxWait      time.Duration
	pollInterval time.Duration
	httpClient   *http.Client
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// PublisherOption customizes the publisher, mostly for tests.
type PublisherOption func(*containerPublisher)

func WithPublisherBaseURL(base string) PublisherOption {
	return func(p *containerPublisher) { p.baseURL = base }
}

func WithPublisherMaxWait(d time.Duration) PublisherOption {
	return func(p *containerPublisher) { p.maxWait = d }
}

func WithPublisherPollInterval(d time.Duration) PublisherOption {
	return func(p *containerPublisher) { p.pollInterval = d }
}

// WithPublisherClock swaps the wall clock and sleeper for a fake.
func WithPublisherClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) PublisherOption {
	return func(p *containerPublisher) {
		p.now = now
		p.sleep = sleep
	}
}

func WithPublisherHTTPClient(client *http.Client) PublisherOption {
	return func(p *containerPublisher) { p.httpClient = client }
}

func NewContainerPublisher(cfg config.Config, opts ...PublisherOption) ContainerPublisher {
	p := &containerPublisher{
		accessToken:  cfg.Instagram.AccessToken,
		igUserID:     cfg.Instagram.UserID,
		baseURL:      fmt.Sprintf("%s/%s", graphBaseURL, cfg.Instagram.GraphAPIVersion),
		maxWait:      defaultPublishMaxWait,
		pollInterval: defaultPollInterval,
		httpClient:   &http.Client{Timeout: defaultGraphCallTimeout},
		now:          time.Now,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
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

func (p *containerPublisher) PublishAndWait(ctx context.Context, videoURL, caption string) PublishResult {
	containerID, err := p.createContainer(ctx, videoURL, caption)
	if err != nil {
		slog.Error("container creation failed", "error", err)
		return PublishResult{Status: models.PublishStatusError, Error: "container creation failed"}
	}

	slog.Info("video container created", "container_id", containerID)

	deadline := p.now().Add(p.maxWait)
	for p.now().Before(deadline) {
		status, err := p.checkStatus(ctx, containerID)
		if err != nil {
			// Transient poll errors count as an ERROR status, matching
			// how the Graph API reports failed processing.
			slog.Error("container status check failed", "container_id", containerID, "error", err)
			status = string(models.PublishStatusError)
		}

		switch status {
		case string(models.PublishStatusFinished):
			mediaID, err := p.publishContainer(ctx, containerID)
			if err != nil {
				slog.Error("publish failed", "container_id", containerID, "error", err)
				return PublishResult{Status: models.PublishStatusError, Error: "publish failed"}
			}
			slog.Info("video published", "media_id", mediaID)
			return PublishResult{Success: true, MediaID: mediaID, Status: models.PublishStatusPublished}
		case string(models.PublishStatusError):
			return PublishResult{Status: models.PublishStatusError, Error: "container processing error"}
		}

		slog.Info("container still processing", "container_id", containerID, "status", status)
		if err := p.sleep(ctx, p.pollInterval); err != nil {
			return PublishResult{Status: models.PublishStatusError, Error: "publish canceled"}
		}
	}

	slog.Error("container processing exceeded budget", "container_id", containerID, "max_wait", p.maxWait)
	return PublishResult{Status: models.PublishStatusTimeout, Error: "container processing timeout"}
}

func (p *containerPublisher) createContainer(ctx context.Context, videoURL, caption string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media", p.baseURL, p.igUserID)
	params := url.Values{}
	params.Set("access_token", p.accessToken)
	params.Set("video_url", videoURL)
	params.Set("media_type", "REELS")
	params.Set("share_to_feed", "true")
	params.Set("caption", caption)

	var result transfer.GraphContainerResponse
	if err := p.postForm(ctx, endpoint, params, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("no container ID returned from Graph API")
	}
	return result.ID, nil
}

func (p *containerPublisher) checkStatus(ctx context.Context, containerID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", p.baseURL, containerID, url.QueryEscape(p.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", graphError(resp.StatusCode, body)
	}

	var result transfer.GraphStatusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.StatusCode == "" {
		return "UNKNOWN", nil
	}
	return result.StatusCode, nil
}

func (p *containerPublisher) publishContainer(ctx context.Context, containerID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", p.baseURL, p.igUserID)
	params := url.Values{}
	params.Set("access_token", p.accessToken)
	params.Set("creation_id", containerID)

	var result transfer.GraphContainerResponse
	if err := p.postForm(ctx, endpoint, params, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("no media ID returned from Graph API")
	}
	return result.ID, nil
}

func (p *containerPublisher) postForm(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return graphError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

func graphError(statusCode int, body []byte) error {
	var errResp transfer.GraphErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Errorf("graph API error %d (code %d): %s", statusCode, errResp.Error.Code, errResp.Error.Message)
	}
	return fmt.Errorf("unexpected status code from Graph API: %d", statusCode)
}

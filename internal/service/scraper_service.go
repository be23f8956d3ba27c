package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	config "github.com/maheshrc27/repostflow/configs"
	"github.com/maheshrc27/repostflow/internal/models"
	"github.com/maheshrc27/repostflow/internal/transfer"
	"github.com/maheshrc27/repostflow/pkg/utils"
)

const (
	scraperCallTimeout = 30 * time.Second
	mediaTypeVideo     = 2
	mediaTypeAlbum     = 8
)

// ExploreScraper fetches video candidates from the platform's explore feed.
type ExploreScraper interface {
	FetchExploreVideos(ctx context.Context, count int) ([]models.VideoCandidate, error)
	RefreshSession(ctx context.Context) error
	Logout(ctx context.Context)
}

type scraperService struct {
	cfg        config.Scraper
	secretKey  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	// mu guards session; the fetch path and the cron-driven refresh run
	// on different goroutines.
	mu      sync.Mutex
	session *transfer.ScraperSession
}

type ScraperOption func(*scraperService)

func WithScraperBaseURL(base string) ScraperOption {
	return func(s *scraperService) { s.baseURL = base }
}

func WithScraperHTTPClient(client *http.Client) ScraperOption {
	return func(s *scraperService) { s.httpClient = client }
}

func WithScraperLimiter(limiter *rate.Limiter) ScraperOption {
	return func(s *scraperService) { s.limiter = limiter }
}

// NewScraperService builds the explore feed client. Scrape traffic is
// throttled to stay under the provider's rate limits; login state is
// persisted between runs so restarts do not burn login attempts.
func NewScraperService(cfg config.Config, opts ...ScraperOption) ExploreScraper {
	s := &scraperService{
		cfg:        cfg.Scraper,
		secretKey:  cfg.SecretKey,
		baseURL:    cfg.Scraper.APIBaseURL,
		httpClient: &http.Client{Timeout: scraperCallTimeout},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *scraperService) FetchExploreVideos(ctx context.Context, count int) ([]models.VideoCandidate, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, fmt.Errorf("scraper login: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/v1/discover/explore/?count=%d", s.baseURL, count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code from explore feed: %d", resp.StatusCode)
	}

	var feed transfer.ExploreFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("error parsing explore feed: %w", err)
	}

	candidates := make([]models.VideoCandidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.MediaType != mediaTypeVideo && item.MediaType != mediaTypeAlbum {
			continue
		}
		candidates = append(candidates, candidateFromItem(item))
	}

	slog.Info("explore feed fetched", "videos", len(candidates), "requested", count)
	return candidates, nil
}

func candidateFromItem(item transfer.ExploreMediaItem) models.VideoCandidate {
	c := models.VideoCandidate{
		MediaID:        item.Pk,
		Shortcode:      item.Code,
		Caption:        item.Caption.Text,
		LikeCount:      item.LikeCount,
		ViewCount:      item.ViewCount,
		CommentCount:   item.CommentCount,
		TakenAt:        time.Unix(item.TakenAt, 0),
		AuthorHandle:   item.User.Username,
		AuthorName:     item.User.FullName,
		AuthorVerified: item.User.IsVerified,
	}
	if len(item.VideoVersions) > 0 {
		c.VideoURL = item.VideoVersions[0].URL
	}
	if len(item.ImageVersions.Candidates) > 0 {
		c.ThumbnailURL = item.ImageVersions.Candidates[0].URL
	}
	return c
}

// ensureSession loads the persisted session or logs in fresh.
func (s *scraperService) ensureSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return nil
	}

	if session, err := s.loadSession(); err == nil {
		s.session = session
		slog.Info("loaded existing scraper session", "username", session.Username)
		return nil
	} else if !os.IsNotExist(err) {
		slog.Warn("failed to load scraper session, logging in fresh", "error", err)
	}

	session, err := s.login(ctx)
	if err != nil {
		return err
	}
	s.session = session

	if err := s.saveSession(session); err != nil {
		slog.Warn("failed to persist scraper session", "error", err)
	}
	return nil
}

// RefreshSession replaces the session in use. The old session stays live
// until the new login succeeds, so a fetch in flight is never left
// unauthenticated by a refresh.
func (s *scraperService) RefreshSession(ctx context.Context) error {
	session, err := s.login(ctx)
	if err != nil {
		return fmt.Errorf("scraper session refresh: %w", err)
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	if err := s.saveSession(session); err != nil {
		slog.Warn("failed to persist scraper session", "error", err)
	}
	return nil
}

func (s *scraperService) login(ctx context.Context) (*transfer.ScraperSession, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload := map[string]string{
		"username": s.cfg.Username,
		"password": s.cfg.Password,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/accounts/login/", bytes.NewBuffer(encoded))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	var loginResp transfer.ScraperLoginResponse
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return nil, fmt.Errorf("error parsing login response: %w", err)
	}
	if loginResp.SessionID == "" {
		return nil, fmt.Errorf("login failed: %s", loginResp.Message)
	}

	slog.Info("new scraper session created", "username", s.cfg.Username)
	return &transfer.ScraperSession{
		Username:  s.cfg.Username,
		SessionID: loginResp.SessionID,
		CSRFToken: loginResp.CSRFToken,
		DeviceID:  "android-" + strconv.FormatInt(time.Now().UnixNano(), 16),
		CreatedAt: time.Now().Unix(),
	}, nil
}

func (s *scraperService) authorize(req *http.Request) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil {
		return
	}
	req.Header.Set("Cookie", fmt.Sprintf("sessionid=%s; csrftoken=%s", session.SessionID, session.CSRFToken))
	req.Header.Set("X-CSRFToken", session.CSRFToken)
}

// Session blobs are AES-GCM encrypted at rest when SECRET_KEY is set.
func (s *scraperService) saveSession(session *transfer.ScraperSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	if s.secretKey != "" {
		sealed, err := utils.Encrypt(data, []byte(s.secretKey))
		if err != nil {
			return err
		}
		data = []byte(sealed)
	}

	return os.WriteFile(s.cfg.SessionFile, data, 0o600)
}

func (s *scraperService) loadSession() (*transfer.ScraperSession, error) {
	data, err := os.ReadFile(s.cfg.SessionFile)
	if err != nil {
		return nil, err
	}

	if s.secretKey != "" {
		plain, err := utils.Decrypt(string(data), []byte(s.secretKey))
		if err != nil {
			return nil, fmt.Errorf("decrypt session: %w", err)
		}
		data = plain
	}

	var session transfer.ScraperSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	if session.SessionID == "" {
		return nil, fmt.Errorf("session file has no session id")
	}
	return &session, nil
}

func (s *scraperService) Logout(ctx context.Context) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v1/accounts/logout/", nil)
	if err != nil {
		return
	}
	s.authorize(req)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Warn("scraper logout failed", "error", err)
		return
	}
	resp.Body.Close()

	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	slog.Info("scraper session closed")
}

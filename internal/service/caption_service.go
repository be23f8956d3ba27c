package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	config "github.com/maheshrc27/repostflow/configs"
	"github.com/maheshrc27/repostflow/internal/transfer"
)

const (
	openAIBaseURL       = "https://api.openai.com/v1"
	openAIModel         = "gpt-5"
	openAICallTimeout   = 30 * time.Second
	captionMaxTokens    = 500
	minHashtagCount     = 15
	maxHashtagCount     = 20
	captionCallToAction = "Follow for more! 💯"
)

var fallbackHooks = []string{
	"🚀 This will change everything!",
	"🤯 Mind-blowing content you need to see!",
	"💡 This is incredible!",
	"🔥 This is absolutely game-changing!",
	"⚡ Everyone's talking about this!",
	"🌟 This just got a whole lot better!",
	"🎯 This is what we've been waiting for!",
	"💥 Groundbreaking content revealed!",
	"🚨 Alert: This changes the game completely!",
	"✨ The most impressive thing you'll see today!",
}

var hashtagPool = []string{
	"#Viral", "#Trending", "#Amazing", "#Incredible", "#MustWatch",
	"#Explore", "#ForYou", "#Wow", "#Insane", "#Epic",
	"#ContentCreator", "#Insta", "#InstaGood", "#InstaDaily", "#InstaMood",
	"#PhotoOfTheDay", "#Video", "#Reel", "#Reels", "#Vibes",
	"#Motivation", "#Inspiration", "#Goals", "#Success", "#Lifestyle",
	"#Follow", "#Like", "#Share", "#Comment", "#Engagement",
}

const captionSystemPrompt = "You are a viral Instagram content creator expert who specializes in writing engaging, high-converting captions that drive engagement and followers."

const captionPromptTemplate = `Generate a catchy, viral Instagram caption for a video.%s

Requirements:
- Start with an attention-grabbing hook (use emojis)
- Make it engaging and compelling
- Keep it concise (under 150 characters for the main text)
- Add 15-20 relevant trending hashtags
- End with a call-to-action like "Follow for more!" or "Double tap if you agree!"
- Make it sound natural and authentic, not robotic
- Focus on creating FOMO (fear of missing out)

Format the caption exactly like this:
[Attention-grabbing hook with emoji]

[15-20 hashtags separated by spaces]

[Call to action]`

// CaptionService always produces a non-empty caption. The AI path is best
// effort; any failure falls back to template generation silently.
type CaptionService interface {
	Generate(ctx context.Context, videoContext string) string
}

type captionService struct {
	apiKey     string
	baseURL    string
	useAI      bool
	httpClient *http.Client
	rng        *rand.Rand
	rngMu      sync.Mutex

	cacheMu      sync.Mutex
	hashtagCache map[hashtagCacheKey][]string
}

type hashtagCacheKey struct {
	count int
	seed  int64
}

type CaptionOption func(*captionService)

func WithCaptionBaseURL(base string) CaptionOption {
	return func(s *captionService) { s.baseURL = strings.TrimRight(base, "/") }
}

func WithCaptionHTTPClient(client *http.Client) CaptionOption {
	return func(s *captionService) { s.httpClient = client }
}

// WithCaptionRand swaps the random source, for tests.
func WithCaptionRand(rng *rand.Rand) CaptionOption {
	return func(s *captionService) { s.rng = rng }
}

func NewCaptionService(cfg config.Config, opts ...CaptionOption) CaptionService {
	s := &captionService{
		apiKey:       cfg.OpenAIAPIKey,
		baseURL:      openAIBaseURL,
		useAI:        cfg.UseAICaptions && cfg.OpenAIAPIKey != "",
		httpClient:   &http.Client{Timeout: openAICallTimeout},
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		hashtagCache: make(map[hashtagCacheKey][]string),
	}
	if cfg.UseAICaptions && cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY not set, falling back to template captions")
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *captionService) Generate(ctx context.Context, videoContext string) string {
	if s.useAI {
		caption, err := s.generateAICaption(ctx, videoContext)
		if err != nil {
			slog.Warn("AI caption generation failed, using template fallback", "error", err)
		} else if caption != "" {
			return caption
		}
	}
	return s.generateTemplateCaption()
}

func (s *captionService) generateAICaption(ctx context.Context, videoContext string) (string, error) {
	contextText := ""
	if videoContext != "" {
		contextText = fmt.Sprintf(" The video is about: %s", videoContext)
	}

	reqBody := transfer.ChatCompletionRequest{
		Model: openAIModel,
		Messages: []transfer.ChatMessage{
			{Role: "system", Content: captionSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(captionPromptTemplate, contextText)},
		},
		MaxCompletionTokens: captionMaxTokens,
	}

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var completion transfer.ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("api error: %s", completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("empty choices")
	}

	caption := strings.TrimSpace(completion.Choices[0].Message.Content)
	if caption == "" {
		return "", errors.New("empty caption content")
	}
	slog.Info("AI caption generated", "length", len(caption))
	return caption, nil
}

func (s *captionService) generateTemplateCaption() string {
	s.rngMu.Lock()
	hook := fallbackHooks[s.rng.Intn(len(fallbackHooks))]
	count := minHashtagCount + s.rng.Intn(maxHashtagCount-minHashtagCount+1)
	seed := s.rng.Int63n(1000000)
	s.rngMu.Unlock()

	hashtags := s.cachedHashtags(count, seed)

	return fmt.Sprintf("%s\n\n%s\n\n%s", hook, strings.Join(hashtags, " "), captionCallToAction)
}

// cachedHashtags memoizes hashtag samples by (count, seed). The cache only
// skips re-sampling; the distribution is identical to sampling directly.
func (s *captionService) cachedHashtags(count int, seed int64) []string {
	key := hashtagCacheKey{count: count, seed: seed}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if cached, ok := s.hashtagCache[key]; ok {
		return cached
	}

	if count > len(hashtagPool) {
		count = len(hashtagPool)
	}
	rng := rand.New(rand.NewSource(seed))
	picked := rng.Perm(len(hashtagPool))[:count]
	hashtags := make([]string, count)
	for i, idx := range picked {
		hashtags[i] = hashtagPool[idx]
	}

	s.hashtagCache[key] = hashtags
	return hashtags
}

package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/repostflow/configs"
)

func TestGenerateTemplateWhenAIDisabled(t *testing.T) {
	s := NewCaptionService(config.Config{UseAICaptions: false})

	caption := s.Generate(context.Background(), "some context")

	require.NotEmpty(t, caption)
	parts := strings.Split(caption, "\n\n")
	require.Len(t, parts, 3, "caption should be hook, hashtags, call-to-action")

	hashtags := strings.Fields(parts[1])
	assert.GreaterOrEqual(t, len(hashtags), 15)
	assert.LessOrEqual(t, len(hashtags), 20)
	for _, h := range hashtags {
		assert.True(t, strings.HasPrefix(h, "#"), "hashtag %q should start with #", h)
	}
	seen := make(map[string]bool)
	for _, h := range hashtags {
		assert.False(t, seen[h], "hashtag %q repeated", h)
		seen[h] = true
	}
}

func TestGenerateTemplateWhenKeyMissing(t *testing.T) {
	s := NewCaptionService(config.Config{UseAICaptions: true})

	caption := s.Generate(context.Background(), "")

	assert.NotEmpty(t, caption)
}

func TestGenerateUsesAIBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"🔥 AI caption\n\n#Viral\n\nFollow for more!"}}]}`)
	}))
	defer srv.Close()

	s := NewCaptionService(
		config.Config{UseAICaptions: true, OpenAIAPIKey: "test-key"},
		WithCaptionBaseURL(srv.URL),
	)

	caption := s.Generate(context.Background(), "a cat doing backflips")

	assert.Equal(t, "🔥 AI caption\n\n#Viral\n\nFollow for more!", caption)
}

func TestGenerateFallsBackOnBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewCaptionService(
		config.Config{UseAICaptions: true, OpenAIAPIKey: "test-key"},
		WithCaptionBaseURL(srv.URL),
	)

	caption := s.Generate(context.Background(), "anything")

	require.NotEmpty(t, caption)
	assert.Contains(t, caption, "#")
}

func TestGenerateFallsBackOnUnreachableBackend(t *testing.T) {
	s := NewCaptionService(
		config.Config{UseAICaptions: true, OpenAIAPIKey: "test-key"},
		WithCaptionBaseURL("http://127.0.0.1:1"),
	)

	caption := s.Generate(context.Background(), "anything")

	assert.NotEmpty(t, caption)
}

func TestGenerateFallsBackOnMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	s := NewCaptionService(
		config.Config{UseAICaptions: true, OpenAIAPIKey: "test-key"},
		WithCaptionBaseURL(srv.URL),
	)

	caption := s.Generate(context.Background(), "anything")

	assert.NotEmpty(t, caption)
}

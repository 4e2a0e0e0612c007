package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, healthy bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var generations atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			if !healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"loading"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case "/v1/images/generate":
			var req GenerateImageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if r.Header.Get("Authorization") != "Bearer secret" || r.Header.Get("X-Worker-ID") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			generations.Add(1)
			_ = json.NewEncoder(w).Encode(GenerateImageResponse{
				Image:    base64.StdEncoding.EncodeToString([]byte(req.Prompt + "/" + req.Style)),
				MimeType: "image/jpeg",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &generations
}

func TestGeneratorClient_Generate(t *testing.T) {
	srv, _ := newBackend(t, true)
	c := NewGeneratorClient(&config.GeneratorConfig{BaseURL: srv.URL, APIKey: "secret"}, "worker-1", zerolog.Nop())

	artifact, err := c.Generate(context.Background(), "a cat", "anime")
	require.NoError(t, err)
	assert.Equal(t, "a cat/anime", string(artifact.Data))
	assert.Equal(t, "image/jpeg", artifact.MimeType)
}

func TestGeneratorClient_ErrorStatus(t *testing.T) {
	srv, _ := newBackend(t, true)
	c := NewGeneratorClient(&config.GeneratorConfig{BaseURL: srv.URL, APIKey: "wrong"}, "worker-1", zerolog.Nop())

	_, err := c.Generate(context.Background(), "a cat", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestLauncher_WarmsUpRealBackend(t *testing.T) {
	srv, generations := newBackend(t, true)
	launch := NewLauncher(&config.GeneratorConfig{BaseURL: srv.URL, APIKey: "secret", WarmupPrompt: "girl"}, zerolog.Nop())

	capability, err := launch(context.Background(), "worker-1")
	require.NoError(t, err)
	assert.IsType(t, &GeneratorClient{}, capability)
	assert.Equal(t, int32(1), generations.Load())
}

func TestLauncher_UnhealthyBackendFails(t *testing.T) {
	srv, generations := newBackend(t, false)
	launch := NewLauncher(&config.GeneratorConfig{BaseURL: srv.URL, APIKey: "secret", WarmupPrompt: "girl"}, zerolog.Nop())

	capability, err := launch(context.Background(), "worker-1")
	require.Error(t, err)
	assert.Nil(t, capability)
	assert.Contains(t, err.Error(), "health check failed")
	assert.Zero(t, generations.Load())
}

func TestLauncher_MockWhenNoBaseURL(t *testing.T) {
	launch := NewLauncher(&config.GeneratorConfig{MockDelayMs: 1}, zerolog.Nop())

	capability, err := launch(context.Background(), "worker-1")
	require.NoError(t, err)
	artifact, err := capability.Generate(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, "image/png", artifact.MimeType)
	assert.True(t, strings.HasPrefix(string(artifact.Data), "\x89PNG"))
}

func TestMockGenerator_HonorsContext(t *testing.T) {
	g := NewMockGenerator(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, "x", "y")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArtifactKey(t *testing.T) {
	key := ArtifactKey("user-1", "image/png")
	assert.True(t, strings.HasPrefix(key, "generations/user-1/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.NotEqual(t, key, ArtifactKey("user-1", "image/png"))
}

func TestNewR2Client_RequiresCredentials(t *testing.T) {
	_, err := NewR2Client(&config.R2Config{BucketName: "b"})
	assert.Error(t, err)
}

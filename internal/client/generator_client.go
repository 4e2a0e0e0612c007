package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/config"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/rs/zerolog"
)

// GeneratorClient talks to one instance of the image generation backend.
type GeneratorClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	workerID   string
	logger     zerolog.Logger
}

// GenerateImageRequest represents the request for image generation
type GenerateImageRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
}

// GenerateImageResponse represents the response from image generation
type GenerateImageResponse struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

// NewGeneratorClient creates a new generator client bound to a worker
func NewGeneratorClient(cfg *config.GeneratorConfig, workerID string, logger zerolog.Logger) *GeneratorClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &GeneratorClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		workerID:   workerID,
		logger:     logger.With().Str("component", "generator").Str("worker_id", workerID).Logger(),
	}
}

// Generate produces one image for prompt in the given style
func (c *GeneratorClient) Generate(ctx context.Context, prompt, style string) (*model.Artifact, error) {
	var result GenerateImageResponse
	if err := c.post(ctx, "/v1/images/generate", &GenerateImageRequest{Prompt: prompt, Style: style}, &result); err != nil {
		return nil, err
	}
	if result.Image == "" {
		return nil, fmt.Errorf("generator returned an empty image")
	}

	data, err := base64.StdEncoding.DecodeString(result.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	mimeType := result.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &model.Artifact{Data: data, MimeType: mimeType}, nil
}

// Health probes the backend
func (c *GeneratorClient) Health(ctx context.Context) error {
	var result struct {
		Status string `json:"status"`
	}
	return c.get(ctx, "/health", &result)
}

func (c *GeneratorClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

func (c *GeneratorClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *GeneratorClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Worker-ID", c.workerID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("generator request failed")
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("generator response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("generator error (status %d): %s", resp.StatusCode, truncate(respBody, 256))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// GenerateRequest represents the request body for POST /api/generate
type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required,min=1,max=1000"`
	Style  string `json:"style" validate:"omitempty,max=64"`
}

// GenerateResponse represents a successful generation
type GenerateResponse struct {
	Message  string `json:"message"`
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
	Prompt   string `json:"prompt"`
	Style    string `json:"style"`
	Worker   string `json:"worker"`
	URL      string `json:"url,omitempty"`
}

// WarmupResponse represents the response of the warm-up endpoint
type WarmupResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	WorkerUsed string `json:"worker_used,omitempty"`
	JobID      string `json:"jobId,omitempty"`
}

// StylesResponse lists the available styles
type StylesResponse struct {
	Styles []string `json:"styles"`
	Count  int      `json:"count"`
}

// WarmupUserID attributes warm-up jobs, which consume no credits
const WarmupUserID = "system:warmup"

// NormalizePrompt trims a prompt and puts it in Unicode NFC form so that
// visually identical prompts reach the generator byte-identical.
func NormalizePrompt(prompt string) string {
	return strings.TrimSpace(norm.NFC.String(prompt))
}

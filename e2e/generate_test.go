package e2e

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/SahanWeerasiri/genApp/internal/pool"
)

func TestGenerate_Success(t *testing.T) {
	ta := setupApp(t, appOptions{waitReady: true})

	resp := ta.doAuthRequest(t, "user-1", http.MethodPost, "/api/generate", `{"prompt":"  a red fox  ","style":"anime"}`)
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["prompt"] != "a red fox" {
		t.Errorf("expected trimmed prompt, got %v", body["prompt"])
	}
	if body["style"] != "anime" {
		t.Errorf("expected style anime, got %v", body["style"])
	}
	if body["mimeType"] != "image/png" {
		t.Errorf("expected image/png, got %v", body["mimeType"])
	}
	if w, _ := body["worker"].(string); w != "worker-1" && w != "worker-2" {
		t.Errorf("unexpected worker %v", body["worker"])
	}
	img, _ := body["image"].(string)
	data, err := base64.StdEncoding.DecodeString(img)
	if err != nil || len(data) == 0 {
		t.Errorf("expected base64 image, got %q (%v)", img, err)
	}

	balance, err := ta.store.Balance(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 4 {
		t.Errorf("expected exactly one credit consumed, balance %d", balance)
	}
}

func TestGenerate_UnknownStyleFallsBackToDefault(t *testing.T) {
	ta := setupApp(t, appOptions{waitReady: true})

	resp := ta.doAuthRequest(t, "user-1", http.MethodPost, "/api/generate", `{"prompt":"castle","style":"vaporwave"}`)
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["style"] != "no style" {
		t.Errorf("expected default style, got %v", body["style"])
	}
}

func TestGenerate_InsufficientCredits(t *testing.T) {
	ta := setupApp(t, appOptions{waitReady: true, initialCredits: 1})

	resp := ta.doAuthRequest(t, "user-1", http.MethodPost, "/api/generate", `{"prompt":"first"}`)
	assertStatus(t, resp, http.StatusOK)
	readBody(t, resp)

	resp = ta.doAuthRequest(t, "user-1", http.MethodPost, "/api/generate", `{"prompt":"second"}`)
	assertStatus(t, resp, http.StatusPaymentRequired)
	if code := errorCode(t, parseJSON(t, resp)); code != "INSUFFICIENT_CREDITS" {
		t.Errorf("expected INSUFFICIENT_CREDITS, got %s", code)
	}
}

func TestGenerate_NoWorkersAvailable(t *testing.T) {
	ta := setupApp(t, appOptions{launcher: failingLauncher})
	ta.waitForState(t, "worker-1", "failed")
	ta.waitForState(t, "worker-2", "failed")

	resp := ta.doAuthRequest(t, "user-1", http.MethodPost, "/api/generate", `{"prompt":"anything"}`)
	assertStatus(t, resp, http.StatusServiceUnavailable)
	if code := errorCode(t, parseJSON(t, resp)); code != "NO_WORKERS_AVAILABLE" {
		t.Errorf("expected NO_WORKERS_AVAILABLE, got %s", code)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	capability := newBlockingCapability()
	ta := setupApp(t, appOptions{
		workers:   []string{"worker-1"},
		timeout:   50 * time.Millisecond,
		waitReady: true,
		launcher: func(ctx context.Context, workerID string) (pool.Capability, error) {
			return capability, nil
		},
	})
	t.Cleanup(capability.Release)

	resp := ta.doAuthRequest(t, "user-1", http.MethodPost, "/api/generate", `{"prompt":"slow"}`)
	assertStatus(t, resp, http.StatusGatewayTimeout)
	if code := errorCode(t, parseJSON(t, resp)); code != "GENERATION_TIMEOUT" {
		t.Errorf("expected GENERATION_TIMEOUT, got %s", code)
	}
}

func TestGenerate_CapabilityFailure(t *testing.T) {
	ta := setupApp(t, appOptions{
		workers:   []string{"worker-1"},
		waitReady: true,
		launcher: func(ctx context.Context, workerID string) (pool.Capability, error) {
			return failingCapability{}, nil
		},
	})

	resp := ta.doAuthRequest(t, "user-1", http.MethodPost, "/api/generate", `{"prompt":"crash"}`)
	assertStatus(t, resp, http.StatusBadGateway)
	if code := errorCode(t, parseJSON(t, resp)); code != "GENERATION_FAILED" {
		t.Errorf("expected GENERATION_FAILED, got %s", code)
	}
}

func TestGenerate_Validation(t *testing.T) {
	ta := setupApp(t, appOptions{waitReady: true})

	tests := []struct {
		name string
		body string
	}{
		{"missing prompt", `{"style":"anime"}`},
		{"blank prompt", `{"prompt":"   "}`},
		{"malformed json", `{"prompt":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ta.doAuthRequest(t, "user-1", http.MethodPost, "/api/generate", tt.body)
			assertStatus(t, resp, http.StatusBadRequest)
			if code := errorCode(t, parseJSON(t, resp)); code != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %s", code)
			}
		})
	}

	// rejected requests never touch credits
	balance, _ := ta.store.Balance(context.Background(), "user-1")
	if balance != 5 {
		t.Errorf("expected untouched balance, got %d", balance)
	}
}

func TestGenerate_RequiresAuth(t *testing.T) {
	ta := setupApp(t, appOptions{})

	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", `{"prompt":"fox"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

package e2e

import (
	"net/http"
	"strings"
	"testing"
)

func TestHealth_AllReady(t *testing.T) {
	ta := setupApp(t, appOptions{waitReady: true})

	resp, err := doRequest(ta.app, http.MethodGet, "/api/health", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if body["available_workers"] != float64(2) {
		t.Errorf("expected 2 available workers, got %v", body["available_workers"])
	}
	initialized := body["workers_initialized"].(map[string]interface{})
	if initialized["worker-1"] != true || initialized["worker-2"] != true {
		t.Errorf("expected every worker initialized, got %v", initialized)
	}
	statuses := body["worker_statuses"].(map[string]interface{})
	if statuses["worker-1"] != "ready" || statuses["worker-2"] != "ready" {
		t.Errorf("unexpected worker statuses %v", statuses)
	}
	queues := body["worker_queue_sizes"].(map[string]interface{})
	if queues["worker-1"] != float64(0) {
		t.Errorf("expected empty queue, got %v", queues["worker-1"])
	}
}

func TestHealth_DegradedWhenWorkersFail(t *testing.T) {
	ta := setupApp(t, appOptions{launcher: failingLauncher})
	ta.waitForState(t, "worker-1", "failed")
	ta.waitForState(t, "worker-2", "failed")

	resp, err := doRequest(ta.app, http.MethodGet, "/api/health", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["status"] != "degraded" {
		t.Errorf("expected degraded, got %v", body["status"])
	}
	initialized := body["workers_initialized"].(map[string]interface{})
	if initialized["worker-1"] != false || initialized["worker-2"] != false {
		t.Errorf("expected no worker initialized, got %v", initialized)
	}
	workers := body["workers"].([]interface{})
	first := workers[0].(map[string]interface{})
	if !strings.Contains(first["last_error"].(string), "model weights missing") {
		t.Errorf("expected setup error in status, got %v", first["last_error"])
	}
}

func TestHealthGenerate(t *testing.T) {
	ta := setupApp(t, appOptions{waitReady: true})

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp, err := doRequest(ta.app, method, "/api/health-generate", "", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusOK)

		body := parseJSON(t, resp)
		if body["status"] != "success" {
			t.Errorf("expected success, got %v", body["status"])
		}
		if w, _ := body["worker_used"].(string); w == "" {
			t.Errorf("expected worker_used, got %v", body)
		}
	}
}

func TestHealthGenerate_NoCapacity(t *testing.T) {
	ta := setupApp(t, appOptions{launcher: failingLauncher})
	ta.waitForState(t, "worker-1", "failed")
	ta.waitForState(t, "worker-2", "failed")

	resp, err := doRequest(ta.app, http.MethodGet, "/api/health-generate", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusServiceUnavailable)
}

func TestStyles(t *testing.T) {
	ta := setupApp(t, appOptions{})

	resp, err := doRequest(ta.app, http.MethodGet, "/api/styles", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	styles := body["styles"].([]interface{})
	if len(styles) == 0 || styles[0] != "no style" {
		t.Errorf("expected catalog starting with the default style, got %v", styles)
	}
	if body["count"] != float64(len(styles)) {
		t.Errorf("count %v does not match %d styles", body["count"], len(styles))
	}
}

func TestMetrics(t *testing.T) {
	ta := setupApp(t, appOptions{waitReady: true})

	resp := ta.doAuthRequest(t, "user-1", http.MethodPost, "/api/generate", `{"prompt":"fox"}`)
	assertStatus(t, resp, http.StatusOK)
	readBody(t, resp)

	resp, err := doRequest(ta.app, http.MethodGet, "/metrics", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	text := readBody(t, resp)
	for _, name := range []string{"genapp_jobs_dispatched_total", "genapp_credit_admissions_total", "genapp_worker_state"} {
		if !strings.Contains(text, name) {
			t.Errorf("expected %s in exposition", name)
		}
	}
}

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/SahanWeerasiri/genApp/internal/auth"
	"github.com/SahanWeerasiri/genApp/internal/client"
	"github.com/SahanWeerasiri/genApp/internal/config"
	"github.com/SahanWeerasiri/genApp/internal/credit"
	"github.com/SahanWeerasiri/genApp/internal/handler"
	"github.com/SahanWeerasiri/genApp/internal/metrics"
	"github.com/SahanWeerasiri/genApp/internal/middleware"
	"github.com/SahanWeerasiri/genApp/internal/model"
	"github.com/SahanWeerasiri/genApp/internal/pool"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app    *fiber.App
	pool   *pool.Pool
	issuer *auth.Issuer
	store  *credit.MemoryStore
}

// appOptions tunes setupApp. Zero values select working defaults.
type appOptions struct {
	workers        []string
	launcher       pool.Launcher
	initialCredits int
	timeout        time.Duration
	identity       auth.IdentityVerifier
	adminUIDs      []string
	waitReady      bool
}

// mockLauncher hands every worker the mock generator.
func mockLauncher(ctx context.Context, workerID string) (pool.Capability, error) {
	return client.NewMockGenerator(0), nil
}

// failingLauncher never produces a capability.
func failingLauncher(ctx context.Context, workerID string) (pool.Capability, error) {
	return nil, errors.New("model weights missing")
}

// setupApp creates a Fiber app wired like main.go, with an in-memory credit
// store and no redis.
func setupApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()

	if len(opts.workers) == 0 {
		opts.workers = []string{"worker-1", "worker-2"}
	}
	if opts.launcher == nil {
		opts.launcher = mockLauncher
	}
	if opts.initialCredits == 0 {
		opts.initialCredits = 5
	}
	if opts.timeout == 0 {
		opts.timeout = 5 * time.Second
	}

	logger := zerolog.Nop()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	validate := validator.New()

	store := credit.NewMemoryStore(opts.initialCredits)
	credits := credit.NewController(store, nil, logger, credit.WithMetrics(m))

	workerPool := pool.New(opts.launcher, logger, pool.WithMetrics(m), pool.WithInitTimeout(2*time.Second))
	for _, id := range opts.workers {
		if err := workerPool.Register(id); err != nil {
			t.Fatalf("failed to register %s: %v", id, err)
		}
	}
	workerPool.InitAll()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = workerPool.Stop(ctx)
	})

	dispatcher := pool.NewDispatcher(workerPool, m)
	bridge := pool.NewBridge(dispatcher, opts.timeout, logger, m)

	issuer := auth.NewIssuer(&config.JWTConfig{
		Secret:           testJWTSecret,
		AccessTTLMinutes: 15,
		RefreshTTLHours:  1,
	})

	// Handlers
	generateHandler := handler.NewGenerateHandler(credits, bridge, nil, validate, logger)
	creditsHandler := handler.NewCreditsHandler(credits, validate, 2, logger)
	authHandler := handler.NewAuthHandler(issuer, opts.identity, credits, validate, opts.initialCredits, opts.adminUIDs, logger)
	healthHandler := handler.NewHealthHandler(workerPool, bridge, "lovely couple", "anime", logger)
	adminHandler := handler.NewAdminHandler(workerPool, logger)

	authMiddleware := middleware.NewAuthMiddleware(issuer)
	rateLimiter := middleware.NewRateLimiter(nil, logger, m)

	app := fiber.New()

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Get("/health", healthHandler.Health)
	api.Get("/styles", healthHandler.Styles)
	api.Get("/health-generate", rateLimiter.WarmupLimit(10000), healthHandler.Warmup)
	api.Post("/health-generate", rateLimiter.WarmupLimit(10000), healthHandler.Warmup)
	api.Post("/register", authHandler.Register)
	api.Post("/refresh", authHandler.Refresh)
	api.Get("/verify", authHandler.Verify)
	api.Post("/verify", authHandler.Verify)

	// Use very high rate limits so tests don't get blocked
	api.Post("/generate", authMiddleware.Authenticate(), rateLimiter.GenerateLimit(10000), generateHandler.Generate)

	user := api.Group("/user", authMiddleware.Authenticate())
	user.Get("/tokens", creditsHandler.Tokens)
	user.Post("/tokens/add", creditsHandler.AddTokens)
	user.Get("/profile", creditsHandler.Profile)

	admin := api.Group("/admin", authMiddleware.Authenticate(), authMiddleware.RequireRole(model.RoleAdmin))
	admin.Get("/workers", adminHandler.Workers)
	admin.Post("/workers/:id/init", adminHandler.InitWorker)

	ta := &testApp{app: app, pool: workerPool, issuer: issuer, store: store}
	if opts.waitReady {
		ta.waitForWorkers(t, len(opts.workers))
	}
	return ta
}

// waitForWorkers blocks until n workers are Ready.
func (ta *testApp) waitForWorkers(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if ta.pool.Status().Available >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d ready workers, status: %+v", n, ta.pool.Status())
}

// waitForState blocks until worker id reaches state.
func (ta *testApp) waitForState(t *testing.T, id string, state model.WorkerState) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, w := range ta.pool.Snapshot() {
			if w.ID == id && w.State == state {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("worker %s never reached %s", id, state)
}

// generateToken creates an access token for test requests.
func (ta *testApp) generateToken(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := ta.issuer.IssueAccess(userID, userID+"@example.com", role)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request as userID with the user role.
func (ta *testApp) doAuthRequest(t *testing.T, userID, method, path, body string) *http.Response {
	t.Helper()
	return ta.doRoleRequest(t, userID, model.RoleUser, method, path, body)
}

func (ta *testApp) doRoleRequest(t *testing.T, userID, role, method, path, body string) *http.Response {
	t.Helper()
	token := ta.generateToken(t, userID, role)
	resp, err := doRequest(ta.app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// errorCode extracts error.code from an error envelope.
func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// blockingCapability holds every call until release is closed.
type blockingCapability struct {
	release chan struct{}
	once    sync.Once
}

func newBlockingCapability() *blockingCapability {
	return &blockingCapability{release: make(chan struct{})}
}

func (b *blockingCapability) Generate(ctx context.Context, prompt, style string) (*model.Artifact, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &model.Artifact{Data: []byte("late"), MimeType: "image/png"}, nil
}

func (b *blockingCapability) Release() {
	b.once.Do(func() { close(b.release) })
}

// failingCapability always reports a generation failure.
type failingCapability struct{}

func (failingCapability) Generate(ctx context.Context, prompt, style string) (*model.Artifact, error) {
	return nil, errors.New("CUDA out of memory")
}

// stubIdentity accepts any token and reports the configured subject.
type stubIdentity struct {
	subject string
	err     error
}

func (s stubIdentity) Verify(idToken string) (*auth.IdentityClaims, error) {
	if s.err != nil {
		return nil, s.err
	}
	claims := &auth.IdentityClaims{Email: "verified@example.com", Name: "Verified"}
	claims.Subject = s.subject
	return claims, nil
}

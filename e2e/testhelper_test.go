package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stratplan/companion/internal/auth"
	"github.com/stratplan/companion/internal/client"
	"github.com/stratplan/companion/internal/config"
	"github.com/stratplan/companion/internal/eventlog"
	"github.com/stratplan/companion/internal/handler"
	"github.com/stratplan/companion/internal/middleware"
	"github.com/stratplan/companion/internal/planning"
	"github.com/stratplan/companion/internal/service"
	"github.com/stratplan/companion/internal/transcription"
)

const (
	testJWTSecret = "test-secret-for-e2e"
	testUserID    = "test-user-123"
)

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	redis    *redis.Client
	backend  *fakeBackend
	events   *eventlog.Ring
	analysis *service.AnalysisService
}

// fakeBackend stands in for the upstream planning backend.
type fakeBackend struct {
	*httptest.Server

	mu          sync.Mutex
	approvals   map[string]int
	fetchTokens map[string]string
	version     int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	fb := &fakeBackend{
		approvals:   make(map[string]int),
		fetchTokens: make(map[string]string),
		version:     3,
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/plannings/{id}", func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Não autenticado"})
			return
		}
		fb.mu.Lock()
		fb.fetchTokens[r.PathValue("id")] = token
		fb.mu.Unlock()

		scope, _ := json.Marshal(`{"tarefas_refinadas":[{"id":"t1","titulo":"Mapear processos"}]}`)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":     r.PathValue("id"),
			"status": "completed",
			"scope":  json.RawMessage(scope),
		})
	})

	mux.HandleFunc("POST /api/planning/{id}/approve-tasks", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "rejected" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": "Planejamento já foi aprovado",
			})
			return
		}
		fb.mu.Lock()
		fb.approvals[id]++
		fb.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})

	mux.HandleFunc("POST /api/admin/users/{id}/moderate", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Action  string `json:"action"`
			Reason  string `json:"reason"`
			Version int    `json:"version"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		fb.mu.Lock()
		defer fb.mu.Unlock()
		if body.Version != fb.version {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "version mismatch"})
			return
		}
		fb.version++

		status := map[string]string{
			"APPROVE": "APPROVED",
			"REJECT":  "REJECTED",
			"SUSPEND": "SUSPENDED",
		}[body.Action]
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"clerkId": r.PathValue("id"),
			"status":  status,
			"version": fb.version,
			"reason":  body.Reason,
		})
	})

	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

func (fb *fakeBackend) approvalCount(id string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.approvals[id]
}

// fetchToken returns the bearer token of the last fetch of a planning.
func (fb *fakeBackend) fetchToken(id string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.fetchTokens[id]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// setupApp creates a Fiber app wired like main.go, against a fake backend
// and with the AI, storage and conferencing clients left unconfigured so
// their mock fallbacks are used.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis on localhost; Redis-backed tests skip when it is down
	redisClient := redis.NewClient(&redis.Options{
		Addr:        "localhost:6379",
		DB:          15, // use DB 15 for tests to avoid collision
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { redisClient.Close() })

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:        "localhost:6379",
		DB:          15,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { asynqClient.Close() })

	validate := validator.New()
	events := eventlog.NewRing(50)
	backend := newFakeBackend(t)

	backendClient := client.NewBackendClient(&config.BackendConfig{BaseURL: backend.URL, Timeout: 2}, nil)
	conferenceClient := client.NewConferenceClient(&config.ConferenceConfig{}, nil) // no API key → mock

	tracker := planning.NewTracker(nil)
	poller := planning.NewPoller(backendClient, tracker, planning.Config{
		Interval:   10 * time.Millisecond,
		RetryDelay: 10 * time.Millisecond,
		MaxRetries: 2,
		Timeout:    2 * time.Second,
	}, events, nil)
	tracker.SetPoller(poller)
	t.Cleanup(poller.StopAll)
	coordinator := planning.NewApprovalCoordinator(backendClient, tracker, events, nil)

	analysisService := service.NewAnalysisService(redisClient, asynqClient, nil)
	manager := transcription.NewManager(transcription.ManagerConfig{
		Analysis: analysisService,
		Events:   events,
	})
	t.Cleanup(func() { manager.StopAll(context.Background()) })
	sessionService := service.NewSessionService(conferenceClient, manager, "pt", time.Hour, nil)
	tutorialService := service.NewTutorialService(redisClient)

	planningHandler := handler.NewPlanningHandler(tracker, coordinator)
	transcriptionHandler := handler.NewTranscriptionHandler(sessionService, analysisService, validate)
	tutorialHandler := handler.NewTutorialHandler(tutorialService, validate)
	moderationHandler := handler.NewModerationHandler(backendClient, validate)
	diagnosticsHandler := handler.NewDiagnosticsHandler(events)

	// Auth handler (for /auth/verify)
	authHandler := handler.NewAuthHandler(nil, testJWTSecret)

	// Auth middleware, legacy HMAC only
	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)
	adminOnly := middleware.RequireRole(auth.RoleAdmin)

	app := fiber.New()

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"backend":    backendClient.IsConfigured(),
				"groq":       false,
				"r2":         false,
				"conference": conferenceClient.IsConfigured(),
				"auth":       true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", authMiddleware.Authenticate())
	api.Get("/me", authHandler.Me)

	// Use very high rate limits so tests don't get blocked
	plannings := api.Group("/plannings")
	plannings.Get("/:id", planningHandler.View)
	plannings.Delete("/:id", planningHandler.Forget)
	plannings.Post("/:id/track", planningHandler.Track)
	plannings.Post("/:id/approve", rateLimiter.ApprovalLimit(10000), planningHandler.Approve)
	plannings.Post("/:id/poll", planningHandler.StartPolling)
	plannings.Delete("/:id/poll", planningHandler.StopPolling)
	plannings.Put("/:id/viewing", planningHandler.Viewing)
	plannings.Post("/:id/viewed", planningHandler.Viewed)
	plannings.Post("/:id/dismiss", planningHandler.Dismiss)

	tr := api.Group("/transcription")
	tr.Post("/sessions", rateLimiter.SessionLimit(10000), transcriptionHandler.CreateSession)
	tr.Get("/sessions/:id", transcriptionHandler.GetSession)
	tr.Post("/sessions/:id/clear", transcriptionHandler.ClearSession)
	tr.Delete("/sessions/:id", transcriptionHandler.DeleteSession)
	tr.Get("/analysis/:jobId", transcriptionHandler.AnalysisStatus)
	tr.Get("/analysis/:jobId/result", transcriptionHandler.AnalysisResult)

	api.Get("/tutorials/:key", tutorialHandler.Get)
	api.Put("/tutorials/:key", tutorialHandler.Set)

	api.Post("/admin/users/:clerkId/moderate", adminOnly, rateLimiter.ModerationLimit(10000), moderationHandler.Moderate)
	api.Get("/diagnostics/events", adminOnly, diagnosticsHandler.Events)

	// WebSocket routes; only the checks before the upgrade are exercised here
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, middleware.QueryToken("token"), authMiddleware.Authenticate())
	app.Get("/ws/plannings/:id", planningHandler.Subscribe, websocket.New(func(c *websocket.Conn) {}))

	return &testApp{
		app:      app,
		redis:    redisClient,
		backend:  backend,
		events:   events,
		analysis: analysisService,
	}
}

// requireRedis skips the test when the local Redis is unreachable.
func requireRedis(t *testing.T, ta *testApp) {
	t.Helper()
	if err := ta.redis.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T, userID, role string) string {
	t.Helper()
	claims := auth.LegacyClaims{
		UserID: userID,
		Email:  "test@example.com",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "stratplan-companion",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
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

// doAuthRequest performs a request as the default member user.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequestAs(t, app, testUserID, "", method, path, body)
}

// doAdminRequest performs a request as an admin.
func doAdminRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequestAs(t, app, "admin-user", auth.RoleAdmin, method, path, body)
}

func doRequestAs(t *testing.T, app *fiber.App, userID, role, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t, userID, role)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
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

// errorCode extracts error.code from an error response.
func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	e, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected 'error' object in response, got %v", body)
	}
	code, _ := e["code"].(string)
	return code
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

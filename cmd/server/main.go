package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/stratplan/companion/internal/auth"
	"github.com/stratplan/companion/internal/client"
	"github.com/stratplan/companion/internal/config"
	"github.com/stratplan/companion/internal/eventlog"
	"github.com/stratplan/companion/internal/handler"
	"github.com/stratplan/companion/internal/middleware"
	"github.com/stratplan/companion/internal/planning"
	"github.com/stratplan/companion/internal/service"
	"github.com/stratplan/companion/internal/transcription"
	ws "github.com/stratplan/companion/internal/websocket"
	"github.com/stratplan/companion/internal/worker"
	"github.com/stratplan/companion/pkg/response"
)

const shutdownTimeout = 10 * time.Second

// @title          Strategic Planning Companion API
// @version        1.0
// @description    Refined-task polling, live meeting transcription and moderation for the strategic planning app.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Server)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("Redis not available", "error", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(redisOpt(cfg.Redis))
	defer asynqClient.Close()

	validate := validator.New()
	events := eventlog.NewRing(cfg.EventLog.Size)
	hub := ws.NewHub(log)

	// External clients
	backendClient := client.NewBackendClient(&cfg.Backend, log)
	groqClient := client.NewGroqClient(&cfg.Groq, log)
	conferenceClient := client.NewConferenceClient(&cfg.Conference, log)

	// R2 is optional; the analysis worker skips the archive without it.
	var archive client.ArchiveStore
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Warn("R2 client not initialized", "error", err)
		} else {
			archive = r2Client
		}
	} else {
		log.Info("R2 storage not configured, transcripts will not be archived")
	}

	// Clerk JWKS verifier (optional - falls back to legacy JWT)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.Clerk.Issuer != "" {
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.Clerk)
		if err != nil {
			log.Warn("JWKS verifier not initialized", "error", err)
			jwksVerifier = nil
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Refined-tab polling
	tracker := planning.NewTracker(log)
	poller := planning.NewPoller(backendClient, tracker, planning.Config{
		Interval:   cfg.Polling.Interval(),
		RetryDelay: cfg.Polling.RetryDelay(),
		MaxRetries: cfg.Polling.MaxRetries,
		Timeout:    cfg.Polling.Timeout(),
	}, events, log)
	tracker.SetPoller(poller)
	tracker.SetListener(func(v planning.View) {
		hub.BroadcastPlanning(v.Owner, v.Response())
	})
	coordinator := planning.NewApprovalCoordinator(backendClient, tracker, events, log)

	// Transcription
	analysisService := service.NewAnalysisService(redisClient, asynqClient, log)
	manager := transcription.NewManager(transcription.ManagerConfig{
		DedupWindow:   cfg.Transcription.DedupWindow(),
		TrackFallback: cfg.Transcription.TrackFallback(),
		Analysis:      analysisService,
		Events:        events,
		Log:           log,
		Listener:      hub.BroadcastTranscription,
	})
	sessionService := service.NewSessionService(conferenceClient, manager,
		cfg.Transcription.Language, time.Duration(cfg.Conference.RoomTTLMin)*time.Minute, log)
	tutorialService := service.NewTutorialService(redisClient)

	// Handlers
	planningHandler := handler.NewPlanningHandler(tracker, coordinator)
	transcriptionHandler := handler.NewTranscriptionHandler(sessionService, analysisService, validate)
	tutorialHandler := handler.NewTutorialHandler(tutorialService, validate)
	moderationHandler := handler.NewModerationHandler(backendClient, validate)
	diagnosticsHandler := handler.NewDiagnosticsHandler(events)

	// Initialize auth handler for ForwardAuth verification
	var tokenVerifier auth.TokenVerifier
	if jwksVerifier != nil {
		tokenVerifier = jwksVerifier
	}
	authHandler := handler.NewAuthHandler(tokenVerifier, cfg.JWT.Secret)

	// Initialize middleware (with fallback support)
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Info("Gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		var authMiddleware *middleware.AuthMiddleware
		if tokenVerifier != nil && cfg.JWT.Secret != "" {
			authMiddleware = middleware.NewAuthMiddlewareWithFallback(tokenVerifier, cfg.JWT.Secret)
		} else if tokenVerifier != nil {
			authMiddleware = middleware.NewAuthMiddleware(tokenVerifier)
		} else {
			authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
		}
		apiAuthMiddleware = authMiddleware.Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)
	adminOnly := middleware.RequireRole(auth.RoleAdmin)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"backend":    backendClient.IsConfigured(),
				"groq":       groqClient.IsConfigured(),
				"r2":         archive != nil,
				"conference": conferenceClient.IsConfigured(),
				"auth":       jwksVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", apiAuthMiddleware)
	api.Get("/me", authHandler.Me)

	plannings := api.Group("/plannings")
	plannings.Get("/:id", planningHandler.View)
	plannings.Delete("/:id", planningHandler.Forget)
	plannings.Post("/:id/track", planningHandler.Track)
	plannings.Post("/:id/approve", rateLimiter.ApprovalLimit(cfg.RateLimit.ApprovePerHour), planningHandler.Approve)
	plannings.Post("/:id/poll", planningHandler.StartPolling)
	plannings.Delete("/:id/poll", planningHandler.StopPolling)
	plannings.Put("/:id/viewing", planningHandler.Viewing)
	plannings.Post("/:id/viewed", planningHandler.Viewed)
	plannings.Post("/:id/dismiss", planningHandler.Dismiss)

	tr := api.Group("/transcription")
	tr.Post("/sessions", rateLimiter.SessionLimit(cfg.RateLimit.SessionsPerHour), transcriptionHandler.CreateSession)
	tr.Get("/sessions/:id", transcriptionHandler.GetSession)
	tr.Post("/sessions/:id/clear", transcriptionHandler.ClearSession)
	tr.Delete("/sessions/:id", transcriptionHandler.DeleteSession)
	tr.Get("/analysis/:jobId", transcriptionHandler.AnalysisStatus)
	tr.Get("/analysis/:jobId/result", transcriptionHandler.AnalysisResult)

	api.Get("/tutorials/:key", tutorialHandler.Get)
	api.Put("/tutorials/:key", tutorialHandler.Set)

	api.Post("/admin/users/:clerkId/moderate", adminOnly,
		rateLimiter.ModerationLimit(cfg.RateLimit.ModeratePerMin), moderationHandler.Moderate)
	api.Get("/diagnostics/events", adminOnly, diagnosticsHandler.Events)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, middleware.QueryToken("token"), apiAuthMiddleware)

	app.Get("/ws/plannings/:id", planningHandler.Subscribe, func(c *fiber.Ctx) error {
		c.Locals("topic", ws.PlanningTopic(middleware.GetUserID(c), c.Params("id")))
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		topic, _ := c.Locals("topic").(string)
		hub.HandleConnection(c, topic, nil)
	}))

	app.Get("/ws/transcription/:sessionId", func(c *fiber.Ctx) error {
		if _, err := sessionService.Session(middleware.GetUserID(c), c.Params("sessionId")); err != nil {
			if errors.Is(err, service.ErrSessionForbidden) {
				return response.Forbidden(c, "Session belongs to another user")
			}
			return response.NotFound(c, "Session not found")
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionId")
		sess, err := manager.Get(sessionID)
		if err != nil {
			return
		}
		hub.HandleBridge(c, sess, sessionService.StartConfig(sessionID))
	}))

	analysisWorker := worker.NewAnalysisWorker(analysisService, groqClient, archive, hub, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return runWorkerServer(gctx, cfg, analysisWorker, log)
	})

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		log.Info("Server starting", "addr", addr)
		return app.Listen(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")

		poller.StopAll()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		manager.StopAll(stopCtx)

		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Env, "production") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// runWorkerServer processes background tasks until ctx is done.
func runWorkerServer(ctx context.Context, cfg *config.Config, analysisWorker *worker.AnalysisWorker,
	log *slog.Logger) error {

	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		redisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				service.QueueAnalysis: 1,
			},
			LogLevel: asynqLogLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeAnalysis, analysisWorker.ProcessTask)

	if err := srv.Start(mux); err != nil {
		log.Error("Asynq worker failed to start", "error", err)
		return nil
	}

	<-ctx.Done()
	srv.Shutdown()
	return nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}

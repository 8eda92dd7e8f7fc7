// Conversation Coach Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ashureev/convo-coach/internal/api"
	"github.com/ashureev/convo-coach/internal/clock"
	"github.com/ashureev/convo-coach/internal/coach"
	"github.com/ashureev/convo-coach/internal/config"
	"github.com/ashureev/convo-coach/internal/domain"
	"github.com/ashureev/convo-coach/internal/events"
	"github.com/ashureev/convo-coach/internal/identity"
	"github.com/ashureev/convo-coach/internal/llm"
	"github.com/ashureev/convo-coach/internal/metrics"
	"github.com/ashureev/convo-coach/internal/middleware"
	"github.com/ashureev/convo-coach/internal/store"
	"github.com/ashureev/convo-coach/internal/transcript"
	"github.com/ashureev/convo-coach/internal/trigger"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "store", cfg.StoreBackend)

	clk := clock.Real()

	// Initialize dependencies.
	sessions, err := openStore(cfg, clk)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			slog.Error("Failed to close session store", "error", closeErr)
		}
	}()

	if err := sessions.Ping(context.Background()); err != nil {
		slog.Error("Session store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Session store connected")

	m := metrics.New(cfg.MetricsNamespace)

	var publisher events.Publisher = events.Noop{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			slog.Warn("Failed to connect to NATS, update publishing disabled", "error", err)
		} else {
			publisher = natsPublisher
			slog.Info("Publishing updates to NATS", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
		}
	}
	defer publisher.Close()

	conversationLogger, err := coach.NewConversationLogger(coach.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	if cfg.LLM.APIKey == "" {
		slog.Warn("LLM_API_KEY is not set, model calls will return fallback messages")
	}
	gateway := llm.NewOpenAIGateway(llm.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	buffers := transcript.NewStore(clk)
	svc, err := coach.NewService(coach.Options{
		Store:   sessions,
		Gateway: gateway,
		Buffers: buffers,
		Thresholds: trigger.Thresholds{
			MisinfoMinSegments: cfg.Triggers.MisinfoMinSegments,
			MisinfoWindow:      cfg.Triggers.MisinfoWindow,
			InsightMinSegments: cfg.Triggers.InsightMinSegments,
			InsightWindow:      cfg.Triggers.InsightWindow,
			BooksMinSegments:   cfg.Triggers.BooksMinSegments,
			BooksEvery:         cfg.Triggers.BooksEvery,
			BooksWindow:        cfg.Triggers.BooksWindow,
		},
		Tuning: coach.ModelTuning{
			NudgeMaxTokens:      cfg.LLM.NudgeMaxTokens,
			NudgeTemperature:    cfg.LLM.NudgeTemperature,
			SummaryMaxTokens:    cfg.LLM.SummaryMaxTokens,
			AnalysisMaxTokens:   cfg.LLM.AnalysisMaxTokens,
			AnalysisTemperature: cfg.LLM.AnalysisTemperature,
		},
		Clock:                   clk,
		Metrics:                 m,
		Publisher:               publisher,
		ConvLog:                 conversationLogger,
		Logger:                  logger,
		FeedbackCooldown:        cfg.Coach.FeedbackCooldown,
		NudgeWindow:             cfg.Coach.NudgeWindow,
		RequireConsentForIngest: cfg.Coach.RequireConsentForIngest,
	})
	if err != nil {
		slog.Error("Failed to initialize coach service", "error", err)
		os.Exit(1)
	}

	limiter := coach.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration, clk)
	defer limiter.Stop()

	coachHandler := coach.NewHandler(svc, limiter, m, coach.HandlerConfig{
		MaxRequestBodySize: api.DefaultMaxRequestBodySize,
		OriginPatterns:     originPatterns(cfg),
	})
	healthHandler := api.NewHealthHandler(5*time.Second, map[string]api.Pinger{
		"session_store": sessions,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware)

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", m.Handler())

	coachHandler.RegisterRoutes(r)

	// Create server.
	// WriteTimeout stays 0 so model calls and websocket streams are not cut off.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start idle buffer sweeper.
	transcript.StartIdleSweeper(ctx, buffers, cfg.Sweeper.BufferIdleTTL, cfg.Sweeper.Interval, func(key domain.SessionKey) {
		coachHandler.Connections().CloseSession(key.UserID, key.SessionID)
		m.SetLiveBuffers(buffers.Count())
	})

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return
	}

	slog.Info("Server stopped successfully")
}

// openStore selects the session store backend. The SQLite backend also
// drops sessions that have not changed within the retention period.
func openStore(cfg *config.Config, clk clock.Clock) (store.SessionStore, error) {
	if cfg.StoreBackend != "sqlite" {
		return store.NewMemory(clk), nil
	}

	db, err := store.NewSQLite(cfg.DBPath, clk)
	if err != nil {
		return nil, err
	}
	if cfg.SessionRetention > 0 {
		removed, err := db.CleanupExpired(context.Background(), cfg.SessionRetention)
		if err != nil {
			slog.Warn("Failed to clean up expired sessions", "error", err)
		} else {
			slog.Info("Expired session cleanup complete", "removed", removed)
		}
	}
	return db, nil
}

func originPatterns(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	host := cfg.FrontendURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return []string{strings.TrimSuffix(host, "/")}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

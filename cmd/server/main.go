package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/vitalog/vitalog-api/internal/chat"
	"github.com/vitalog/vitalog-api/internal/config"
	"github.com/vitalog/vitalog-api/internal/database"
	"github.com/vitalog/vitalog-api/internal/handlers"
	"github.com/vitalog/vitalog-api/internal/logger"
	"github.com/vitalog/vitalog-api/internal/middleware"
	"github.com/vitalog/vitalog-api/internal/queue"
	"github.com/vitalog/vitalog-api/internal/ratelimit"
	"github.com/vitalog/vitalog-api/internal/recommend"
	"github.com/vitalog/vitalog-api/internal/services/ai"
	"github.com/vitalog/vitalog-api/internal/services/auth"
	"github.com/vitalog/vitalog-api/internal/telemetry"
)

const serviceName = "vitalog-api"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	if cfg.JWKSURL == "" {
		zapLogger.Fatal("JWKS_URL is required")
	}

	// OpenTelemetry
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	// Redis for the per-IP rate limit store
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("invalid_redis_url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// RabbitMQ for background profile refresh jobs. Retry with backoff to
	// ride out broker startup delays; the server still runs without it.
	var jobQueue queue.JobQueue
	if cfg.RabbitMQURL != "" {
		jobQueue = connectQueue(cfg.RabbitMQURL, zapLogger)
		if jobQueue != nil {
			defer func() {
				if err := jobQueue.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
		}
	} else {
		zapLogger.Warn("rabbitmq_not_configured_profile_refresh_disabled")
	}

	// Repositories
	userRepo := database.NewUserRepository(db)
	mealRepo := database.NewMealRepository(db)
	exerciseRepo := database.NewExerciseRepository(db)
	measurementRepo := database.NewMeasurementRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	// AI services
	provider := ai.NewOpenAIProviderWithLogger(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debugMode)
	builder := ai.NewPromptBuilder()
	classifier := ai.NewIntentClassifier(provider, builder, zapLogger)

	sessions := chat.NewStore(cfg.MaxConversationTurns)
	profiles := chat.NewProfileService(provider, builder, userRepo, mealRepo, exerciseRepo, measurementRepo, zapLogger)

	cache := recommend.NewCache(userRepo, cfg.RecommendationCacheTTL, zapLogger)
	recService := recommend.NewService(provider, builder, cache, userRepo, mealRepo, exerciseRepo, measurementRepo, zapLogger)

	orchestrator := chat.NewOrchestrator(provider, builder, classifier, sessions, profiles, userRepo, mealRepo, exerciseRepo, jobQueue, zapLogger)

	// Per-user operation quotas
	limiter := ratelimit.New(map[ratelimit.Operation]ratelimit.Policy{
		ratelimit.OpChat:                  ratelimit.PerMinute(cfg.ChatRatePerMinute),
		ratelimit.OpProfile:               ratelimit.PerHour(cfg.ProfileRatePerHour),
		ratelimit.OpMealRecommendation:    ratelimit.PerHour(cfg.MealRatePerHour),
		ratelimit.OpWorkoutRecommendation: ratelimit.PerHour(cfg.WorkoutRatePerHour),
	})
	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()
	limiter.StartJanitor(janitorCtx, 10*time.Minute)

	// Auth
	verifier := auth.NewVerifier(auth.NewJWKSManager(), cfg.JWKSURL, cfg.JWTIssuer)

	// Handlers
	healthChecker := handlers.NewHealthChecker(db, jobQueue)
	chatbotHandler := handlers.NewChatbotHandler(orchestrator, limiter)
	recommendationHandler := handlers.NewRecommendationHandler(recService, profiles, limiter)

	// Router. Middleware executes in registration order in gorilla/mux.
	r := mux.NewRouter()

	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(strings.HasPrefix(cfg.BaseURL, "https://")))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	rateLimitMW, err := middleware.RateLimitFromDB(redisClient, ratelimitConfigRepo, "")
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_middleware", zap.Error(err))
	}

	// Public routes
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/health", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/ready", healthChecker.Ready).Methods("GET")

	// Protected API routes
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(rateLimitMW)
	apiRouter.Use(middleware.Auth(userRepo, verifier, zapLogger))
	chatbotHandler.RegisterRoutes(apiRouter)
	recommendationHandler.RegisterRoutes(apiRouter)

	// Preflight requests only need the CORS headers set upstream
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectQueue dials RabbitMQ with exponential backoff. Returns nil when the
// broker never comes up; callers treat that as queue-less operation.
func connectQueue(amqpURL string, zapLogger *zap.Logger) queue.JobQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		jobQueue, err := queue.NewRabbitMQQueue(amqpURL)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return jobQueue
		}

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}

	zapLogger.Error("failed_to_connect_to_rabbitmq_after_retries", zap.Int("max_retries", maxRetries))
	return nil
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vitalog/vitalog-api/internal/chat"
	"github.com/vitalog/vitalog-api/internal/config"
	"github.com/vitalog/vitalog-api/internal/database"
	"github.com/vitalog/vitalog-api/internal/logger"
	"github.com/vitalog/vitalog-api/internal/queue"
	"github.com/vitalog/vitalog-api/internal/services/ai"
	"github.com/vitalog/vitalog-api/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("Starting worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_model", cfg.AIModel),
	)

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("RABBITMQ_URL is required")
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("Failed to close database connection", zap.Error(err))
		}
	}()

	zapLogger.Info("Connected to database")

	userRepo := database.NewUserRepository(db)
	mealRepo := database.NewMealRepository(db)
	exerciseRepo := database.NewExerciseRepository(db)
	measurementRepo := database.NewMeasurementRepository(db)

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}()

	zapLogger.Info("Connected to RabbitMQ",
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	provider := ai.NewOpenAIProviderWithLogger(
		cfg.OpenAIKey,
		cfg.AIBaseURL,
		cfg.AIModel,
		zapLogger,
		debugMode,
	)
	builder := ai.NewPromptBuilder()

	profiles := chat.NewProfileService(provider, builder, userRepo, mealRepo, exerciseRepo, measurementRepo, zapLogger)
	refresher := workers.NewProfileRefresher(profiles, jobQueue, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("Failed to start consuming messages", zap.Error(err))
	}

	zapLogger.Info("Worker started, consuming messages from queue")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("Message channel closed")
					return
				}

				if err := refresher.ProcessJob(ctx, msg); err != nil {
					zapLogger.Error("Failed to process job",
						zap.Error(err),
						zap.String("job_id", msg.GetJob().ID.String()),
						zap.String("job_type", string(msg.GetJob().Type)),
					)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("Queue error", zap.Error(err))
			}
		}
	}()

	<-sigChan
	zapLogger.Info("Shutdown signal received, stopping worker...")

	cancel()

	zapLogger.Info("Worker stopped")
}

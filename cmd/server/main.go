package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/chatgate/internal/api"
	"github.com/wuwenbin0122/chatgate/internal/auth"
	"github.com/wuwenbin0122/chatgate/internal/chat"
	"github.com/wuwenbin0122/chatgate/internal/conversations"
	"github.com/wuwenbin0122/chatgate/internal/db"
	"github.com/wuwenbin0122/chatgate/internal/health"
	"github.com/wuwenbin0122/chatgate/internal/ollama"
	"github.com/wuwenbin0122/chatgate/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to build: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// The gateway still serves health and chat without a database, so a
	// failed connect leaves postgres nil instead of exiting.
	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		logger.Warn("postgres unavailable, continuing without persistence", zap.Error(err))
		postgres = nil
	} else if err := postgres.EnsureSchema(ctx); err != nil {
		logger.Warn("postgres schema setup failed, continuing without persistence", zap.Error(err))
		postgres.Close()
		postgres = nil
	} else {
		logger.Info("postgres ready")
	}

	inference := ollama.NewClient(ollama.Config{BaseURL: cfg.Ollama.Host})

	verifier, err := auth.NewVerifier(cfg.Auth.Username, cfg.Auth.Password)
	if err != nil {
		logger.Fatal("auth: failed to initialise verifier", zap.Error(err))
	}

	checker := health.NewChecker(
		health.DatabaseProbe(postgres, cfg.Ollama.HealthTimeout, logger),
		health.InferenceProbe(inference, cfg.Ollama.HealthTimeout, logger),
		logger,
	)

	recorder := chat.NewBackgroundRecorder(postgres, chat.RecorderOptions{
		QueueSize:     cfg.Recorder.QueueSize,
		Workers:       cfg.Recorder.Workers,
		InsertTimeout: cfg.Recorder.InsertTimeout,
	}, logger)
	recorder.Start()

	chatService := chat.NewService(inference, recorder, chat.Options{
		Model:               cfg.Ollama.Model,
		DefaultSystemPrompt: cfg.SystemPrompt,
		Timeout:             cfg.Ollama.ChatTimeout,
	}, logger)

	reader := conversations.NewReader(postgres, conversations.Options{
		DefaultLimit: cfg.Conversations.DefaultLimit,
		MaxLimit:     cfg.Conversations.MaxLimit,
	})

	handler := api.NewHandler(verifier, checker, chatService, reader, logger)
	router := api.NewRouter(handler, logger, cfg.CORS.AllowOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Ollama.ChatTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", server.Addr),
			zap.String("ollama", inference.BaseURL()),
			zap.String("model", cfg.Ollama.Model),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server crashed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		logger.Warn("conversation recorder did not drain", zap.Error(err))
	}
	postgres.Close()

	logger.Info("server stopped cleanly")
}

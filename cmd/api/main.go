package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"

	"github.com/illegalcall/proflow-login/internal/api"
	"github.com/illegalcall/proflow-login/internal/authclient"
	"github.com/illegalcall/proflow-login/internal/config"
	"github.com/illegalcall/proflow-login/internal/events"
	"github.com/illegalcall/proflow-login/internal/login"
	"github.com/illegalcall/proflow-login/internal/pkg/supabase"
	"github.com/illegalcall/proflow-login/pkg/database"
	"github.com/illegalcall/proflow-login/pkg/kafka"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	logger := slog.Default()

	// Initialize Redis
	redisClient, err := database.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("✅ Connected to Redis")

	// Initialize Kafka producer
	var producer sarama.SyncProducer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(cfg.Kafka)
		if err != nil {
			slog.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		slog.Info("✅ Connected to Kafka")
	} else {
		slog.Info("Kafka disabled; login events will not be published")
	}

	auth, err := newAuthService(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize auth provider", "provider", cfg.Auth.Provider, "error", err)
		os.Exit(1)
	}

	server, err := api.NewServer(cfg, api.Deps{
		Redis:     redisClient,
		Auth:      auth,
		Publisher: events.NewPublisher(producer, cfg.Kafka.Topic, logger),
		Logger:    logger,
	})
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("🚀 Server running", "port", cfg.Server.Port, "provider", cfg.Auth.Provider)
		if err := server.Start(); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("🛑 Server shutting down...")
	if err := server.Shutdown(); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
}

func newAuthService(cfg *config.Config, logger *slog.Logger) (login.AuthService, error) {
	if cfg.Auth.Provider == config.ProviderSupabase {
		svc, err := supabase.NewAuthService(cfg.Supabase.URL, cfg.Supabase.Key, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	return authclient.NewClient(cfg.Auth.APIBaseURL, cfg.Auth.RequestTimeout), nil
}

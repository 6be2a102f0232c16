package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/illegalcall/proflow-login/internal/config"
	"github.com/illegalcall/proflow-login/internal/worker"
	"github.com/illegalcall/proflow-login/pkg/database"
	"github.com/illegalcall/proflow-login/pkg/kafka"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize audit database
	db, err := database.NewPostgres(cfg.Database.URL)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("✅ Connected to PostgreSQL")

	if err := database.CreateAuditTable(db); err != nil {
		slog.Error("Failed to prepare audit table", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer
	consumer, err := kafka.NewConsumer(cfg.Kafka)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	slog.Info("✅ Connected to Kafka")

	// Create and start worker
	w := worker.NewWorker(cfg, db, consumer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		slog.Error("Worker error", "error", err)
		os.Exit(1)
	}
}

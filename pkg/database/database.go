package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/illegalcall/proflow-login/internal/config"
)

// NewRedis connects the store used for durable browser storage and the
// submission gate.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewPostgres connects the audit database.
func NewPostgres(url string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

const auditSchema = `CREATE TABLE IF NOT EXISTS login_audit (
	id SERIAL PRIMARY KEY,
	event_type TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	requested_role TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	client_id TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);`

// CreateAuditTable ensures the login_audit table exists.
func CreateAuditTable(db *sqlx.DB) error {
	if _, err := db.Exec(auditSchema); err != nil {
		return fmt.Errorf("failed to create login_audit table: %w", err)
	}
	slog.Info("✅ login_audit table is ready!")
	return nil
}

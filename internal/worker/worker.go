package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/jmoiron/sqlx"

	"github.com/illegalcall/proflow-login/internal/config"
	"github.com/illegalcall/proflow-login/internal/models"
)

const insertAuditQuery = `INSERT INTO login_audit
	(event_type, email, requested_role, role, subject, client_id, message, occurred_at)
	VALUES (:event_type, :email, :requested_role, :role, :subject, :client_id, :message, :occurred_at)`

var errMissingType = errors.New("login event has no type")

// Worker copies login events from Kafka into the login_audit table.
type Worker struct {
	cfg      *config.Config
	db       *sqlx.DB
	consumer sarama.ConsumerGroup

	ready     chan bool
	readyOnce sync.Once
}

func NewWorker(cfg *config.Config, db *sqlx.DB, consumer sarama.ConsumerGroup) *Worker {
	slog.Info("Initializing new Worker")
	return &Worker{
		cfg:      cfg,
		db:       db,
		consumer: consumer,
		ready:    make(chan bool),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Kafka.Topic}
	slog.Info("Starting worker", "topics", topics)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		for err := range w.consumer.Errors() {
			slog.Error("Kafka consumer error received", "error", err)
		}
	}()

	go func() {
		for {
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				slog.Error("Error from consumer.Consume", "error", err)
				select {
				case <-ctx.Done():
				case <-time.After(w.consumeBackoff()):
				}
			}
			if ctx.Err() != nil {
				slog.Info("Context done, exiting consumer loop", "error", ctx.Err())
				return
			}
		}
	}()

	select {
	case <-w.ready:
		slog.Info("Worker setup complete; consumer ready")
	case <-ctx.Done():
	}

	<-ctx.Done()
	slog.Info("Worker shutting down gracefully", "cause", context.Cause(ctx))
	return nil
}

func (w *Worker) consumeBackoff() time.Duration {
	if w.cfg.Kafka.RetryBackoff > 0 {
		return w.cfg.Kafka.RetryBackoff
	}
	return time.Second
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
// Rebalances call it again; ready only closes once.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	w.readyOnce.Do(func() { close(w.ready) })
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := w.processEvent(session.Context(), message); err != nil {
			slog.Error("Failed to record login event", "offset", message.Offset, "error", err)
		}
		// malformed or undeliverable events are not redelivered
		session.MarkMessage(message, "")
	}
	return nil
}

func (w *Worker) processEvent(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev models.LoginEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("failed to parse login event: %w", err)
	}
	if ev.Type == "" {
		return errMissingType
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = msg.Timestamp
	}

	attempts := max(1, w.cfg.Kafka.RetryMax)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		_, err = w.db.NamedExecContext(ctx, insertAuditQuery, ev)
		if err == nil {
			slog.Info("Login event recorded", "type", ev.Type, "client", ev.ClientID, "attempt", attempt)
			return nil
		}
		slog.Warn("Insert into login_audit failed", "attempt", attempt, "error", err)
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.Kafka.RetryBackoff):
			}
		}
	}
	return fmt.Errorf("failed to record login event after %d attempts: %w", attempts, err)
}

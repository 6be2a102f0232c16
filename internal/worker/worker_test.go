package worker

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IBM/sarama"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/proflow-login/internal/config"
	"github.com/illegalcall/proflow-login/internal/models"
)

// MockConsumerGroup mocks sarama.ConsumerGroup
type MockConsumerGroup struct {
	mock.Mock
}

func (m *MockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	args := m.Called(ctx, topics, handler)
	return args.Error(0)
}

func (m *MockConsumerGroup) Errors() <-chan error {
	args := m.Called()
	return args.Get(0).(chan error)
}

func (m *MockConsumerGroup) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockConsumerGroup) Pause(partitions map[string][]int32) {
	m.Called(partitions)
}

func (m *MockConsumerGroup) Resume(partitions map[string][]int32) {
	m.Called(partitions)
}

func (m *MockConsumerGroup) PauseAll() {
	m.Called()
}

func (m *MockConsumerGroup) ResumeAll() {
	m.Called()
}

func setupTestWorker(t *testing.T) (*Worker, sqlmock.Sqlmock, *MockConsumerGroup) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(sqlDB, "sqlmock")
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Kafka: config.KafkaConfig{
			Topic:        "test-login-events",
			RetryMax:     3,
			RetryBackoff: time.Millisecond,
		},
	}

	mockConsumerGroup := new(MockConsumerGroup)
	return NewWorker(cfg, db, mockConsumerGroup), mock, mockConsumerGroup
}

func eventMessage(t *testing.T, ev models.LoginEvent) *sarama.ConsumerMessage {
	value, err := json.Marshal(ev)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Value: value, Timestamp: time.Now()}
}

func TestProcessEvent(t *testing.T) {
	event := models.LoginEvent{
		Type:          models.EventLoginSucceeded,
		Email:         "ana***@proflow.io",
		RequestedRole: "teacher",
		Role:          "teacher",
		Subject:       "42",
		ClientID:      "c-1",
		OccurredAt:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	args := []driver.Value{
		event.Type, event.Email, event.RequestedRole, event.Role,
		event.Subject, event.ClientID, event.Message, sqlmock.AnyArg(),
	}

	testCases := []struct {
		name        string
		msg         func(t *testing.T) *sarama.ConsumerMessage
		setupMocks  func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "recorded on first attempt",
			msg:  func(t *testing.T) *sarama.ConsumerMessage { return eventMessage(t, event) },
			setupMocks: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO login_audit").
					WithArgs(args...).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name: "recorded after a retry",
			msg:  func(t *testing.T) *sarama.ConsumerMessage { return eventMessage(t, event) },
			setupMocks: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO login_audit").
					WillReturnError(errors.New("connection reset"))
				mock.ExpectExec("INSERT INTO login_audit").
					WithArgs(args...).
					WillReturnResult(sqlmock.NewResult(2, 1))
			},
		},
		{
			name: "gives up after RetryMax attempts",
			msg:  func(t *testing.T) *sarama.ConsumerMessage { return eventMessage(t, event) },
			setupMocks: func(mock sqlmock.Sqlmock) {
				for i := 0; i < 3; i++ {
					mock.ExpectExec("INSERT INTO login_audit").
						WillReturnError(errors.New("database is down"))
				}
			},
			expectError: true,
		},
		{
			name: "malformed payload",
			msg: func(t *testing.T) *sarama.ConsumerMessage {
				return &sarama.ConsumerMessage{Value: []byte("{not json")}
			},
			setupMocks:  func(sqlmock.Sqlmock) {},
			expectError: true,
		},
		{
			name: "event without type",
			msg: func(t *testing.T) *sarama.ConsumerMessage {
				return eventMessage(t, models.LoginEvent{ClientID: "c-1"})
			},
			setupMocks:  func(sqlmock.Sqlmock) {},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			worker, mock, _ := setupTestWorker(t)
			tc.setupMocks(mock)

			err := worker.processEvent(context.Background(), tc.msg(t))
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProcessEventWithoutRetries(t *testing.T) {
	for _, retryMax := range []int{0, -1} {
		t.Run(fmt.Sprintf("RetryMax %d recorded", retryMax), func(t *testing.T) {
			worker, mock, _ := setupTestWorker(t)
			worker.cfg.Kafka.RetryMax = retryMax

			mock.ExpectExec("INSERT INTO login_audit").
				WillReturnResult(sqlmock.NewResult(1, 1))

			err := worker.processEvent(context.Background(), eventMessage(t, models.LoginEvent{
				Type:     models.EventLoginFailed,
				ClientID: "c-3",
			}))
			assert.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run(fmt.Sprintf("RetryMax %d fails once", retryMax), func(t *testing.T) {
			worker, mock, _ := setupTestWorker(t)
			worker.cfg.Kafka.RetryMax = retryMax

			mock.ExpectExec("INSERT INTO login_audit").
				WillReturnError(errors.New("database is down"))

			err := worker.processEvent(context.Background(), eventMessage(t, models.LoginEvent{
				Type:     models.EventLoginFailed,
				ClientID: "c-3",
			}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "after 1 attempts: database is down")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProcessEventFillsTimestamp(t *testing.T) {
	worker, mock, _ := setupTestWorker(t)
	ts := time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)

	value, err := json.Marshal(map[string]string{"type": models.EventGoogleRedirect, "client_id": "c-2"})
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO login_audit").
		WithArgs(models.EventGoogleRedirect, "", "", "", "", "c-2", "", ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = worker.processEvent(context.Background(), &sarama.ConsumerMessage{Value: value, Timestamp: ts})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkerStart(t *testing.T) {
	worker, _, mockConsumerGroup := setupTestWorker(t)

	errChan := make(chan error)
	mockConsumerGroup.On("Errors").Return(errChan)
	mockConsumerGroup.On("Consume", mock.Anything, []string{worker.cfg.Kafka.Topic}, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := worker.Start(ctx)
	assert.NoError(t, err)

	// give the consumer loop a moment to observe the cancelled context
	time.Sleep(10 * time.Millisecond)
	mockConsumerGroup.AssertExpectations(t)
}

func TestWorkerStartBacksOffWhenConsumeFails(t *testing.T) {
	worker, _, mockConsumerGroup := setupTestWorker(t)
	worker.cfg.Kafka.RetryBackoff = 20 * time.Millisecond

	var calls atomic.Int32
	mockConsumerGroup.On("Errors").Return(make(chan error))
	mockConsumerGroup.On("Consume", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { calls.Add(1) }).
		Return(errors.New("kafka: client has run out of available brokers to talk to"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.NoError(t, worker.Start(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.LessOrEqual(t, calls.Load(), int32(10))
}

func TestWorkerStopsOnSignalBeforeSetup(t *testing.T) {
	worker, _, mockConsumerGroup := setupTestWorker(t)

	var once sync.Once
	consuming := make(chan struct{})
	mockConsumerGroup.On("Errors").Return(make(chan error))
	mockConsumerGroup.On("Consume", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { once.Do(func() { close(consuming) }) }).
		Return(errors.New("kafka: client has run out of available brokers to talk to"))

	done := make(chan error, 1)
	go func() { done <- worker.Start(context.Background()) }()

	<-consuming
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on SIGTERM")
	}
}

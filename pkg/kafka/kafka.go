package kafka

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/illegalcall/proflow-login/internal/config"
)

const (
	maxRetries = 10
	retryDelay = 3 * time.Second
	clientID   = "proflow-login"
)

func waitForKafka(brokers []string) error {
	for i := 0; i < maxRetries; i++ {
		cfg := sarama.NewConfig()
		cfg.ClientID = clientID
		cfg.Net.DialTimeout = 1 * time.Second
		client, err := sarama.NewClient(brokers, cfg)
		if err == nil {
			client.Close()
			return nil
		}
		slog.Info("Waiting for Kafka to be ready...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	return fmt.Errorf("kafka not available after %d attempts", maxRetries)
}

// NewProducer returns a synchronous producer for login events.
func NewProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	brokers := []string{cfg.Broker}
	if err := waitForKafka(brokers); err != nil {
		return nil, err
	}

	sc := sarama.NewConfig()
	sc.ClientID = clientID
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Retry.Max = cfg.RetryMax
	sc.Producer.Retry.Backoff = cfg.RetryBackoff

	return sarama.NewSyncProducer(brokers, sc)
}

// NewConsumer returns a consumer group for the audit worker.
func NewConsumer(cfg config.KafkaConfig) (sarama.ConsumerGroup, error) {
	brokers := []string{cfg.Broker}
	if err := waitForKafka(brokers); err != nil {
		return nil, err
	}

	sc := sarama.NewConfig()
	sc.ClientID = clientID
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true

	return sarama.NewConsumerGroup(brokers, cfg.Group, sc)
}

package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// TopicAdmin is the part of a broker connection used to manage topics
type TopicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

// EnsureTopic dials brokers and creates topic when it does not exist yet
func EnsureTopic(brokers, topic string, numPartitions, replicationFactor int, logger *slog.Logger) error {
	conn, err := kafka.Dial("tcp", brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	return ensureTopic(conn, topic, numPartitions, replicationFactor, 5, 2*time.Second, logger)
}

// ensureTopic probes topic up to attempts times before creating it
func ensureTopic(admin TopicAdmin, topic string, numPartitions, replicationFactor, attempts int, wait time.Duration, logger *slog.Logger) error {
	var (
		partitions []kafka.Partition
		err        error
	)

	logger.Info("Checking if Kafka topic exists", "topic", topic)
	for i := 0; i < attempts; i++ {
		partitions, err = admin.ReadPartitions(topic)
		if err == nil {
			break
		}
		logger.Warn("Failed to read partitions, retrying", "topic", topic, "attempt", i+1, "error", err)
		time.Sleep(wait)
	}

	if len(partitions) > 0 {
		logger.Info("Kafka topic already exists", "topic", topic, "partitions", len(partitions))
		return nil
	}

	cfg := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     max(numPartitions, 1),
		ReplicationFactor: max(replicationFactor, 1),
	}
	if err := admin.CreateTopics(cfg); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	logger.Info("Created Kafka topic", "topic", topic, "partitions", cfg.NumPartitions)
	return nil
}

package producers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderCorrelationID = "correlation-id"
	HeaderDLQReason     = "dlq-reason"
)

var topicReadBackoff = 2 * time.Second

// ensureTopic creates topicName when the broker reports no partitions for it.
// Partition reads are retried since a fresh broker may not have metadata yet.
func ensureTopic(admin topicAdmin, topicName string, numPartitions, replicationFactor int, log *slog.Logger) error {
	var (
		partitions []kafka.Partition
		err        error
	)
	for attempt := 1; attempt <= 5; attempt++ {
		partitions, err = admin.ReadPartitions(topicName)
		if err == nil {
			break
		}
		log.Warn("Failed to read topic partitions, retrying", "topic", topicName, "attempt", attempt, "error", err)
		time.Sleep(topicReadBackoff)
	}

	if len(partitions) > 0 {
		log.Info("Kafka topic exists", "topic", topicName, "partitions", len(partitions))
		return nil
	}

	if numPartitions <= 0 {
		numPartitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	log.Info("Creating Kafka topic", "topic", topicName, "partitions", numPartitions, "replication_factor", replicationFactor)
	if err := admin.CreateTopics(kafka.TopicConfig{
		Topic:             topicName,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topicName, err)
	}
	return nil
}

// messageHeaders carries the request correlation id onto the Kafka message.
func messageHeaders(ctx context.Context) []kafka.Header {
	correlationID := shared.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		return nil
	}
	return []kafka.Header{{Key: HeaderCorrelationID, Value: []byte(correlationID)}}
}

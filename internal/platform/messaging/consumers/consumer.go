package consumers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loan-lifecycle-engine/internal/config"
	"github.com/loan-lifecycle-engine/internal/platform/messaging/producers"
	"github.com/segmentio/kafka-go"
)

const defaultMaxHandlerAttempts = 5

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer delivers messages of one topic to a handler
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

// KafkaReader is the part of *kafka.Reader the consumer uses
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer processes one message at a time per reader and commits only
// after the handler succeeded. A message whose handler keeps failing is dead
// lettered after maxAttempts and then committed; without a DLQ it is retried
// until it succeeds, which stalls the partition rather than losing a repayment.
type KafkaConsumer struct {
	reader      KafkaReader
	dlq         producers.DeadLetterPublisher
	logger      *slog.Logger
	topic       string
	groupID     string
	maxAttempts int
	backoff     time.Duration
	done        chan struct{}
}

// NewKafkaConsumer reads the repayment request topic. dlq may be nil.
func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig, dlq producers.DeadLetterPublisher) *KafkaConsumer {
	startOffset := kafka.FirstOffset
	if cfg.StartOffset == kafka.LastOffset {
		startOffset = kafka.LastOffset
	}

	return &KafkaConsumer{
		logger: logger.With("topic", cfg.RepaymentTopic, "group_id", cfg.ConsumerGroup),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.RepaymentTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: startOffset,
		}),
		dlq:         dlq,
		topic:       cfg.RepaymentTopic,
		groupID:     cfg.ConsumerGroup,
		maxAttempts: defaultMaxHandlerAttempts,
		backoff:     time.Second,
		done:        make(chan struct{}),
	}
}

// Subscribe starts the fetch loop in the background. The loop stops when ctx is done.
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	if handler == nil {
		return errors.New("message handler is required")
	}
	c.logger.Info("Subscribed to Kafka topic")

	go func() {
		defer close(c.done)
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("Context canceled, stopping consumer")
					return
				}
				c.logger.Error("Failed to fetch message from Kafka", "error", err)
				if !sleepCtx(ctx, c.backoff) {
					return
				}
				continue
			}

			if !c.process(ctx, msg, handler) {
				return
			}
		}
	}()

	return nil
}

// process runs handler until it succeeds or the message is dead lettered, then
// commits. It returns false when ctx ended first.
func (c *KafkaConsumer) process(ctx context.Context, msg kafka.Message, handler MessageHandler) bool {
	logger := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))

	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg.Key, msg.Value)
		if err == nil {
			break
		}
		logger.Error("Failed to process message", "attempt", attempt, "error", err)

		if c.dlq != nil && attempt >= c.maxAttempts {
			reason := fmt.Sprintf("processing failed after %d attempts: %v", attempt, err)
			dlqErr := c.dlq.PublishToDLQ(ctx, string(msg.Key), msg.Value, reason)
			if dlqErr == nil {
				break
			}
			logger.Error("Failed to dead letter message", "error", dlqErr)
		}

		if !sleepCtx(ctx, c.backoff*time.Duration(min(attempt, 10))) {
			return false
		}
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		logger.Error("Failed to commit message", "error", err)
		return ctx.Err() == nil
	}
	logger.Debug("Message committed")
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Done is closed once the fetch loop has exited.
func (c *KafkaConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

package consumers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/loan-lifecycle-engine/internal/config"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	fetchErrs int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErrs > 0 {
		r.fetchErrs--
		r.mu.Unlock()
		return kafka.Message{}, errors.New("broker unavailable")
	}
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) committedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.committed))
	for _, m := range r.committed {
		keys = append(keys, string(m.Key))
	}
	return keys
}

type fakeDLQ struct {
	mu     sync.Mutex
	keys   []string
	reason string
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, key string, _ []byte, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, key)
	d.reason = reason
	return nil
}

func (d *fakeDLQ) Close() error { return nil }

func newTestConsumer(reader KafkaReader, dlq *fakeDLQ) *KafkaConsumer {
	c := &KafkaConsumer{
		reader:      reader,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		topic:       "loan.repayment-requests",
		maxAttempts: 3,
		done:        make(chan struct{}),
	}
	if dlq != nil {
		c.dlq = dlq
	}
	return c
}

func TestNewKafkaConsumer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.KafkaConfig{
		Brokers:        "localhost:9092",
		RepaymentTopic: "loan.repayment-requests",
		ConsumerGroup:  "loan-processor-group",
		MinBytes:       1024,
		MaxBytes:       10240,
		MaxWait:        time.Second,
	}

	consumer := NewKafkaConsumer(context.Background(), logger, cfg, nil)
	require.NotNil(t, consumer.reader)
	assert.Equal(t, "loan.repayment-requests", consumer.topic)
	assert.Nil(t, consumer.dlq)
	require.NoError(t, consumer.Close())
}

func TestKafkaConsumer_Subscribe(t *testing.T) {
	t.Run("commits handled messages in order", func(t *testing.T) {
		reader := &fakeReader{
			queue:     []kafka.Message{{Key: []byte("a")}, {Key: []byte("b")}},
			fetchErrs: 1,
		}
		consumer := newTestConsumer(reader, nil)
		ctx, cancel := context.WithCancel(context.Background())

		var seen []string
		var mu sync.Mutex
		require.NoError(t, consumer.Subscribe(ctx, func(_ context.Context, key, _ []byte) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, string(key))
			return nil
		}))

		assert.Eventually(t, func() bool { return len(reader.committedKeys()) == 2 }, time.Second, 5*time.Millisecond)
		cancel()
		<-consumer.Done()

		assert.Equal(t, []string{"a", "b"}, reader.committedKeys())
		mu.Lock()
		assert.Equal(t, []string{"a", "b"}, seen)
		mu.Unlock()
	})

	t.Run("retries a failing message before committing", func(t *testing.T) {
		reader := &fakeReader{queue: []kafka.Message{{Key: []byte("flaky")}}}
		consumer := newTestConsumer(reader, nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		attempts := 0
		require.NoError(t, consumer.Subscribe(ctx, func(context.Context, []byte, []byte) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 3 {
				return errors.New("db unavailable")
			}
			return nil
		}))

		assert.Eventually(t, func() bool { return len(reader.committedKeys()) == 1 }, time.Second, 5*time.Millisecond)
		mu.Lock()
		assert.Equal(t, 3, attempts)
		mu.Unlock()
	})

	t.Run("dead letters after max attempts", func(t *testing.T) {
		reader := &fakeReader{queue: []kafka.Message{{Key: []byte("poison")}, {Key: []byte("next")}}}
		dlq := &fakeDLQ{}
		consumer := newTestConsumer(reader, dlq)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		require.NoError(t, consumer.Subscribe(ctx, func(_ context.Context, key, _ []byte) error {
			if string(key) == "poison" {
				return errors.New("cannot process")
			}
			return nil
		}))

		assert.Eventually(t, func() bool { return len(reader.committedKeys()) == 2 }, time.Second, 5*time.Millisecond)
		dlq.mu.Lock()
		assert.Equal(t, []string{"poison"}, dlq.keys)
		assert.Contains(t, dlq.reason, "after 3 attempts")
		dlq.mu.Unlock()
	})

	t.Run("nil handler", func(t *testing.T) {
		consumer := newTestConsumer(&fakeReader{}, nil)
		assert.Error(t, consumer.Subscribe(context.Background(), nil))
	})
}

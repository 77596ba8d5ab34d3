package outbox_poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/loan-lifecycle-engine/internal/domain/outbox"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEventPublisher_Publish(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	event := &shared.LoanEvent{
		EventID:       uuid.New(),
		LoanID:        uuid.New(),
		Type:          shared.EventRepaymentRecorded,
		Amount:        60000,
		CorrelationID: "corr-42",
	}
	msg, err := outbox.NewMessage(event)
	require.NoError(t, err)
	msg.ID = 11

	matchesEvent := mock.MatchedBy(func(e *shared.LoanEvent) bool { return e.EventID == event.EventID })

	t.Run("projects, publishes and marks processed", func(t *testing.T) {
		repo, store, producer := &MockOutboxRepo{}, &MockEventStore{}, &MockPublisher{}
		store.On("Upsert", mock.Anything, matchesEvent).Return(nil)
		producer.On("Publish", mock.Anything, event.LoanID.String(), matchesEvent).Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			assert.Equal(t, "corr-42", shared.CorrelationIDFromContext(ctx))
		}).Return(nil)
		repo.On("UpdateStatus", mock.Anything, int64(11), shared.OutboxStatusProcessed).Return(nil)

		p := NewEventPublisher(repo, store, producer, logger)
		assert.NoError(t, p.Publish(context.Background(), msg))
		repo.AssertExpectations(t)
		store.AssertExpectations(t)
		producer.AssertExpectations(t)
	})

	t.Run("projection failure stops before kafka", func(t *testing.T) {
		repo, store, producer := &MockOutboxRepo{}, &MockEventStore{}, &MockPublisher{}
		store.On("Upsert", mock.Anything, matchesEvent).Return(errors.New("mongo down"))

		p := NewEventPublisher(repo, store, producer, logger)
		assert.ErrorContains(t, p.Publish(context.Background(), msg), "mongo down")
		producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("kafka failure leaves the message pending", func(t *testing.T) {
		repo, store, producer := &MockOutboxRepo{}, &MockEventStore{}, &MockPublisher{}
		store.On("Upsert", mock.Anything, matchesEvent).Return(nil)
		producer.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

		p := NewEventPublisher(repo, store, producer, logger)
		assert.ErrorContains(t, p.Publish(context.Background(), msg), "broker down")
		repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("undecodable payload is marked failed", func(t *testing.T) {
		repo, store, producer := &MockOutboxRepo{}, &MockEventStore{}, &MockPublisher{}
		broken := &outbox.Message{ID: 12, Payload: []byte("{broken")}
		repo.On("UpdateStatus", mock.Anything, int64(12), shared.OutboxStatusFailedToPublish).Return(nil)

		p := NewEventPublisher(repo, store, producer, logger)
		assert.Error(t, p.Publish(context.Background(), broken))
		repo.AssertExpectations(t)
		store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

package producers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKafkaWriter is shared by the package tests.
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTopicProducer_Publish(t *testing.T) {
	loanID := uuid.New()
	event := &shared.LoanEvent{
		EventID: uuid.New(),
		LoanID:  loanID,
		Type:    shared.EventLoanDisbursed,
		Status:  "DISBURSED",
		Amount:  110000,
	}

	t.Run("writes the JSON value keyed by loan with the correlation header", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &TopicProducer{logger: discardLogger(), writer: writer, topic: "loan.events"}
		ctx := shared.ContextWithCorrelationID(context.Background(), "corr-9")

		writer.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != loanID.String() {
				return false
			}
			var decoded shared.LoanEvent
			if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
				return false
			}
			return decoded.EventID == event.EventID &&
				decoded.Amount == 110000 &&
				len(msgs[0].Headers) == 1 &&
				msgs[0].Headers[0].Key == HeaderCorrelationID &&
				string(msgs[0].Headers[0].Value) == "corr-9"
		})).Return(nil).Once()

		require.NoError(t, producer.Publish(ctx, loanID.String(), event))
		writer.AssertExpectations(t)
	})

	t.Run("no headers without a correlation id", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &TopicProducer{logger: discardLogger(), writer: writer, topic: "loan.events"}
		ctx := context.Background()

		writer.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			return len(msgs) == 1 && len(msgs[0].Headers) == 0
		})).Return(nil).Once()

		require.NoError(t, producer.Publish(ctx, "k", event))
		writer.AssertExpectations(t)
	})

	t.Run("writer failure is wrapped", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &TopicProducer{logger: discardLogger(), writer: writer, topic: "loan.events"}
		brokerDown := errors.New("broker down")

		writer.On("WriteMessages", mock.Anything, mock.AnythingOfType("[]kafka.Message")).Return(brokerDown).Once()

		err := producer.Publish(context.Background(), "k", event)
		assert.ErrorIs(t, err, brokerDown)
		assert.Contains(t, err.Error(), "loan.events")
	})

	t.Run("unencodable value", func(t *testing.T) {
		writer := new(MockKafkaWriter)
		producer := &TopicProducer{logger: discardLogger(), writer: writer, topic: "loan.events"}

		err := producer.Publish(context.Background(), "k", make(chan int))
		assert.Error(t, err)
		writer.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})
}

func TestTopicProducer_Close(t *testing.T) {
	writer := new(MockKafkaWriter)
	producer := &TopicProducer{logger: discardLogger(), writer: writer, topic: "loan.repayment-requests"}
	writer.On("Close").Return(errors.New("already closed")).Once()

	err := producer.Close()
	assert.ErrorContains(t, err, "loan.repayment-requests")
	assert.Equal(t, "loan.repayment-requests", producer.Topic())
}

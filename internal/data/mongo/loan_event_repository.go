// Package mongo holds the MongoDB read-side projections fed by the outbox poller.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// LoanEventsCollectionName is the timeline collection
	LoanEventsCollectionName = "loan_events"
)

// LoanEventRepository implements shared.EventStore for MongoDB
type LoanEventRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewLoanEventRepository(logger *slog.Logger, db *mongo.Database) *LoanEventRepository {
	return &LoanEventRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique event id index and the per-loan timeline index.
func (r *LoanEventRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(LoanEventsCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_event_id"),
		},
		{
			Keys:    bson.D{{Key: "loan_id", Value: 1}, {Key: "occurred_at", Value: 1}},
			Options: options.Index().SetName("loan_timeline"),
		},
	})
	if err != nil {
		r.logger.Error("Failed to create loan event indexes", "error", err)
		return fmt.Errorf("failed to create loan event indexes: %w", err)
	}

	return nil
}

// Upsert inserts the event unless a document with its event id already exists,
// so replaying an outbox row never duplicates a timeline entry.
func (r *LoanEventRepository) Upsert(ctx context.Context, event *shared.LoanEvent) error {
	collection := r.db.Collection(LoanEventsCollectionName)

	filter := bson.M{"event_id": event.EventID}
	update := bson.M{"$setOnInsert": event}

	_, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// lost an upsert race against another poller; the event is there
			return nil
		}
		r.logger.Error("Failed to project loan event",
			"event_id", event.EventID.String(),
			"loan_id", event.LoanID.String(),
			"error", err)
		return fmt.Errorf("failed to project loan event: %w", err)
	}

	return nil
}

// ListByLoan returns a page of the loan's events in the order they happened.
func (r *LoanEventRepository) ListByLoan(ctx context.Context, loanID uuid.UUID, limit, offset int) ([]*shared.LoanEvent, error) {
	collection := r.db.Collection(LoanEventsCollectionName)

	filter := bson.M{"loan_id": loanID}
	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get loan events",
			"loan_id", loanID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get loan events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]*shared.LoanEvent, 0)
	if err := cursor.All(ctx, &events); err != nil {
		r.logger.Error("Failed to decode loan events",
			"loan_id", loanID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode loan events: %w", err)
	}

	return events, nil
}

func (r *LoanEventRepository) CountByLoan(ctx context.Context, loanID uuid.UUID) (int64, error) {
	collection := r.db.Collection(LoanEventsCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"loan_id": loanID})
	if err != nil {
		r.logger.Error("Failed to count loan events",
			"loan_id", loanID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count loan events: %w", err)
	}

	return count, nil
}

var _ shared.EventStore = (*LoanEventRepository)(nil)

package persistence

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestNewMongoDB_DatabaseUsesMajority(t *testing.T) {
	// Connect is lazy; nothing is dialled here.
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://localhost:27017"))
	require.NoError(t, err)

	mdb := newMongoDB(slog.New(slog.NewTextHandler(io.Discard, nil)), client, "loan_engine_test")

	assert.Equal(t, "loan_engine_test", mdb.Database().Name())
	require.NotNil(t, mdb.Database().WriteConcern())
	assert.Equal(t, "majority", mdb.Database().WriteConcern().W)
	require.NotNil(t, mdb.Database().ReadConcern())
	assert.Equal(t, "majority", mdb.Database().ReadConcern().Level)
}

func TestMongoDB_WithoutClient(t *testing.T) {
	mdb := &MongoDB{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	assert.ErrorIs(t, mdb.Ping(context.Background()), errMongoNotConnected)
	assert.NoError(t, mdb.Close(context.Background()))
}

package producers

import (
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTopicAdmin struct {
	partitions []kafka.Partition
	readErrs   int
	reads      int
	created    []kafka.TopicConfig
	createErr  error
}

func (f *fakeTopicAdmin) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	f.reads++
	if f.reads <= f.readErrs {
		return nil, errors.New("metadata not ready")
	}
	return f.partitions, nil
}

func (f *fakeTopicAdmin) CreateTopics(topics ...kafka.TopicConfig) error {
	f.created = append(f.created, topics...)
	return f.createErr
}

func TestEnsureTopic(t *testing.T) {
	topicReadBackoff = 0

	t.Run("existing topic is left alone", func(t *testing.T) {
		admin := &fakeTopicAdmin{partitions: []kafka.Partition{{Topic: "loan.events"}}, readErrs: 2}
		require.NoError(t, ensureTopic(admin, "loan.events", 3, 1, discardLogger()))
		assert.Equal(t, 3, admin.reads)
		assert.Empty(t, admin.created)
	})

	t.Run("missing topic is created with defaults", func(t *testing.T) {
		admin := &fakeTopicAdmin{}
		require.NoError(t, ensureTopic(admin, "loan.events", 0, 0, discardLogger()))
		require.Len(t, admin.created, 1)
		assert.Equal(t, kafka.TopicConfig{Topic: "loan.events", NumPartitions: 1, ReplicationFactor: 1}, admin.created[0])
	})

	t.Run("creation failure", func(t *testing.T) {
		admin := &fakeTopicAdmin{readErrs: 10, createErr: errors.New("not authorized")}
		err := ensureTopic(admin, "loan.events", 1, 1, discardLogger())
		assert.ErrorContains(t, err, "not authorized")
		assert.Equal(t, 5, admin.reads)
	})
}

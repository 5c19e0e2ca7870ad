package audit

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoSink(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("log inserts entry", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		sink := &MongoSink{Collection: mt.Coll}
		err := sink.Log(context.Background(), Entry{ActorID: 1, Entity: "book", EntityID: 4, Action: "create"})
		assert.NoError(t, err)
	})

	mt.Run("log surfaces write errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "dup"}))
		sink := &MongoSink{Collection: mt.Coll}
		assert.Error(t, sink.Log(context.Background(), Entry{Entity: "book"}))
	})

	mt.Run("recent decodes entries", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		first := mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "timestamp", Value: ts},
				{Key: "actor_id", Value: int64(2)},
				{Key: "entity", Value: "order"},
				{Key: "entity_id", Value: int64(9)},
				{Key: "action", Value: "status:SHIPPED"},
			})
		end := mtest.CreateCursorResponse(0, ns, mtest.NextBatch)
		mt.AddMockResponses(first, end)

		got, err := (&MongoSink{Collection: mt.Coll}).Recent(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "order", got[0].Entity)
		assert.Equal(t, uint64(9), got[0].EntityID)
		assert.True(t, got[0].Timestamp.Equal(ts))
	})
}

type failingSink struct{ LogSink }

func (failingSink) Log(context.Context, Entry) error { return assert.AnError }

func TestRecordLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	Record(context.Background(), &failingSink{}, log, Entry{Entity: "author", Action: "delete"})
	assert.Contains(t, buf.String(), "audit write failed")

	buf.Reset()
	Record(context.Background(), nil, log, Entry{})
	assert.Empty(t, buf.String())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	sink := &LogSink{Logger: log}

	require.NoError(t, sink.Log(context.Background(), Entry{Entity: "book", EntityID: 3, Action: "stock"}))
	assert.Contains(t, buf.String(), "entity=book")

	recent, err := sink.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

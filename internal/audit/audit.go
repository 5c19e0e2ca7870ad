// Package audit records who changed what.  Admin catalog/order mutations
// and checkouts write one Entry each.
package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Entry is one audit record.
type Entry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	ActorID   uint64             `bson:"actor_id" json:"actor_id"`
	Entity    string             `bson:"entity" json:"entity"`
	EntityID  uint64             `bson:"entity_id" json:"entity_id"`
	Action    string             `bson:"action" json:"action"`
	Data      any                `bson:"data,omitempty" json:"data,omitempty"`
}

// Logger is implemented by every audit sink.
type Logger interface {
	Log(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// MongoSink appends entries to a MongoDB collection.
type MongoSink struct {
	Collection *mongo.Collection
}

func (s *MongoSink) Log(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.Collection.InsertOne(ctx, e)
	return err
}

// Recent returns up to limit entries, newest first.
func (s *MongoSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.Collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	out := []Entry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LogSink writes entries to the application log.  It is used when no
// MongoDB URI is configured and cannot list past entries.
type LogSink struct {
	Logger logrus.FieldLogger
}

func (s *LogSink) Log(_ context.Context, e Entry) error {
	s.Logger.WithFields(logrus.Fields{
		"actor_id":  e.ActorID,
		"entity":    e.Entity,
		"entity_id": e.EntityID,
		"action":    e.Action,
	}).Info("audit")
	return nil
}

func (s *LogSink) Recent(context.Context, int) ([]Entry, error) { return []Entry{}, nil }

// Connect opens the MongoDB client and returns a sink on
// <db>.audit_logs.  The returned client must be disconnected on shutdown.
func Connect(ctx context.Context, uri, db string) (*MongoSink, *mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return &MongoSink{Collection: client.Database(db).Collection("audit_logs")}, client, nil
}

// Record logs e and reports a failing sink on log instead of failing the
// request that caused it.
func Record(ctx context.Context, l Logger, log logrus.FieldLogger, e Entry) {
	if l == nil {
		return
	}
	if err := l.Log(ctx, e); err != nil {
		log.WithError(err).WithFields(logrus.Fields{"entity": e.Entity, "action": e.Action}).Warn("audit write failed")
	}
}

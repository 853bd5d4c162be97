package clickstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDoc is the wire shape of a redirects_clicks document.
type mongoDoc struct {
	LinkID    string    `bson:"link_id"`
	Count     int64     `bson:"count"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoRecorder is a [Recorder] implementation backed by the
// redirects_clicks MongoDB collection, which must carry a unique index on
// link_id so that concurrent first-time writes for the same link cannot
// create duplicates (spec.md §4.4).
type MongoRecorder struct {
	coll *mongo.Collection
}

// NewMongoRecorder returns a new *MongoRecorder writing to coll.  coll must
// not be nil and must have a unique index on link_id.
func NewMongoRecorder(coll *mongo.Collection) (r *MongoRecorder) {
	return &MongoRecorder{
		coll: coll,
	}
}

// type check
var _ Recorder = (*MongoRecorder)(nil)

// IncrementClick implements the [Recorder] interface for *MongoRecorder.
func (r *MongoRecorder) IncrementClick(ctx context.Context, linkID string) (c *ClickCounter, err error) {
	filter := bson.D{{Key: "link_id", Value: linkID}}
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "count", Value: int64(1)}}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "link_id", Value: linkID},
			{Key: "created_at", Value: time.Now()},
		}},
	}

	after := options.After
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(after)

	var doc mongoDoc
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("incrementing click for %q: %w", linkID, err)
	}

	return &ClickCounter{
		LinkID:    doc.LinkID,
		Count:     doc.Count,
		CreatedAt: doc.CreatedAt,
	}, nil
}

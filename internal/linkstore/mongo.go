package linkstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDoc is the wire shape of a redirects_links document.
type mongoDoc struct {
	Domain    string    `bson:"domain"`
	URL       string    `bson:"url"`
	Status    bool      `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore is a [Store] implementation backed by the redirects_links
// MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore returns a new *MongoStore writing to coll.  coll must not be
// nil.
func NewMongoStore(coll *mongo.Collection) (s *MongoStore) {
	return &MongoStore{
		coll: coll,
	}
}

// type check
var _ Store = (*MongoStore)(nil)

// DeactivateAll implements the [Store] interface for *MongoStore.
func (s *MongoStore) DeactivateAll(ctx context.Context, keepActive []string) (err error) {
	filter := bson.D{
		{Key: "domain", Value: bson.D{{Key: "$nin", Value: keepActive}}},
		{Key: "status", Value: true},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: false},
		{Key: "updated_at", Value: time.Now()},
	}}}

	_, err = s.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("deactivating stale links: %w", err)
	}

	return nil
}

// UpsertActive implements the [Store] interface for *MongoStore.
func (s *MongoStore) UpsertActive(ctx context.Context, domain, url string) (err error) {
	now := time.Now()
	filter := bson.D{{Key: "domain", Value: domain}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "url", Value: url},
			{Key: "status", Value: true},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "domain", Value: domain},
			{Key: "created_at", Value: now},
		}},
	}

	_, err = s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting active link for %q: %w", domain, err)
	}

	return nil
}

// ListActive implements the [Store] interface for *MongoStore.
func (s *MongoStore) ListActive(ctx context.Context) (records []LinkRecord, err error) {
	cur, err := s.coll.Find(ctx, bson.D{{Key: "status", Value: true}})
	if err != nil {
		return nil, fmt.Errorf("listing active links: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc mongoDoc
		if dErr := cur.Decode(&doc); dErr != nil {
			return nil, fmt.Errorf("decoding active link: %w", dErr)
		}

		records = append(records, LinkRecord{
			Domain:    doc.Domain,
			URL:       doc.URL,
			Status:    doc.Status,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}

	if err = cur.Err(); err != nil {
		return nil, fmt.Errorf("iterating active links: %w", err)
	}

	return records, nil
}

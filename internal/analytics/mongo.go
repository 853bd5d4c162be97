package analytics

import (
	"context"
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoRepository is a [Repository] implementation backed by a MongoDB
// aggregation pipeline over the analytics collection.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns a new *MongoRepository reading from coll.  coll
// must not be nil.
func NewMongoRepository(coll *mongo.Collection) (r *MongoRepository) {
	return &MongoRepository{
		coll: coll,
	}
}

// type check
var _ Repository = (*MongoRepository)(nil)

// BestPosts implements the [Repository] interface for *MongoRepository.  It
// runs a $match/$group aggregation restricted to q.Domains, q.CustomKey, and
// the [q.Start, q.End] date range, grouping by (domain, custom_value) and
// keeping the maximum ecpm per group — the database-side half of spec.md
// §4.1's "best post per domain"; the refresher still reduces these
// per-(domain,post) winners down to one winner per domain.
func (r *MongoRepository) BestPosts(ctx context.Context, q Query) (rows []Row, err error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "date", Value: bson.D{
				{Key: "$gte", Value: q.Start},
				{Key: "$lte", Value: q.End},
			}},
			{Key: "domain", Value: bson.D{{Key: "$in", Value: q.Domains}}},
			{Key: "custom_key", Value: q.CustomKey},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "domain", Value: "$domain"},
				{Key: "custom_value", Value: "$custom_value"},
			}},
			{Key: "ecpm", Value: bson.D{{Key: "$max", Value: toDouble("$ecpm")}}},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregating best posts: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, cur.Close(ctx)) }()

	for cur.Next(ctx) {
		var doc struct {
			ID struct {
				Domain      string `bson:"domain"`
				CustomValue string `bson:"custom_value"`
			} `bson:"_id"`
			ECPM float64 `bson:"ecpm"`
		}

		decErr := cur.Decode(&doc)
		if decErr != nil {
			return nil, fmt.Errorf("decoding best-post row: %w", decErr)
		}

		rows = append(rows, Row{
			Domain:      doc.ID.Domain,
			CustomValue: doc.ID.CustomValue,
			ECPM:        doc.ECPM,
		})
	}

	err = cur.Err()
	if err != nil {
		return nil, fmt.Errorf("iterating best-post rows: %w", err)
	}

	return rows, nil
}

// toDouble builds a $convert expression that coerces field to a double,
// falling back to zero for the loosely typed, sometimes string-encoded
// numeric fields the upstream ETL produces (spec.md §9's "dynamic `any`
// fields" note, applied at the database boundary instead of the Go one).
func toDouble(field string) (expr bson.D) {
	return bson.D{{Key: "$convert", Value: bson.D{
		{Key: "input", Value: field},
		{Key: "to", Value: "double"},
		{Key: "onError", Value: 0},
		{Key: "onNull", Value: 0},
	}}}
}

func matchFilter(q Query) (filter bson.D) {
	if q.Start != "" {
		filter = append(filter, bson.E{Key: "date", Value: bson.D{
			{Key: "$gte", Value: q.Start},
			{Key: "$lte", Value: q.End},
		}})
	}

	if len(q.Domains) > 0 {
		filter = append(filter, bson.E{Key: "domain", Value: bson.D{{Key: "$in", Value: q.Domains}}})
	}

	if q.CustomKey != "" {
		filter = append(filter, bson.E{Key: "custom_key", Value: q.CustomKey})
	}

	return filter
}

// Totals implements the [Repository] interface for *MongoRepository.
func (r *MongoRepository) Totals(
	ctx context.Context,
	q Query,
) (totals Totals, byDomain []DomainTraffic, err error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: matchFilter(q)}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$domain"},
			{Key: "clicks", Value: bson.D{{Key: "$sum", Value: toDouble("$clicks")}}},
			{Key: "impressions", Value: bson.D{{Key: "$sum", Value: toDouble("$impressions")}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: toDouble("$revenue")}}},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return Totals{}, nil, fmt.Errorf("aggregating totals: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, cur.Close(ctx)) }()

	for cur.Next(ctx) {
		var doc struct {
			Domain      string  `bson:"_id"`
			Clicks      float64 `bson:"clicks"`
			Impressions float64 `bson:"impressions"`
			Revenue     float64 `bson:"revenue"`
		}

		decErr := cur.Decode(&doc)
		if decErr != nil {
			return Totals{}, nil, fmt.Errorf("decoding totals row: %w", decErr)
		}

		dt := DomainTraffic{
			Domain: doc.Domain,
			Totals: Totals{Clicks: doc.Clicks, Impressions: doc.Impressions, Revenue: doc.Revenue},
		}
		byDomain = append(byDomain, dt)

		totals.Clicks += dt.Clicks
		totals.Impressions += dt.Impressions
		totals.Revenue += dt.Revenue
	}

	err = cur.Err()
	if err != nil {
		return Totals{}, nil, fmt.Errorf("iterating totals rows: %w", err)
	}

	return totals, byDomain, nil
}

// Distinct implements the [Repository] interface for *MongoRepository.
func (r *MongoRepository) Distinct(ctx context.Context, field string) (values []string, err error) {
	raw, err := r.coll.Distinct(ctx, field, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("listing distinct %q: %w", field, err)
	}

	values = make([]string, 0, len(raw))
	for _, v := range raw {
		values = append(values, fmt.Sprint(v))
	}

	return values, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/helpers/utils"
	"github.com/geo-bucket/internal/geo"
)

// Collection names.
const (
	BucketCollection   = "geo_buckets"
	PropertyCollection = "properties"
)

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// MongoStore is the production Store. Bucket centers and property locations
// are GeoJSON points under 2dsphere indexes, and a unique index on
// (normalized_name, cell) backs the resolver's duplicate protection.
type MongoStore struct {
	buckets    *mongo.Collection
	properties *mongo.Collection
	logger     *zap.Logger
}

// NewMongoStore creates a MongoStore over db.
func NewMongoStore(db *mongo.Database, logger *zap.Logger) *MongoStore {
	return &MongoStore{
		buckets:    db.Collection(BucketCollection),
		properties: db.Collection(PropertyCollection),
		logger:     logger,
	}
}

// EnsureIndexes creates the spatial, uniqueness and ordering indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	bucketIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "center", Value: "2dsphere"}}},
		{
			Keys:    bson.D{{Key: "normalized_name", Value: 1}, {Key: "cell", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("normalized_name_cell_unique"),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "normalized_name", Value: 1}}},
	}
	if _, err := s.buckets.Indexes().CreateMany(ctx, bucketIndexes); err != nil {
		return fmt.Errorf("create %s indexes: %w", BucketCollection, err)
	}

	propertyIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "geo_bucket_id", Value: 1}, {Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := s.properties.Indexes().CreateMany(ctx, propertyIndexes); err != nil {
		return fmt.Errorf("create %s indexes: %w", PropertyCollection, err)
	}

	s.logger.Info("Mongo indexes ensured",
		zap.String("buckets", BucketCollection),
		zap.String("properties", PropertyCollection))
	return nil
}

// BucketsWithin runs a $centerSphere query with the service Earth radius, so
// Mongo and the in-memory store agree on what "within" means.
func (s *MongoStore) BucketsWithin(ctx context.Context, q BucketQuery) ([]models.GeoBucket, error) {
	filter := bson.M{
		"center": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{
					bson.A{q.Center.Lng, q.Center.Lat},
					geo.AngularRadius(q.RadiusMeters),
				},
			},
		},
	}
	if q.MatchName {
		filter["normalized_name"] = q.NormalizedName
	}

	cursor, err := s.buckets.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("query buckets within %.0fm: %w", q.RadiusMeters, err)
	}
	var buckets []models.GeoBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, fmt.Errorf("decode buckets: %w", err)
	}
	return buckets, nil
}

// InsertBucket maps the unique-index violation to ErrDuplicateBucket.
func (s *MongoStore) InsertBucket(ctx context.Context, b *models.GeoBucket) error {
	if b.ID == "" {
		b.ID = utils.GenerateUUID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now()
	}

	if _, err := s.buckets.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert bucket %q in cell %s: %w", b.NormalizedName, b.Cell, ErrDuplicateBucket)
		}
		return fmt.Errorf("insert bucket: %w", err)
	}
	return nil
}

// BucketByKey returns the bucket owning (normalizedName, cell).
func (s *MongoStore) BucketByKey(ctx context.Context, normalizedName, cell string) (*models.GeoBucket, error) {
	return s.findBucket(ctx, bson.M{"normalized_name": normalizedName, "cell": cell})
}

// Bucket returns the bucket with id.
func (s *MongoStore) Bucket(ctx context.Context, id string) (*models.GeoBucket, error) {
	return s.findBucket(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findBucket(ctx context.Context, filter bson.M) (*models.GeoBucket, error) {
	var b models.GeoBucket
	if err := s.buckets.FindOne(ctx, filter).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find bucket: %w", err)
	}
	return &b, nil
}

// Buckets returns a newest-first page of buckets.
func (s *MongoStore) Buckets(ctx context.Context, f BucketFilter) ([]models.GeoBucket, int64, error) {
	filter := bson.M{}
	if !f.CreatedSince.IsZero() {
		filter["created_at"] = bson.M{"$gte": f.CreatedSince}
	}
	if f.IDs != nil {
		filter["_id"] = bson.M{"$in": f.IDs}
	}

	total, err := s.buckets.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count buckets: %w", err)
	}

	opts := options.Find().SetSort(newestFirst).SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cursor, err := s.buckets.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list buckets: %w", err)
	}
	buckets := []models.GeoBucket{}
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, 0, fmt.Errorf("decode buckets: %w", err)
	}
	return buckets, total, nil
}

// SearchBucketNames matches substr case-insensitively against name and normalized name.
func (s *MongoStore) SearchBucketNames(ctx context.Context, substr string, limit int) ([]models.GeoBucket, error) {
	pattern := containsPattern(substr)
	filter := bson.M{"$or": bson.A{
		bson.M{"name": pattern},
		bson.M{"normalized_name": pattern},
	}}

	opts := options.Find().SetSort(newestFirst)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.buckets.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("search bucket names: %w", err)
	}
	var buckets []models.GeoBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, fmt.Errorf("decode buckets: %w", err)
	}
	return buckets, nil
}

// deletingField marks a bucket whose deletion is in progress. InsertProperty
// re-reads the bucket after writing, so a property inserted after the
// delete's count sees the mark and is rolled back.
const deletingField = "deleting"

// DeleteBucket refuses to delete a bucket that still owns properties. The
// bucket is marked before the count, which closes the window in which a
// concurrent InsertProperty could leave an orphan.
func (s *MongoStore) DeleteBucket(ctx context.Context, id string) error {
	marked, err := s.buckets.UpdateOne(ctx,
		bson.M{"_id": id, deletingField: bson.M{"$exists": false}},
		bson.M{"$set": bson.M{deletingField: true}})
	if err != nil {
		return fmt.Errorf("mark bucket for deletion: %w", err)
	}
	if marked.MatchedCount == 0 {
		return fmt.Errorf("delete bucket %s: %w", id, ErrNotFound)
	}

	n, err := s.properties.CountDocuments(ctx, bson.M{"geo_bucket_id": id}, options.Count().SetLimit(1))
	switch {
	case err != nil:
		err = fmt.Errorf("count bucket properties: %w", err)
	case n > 0:
		err = fmt.Errorf("delete bucket %s: %w", id, ErrBucketInUse)
	}
	if err != nil {
		if _, uerr := s.buckets.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$unset": bson.M{deletingField: ""}}); uerr != nil {
			s.logger.Warn("Failed to clear bucket deletion mark", zap.String("bucket_id", id), zap.Error(uerr))
		}
		return err
	}

	res, err := s.buckets.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Aggregates groups properties by bucket in a single pipeline.
func (s *MongoStore) Aggregates(ctx context.Context, ids []string) (map[string]models.BucketAggregate, error) {
	pipeline := mongo.Pipeline{}
	if ids != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"geo_bucket_id": bson.M{"$in": ids}}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.M{
		"_id":             "$geo_bucket_id",
		"property_count":  bson.M{"$sum": 1},
		"avg_price":       bson.M{"$avg": "$price"},
		"min_price":       bson.M{"$min": "$price"},
		"max_price":       bson.M{"$max": "$price"},
		"total_value":     bson.M{"$sum": "$price"},
		"total_bedrooms":  bson.M{"$sum": "$bedrooms"},
		"total_bathrooms": bson.M{"$sum": "$bathrooms"},
	}}})

	cursor, err := s.properties.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate bucket properties: %w", err)
	}
	var rows []models.BucketAggregate
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode bucket aggregates: %w", err)
	}

	out := make(map[string]models.BucketAggregate, len(rows))
	for _, row := range rows {
		out[row.BucketID] = row
	}
	return out, nil
}

// InsertProperty stores p.
func (s *MongoStore) InsertProperty(ctx context.Context, p *models.Property) error {
	if p.ID == "" {
		p.ID = utils.GenerateUUID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	if _, err := s.properties.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert property: %w", err)
	}
	if p.GeoBucketID == "" {
		return nil
	}

	// The owning bucket must still exist and not be mid-deletion.
	err := s.buckets.FindOne(ctx,
		bson.M{"_id": p.GeoBucketID, deletingField: bson.M{"$exists": false}},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return nil
	}
	if _, derr := s.properties.DeleteOne(ctx, bson.M{"_id": p.ID}); derr != nil {
		s.logger.Error("Failed to roll back orphaned property",
			zap.String("property_id", p.ID), zap.String("bucket_id", p.GeoBucketID), zap.Error(derr))
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("insert property: bucket %s: %w", p.GeoBucketID, ErrNotFound)
	}
	return fmt.Errorf("check property bucket: %w", err)
}

// Property returns the property with id.
func (s *MongoStore) Property(ctx context.Context, id string) (*models.Property, error) {
	var p models.Property
	if err := s.properties.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find property: %w", err)
	}
	return &p, nil
}

// Properties returns a filtered page of properties.
func (s *MongoStore) Properties(ctx context.Context, f PropertyFilter) ([]models.Property, int64, error) {
	filter := bson.M{}
	if f.BucketIDs != nil {
		filter["geo_bucket_id"] = bson.M{"$in": f.BucketIDs}
	}
	if f.LocationContains != "" {
		filter["location_name"] = containsPattern(f.LocationContains)
	}
	created := bson.M{}
	if !f.CreatedFrom.IsZero() {
		created["$gte"] = f.CreatedFrom
	}
	if !f.CreatedTo.IsZero() {
		created["$lte"] = f.CreatedTo
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}
	if f.ExcludeID != "" {
		filter["_id"] = bson.M{"$ne": f.ExcludeID}
	}

	total, err := s.properties.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count properties: %w", err)
	}

	sortBy := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	if f.SortByPrice {
		sortBy = bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	}
	opts := options.Find().SetSort(sortBy).SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cursor, err := s.properties.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list properties: %w", err)
	}
	properties := []models.Property{}
	if err := cursor.All(ctx, &properties); err != nil {
		return nil, 0, fmt.Errorf("decode properties: %w", err)
	}
	return properties, total, nil
}

// PropertiesNear uses $geoNear with a legacy coordinate pair so distances come
// back in radians and are scaled by the service Earth radius.
func (s *MongoStore) PropertiesNear(ctx context.Context, center geo.Point, radius float64, offset, limit int) ([]models.PropertyWithDistance, int64, error) {
	total, err := s.properties.CountDocuments(ctx, bson.M{
		"location": bson.M{"$geoWithin": bson.M{
			"$centerSphere": bson.A{bson.A{center.Lng, center.Lat}, geo.AngularRadius(radius)},
		}},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("count nearby properties: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":               bson.A{center.Lng, center.Lat},
			"key":                "location",
			"spherical":          true,
			"maxDistance":        geo.AngularRadius(radius),
			"distanceMultiplier": geo.EarthRadiusMeters,
			"distanceField":      "distance",
		}}},
		{{Key: "$skip", Value: int64(offset)}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(limit)}})
	}

	cursor, err := s.properties.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("query nearby properties: %w", err)
	}
	out := []models.PropertyWithDistance{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode nearby properties: %w", err)
	}
	return out, total, nil
}

func containsPattern(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// Mongo stores milliseconds; truncating keeps round-tripped values equal.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

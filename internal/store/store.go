// Package store defines the spatial store the bucket engine runs against and
// provides MongoDB and in-memory implementations.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/internal/geo"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateBucket is returned when a bucket with the same normalized name already exists in the cell.
	ErrDuplicateBucket = errors.New("bucket already exists for normalized name and cell")
	// ErrBucketInUse is returned when deleting a bucket that still owns properties.
	ErrBucketInUse = errors.New("bucket is referenced by properties")
)

// Order is the documented result order of bucket queries.
type Order int

const (
	// OrderNewestFirst sorts by created_at descending, then id descending.
	// Every tie-break in the resolver and the aggregator relies on this order.
	OrderNewestFirst Order = iota
)

// BucketQuery selects buckets whose center lies within RadiusMeters of Center.
type BucketQuery struct {
	Center         geo.Point
	RadiusMeters   float64
	NormalizedName string
	MatchName      bool // filter on NormalizedName, which may be empty
	Order          Order
}

// BucketFilter pages through buckets in OrderNewestFirst.
type BucketFilter struct {
	CreatedSince time.Time // zero means no lower bound
	IDs          []string
	Offset       int
	Limit        int // 0 means no limit
}

// PropertyFilter selects properties.
type PropertyFilter struct {
	BucketIDs        []string
	LocationContains string // case-insensitive
	CreatedFrom      time.Time
	CreatedTo        time.Time
	MinPrice         *float64
	MaxPrice         *float64
	ExcludeID        string
	SortByPrice      bool // price ascending; otherwise newest first
	Offset           int
	Limit            int // 0 means no limit
}

// BucketStore stores geo-buckets.
type BucketStore interface {
	// BucketsWithin returns buckets inside the query disk in q.Order.
	BucketsWithin(ctx context.Context, q BucketQuery) ([]models.GeoBucket, error)
	// InsertBucket assigns id and created_at when empty and stores b.
	// It returns ErrDuplicateBucket when (normalized_name, cell) is taken.
	InsertBucket(ctx context.Context, b *models.GeoBucket) error
	// BucketByKey returns the bucket owning (normalizedName, cell).
	BucketByKey(ctx context.Context, normalizedName, cell string) (*models.GeoBucket, error)
	Bucket(ctx context.Context, id string) (*models.GeoBucket, error)
	// Buckets returns a page of buckets and the total number matching f.
	Buckets(ctx context.Context, f BucketFilter) ([]models.GeoBucket, int64, error)
	// SearchBucketNames returns buckets whose name or normalized name contains substr, newest first.
	SearchBucketNames(ctx context.Context, substr string, limit int) ([]models.GeoBucket, error)
	// DeleteBucket removes an empty bucket; ErrBucketInUse when properties reference it.
	DeleteBucket(ctx context.Context, id string) error
	// Aggregates returns per-bucket property statistics. Buckets without
	// properties are absent from the map. A nil ids slice means all buckets.
	Aggregates(ctx context.Context, ids []string) (map[string]models.BucketAggregate, error)
}

// PropertyStore stores listings.
type PropertyStore interface {
	// InsertProperty assigns id and created_at when empty and stores p.
	InsertProperty(ctx context.Context, p *models.Property) error
	Property(ctx context.Context, id string) (*models.Property, error)
	Properties(ctx context.Context, f PropertyFilter) ([]models.Property, int64, error)
	// PropertiesNear returns properties within radius meters of center, nearest first.
	PropertiesNear(ctx context.Context, center geo.Point, radius float64, offset, limit int) ([]models.PropertyWithDistance, int64, error)
}

// Store is the full spatial store.
type Store interface {
	BucketStore
	PropertyStore
}

// SortNewestFirst orders buckets by OrderNewestFirst in place.
func SortNewestFirst(buckets []models.GeoBucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		return newerThan(&buckets[i], &buckets[j])
	})
}

func newerThan(a, b *models.GeoBucket) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func bucketKey(normalizedName, cell string) string {
	return normalizedName + "\x00" + cell
}

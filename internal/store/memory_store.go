package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/rtree"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/helpers/utils"
	"github.com/geo-bucket/internal/geo"
)

// MemoryStore is an in-process Store backed by an R-tree over bucket centers.
// It enforces the same (normalized_name, cell) uniqueness as the Mongo indexes
// and is used by tests and by the CLI when no database is configured.
type MemoryStore struct {
	mu         sync.RWMutex
	buckets    map[string]*models.GeoBucket
	keys       map[string]string
	tree       rtree.RTree
	properties map[string]*models.Property
	now        func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used to stamp created_at.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		buckets:    make(map[string]*models.GeoBucket),
		keys:       make(map[string]string),
		properties: make(map[string]*models.Property),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BucketsWithin searches the R-tree with the disk's bounding box and keeps
// centers whose great-circle distance is within the radius.
func (s *MemoryStore) BucketsWithin(ctx context.Context, q BucketQuery) ([]models.GeoBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b := geo.BoundsAround(q.Center, q.RadiusMeters)
	var out []models.GeoBucket
	s.tree.Search(
		[2]float64{b.MinLat, b.MinLng},
		[2]float64{b.MaxLat, b.MaxLng},
		func(_, _ [2]float64, data interface{}) bool {
			bucket := s.buckets[data.(string)]
			if q.MatchName && bucket.NormalizedName != q.NormalizedName {
				return true
			}
			if geo.Distance(q.Center, bucket.CenterPoint()) <= q.RadiusMeters {
				out = append(out, *bucket)
			}
			return true
		},
	)
	SortNewestFirst(out)
	return out, nil
}

// InsertBucket stores b, rejecting a second bucket for the same key.
func (s *MemoryStore) InsertBucket(ctx context.Context, b *models.GeoBucket) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := bucketKey(b.NormalizedName, b.Cell)
	if _, exists := s.keys[key]; exists {
		return fmt.Errorf("insert bucket %q in cell %s: %w", b.NormalizedName, b.Cell, ErrDuplicateBucket)
	}
	if b.ID == "" {
		b.ID = utils.GenerateUUID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}

	stored := *b
	s.buckets[b.ID] = &stored
	s.keys[key] = b.ID
	c := b.CenterPoint()
	pt := [2]float64{c.Lat, c.Lng}
	s.tree.Insert(pt, pt, b.ID)
	return nil
}

// BucketByKey returns the bucket owning (normalizedName, cell).
func (s *MemoryStore) BucketByKey(ctx context.Context, normalizedName, cell string) (*models.GeoBucket, error) {
	s.mu.RLock()
	id, ok := s.keys[bucketKey(normalizedName, cell)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Bucket(ctx, id)
}

// Bucket returns the bucket with id.
func (s *MemoryStore) Bucket(ctx context.Context, id string) (*models.GeoBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buckets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *b
	return &out, nil
}

// Buckets returns a newest-first page of buckets.
func (s *MemoryStore) Buckets(ctx context.Context, f BucketFilter) ([]models.GeoBucket, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	var ids map[string]struct{}
	if f.IDs != nil {
		ids = make(map[string]struct{}, len(f.IDs))
		for _, id := range f.IDs {
			ids[id] = struct{}{}
		}
	}
	all := make([]models.GeoBucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		if ids != nil {
			if _, ok := ids[b.ID]; !ok {
				continue
			}
		}
		if !f.CreatedSince.IsZero() && b.CreatedAt.Before(f.CreatedSince) {
			continue
		}
		all = append(all, *b)
	}
	s.mu.RUnlock()

	SortNewestFirst(all)
	total := int64(len(all))
	return window(all, f.Offset, f.Limit), total, nil
}

// SearchBucketNames matches substr case-insensitively against name and normalized name.
func (s *MemoryStore) SearchBucketNames(ctx context.Context, substr string, limit int) ([]models.GeoBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	needle := strings.ToLower(substr)
	s.mu.RLock()
	var out []models.GeoBucket
	for _, b := range s.buckets {
		if strings.Contains(strings.ToLower(b.Name), needle) || strings.Contains(b.NormalizedName, needle) {
			out = append(out, *b)
		}
	}
	s.mu.RUnlock()

	SortNewestFirst(out)
	return window(out, 0, limit), nil
}

// DeleteBucket removes an empty bucket.
func (s *MemoryStore) DeleteBucket(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[id]
	if !ok {
		return ErrNotFound
	}
	for _, p := range s.properties {
		if p.GeoBucketID == id {
			return fmt.Errorf("delete bucket %s: %w", id, ErrBucketInUse)
		}
	}

	c := b.CenterPoint()
	pt := [2]float64{c.Lat, c.Lng}
	s.tree.Delete(pt, pt, id)
	delete(s.keys, bucketKey(b.NormalizedName, b.Cell))
	delete(s.buckets, id)
	return nil
}

// Aggregates folds properties into per-bucket statistics.
func (s *MemoryStore) Aggregates(ctx context.Context, ids []string) (map[string]models.BucketAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var wanted map[string]struct{}
	if ids != nil {
		wanted = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			wanted[id] = struct{}{}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.BucketAggregate)
	for _, p := range s.properties {
		if wanted != nil {
			if _, ok := wanted[p.GeoBucketID]; !ok {
				continue
			}
		}
		agg := out[p.GeoBucketID]
		agg.BucketID = p.GeoBucketID
		agg.Add(p)
		out[p.GeoBucketID] = agg
	}
	return out, nil
}

// InsertProperty stores p.
func (s *MemoryStore) InsertProperty(ctx context.Context, p *models.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.GeoBucketID != "" {
		if _, ok := s.buckets[p.GeoBucketID]; !ok {
			return fmt.Errorf("insert property: bucket %s: %w", p.GeoBucketID, ErrNotFound)
		}
	}
	if p.ID == "" {
		p.ID = utils.GenerateUUID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	stored := *p
	s.properties[p.ID] = &stored
	return nil
}

// Property returns the property with id.
func (s *MemoryStore) Property(ctx context.Context, id string) (*models.Property, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

// Properties returns a filtered page of properties.
func (s *MemoryStore) Properties(ctx context.Context, f PropertyFilter) ([]models.Property, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var buckets map[string]struct{}
	if f.BucketIDs != nil {
		buckets = make(map[string]struct{}, len(f.BucketIDs))
		for _, id := range f.BucketIDs {
			buckets[id] = struct{}{}
		}
	}
	needle := strings.ToLower(f.LocationContains)

	s.mu.RLock()
	var out []models.Property
	for _, p := range s.properties {
		if buckets != nil {
			if _, ok := buckets[p.GeoBucketID]; !ok {
				continue
			}
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.LocationName), needle) {
			continue
		}
		if !f.CreatedFrom.IsZero() && p.CreatedAt.Before(f.CreatedFrom) {
			continue
		}
		if !f.CreatedTo.IsZero() && p.CreatedAt.After(f.CreatedTo) {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		if f.ExcludeID != "" && p.ID == f.ExcludeID {
			continue
		}
		out = append(out, *p)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if f.SortByPrice && out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		if f.SortByPrice {
			return out[i].ID < out[j].ID
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	total := int64(len(out))
	return window(out, f.Offset, f.Limit), total, nil
}

// PropertiesNear scans listings and orders those within radius by distance.
func (s *MemoryStore) PropertiesNear(ctx context.Context, center geo.Point, radius float64, offset, limit int) ([]models.PropertyWithDistance, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	var out []models.PropertyWithDistance
	for _, p := range s.properties {
		d := geo.Distance(center, p.LocationPoint())
		if d <= radius {
			out = append(out, models.PropertyWithDistance{Property: *p, DistanceMeters: d})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].ID < out[j].ID
	})
	total := int64(len(out))
	return window(out, offset, limit), total, nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/internal/geo"
)

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newBucket(name string, lat, lng float64) *models.GeoBucket {
	return models.NewGeoBucket(name, name, geo.Point{Lat: lat, Lng: lng}, 0, geo.DefaultCellPrecision)
}

func TestMemoryStore_BucketsWithin(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithClock(tickingClock()))

	near := newBucket("sangotedo", 6.4698, 3.6285)
	nearer := newBucket("sangotedo estate", 6.4685, 3.6270)
	far := newBucket("ikeja", 6.6030, 3.3490)
	for _, b := range []*models.GeoBucket{near, nearer, far} {
		require.NoError(t, s.InsertBucket(ctx, b))
	}

	center := geo.Point{Lat: 6.4698, Lng: 3.6285}

	t.Run("newest first within radius", func(t *testing.T) {
		got, err := s.BucketsWithin(ctx, BucketQuery{Center: center, RadiusMeters: 1000})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, nearer.ID, got[0].ID)
		assert.Equal(t, near.ID, got[1].ID)
	})

	t.Run("name filter", func(t *testing.T) {
		got, err := s.BucketsWithin(ctx, BucketQuery{Center: center, RadiusMeters: 1000, NormalizedName: "sangotedo", MatchName: true})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, near.ID, got[0].ID)
	})

	t.Run("empty name filter matches only empty names", func(t *testing.T) {
		got, err := s.BucketsWithin(ctx, BucketQuery{Center: center, RadiusMeters: 1000, MatchName: true})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("large radius", func(t *testing.T) {
		got, err := s.BucketsWithin(ctx, BucketQuery{Center: center, RadiusMeters: 50000})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("empty area", func(t *testing.T) {
		got, err := s.BucketsWithin(ctx, BucketQuery{Center: geo.Point{Lat: 40, Lng: -70}, RadiusMeters: 1000})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemoryStore_InsertBucketDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := newBucket("lekki", 6.4750, 3.5780)
	require.NoError(t, s.InsertBucket(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	second := newBucket("lekki", 6.4750, 3.5780)
	require.Equal(t, first.Cell, second.Cell)
	err := s.InsertBucket(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicateBucket)

	got, err := s.BucketByKey(ctx, "lekki", first.Cell)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = s.BucketByKey(ctx, "lekki", "zzzzzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteBucket(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	used := newBucket("yaba", 6.5150, 3.3800)
	empty := newBucket("ogba", 6.6200, 3.3300)
	require.NoError(t, s.InsertBucket(ctx, used))
	require.NoError(t, s.InsertBucket(ctx, empty))
	require.NoError(t, s.InsertProperty(ctx, &models.Property{
		Title: "Flat", LocationName: "Yaba", Location: used.Center, Price: 100, GeoBucketID: used.ID,
	}))

	assert.ErrorIs(t, s.DeleteBucket(ctx, used.ID), ErrBucketInUse)
	require.NoError(t, s.DeleteBucket(ctx, empty.ID))
	assert.ErrorIs(t, s.DeleteBucket(ctx, empty.ID), ErrNotFound)

	got, err := s.BucketsWithin(ctx, BucketQuery{Center: empty.CenterPoint(), RadiusMeters: 10})
	require.NoError(t, err)
	assert.Empty(t, got)

	// The key is free again after deletion.
	require.NoError(t, s.InsertBucket(ctx, newBucket("ogba", 6.6200, 3.3300)))
}

func TestMemoryStore_BucketsPaging(t *testing.T) {
	ctx := context.Background()
	clock := tickingClock()
	s := NewMemoryStore(WithClock(clock))

	var ids []string
	for i, name := range []string{"a", "b", "c", "d"} {
		b := newBucket(name, 6.4+float64(i)*0.1, 3.3)
		require.NoError(t, s.InsertBucket(ctx, b))
		ids = append(ids, b.ID)
	}

	page, total, err := s.Buckets(ctx, BucketFilter{Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	since := time.Date(2024, 1, 1, 0, 0, 3, 0, time.UTC)
	recent, total, err := s.Buckets(ctx, BucketFilter{CreatedSince: since})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, recent, 2)

	beyond, _, err := s.Buckets(ctx, BucketFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestMemoryStore_Aggregates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	b := newBucket("ikoyi", 6.4520, 3.4350)
	require.NoError(t, s.InsertBucket(ctx, b))
	for _, p := range []models.Property{
		{Title: "One", Price: 100, Bedrooms: 2, Bathrooms: 1},
		{Title: "Two", Price: 300, Bedrooms: 4, Bathrooms: 3},
	} {
		p := p
		p.GeoBucketID = b.ID
		p.Location = b.Center
		require.NoError(t, s.InsertProperty(ctx, &p))
	}

	aggs, err := s.Aggregates(ctx, nil)
	require.NoError(t, err)
	require.Contains(t, aggs, b.ID)
	agg := aggs[b.ID]
	assert.Equal(t, 2, agg.PropertyCount)
	assert.Equal(t, 200.0, agg.AvgPrice)
	assert.Equal(t, 100.0, agg.MinPrice)
	assert.Equal(t, 300.0, agg.MaxPrice)
	assert.Equal(t, 400.0, agg.TotalValue)
	assert.Equal(t, 6, agg.TotalBedrooms)
	assert.Equal(t, 4, agg.TotalBathrooms)

	none, err := s.Aggregates(ctx, []string{"missing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_Properties(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithClock(tickingClock()))

	b := newBucket("surulere", 6.5010, 3.3560)
	require.NoError(t, s.InsertBucket(ctx, b))

	err := s.InsertProperty(ctx, &models.Property{Title: "Orphan", GeoBucketID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	var ids []string
	for _, price := range []float64{300, 100, 200} {
		p := &models.Property{Title: "Home", LocationName: "Surulere, Lagos", Location: b.Center, Price: price, GeoBucketID: b.ID}
		require.NoError(t, s.InsertProperty(ctx, p))
		ids = append(ids, p.ID)
	}

	t.Run("newest first", func(t *testing.T) {
		got, total, err := s.Properties(ctx, PropertyFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Equal(t, ids[2], got[0].ID)
	})

	t.Run("price band sorted by price excluding one", func(t *testing.T) {
		lo, hi := 150.0, 400.0
		got, total, err := s.Properties(ctx, PropertyFilter{
			BucketIDs: []string{b.ID}, MinPrice: &lo, MaxPrice: &hi, ExcludeID: ids[0], SortByPrice: true,
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, got, 1)
		assert.Equal(t, 200.0, got[0].Price)
	})

	t.Run("location contains", func(t *testing.T) {
		_, total, err := s.Properties(ctx, PropertyFilter{LocationContains: "SURU"})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)

		_, total, err = s.Properties(ctx, PropertyFilter{LocationContains: "lekki"})
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)
	})
}

func TestMemoryStore_PropertiesNear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	origin := geo.Point{Lat: 6.5, Lng: 3.4}
	for _, p := range []struct {
		title string
		pt    geo.Point
	}{
		{"far", geo.Point{Lat: 6.53, Lng: 3.4}},
		{"close", geo.Point{Lat: 6.501, Lng: 3.4}},
		{"outside", geo.Point{Lat: 7.5, Lng: 3.4}},
	} {
		require.NoError(t, s.InsertProperty(ctx, &models.Property{Title: p.title, Location: models.NewGeoJSONPoint(p.pt)}))
	}

	got, total, err := s.PropertiesNear(ctx, origin, 5000, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, got, 2)
	assert.Equal(t, "close", got[0].Title)
	assert.Equal(t, "far", got[1].Title)
	assert.Less(t, got[0].DistanceMeters, got[1].DistanceMeters)
}

func TestMemoryStore_SearchBucketNames(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(WithClock(tickingClock()))

	require.NoError(t, s.InsertBucket(ctx, models.NewGeoBucket("Lekki Phase 1", "lekki", geo.Point{Lat: 6.4442, Lng: 3.4616}, 0, 6)))
	require.NoError(t, s.InsertBucket(ctx, models.NewGeoBucket("Lekki", "lekki", geo.Point{Lat: 6.4750, Lng: 3.5780}, 0, 6)))
	require.NoError(t, s.InsertBucket(ctx, models.NewGeoBucket("Ajah", "ajah", geo.Point{Lat: 6.48, Lng: 3.64}, 0, 6)))

	got, err := s.SearchBucketNames(ctx, "LEKKI", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Lekki", got[0].Name)

	limited, err := s.SearchBucketNames(ctx, "lekki", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

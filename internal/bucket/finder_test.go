package bucket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/internal/geo"
	"github.com/geo-bucket/internal/store"
)

type finderFixture struct {
	store                  *store.MemoryStore
	query, twin, neighbour *models.GeoBucket
	farTwin, unrelated     *models.GeoBucket
}

func newFinderFixture(t *testing.T) finderFixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	const lat, lng = 6.4698, 3.6285
	add := func(name, normalized string, lat float64) *models.GeoBucket {
		b := models.NewGeoBucket(name, normalized, geo.Point{Lat: lat, Lng: lng}, 0, geo.DefaultCellPrecision)
		require.NoError(t, s.InsertBucket(ctx, b))
		return b
	}

	return finderFixture{
		store:     s,
		query:     add("Sangotedo", "sangotedo", lat),
		twin:      add("Sangotedo", "sangotedo", north(lat, 1500)),
		neighbour: add("Ajah", "ajah", north(lat, 500)),
		farTwin:   add("Sangotedoo", "sangotedoo", north(lat, 30000)),
		unrelated: add("Yaba", "yaba", north(lat, 30000)),
	}
}

func TestFinder_FindSimilar(t *testing.T) {
	f := newFinderFixture(t)
	finder := NewFinder(f.store, DefaultConfig(), nil)

	got, err := finder.FindSimilar(context.Background(), f.query)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Matches both passes; only the name record survives.
	assert.Equal(t, f.twin.ID, got[0].Bucket.ID)
	assert.Equal(t, ReasonNameSimilarity, got[0].Reason)
	require.NotNil(t, got[0].Score)
	assert.Equal(t, 1.0, *got[0].Score)
	assert.Nil(t, got[0].DistanceMeters)
	require.NotNil(t, got[0].ScoreBreakdown)
	assert.Equal(t, 1.0, got[0].ScoreBreakdown.Ratio)

	assert.Equal(t, f.farTwin.ID, got[1].Bucket.ID)
	assert.InDelta(t, 18.0/19.0, *got[1].Score, 1e-9)

	assert.Equal(t, f.neighbour.ID, got[2].Bucket.ID)
	assert.Equal(t, ReasonProximity, got[2].Reason)
	assert.Nil(t, got[2].Score)
	require.NotNil(t, got[2].DistanceMeters)
	assert.InDelta(t, 500, *got[2].DistanceMeters, 1)
}

func TestFinder_NeverReturnsSelfOrDuplicates(t *testing.T) {
	f := newFinderFixture(t)

	for _, cfg := range []Config{
		DefaultConfig(),
		{SimilarScanRadiusMeters: 0},
		{NameMatchThreshold: 0.01, ProximityFactor: 1000, SimilarScanRadiusMeters: 0},
	} {
		finder := NewFinder(f.store, cfg, nil)
		for _, b := range []*models.GeoBucket{f.query, f.twin, f.neighbour, f.farTwin, f.unrelated} {
			got, err := finder.FindSimilar(context.Background(), b)
			require.NoError(t, err)

			seen := map[string]bool{}
			for _, m := range got {
				assert.NotEqual(t, b.ID, m.Bucket.ID)
				assert.False(t, seen[m.Bucket.ID], "duplicate %s", m.Bucket.ID)
				seen[m.Bucket.ID] = true
			}
		}
	}
}

func TestFinder_ScanRadius(t *testing.T) {
	f := newFinderFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		radius  float64
		wantFar bool
	}{
		{"default reaches 30km", DefaultSimilarScanRadiusMeters, true},
		{"10km excludes far twin", 10000, false},
		{"unbounded", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := NewFinder(f.store, Config{SimilarScanRadiusMeters: tt.radius}, nil)
			got, err := finder.FindSimilar(ctx, f.query)
			require.NoError(t, err)

			found := false
			for _, m := range got {
				if m.Bucket.ID == f.farTwin.ID {
					found = true
				}
			}
			assert.Equal(t, tt.wantFar, found)
		})
	}
}

func TestFinder_ScanNeverNarrowerThanProximity(t *testing.T) {
	f := newFinderFixture(t)
	finder := NewFinder(f.store, Config{SimilarScanRadiusMeters: 10, ProximityFactor: 2}, nil)

	got, err := finder.FindSimilar(context.Background(), f.query)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, m := range got {
		ids = append(ids, m.Bucket.ID)
	}
	assert.ElementsMatch(t, []string{f.twin.ID, f.neighbour.ID}, ids)
}

func TestFinder_EmptyStore(t *testing.T) {
	s := store.NewMemoryStore()
	b := models.NewGeoBucket("Lone", "lone", geo.Point{Lat: 1, Lng: 1}, 0, 6)
	require.NoError(t, s.InsertBucket(context.Background(), b))

	got, err := NewFinder(s, DefaultConfig(), nil).FindSimilar(context.Background(), b)
	require.NoError(t, err)
	assert.Empty(t, got)
}

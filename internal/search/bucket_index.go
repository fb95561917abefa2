package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/geo-bucket/app/models"
)

const batchSize = 1000

// Config configures the bucket index.
type Config struct {
	Host      string
	APIKey    string
	IndexName string
	Limit     int
}

// Hit is one bucket returned by the index.
type Hit struct {
	ID             string
	Name           string
	NormalizedName string
	Cell           string
}

// BucketIndex mirrors geo-bucket names into Meilisearch.
type BucketIndex struct {
	client    *ClientWrapper
	logger    *zap.Logger
	indexName string
	limit     int
}

// NewBucketIndex connects to Meilisearch and checks its health.
func NewBucketIndex(cfg Config, logger *zap.Logger) (*BucketIndex, error) {
	client := NewClientWrapper(cfg.Host, cfg.APIKey)
	if err := client.Healthy(); err != nil {
		return nil, fmt.Errorf("connect meilisearch: %w", err)
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "geo_buckets"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	return &BucketIndex{
		client:    client,
		logger:    logger,
		indexName: cfg.IndexName,
		limit:     cfg.Limit,
	}, nil
}

// Configure applies searchable, filterable and typo settings.
func (bi *BucketIndex) Configure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	index := bi.client.cli.Index(bi.indexName)

	task, err := index.UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: []string{"normalized_name", "name"},
		FilterableAttributes: []string{"id", "cell"},
		SortableAttributes:   []string{"created_at"},
		RankingRules:         []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		TypoTolerance: &meilisearch.TypoTolerance{
			Enabled: true,
			MinWordSizeForTypos: meilisearch.MinWordSizeForTypos{
				OneTypo:  4,
				TwoTypos: 8,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("configure index %s: %w", bi.indexName, err)
	}

	bi.logger.Info("Bucket index configured",
		zap.String("index", bi.indexName),
		zap.Int64("task_uid", task.TaskUID))
	return nil
}

// IndexBuckets adds or replaces bucket documents in batches.
func (bi *BucketIndex) IndexBuckets(ctx context.Context, buckets []models.GeoBucket) error {
	if len(buckets) == 0 {
		return nil
	}
	index := bi.client.cli.Index(bi.indexName)

	docs := make([]map[string]interface{}, 0, len(buckets))
	for i := range buckets {
		docs = append(docs, Document(&buckets[i]))
	}

	for i := 0; i < len(docs); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(docs))
		task, err := index.AddDocuments(docs[i:end], "id")
		if err != nil {
			return fmt.Errorf("add bucket documents %d-%d: %w", i, end, err)
		}
		bi.logger.Debug("Bucket documents queued",
			zap.Int("from", i),
			zap.Int("to", end),
			zap.Int64("task_uid", task.TaskUID))
	}
	return nil
}

// IndexBucket adds one bucket document.
func (bi *BucketIndex) IndexBucket(ctx context.Context, b *models.GeoBucket) error {
	return bi.IndexBuckets(ctx, []models.GeoBucket{*b})
}

// SearchBuckets returns bucket ids matching query, best first.
func (bi *BucketIndex) SearchBuckets(ctx context.Context, query string) ([]string, error) {
	if query == "" {
		return nil, errors.New("empty search query")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := bi.client.SearchIndex(bi.indexName, query, "", int64(bi.limit))
	if err != nil {
		return nil, fmt.Errorf("search bucket index: %w", err)
	}

	hits := ParseHits(result.Hits)
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

// Document converts a bucket to its index document.
func Document(b *models.GeoBucket) map[string]interface{} {
	c := b.CenterPoint()
	return map[string]interface{}{
		"id":              b.ID,
		"name":            b.Name,
		"normalized_name": b.NormalizedName,
		"cell":            b.Cell,
		"_geo":            map[string]float64{"lat": c.Lat, "lng": c.Lng},
		"created_at":      b.CreatedAt.Unix(),
	}
}

// ParseHits decodes raw search hits, skipping malformed ones.
func ParseHits(raw []interface{}) []Hit {
	hits := make([]Hit, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		id, ok := m["id"].(string)
		if !ok || id == "" {
			continue
		}
		h := Hit{ID: id}
		if name, ok := m["name"].(string); ok {
			h.Name = name
		}
		if normalized, ok := m["normalized_name"].(string); ok {
			h.NormalizedName = normalized
		}
		if cell, ok := m["cell"].(string); ok {
			h.Cell = cell
		}
		hits = append(hits, h)
	}
	return hits
}

// Healthy reports whether Meilisearch is available.
func (bi *BucketIndex) Healthy(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return bi.client.Healthy()
}

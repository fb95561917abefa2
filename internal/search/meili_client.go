// Package search keeps a Meilisearch index of geo-bucket names used to
// pre-filter candidates for free-text property search.
package search

import (
	"fmt"

	ms "github.com/meilisearch/meilisearch-go"
)

// ClientWrapper wraps the Meilisearch client with the few calls the index needs.
type ClientWrapper struct {
	cli ms.ServiceManager
}

// NewClientWrapper creates a Meilisearch client wrapper.
func NewClientWrapper(url, key string) *ClientWrapper {
	return &ClientWrapper{cli: ms.New(url, ms.WithAPIKey(key))}
}

// Healthy reports whether the server answers its health endpoint.
func (c *ClientWrapper) Healthy() error {
	health, err := c.cli.Health()
	if err != nil {
		return fmt.Errorf("meilisearch health: %w", err)
	}
	if health.Status != "available" {
		return fmt.Errorf("meilisearch status %q", health.Status)
	}
	return nil
}

// SearchIndex runs a search with the given filter and limit.
func (c *ClientWrapper) SearchIndex(index, q, filter string, limit int64) (*ms.SearchResponse, error) {
	req := &ms.SearchRequest{Limit: limit}
	if filter != "" {
		req.Filter = filter
	}
	return c.cli.Index(index).Search(q, req)
}

package search

import (
	"context"

	"github.com/latoulicious/kenny/pkg/music"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// CSE queries a Google Programmable Search Engine
type CSE struct {
	svc      *customsearch.Service
	engineID string
	safe     string
}

// NewCSE creates a CSE backend for engineID. safe is "active" or "off".
func NewCSE(ctx context.Context, apiKey, engineID, safe string, opts ...option.ClientOption) (*CSE, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if safe == "" {
		safe = "active"
	}
	return &CSE{svc: svc, engineID: engineID, safe: safe}, nil
}

// Search returns the ranked items for query
func (c *CSE) Search(ctx context.Context, query string) ([]music.SearchResult, error) {
	res, err := c.svc.Cse.List().Cx(c.engineID).Q(query).Safe(c.safe).Context(ctx).Do()
	if err != nil {
		return nil, music.NewProviderError("cse", "search", err)
	}

	results := make([]music.SearchResult, 0, len(res.Items))
	for _, item := range res.Items {
		if item == nil || item.Link == "" {
			continue
		}
		results = append(results, music.SearchResult{
			Title:       item.Title,
			Link:        item.Link,
			DisplayLink: item.DisplayLink,
		})
	}
	return results, nil
}

// Package search finds songs on the open web when no media provider recognises a query.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/latoulicious/kenny/pkg/music"
	"golang.org/x/time/rate"
)

// DefaultTitleSuffixes are the site names appended to result titles, keyed by display link
var DefaultTitleSuffixes = map[string]string{
	"www.youtube.com":  " - YouTube",
	"m.youtube.com":    " - YouTube",
	"soundcloud.com":   " | Free Listening on SoundCloud",
	"m.soundcloud.com": " | Free Listening on SoundCloud",
}

// Backend performs the raw search
type Backend interface {
	Search(ctx context.Context, query string) ([]music.SearchResult, error)
}

// Client rate-limits a Backend and strips known title suffixes from its results
type Client struct {
	backend  Backend
	limiter  *rate.Limiter
	suffixes map[string]string
}

// New wraps backend. Calls are spaced at least interval apart; zero disables limiting.
// suffixes are merged over DefaultTitleSuffixes.
func New(backend Backend, interval time.Duration, suffixes map[string]string) *Client {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Client{
		backend:  backend,
		limiter:  rate.NewLimiter(limit, 1),
		suffixes: MergeSuffixes(suffixes),
	}
}

// Search implements music.Searcher
func (c *Client) Search(ctx context.Context, query string) ([]music.SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit: %w", err)
	}

	results, err := c.backend.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i] = StripSuffix(results[i], c.suffixes)
	}
	return results, nil
}

// StripSuffix removes the known site suffix for the result's display link
func StripSuffix(r music.SearchResult, suffixes map[string]string) music.SearchResult {
	suffix, ok := suffixes[strings.ToLower(r.DisplayLink)]
	if ok && suffix != "" {
		r.Title = strings.TrimSuffix(r.Title, suffix)
	}
	r.Title = strings.TrimSpace(r.Title)
	return r
}

// MergeSuffixes returns DefaultTitleSuffixes overlaid with overrides
func MergeSuffixes(overrides map[string]string) map[string]string {
	out := make(map[string]string, len(DefaultTitleSuffixes)+len(overrides))
	for k, v := range DefaultTitleSuffixes {
		out[k] = v
	}
	for k, v := range overrides {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

package soundcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/latoulicious/kenny/pkg/music"
)

// Name identifies this provider in logs and errors
const Name = "soundcloud"

// DefaultBaseURL is the public SoundCloud API
const DefaultBaseURL = "https://api.soundcloud.com"

var errNotTrack = errors.New("resolved resource is not a streamable track")

// track is the subset of the resolve response the bot needs
type track struct {
	PermalinkURL string `json:"permalink_url"`
	Title        string `json:"title"`
	StreamURL    string `json:"stream_url"`
}

type cacheEntry struct {
	track     track
	expiresAt time.Time
}

// Client resolves SoundCloud URLs through the resolve endpoint and opens their streams
type Client struct {
	baseURL      string
	clientID     string
	httpClient   *http.Client
	streamClient *http.Client
	cache        map[string]*cacheEntry
	cacheMutex   sync.RWMutex
	cacheTTL     time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API root
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithHTTPClient replaces both the API and stream HTTP clients
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
		c.streamClient = h
	}
}

// New creates a client authenticated by clientID. An empty clientID disables the provider.
func New(clientID string, opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		clientID: clientID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// streams run for the length of a song
		streamClient: &http.Client{},
		cache:        make(map[string]*cacheEntry),
		cacheTTL:     10 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return Name }

// Owns reports whether locator is a soundcloud.com URL
func (c *Client) Owns(locator string) bool {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "soundcloud.com" || strings.HasSuffix(host, ".soundcloud.com")
}

// Canonicalize resolves any URL through the API and returns the track's permalink.
// Free text is never sent to the API.
func (c *Client) Canonicalize(ctx context.Context, query string) (string, bool, error) {
	query = strings.TrimSpace(query)
	if c.clientID == "" || !isURL(query) {
		return "", false, nil
	}

	t, err := c.resolve(ctx, query)
	if errors.Is(err, errNotTrack) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return t.PermalinkURL, true, nil
}

// Title returns the track title
func (c *Client) Title(ctx context.Context, locator string) (string, error) {
	t, err := c.resolve(ctx, locator)
	if err != nil {
		return "", err
	}
	return t.Title, nil
}

// Open requests the track's stream URL with the client id attached
func (c *Client) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if c.clientID == "" {
		return nil, music.NewProviderError(Name, "open", errors.New("client id not configured"))
	}

	t, err := c.resolve(ctx, locator)
	if err != nil {
		return nil, err
	}
	if t.StreamURL == "" {
		return nil, music.NewProviderError(Name, "open", errNotTrack)
	}

	streamURL, err := withClientID(t.StreamURL, c.clientID)
	if err != nil {
		return nil, music.NewProviderError(Name, "open", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, music.NewProviderError(Name, "open", err)
	}
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, music.NewProviderError(Name, "open", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, music.NewProviderError(Name, "open", fmt.Errorf("stream returned status code: %d", resp.StatusCode))
	}
	return resp.Body, nil
}

func (c *Client) resolve(ctx context.Context, rawURL string) (track, error) {
	if cached, ok := c.getFromCache(rawURL); ok {
		return cached, nil
	}

	endpoint := fmt.Sprintf("%s/resolve?%s", c.baseURL, url.Values{
		"client_id": {c.clientID},
		"url":       {rawURL},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return track{}, music.NewProviderError(Name, "resolve", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return track{}, music.NewProviderError(Name, "resolve", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return track{}, errNotTrack
	case resp.StatusCode != http.StatusOK:
		return track{}, music.NewProviderError(Name, "resolve", fmt.Errorf("API returned status code: %d", resp.StatusCode))
	}

	var t track
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return track{}, music.NewProviderError(Name, "resolve", fmt.Errorf("failed to decode API response: %w", err))
	}
	if t.PermalinkURL == "" || t.Title == "" {
		return track{}, errNotTrack
	}

	c.setCache(rawURL, t)
	c.setCache(t.PermalinkURL, t)
	return t, nil
}

func (c *Client) getFromCache(key string) (track, bool) {
	c.cacheMutex.RLock()
	defer c.cacheMutex.RUnlock()

	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return track{}, false
	}
	return entry.track, true
}

func (c *Client) setCache(key string, t track) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	now := time.Now()
	for k, e := range c.cache {
		if now.After(e.expiresAt) {
			delete(c.cache, k)
		}
	}
	c.cache[key] = &cacheEntry{track: t, expiresAt: now.Add(c.cacheTTL)}
}

func withClientID(raw, clientID string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("client_id", clientID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

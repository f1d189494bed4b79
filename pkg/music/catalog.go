package music

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Track is a playable song: a display title and the URL it is streamed from
type Track struct {
	Title   string
	Locator string
}

// Valid reports whether both fields are non-empty
func (t Track) Valid() bool {
	return strings.TrimSpace(t.Title) != "" && strings.TrimSpace(t.Locator) != ""
}

// ChangeKind identifies the kind of catalog mutation
type ChangeKind int

const (
	TrackAdded ChangeKind = iota
	TrackRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case TrackAdded:
		return "added"
	case TrackRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change describes a persisted catalog mutation. Titles is the full title list afterwards.
type Change struct {
	Kind   ChangeKind
	Index  int
	Track  Track
	Titles []string
}

// catalogFile is the on-disk layout: two parallel arrays
type catalogFile struct {
	Titles []string `json:"titles"`
	URLs   []string `json:"urls"`
}

// Catalog is the ordered, file-backed playlist.
// Every mutation rewrites the file before it becomes visible.
type Catalog struct {
	mu        sync.RWMutex
	path      string
	titles    []string
	urls      []string
	dropped   int
	listeners []func(Change)
}

// LoadCatalog reads the playlist at path. A missing file yields an empty catalog.
// Entries lacking a title or a URL are discarded.
func LoadCatalog(path string) (*Catalog, error) {
	c := &Catalog{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("decode catalog %s: %w", path, err)
		}
	}

	n := max(len(file.Titles), len(file.URLs))
	for i := 0; i < n; i++ {
		t := Track{}
		if i < len(file.Titles) {
			t.Title = file.Titles[i]
		}
		if i < len(file.URLs) {
			t.Locator = file.URLs[i]
		}
		if !t.Valid() {
			c.dropped++
			continue
		}
		c.titles = append(c.titles, t.Title)
		c.urls = append(c.urls, t.Locator)
	}

	return c, nil
}

// Path returns the backing file
func (c *Catalog) Path() string { return c.path }

// Dropped is the number of invalid entries discarded by LoadCatalog
func (c *Catalog) Dropped() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dropped
}

// OnChange registers fn to run after every persisted mutation.
// fn runs on the mutating goroutine without the catalog lock held.
func (c *Catalog) OnChange(fn func(Change)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.titles)
}

// Track returns the entry at the zero-based index
func (c *Catalog) Track(index int) (Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.titles) {
		return Track{}, false
	}
	return Track{Title: c.titles[index], Locator: c.urls[index]}, true
}

// Tracks returns a copy of every entry in order
func (c *Catalog) Tracks() []Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Track, len(c.titles))
	for i := range c.titles {
		out[i] = Track{Title: c.titles[i], Locator: c.urls[i]}
	}
	return out
}

// Titles returns a copy of the title column
func (c *Catalog) Titles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.titles...)
}

// IndexOfLocator returns the index of the entry with exactly this URL, or -1
func (c *Catalog) IndexOfLocator(locator string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, u := range c.urls {
		if u == locator {
			return i
		}
	}
	return -1
}

// MatchTitle fuzzy-matches query against the titles using CatalogThreshold
func (c *Catalog) MatchTitle(query string) (int, bool) {
	index, _, ok := BestMatch(query, c.Titles(), CatalogThreshold)
	return index, ok
}

// Append adds t at the end and persists the catalog
func (c *Catalog) Append(t Track) (int, error) {
	if !t.Valid() {
		return -1, ErrInvalidTrack
	}

	c.mu.Lock()
	titles := append(append([]string(nil), c.titles...), t.Title)
	urls := append(append([]string(nil), c.urls...), t.Locator)
	if err := c.write(titles, urls); err != nil {
		c.mu.Unlock()
		return -1, err
	}
	c.titles, c.urls = titles, urls
	index := len(titles) - 1
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, Change{Kind: TrackAdded, Index: index, Track: t, Titles: append([]string(nil), titles...)})
	return index, nil
}

// RemoveAt deletes the entry at the zero-based index and persists the catalog
func (c *Catalog) RemoveAt(index int) (Track, error) {
	c.mu.Lock()
	if index < 0 || index >= len(c.titles) {
		c.mu.Unlock()
		return Track{}, ErrInvalidIndex
	}

	removed := Track{Title: c.titles[index], Locator: c.urls[index]}
	titles := append(append([]string(nil), c.titles[:index]...), c.titles[index+1:]...)
	urls := append(append([]string(nil), c.urls[:index]...), c.urls[index+1:]...)
	if err := c.write(titles, urls); err != nil {
		c.mu.Unlock()
		return Track{}, err
	}
	c.titles, c.urls = titles, urls
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, Change{Kind: TrackRemoved, Index: index, Track: removed, Titles: append([]string(nil), titles...)})
	return removed, nil
}

// Save rewrites the file from the in-memory state
func (c *Catalog) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(c.titles, c.urls); err != nil {
		return err
	}
	c.dropped = 0
	return nil
}

// write must be called with mu held
func (c *Catalog) write(titles, urls []string) error {
	file := catalogFile{Titles: titles, URLs: urls}
	if file.Titles == nil {
		file.Titles = []string{}
	}
	if file.URLs == nil {
		file.URLs = []string{}
	}

	data, err := json.MarshalIndent(file, "", "    ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

func notify(listeners []func(Change), change Change) {
	for _, fn := range listeners {
		fn(change)
	}
}

package music

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/latoulicious/kenny/pkg/logging"
	"github.com/samber/lo"
)

// Source is a media provider that recognises, describes and streams its own URLs
type Source interface {
	Name() string
	// Owns reports whether locator belongs to this provider without any network access
	Owns(locator string) bool
	// Canonicalize maps query to the provider's canonical URL. ok is false when the
	// provider does not recognise the query; err reports a failed provider call.
	Canonicalize(ctx context.Context, query string) (locator string, ok bool, err error)
	Title(ctx context.Context, locator string) (string, error)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

// SearchResult is one web search hit with its known site suffix already removed from Title
type SearchResult struct {
	Title       string
	Link        string
	DisplayLink string
}

// Searcher runs a web search for free-text queries nothing else could resolve
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// AddResult reports the outcome of Library.Add. Index is zero-based.
type AddResult struct {
	Track   Track
	Index   int
	Existed bool
}

// Library resolves user queries against the catalog, the media sources and web search
type Library struct {
	catalog  *Catalog
	sources  []Source
	searcher Searcher
	log      logging.Logger
}

// NewLibrary wires a catalog to its sources. Sources are tried in order; the last one
// also opens locators that no source owns. searcher may be nil.
func NewLibrary(catalog *Catalog, sources []Source, searcher Searcher, logger logging.Logger) *Library {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Library{
		catalog:  catalog,
		sources:  sources,
		searcher: searcher,
		log:      logger,
	}
}

func (l *Library) Catalog() *Catalog { return l.catalog }

// Add finds the song named by query and appends it to the catalog when it is new.
// Provider URLs are canonicalised first, then titles are fuzzy matched, then the web is searched.
func (l *Library) Add(ctx context.Context, query string) (AddResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return AddResult{}, ErrNotFound
	}

	for _, src := range l.sources {
		locator, ok, err := src.Canonicalize(ctx, query)
		if err != nil {
			l.log.Warn("provider could not resolve query",
				logging.String("provider", src.Name()), logging.String("query", query), logging.Err(err))
			continue
		}
		if !ok {
			continue
		}
		if res, found := l.existing(locator); found {
			return res, nil
		}

		title, err := src.Title(ctx, locator)
		if err != nil {
			l.log.Warn("failed to fetch track title",
				logging.String("provider", src.Name()), logging.String("locator", locator), logging.Err(err))
			return AddResult{}, asProviderError(src.Name(), "title", err)
		}
		return l.append(Track{Title: title, Locator: locator})
	}

	if index, ok := l.catalog.MatchTitle(query); ok {
		t, _ := l.catalog.Track(index)
		return AddResult{Track: t, Index: index, Existed: true}, nil
	}

	return l.search(ctx, query)
}

func (l *Library) search(ctx context.Context, query string) (AddResult, error) {
	if l.searcher == nil {
		return AddResult{}, ErrNotFound
	}

	results, err := l.searcher.Search(ctx, query)
	if err != nil {
		l.log.Warn("web search failed", logging.String("query", query), logging.Err(err))
		return AddResult{}, asProviderError("search", "query", err)
	}

	titles := lo.Map(results, func(r SearchResult, _ int) string { return r.Title })
	best, score, ok := BestMatch(query, titles, SearchThreshold)
	if !ok {
		l.log.Debug("no search result above threshold", logging.String("query", query), logging.Int("results", len(results)))
		return AddResult{}, ErrNotFound
	}

	hit := results[best]
	locator := l.canonicalLink(ctx, hit.Link)
	if res, found := l.existing(locator); found {
		return res, nil
	}

	l.log.Debug("accepted search result",
		logging.String("query", query), logging.String("title", hit.Title), logging.Float64("score", score))
	return l.append(Track{Title: hit.Title, Locator: locator})
}

// canonicalLink rewrites a search hit to its owning provider's canonical URL when possible
func (l *Library) canonicalLink(ctx context.Context, link string) string {
	for _, src := range l.sources {
		if !src.Owns(link) {
			continue
		}
		if locator, ok, err := src.Canonicalize(ctx, link); err == nil && ok {
			return locator
		}
		break
	}
	return link
}

func (l *Library) existing(locator string) (AddResult, bool) {
	index := l.catalog.IndexOfLocator(locator)
	if index < 0 {
		return AddResult{}, false
	}
	t, _ := l.catalog.Track(index)
	return AddResult{Track: t, Index: index, Existed: true}, true
}

func (l *Library) append(t Track) (AddResult, error) {
	index, err := l.catalog.Append(t)
	if err != nil {
		return AddResult{}, err
	}
	l.log.Info("added track", logging.String("title", t.Title), logging.String("locator", t.Locator), logging.Int("index", index+1))
	return AddResult{Track: t, Index: index}, nil
}

// Remove deletes the entry named by a 1-based index, an exact URL or a fuzzy title
func (l *Library) Remove(ctx context.Context, query string) (Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Track{}, ErrNotFound
	}

	if n, numeric := parseIndex(query); numeric {
		if n < 1 || n > l.catalog.Len() {
			return Track{}, ErrInvalidIndex
		}
		return l.removeAt(n - 1)
	}

	if index := l.catalog.IndexOfLocator(query); index >= 0 {
		return l.removeAt(index)
	}
	for _, src := range l.sources {
		if !src.Owns(query) {
			continue
		}
		if locator, ok, err := src.Canonicalize(ctx, query); err == nil && ok {
			if index := l.catalog.IndexOfLocator(locator); index >= 0 {
				return l.removeAt(index)
			}
		}
		break
	}

	if index, ok := l.catalog.MatchTitle(query); ok {
		return l.removeAt(index)
	}
	return Track{}, ErrNotFound
}

func (l *Library) removeAt(index int) (Track, error) {
	t, err := l.catalog.RemoveAt(index)
	if err != nil {
		return Track{}, err
	}
	l.log.Info("removed track", logging.String("title", t.Title), logging.Int("index", index+1))
	return t, nil
}

// ResolveIndex maps a query to a zero-based catalog index. Numbers are 1-based positions;
// anything else goes through Add, so new songs are catalogued on the way.
func (l *Library) ResolveIndex(ctx context.Context, query string) (int, error) {
	query = strings.TrimSpace(query)
	if n, numeric := parseIndex(query); numeric {
		if n < 1 || n > l.catalog.Len() {
			return -1, ErrInvalidIndex
		}
		return n - 1, nil
	}

	res, err := l.Add(ctx, query)
	if err != nil {
		return -1, err
	}
	return res.Index, nil
}

// Open starts the audio stream for the entry at index
func (l *Library) Open(ctx context.Context, index int) (Track, io.ReadCloser, error) {
	t, ok := l.catalog.Track(index)
	if !ok {
		return Track{}, nil, ErrInvalidIndex
	}

	src := l.sourceFor(t.Locator)
	if src == nil {
		return Track{}, nil, ErrNotFound
	}

	stream, err := src.Open(ctx, t.Locator)
	if err != nil {
		l.log.Warn("failed to open stream",
			logging.String("provider", src.Name()), logging.String("locator", t.Locator), logging.Err(err))
		return Track{}, nil, asProviderError(src.Name(), "open", err)
	}
	return t, stream, nil
}

func (l *Library) sourceFor(locator string) Source {
	for _, src := range l.sources {
		if src.Owns(locator) {
			return src
		}
	}
	if len(l.sources) == 0 {
		return nil
	}
	return l.sources[len(l.sources)-1]
}

func parseIndex(query string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(query))
	return n, err == nil
}

func asProviderError(provider, op string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %s: %w", provider, op, err)
	}
	return NewProviderError(provider, op, err)
}

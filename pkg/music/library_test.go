package music

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibrary_AddFromProvider(t *testing.T) {
	src := newFakeSource()
	src.titles["fake://song/new"] = "Brand New"
	lib := NewLibrary(newTestCatalog(t, 2), []Source{src}, nil, nil)

	res, err := lib.Add(context.Background(), "fake://song/new?t=42")
	require.NoError(t, err)
	assert.False(t, res.Existed)
	assert.Equal(t, 2, res.Index)
	assert.Equal(t, Track{Title: "Brand New", Locator: "fake://song/new"}, res.Track)
}

func TestLibrary_AddIsIdempotent(t *testing.T) {
	src := newFakeSource()
	src.titles["fake://song/new"] = "Brand New"
	lib := NewLibrary(newTestCatalog(t, 2), []Source{src}, nil, nil)
	ctx := context.Background()

	_, err := lib.Add(ctx, "fake://song/new")
	require.NoError(t, err)
	before := lib.Catalog().Len()

	res, err := lib.Add(ctx, "fake://song/new?list=xyz")
	require.NoError(t, err)
	assert.True(t, res.Existed)
	assert.Equal(t, "Brand New", res.Track.Title)
	assert.Equal(t, before, lib.Catalog().Len())
}

func TestLibrary_AddThenRemoveRoundTrip(t *testing.T) {
	src := newFakeSource()
	src.titles["fake://song/x"] = "Round Trip"
	lib := NewLibrary(newTestCatalog(t, 3), []Source{src}, nil, nil)
	ctx := context.Background()
	before := lib.Catalog().Tracks()

	res, err := lib.Add(ctx, "fake://song/x")
	require.NoError(t, err)

	removed, err := lib.Remove(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, res.Track, removed)
	assert.Equal(t, before, lib.Catalog().Tracks())
}

func TestLibrary_AddTitleFailureIsNotFound(t *testing.T) {
	src := newFakeSource()
	lib := NewLibrary(newTestCatalog(t, 1), []Source{src}, nil, nil)

	_, err := lib.Add(context.Background(), "fake://song/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "fake", pe.Provider)
	assert.Equal(t, 1, lib.Catalog().Len())
}

func TestLibrary_AddFuzzyMatchesCatalog(t *testing.T) {
	search := &fakeSearcher{}
	lib := NewLibrary(newTestCatalog(t, 3), []Source{newFakeSource()}, search, nil)

	res, err := lib.Add(context.Background(), "song 2")
	require.NoError(t, err)
	assert.True(t, res.Existed)
	assert.Equal(t, 1, res.Index)
	assert.Zero(t, search.calls)
}

func TestLibrary_AddFromSearch(t *testing.T) {
	tests := []struct {
		name      string
		results   []SearchResult
		searchErr error
		wantErr   error
		wantTrack Track
	}{
		{
			name: "best result above threshold",
			results: []SearchResult{
				{Title: "Unrelated Podcast", Link: "https://example.com/p"},
				{Title: "Rick Astley - Never Gonna Give You Up", Link: "https://example.com/rick"},
			},
			wantTrack: Track{Title: "Rick Astley - Never Gonna Give You Up", Locator: "https://example.com/rick"},
		},
		{
			name:      "owned link is canonicalised",
			results:   []SearchResult{{Title: "Never Gonna Give You Up", Link: "fake://song/rick?feature=share"}},
			wantTrack: Track{Title: "Never Gonna Give You Up", Locator: "fake://song/rick"},
		},
		{
			name:    "nothing above threshold",
			results: []SearchResult{{Title: "Completely Different", Link: "https://example.com/x"}},
			wantErr: ErrNotFound,
		},
		{
			name:      "search failure",
			searchErr: errors.New("quota exceeded"),
			wantErr:   ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := &fakeSearcher{results: tt.results, err: tt.searchErr}
			lib := NewLibrary(newTestCatalog(t, 2), []Source{newFakeSource()}, search, nil)

			res, err := lib.Add(context.Background(), "never gonna give you up")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 2, lib.Catalog().Len())
				return
			}
			require.NoError(t, err)
			assert.False(t, res.Existed)
			assert.Equal(t, tt.wantTrack, res.Track)
			assert.Equal(t, 3, lib.Catalog().Len())
		})
	}
}

func TestLibrary_AddWithoutSearcher(t *testing.T) {
	lib := NewLibrary(newTestCatalog(t, 1), []Source{newFakeSource()}, nil, nil)
	_, err := lib.Add(context.Background(), "no such song anywhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLibrary_Remove(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr error
	}{
		{"by index", "2", "Song B", nil},
		{"by locator", "urlA", "Song A", nil},
		{"by fuzzy title", "song b", "Song B", nil},
		{"index out of range", "3", "", ErrInvalidIndex},
		{"zero index", "0", "", ErrInvalidIndex},
		{"unknown", "nothing like it", "", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCatalog(t, 0)
			_, err := c.Append(Track{Title: "Song A", Locator: "urlA"})
			require.NoError(t, err)
			_, err = c.Append(Track{Title: "Song B", Locator: "urlB"})
			require.NoError(t, err)
			lib := NewLibrary(c, []Source{newFakeSource()}, nil, nil)

			removed, err := lib.Remove(context.Background(), tt.query)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 2, c.Len())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, removed.Title)
			assert.Equal(t, 1, c.Len())
		})
	}
}

func TestLibrary_RemoveSecondOfTwo(t *testing.T) {
	c := newTestCatalog(t, 0)
	_, _ = c.Append(Track{Title: "Song A", Locator: "urlA"})
	_, _ = c.Append(Track{Title: "Song B", Locator: "urlB"})
	lib := NewLibrary(c, nil, nil, nil)

	removed, err := lib.Remove(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "Song B", removed.Title)
	assert.Equal(t, []Track{{Title: "Song A", Locator: "urlA"}}, c.Tracks())
}

func TestLibrary_ResolveIndex(t *testing.T) {
	lib := NewLibrary(newTestCatalog(t, 3), []Source{newFakeSource()}, nil, nil)
	ctx := context.Background()

	index, err := lib.ResolveIndex(ctx, " 3 ")
	require.NoError(t, err)
	assert.Equal(t, 2, index)

	_, err = lib.ResolveIndex(ctx, "4")
	assert.ErrorIs(t, err, ErrInvalidIndex)

	index, err = lib.ResolveIndex(ctx, "fake://song/1")
	require.NoError(t, err)
	assert.Equal(t, 0, index)

	index, err = lib.ResolveIndex(ctx, "Song 2")
	require.NoError(t, err)
	assert.Equal(t, 1, index)
}

func TestLibrary_OpenFallsBackToLastSource(t *testing.T) {
	c := newTestCatalog(t, 0)
	_, _ = c.Append(Track{Title: "Elsewhere", Locator: "https://elsewhere.example/track"})
	src := newFakeSource()
	lib := NewLibrary(c, []Source{src}, nil, nil)

	tr, stream, err := lib.Open(context.Background(), 0)
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, "Elsewhere", tr.Title)
	assert.Equal(t, 1, src.openStreams())
}

func TestLibrary_OpenFailure(t *testing.T) {
	src := newFakeSource()
	src.failOpen = true
	lib := NewLibrary(newTestCatalog(t, 1), []Source{src}, nil, nil)

	_, _, err := lib.Open(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = lib.Open(context.Background(), 5)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/latoulicious/kenny/pkg/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type stubBackend struct {
	results []music.SearchResult
	err     error
	calls   int
}

func (s *stubBackend) Search(context.Context, string) ([]music.SearchResult, error) {
	s.calls++
	out := append([]music.SearchResult(nil), s.results...)
	return out, s.err
}

func TestStripSuffix(t *testing.T) {
	tests := []struct {
		name string
		in   music.SearchResult
		want string
	}{
		{"youtube", music.SearchResult{Title: "Daft Punk - One More Time - YouTube", DisplayLink: "www.youtube.com"}, "Daft Punk - One More Time"},
		{"soundcloud", music.SearchResult{Title: "One More Time | Free Listening on SoundCloud", DisplayLink: "soundcloud.com"}, "One More Time"},
		{"unknown site", music.SearchResult{Title: "One More Time - YouTube", DisplayLink: "example.com"}, "One More Time - YouTube"},
		{"display link case", music.SearchResult{Title: "Song - YouTube", DisplayLink: "WWW.YOUTUBE.COM"}, "Song"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripSuffix(tt.in, DefaultTitleSuffixes).Title)
		})
	}
}

func TestMergeSuffixes(t *testing.T) {
	merged := MergeSuffixes(map[string]string{" Bandcamp.com ": " | Bandcamp", "www.youtube.com": " (YT)"})

	assert.Equal(t, " | Bandcamp", merged["bandcamp.com"])
	assert.Equal(t, " (YT)", merged["www.youtube.com"])
	assert.Equal(t, " - YouTube", DefaultTitleSuffixes["www.youtube.com"])
}

func TestClient_StripsResults(t *testing.T) {
	backend := &stubBackend{results: []music.SearchResult{
		{Title: "Song - YouTube", Link: "https://www.youtube.com/watch?v=x", DisplayLink: "www.youtube.com"},
	}}
	c := New(backend, 0, nil)

	got, err := c.Search(context.Background(), "song")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Song", got[0].Title)
}

func TestClient_PropagatesBackendError(t *testing.T) {
	backend := &stubBackend{err: music.NewProviderError("cse", "search", errors.New("quota"))}
	c := New(backend, 0, nil)

	_, err := c.Search(context.Background(), "song")
	assert.ErrorIs(t, err, music.ErrNotFound)
}

func TestClient_RateLimited(t *testing.T) {
	backend := &stubBackend{}
	c := New(backend, time.Hour, nil)

	_, err := c.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, 1, backend.calls)
}

const ddgPage = `<html><body>
<div class="result result--ad"><a class="result__a" href="https://ads.example/buy">Buy Now</a></div>
<div class="result results_links web-result">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.youtube.com%2Fwatch%3Fv%3DdQw4w9WgXcQ&amp;rut=abc">Rick Astley - Never Gonna Give You Up - YouTube</a></h2>
  <a class="result__url" href="#">www.youtube.com/watch?v=dQw4w9WgXcQ</a>
</div>
<div class="result">
  <h2><a class="result__a" href="https://soundcloud.com/rick/never">Never Gonna Give You Up | Free Listening on SoundCloud</a></h2>
</div>
<div class="result"><a class="result__a" href="javascript:void(0)">broken</a></div>
</body></html>`

func TestDuckDuckGo(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotQuery = r.PostForm.Get("q")
		_, _ = io.WriteString(w, ddgPage)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(srv.URL, srv.Client())
	results, err := New(d, 0, nil).Search(context.Background(), "never gonna give you up")
	require.NoError(t, err)

	assert.Equal(t, "never gonna give you up", gotQuery)
	assert.Equal(t, []music.SearchResult{
		{Title: "Rick Astley - Never Gonna Give You Up", Link: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", DisplayLink: "www.youtube.com"},
		{Title: "Never Gonna Give You Up", Link: "https://soundcloud.com/rick/never", DisplayLink: "soundcloud.com"},
	}, results)
}

func TestDuckDuckGo_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewDuckDuckGo(srv.URL, srv.Client()).Search(context.Background(), "x")
	assert.ErrorIs(t, err, music.ErrNotFound)
}

func TestCSE(t *testing.T) {
	var gotQuery, gotCx, gotSafe string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotCx = r.URL.Query().Get("cx")
		gotSafe = r.URL.Query().Get("safe")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{
				{"title": "One More Time - YouTube", "link": "https://www.youtube.com/watch?v=FGBhQbmPwH8", "displayLink": "www.youtube.com"},
				{"title": "no link"},
			},
		})
	}))
	defer srv.Close()

	ctx := context.Background()
	cse, err := NewCSE(ctx, "key", "engine", "", option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	results, err := cse.Search(ctx, "one more time")
	require.NoError(t, err)

	assert.Equal(t, "one more time", gotQuery)
	assert.Equal(t, "engine", gotCx)
	assert.Equal(t, "active", gotSafe)
	assert.Equal(t, []music.SearchResult{
		{Title: "One More Time - YouTube", Link: "https://www.youtube.com/watch?v=FGBhQbmPwH8", DisplayLink: "www.youtube.com"},
	}, results)
}

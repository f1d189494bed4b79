package music

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSource owns every locator starting with prefix; query strings are dropped on canonicalisation
type fakeSource struct {
	name   string
	prefix string
	titles map[string]string

	failOpen bool
	// hang makes Open wait for its context to end
	hang bool

	mu       sync.Mutex
	streams  []*fakeStream
	openCtxs []context.Context
}

func newFakeSource() *fakeSource {
	return &fakeSource{name: "fake", prefix: "fake://", titles: map[string]string{}}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Owns(locator string) bool { return strings.HasPrefix(locator, f.prefix) }

func (f *fakeSource) Canonicalize(_ context.Context, query string) (string, bool, error) {
	if !f.Owns(query) {
		return "", false, nil
	}
	return strings.SplitN(query, "?", 2)[0], true, nil
}

func (f *fakeSource) Title(_ context.Context, locator string) (string, error) {
	title, ok := f.titles[locator]
	if !ok {
		return "", errors.New("video unavailable")
	}
	return title, nil
}

func (f *fakeSource) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.openCtxs = append(f.openCtxs, ctx)
	f.mu.Unlock()

	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.failOpen {
		return nil, errors.New("stream refused")
	}
	s := &fakeStream{Reader: strings.NewReader(locator)}
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeSource) openStreams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.streams {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

func (f *fakeSource) lastOpenCtx() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openCtxs[len(f.openCtxs)-1]
}

type fakeStream struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeSearcher struct {
	results []SearchResult
	err     error
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, _ string) ([]SearchResult, error) {
	f.calls++
	return f.results, f.err
}

type fakeMirror struct {
	mu     sync.Mutex
	scopes []string
	bodies []string
	err    error
}

func (m *fakeMirror) Sync(_ context.Context, scope, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes = append(m.scopes, scope)
	m.bodies = append(m.bodies, content)
	return "https://gist.example/" + scope, m.err
}

func (m *fakeMirror) URL(ctx context.Context, scope, content string) (string, error) {
	return m.Sync(ctx, scope, content)
}

type fakeHistory struct {
	mu     sync.Mutex
	next   int
	starts []string
	ends   map[string]string
}

func (h *fakeHistory) TrackStarted(_ context.Context, _, title, _ string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.starts = append(h.starts, title)
	return fmt.Sprintf("play-%d", h.next), nil
}

func (h *fakeHistory) TrackEnded(_ context.Context, id, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ends == nil {
		h.ends = map[string]string{}
	}
	h.ends[id] = reason
	return nil
}

// newTestCatalog writes n tracks titled "Song 1".."Song n" with locators fake://song/1..n
func newTestCatalog(t *testing.T, n int) *Catalog {
	t.Helper()
	c, err := LoadCatalog(filepath.Join(t.TempDir(), "playlist.json"))
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		_, err := c.Append(Track{Title: fmt.Sprintf("Song %d", i), Locator: fmt.Sprintf("fake://song/%d", i)})
		require.NoError(t, err)
	}
	return c
}

func newTestPlayer(t *testing.T, n int, opts ...PlayerOption) (*Player, *fakeSource) {
	t.Helper()
	src := newFakeSource()
	lib := NewLibrary(newTestCatalog(t, n), []Source{src}, nil, nil)
	opts = append([]PlayerOption{WithRand(rand.New(rand.NewSource(7)))}, opts...)
	p := NewPlayer(lib, opts...)
	t.Cleanup(p.Close)
	return p, src
}

func titlesOf(tracks []Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Title
	}
	return out
}

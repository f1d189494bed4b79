package music

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/latoulicious/kenny/pkg/logging"
	"golang.org/x/sync/semaphore"
)

// maxRecentDraws bounds rejection sampling before falling back to a scan
const maxRecentDraws = 32

// shuffleMinimum is the catalog size above which random picks avoid recent songs
const shuffleMinimum = 10

// Reasons recorded when a playback ends
const (
	EndNatural  = "ended"
	EndSkipped  = "skipped"
	EndStopped  = "stopped"
	EndReplaced = "replaced"
	EndFailed   = "failed"
)

// Mirror publishes the playlist titles to a remote list keyed by scope
type Mirror interface {
	// Sync replaces the list for scope with content and returns its URL
	Sync(ctx context.Context, scope, content string) (string, error)
	// URL returns the list for scope, publishing content first if no single list exists
	URL(ctx context.Context, scope, content string) (string, error)
}

// History records playback starts and ends
type History interface {
	TrackStarted(ctx context.Context, guildID, title, locator string) (string, error)
	TrackEnded(ctx context.Context, id, reason string) error
}

// Playback is a started track. Stream must be handed to the audio sink; the Player
// closes it when the track is skipped, stopped or replaced.
type Playback struct {
	Index  int
	Track  Track
	Stream io.ReadCloser
}

// PlayerOption configures a Player
type PlayerOption func(*Player)

func WithMirror(m Mirror) PlayerOption { return func(p *Player) { p.mirror = m } }

func WithHistory(h History) PlayerOption { return func(p *Player) { p.history = h } }

func WithLogger(l logging.Logger) PlayerOption { return func(p *Player) { p.log = l } }

func WithShuffle(on bool) PlayerOption { return func(p *Player) { p.shuffle = on } }

func WithRand(r *rand.Rand) PlayerOption { return func(p *Player) { p.rng = r } }

func WithMirrorTimeout(d time.Duration) PlayerOption {
	return func(p *Player) { p.mirrorTimeout = d }
}

// Player is the single playback session plus the command surface over the playlist.
// Operations run one at a time; reads of the session state do not wait for them.
type Player struct {
	sem     *semaphore.Weighted
	library *Library
	catalog *Catalog
	mirror  Mirror
	history History
	log     logging.Logger
	rng     *rand.Rand

	mirrorTimeout time.Duration
	streamCtx     context.Context
	cancel        context.CancelFunc

	mu        sync.RWMutex
	guildID   string
	shuffle   bool
	recent    *RecencyBuffer
	upcoming  *UpcomingQueue
	current   int
	title     string
	stream    io.ReadCloser
	historyID string
}

// NewPlayer creates an idle Player over library's catalog
func NewPlayer(library *Library, opts ...PlayerOption) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		sem:           semaphore.NewWeighted(1),
		library:       library,
		catalog:       library.Catalog(),
		log:           logging.Nop(),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		mirrorTimeout: 15 * time.Second,
		streamCtx:     ctx,
		cancel:        cancel,
		upcoming:      NewUpcomingQueue(),
		current:       -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.recent = NewRecencyBuffer(p.catalog.Len() / 2)
	p.catalog.OnChange(p.catalogChanged)
	return p
}

func (p *Player) acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

func (p *Player) release() {
	p.sem.Release(1)
}

// SetGuild records the guild the session belongs to. Only the first call has an effect.
func (p *Player) SetGuild(guildID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.guildID == "" && guildID != "" {
		p.guildID = guildID
	}
}

func (p *Player) GuildID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.guildID
}

// Add catalogues the song named by query
func (p *Player) Add(ctx context.Context, query string) (AddResult, error) {
	if err := p.acquire(ctx); err != nil {
		return AddResult{}, err
	}
	defer p.release()
	return p.library.Add(ctx, query)
}

// Remove deletes the song named by query from the catalog
func (p *Player) Remove(ctx context.Context, query string) (Track, error) {
	if err := p.acquire(ctx); err != nil {
		return Track{}, err
	}
	defer p.release()
	return p.library.Remove(ctx, query)
}

// Tracks returns the catalog in order
func (p *Player) Tracks() []Track {
	return p.catalog.Tracks()
}

// List returns the URL of the mirrored playlist
func (p *Player) List(ctx context.Context) (string, error) {
	if p.mirror == nil {
		return "", ErrMirrorDisabled
	}
	if err := p.acquire(ctx); err != nil {
		return "", err
	}
	defer p.release()

	url, err := p.mirror.URL(ctx, p.scope(), strings.Join(p.catalog.Titles(), "\n"))
	if err != nil {
		p.log.Warn("failed to fetch playlist mirror", logging.Err(err))
		return "", NewProviderError("mirror", "list", err)
	}
	return url, nil
}

// Play starts the song named by query, or picks one when query is empty:
// the head of the upcoming queue if any, otherwise a random song.
func (p *Player) Play(ctx context.Context, query string) (*Playback, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	if strings.TrimSpace(query) == "" {
		n := p.catalog.Len()
		if n == 0 {
			return nil, ErrEmptyCatalog
		}
		p.mu.RLock()
		head, queued := p.upcoming.Peek()
		p.mu.RUnlock()
		if queued && head < n {
			return p.start(ctx, head, true, EndReplaced)
		}
		return p.start(ctx, p.pickRandom(n), false, EndReplaced)
	}

	index, err := p.library.ResolveIndex(ctx, query)
	if err != nil {
		return nil, err
	}
	return p.start(ctx, index, false, EndReplaced)
}

// Skip moves on to the next song. It fails with ErrNotPlaying when idle.
func (p *Player) Skip(ctx context.Context) (*Playback, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	if !p.playing() {
		return nil, ErrNotPlaying
	}
	index, queued, err := p.selectNext()
	if err != nil {
		return nil, err
	}
	return p.start(ctx, index, queued, EndSkipped)
}

// Finished is called by the audio sink when the current stream ends on its own.
// The next song starts following the queue, shuffle and sequential order in that
// priority; if it cannot be opened the session goes idle.
func (p *Player) Finished(ctx context.Context) (*Playback, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	if !p.playing() {
		return nil, ErrNotPlaying
	}
	index, queued, err := p.selectNext()
	if err == nil {
		var pb *Playback
		if pb, err = p.start(ctx, index, queued, EndNatural); err == nil {
			return pb, nil
		}
	}
	p.halt(EndFailed)
	return nil, err
}

// Stop ends playback and clears the recency buffer and the upcoming queue
func (p *Player) Stop(ctx context.Context) (Track, error) {
	if err := p.acquire(ctx); err != nil {
		return Track{}, err
	}
	defer p.release()

	t, ok := p.NowPlaying()
	if !ok {
		return Track{}, ErrNotPlaying
	}
	p.halt(EndStopped)

	p.mu.Lock()
	p.recent.Clear()
	p.upcoming.Clear()
	p.mu.Unlock()
	return t, nil
}

// Enqueue appends the song named by query to the upcoming queue.
// existed is true when it was already queued.
func (p *Player) Enqueue(ctx context.Context, query string) (t Track, existed bool, err error) {
	if err := p.acquire(ctx); err != nil {
		return Track{}, false, err
	}
	defer p.release()

	index, err := p.library.ResolveIndex(ctx, query)
	if err != nil {
		return Track{}, false, err
	}
	t, _ = p.catalog.Track(index)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.upcoming.Contains(index) {
		return t, true, nil
	}
	p.upcoming.PushBack(index)
	return t, false, nil
}

// Upcoming lists the queued songs in playback order
func (p *Player) Upcoming() []Track {
	p.mu.RLock()
	items := p.upcoming.Items()
	p.mu.RUnlock()

	out := make([]Track, 0, len(items))
	for _, i := range items {
		if t, ok := p.catalog.Track(i); ok {
			out = append(out, t)
		}
	}
	return out
}

// Dequeue removes the song named by a 1-based catalog index or a fuzzy title from the upcoming queue
func (p *Player) Dequeue(ctx context.Context, query string) (Track, error) {
	if err := p.acquire(ctx); err != nil {
		return Track{}, err
	}
	defer p.release()

	p.mu.RLock()
	empty := p.upcoming.Empty()
	p.mu.RUnlock()
	if empty {
		return Track{}, ErrEmptyQueue
	}

	var index int
	if n, numeric := parseIndex(query); numeric {
		if n < 1 || n > p.catalog.Len() {
			return Track{}, ErrInvalidIndex
		}
		index = n - 1
	} else {
		i, ok := p.catalog.MatchTitle(query)
		if !ok {
			return Track{}, ErrNotFound
		}
		index = i
	}

	p.mu.Lock()
	removed := p.upcoming.Remove(index)
	p.mu.Unlock()
	if !removed {
		return Track{}, ErrNotFound
	}
	t, _ := p.catalog.Track(index)
	return t, nil
}

// Next puts the song named by query at the front of the upcoming queue
func (p *Player) Next(ctx context.Context, query string) (Track, error) {
	if err := p.acquire(ctx); err != nil {
		return Track{}, err
	}
	defer p.release()

	index, err := p.library.ResolveIndex(ctx, query)
	if err != nil {
		return Track{}, err
	}

	p.mu.Lock()
	p.upcoming.PushFront(index)
	p.mu.Unlock()

	t, _ := p.catalog.Track(index)
	return t, nil
}

// NowPlaying returns the current song, if any
func (p *Player) NowPlaying() (Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stream == nil {
		return Track{}, false
	}
	t, ok := p.catalog.Track(p.current)
	if !ok || t.Title != p.title {
		// the entry was removed while playing
		t = Track{Title: p.title}
	}
	return t, true
}

// ToggleShuffle flips shuffle mode and returns the new state
func (p *Player) ToggleShuffle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shuffle = !p.shuffle
	return p.shuffle
}

func (p *Player) SetShuffle(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shuffle = on
}

func (p *Player) Shuffle() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shuffle
}

// Close releases the current stream and cancels any open provider streams
func (p *Player) Close() {
	p.halt(EndStopped)
	p.cancel()
}

func (p *Player) playing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stream != nil
}

// selectNext picks the index that follows the current song. queued reports
// whether it came from the upcoming queue.
func (p *Player) selectNext() (index int, queued bool, err error) {
	n := p.catalog.Len()
	if n == 0 {
		return -1, false, ErrEmptyCatalog
	}

	p.mu.RLock()
	head, ok := p.upcoming.Peek()
	shuffle := p.shuffle
	current := p.current
	p.mu.RUnlock()

	switch {
	case ok && head < n:
		return head, true, nil
	case shuffle:
		return p.pickRandom(n), false, nil
	default:
		return (current + 1) % n, false, nil
	}
}

// pickRandom draws a uniform index. Above shuffleMinimum songs it avoids the recency
// buffer, scanning from a random offset once maxRecentDraws draws have failed.
func (p *Player) pickRandom(n int) int {
	index := p.rng.Intn(n)
	if n <= shuffleMinimum {
		return index
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for i := 0; i < maxRecentDraws && p.recent.Contains(index); i++ {
		index = p.rng.Intn(n)
	}
	if !p.recent.Contains(index) {
		return index
	}
	for k := 1; k < n; k++ {
		if c := (index + k) % n; !p.recent.Contains(c) {
			return c
		}
	}
	return index
}

// start opens index and commits it as the current song. Nothing changes if the stream cannot be opened.
// Opening gives up when ctx ends; once open, the stream lives until it is closed or the player is.
func (p *Player) start(ctx context.Context, index int, queued bool, reason string) (*Playback, error) {
	t, stream, err := p.open(ctx, index)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if queued {
		p.upcoming.PopFront()
	}
	p.recent.Touch(index)
	prev, prevID := p.stream, p.historyID
	p.current, p.title, p.stream, p.historyID = index, t.Title, stream, ""
	guildID := p.guildID
	p.mu.Unlock()

	p.finish(prev, prevID, reason)
	p.log.Info("now playing", logging.String("title", t.Title), logging.Int("index", index+1), logging.Bool("queued", queued))

	if p.history != nil {
		id, err := p.history.TrackStarted(p.streamCtx, guildID, t.Title, t.Locator)
		if err != nil {
			p.log.Warn("failed to record playback", logging.Err(err))
		} else {
			p.mu.Lock()
			if p.stream == stream {
				p.historyID = id
			}
			p.mu.Unlock()
		}
	}

	return &Playback{Index: index, Track: t, Stream: stream}, nil
}

// open starts the stream for index on a context detached from ctx once the call returns
func (p *Player) open(ctx context.Context, index int) (Track, io.ReadCloser, error) {
	streamCtx, cancel := context.WithCancel(p.streamCtx)
	stop := context.AfterFunc(ctx, cancel)

	t, stream, err := p.library.Open(streamCtx, index)
	if !stop() {
		// ctx ended while the provider was still answering
		if stream != nil {
			stream.Close()
		}
		cancel()
		return Track{}, nil, fmt.Errorf("open %d: %w", index+1, context.Cause(ctx))
	}
	if err != nil {
		cancel()
		return Track{}, nil, err
	}
	return t, &onceCloser{ReadCloser: stream, cancel: cancel}, nil
}

// halt returns the session to idle, releasing the stream
func (p *Player) halt(reason string) {
	p.mu.Lock()
	prev, prevID := p.stream, p.historyID
	p.title, p.stream, p.historyID = "", nil, ""
	p.mu.Unlock()

	p.finish(prev, prevID, reason)
}

func (p *Player) finish(stream io.ReadCloser, historyID, reason string) {
	if stream != nil {
		if err := stream.Close(); err != nil {
			p.log.Debug("closing stream", logging.Err(err))
		}
	}
	if p.history != nil && historyID != "" {
		if err := p.history.TrackEnded(p.streamCtx, historyID, reason); err != nil {
			p.log.Warn("failed to record playback end", logging.Err(err))
		}
	}
}

// catalogChanged keeps indices and the recency capacity in step with the catalog,
// then mirrors the titles. It runs inside the operation that mutated the catalog.
func (p *Player) catalogChanged(ch Change) {
	p.mu.Lock()
	if ch.Kind == TrackRemoved {
		p.recent.Forget(ch.Index)
		p.upcoming.Forget(ch.Index)
		if p.current >= ch.Index {
			p.current--
		}
	}
	p.recent.Resize(len(ch.Titles) / 2)
	p.mu.Unlock()

	if p.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(p.streamCtx, p.mirrorTimeout)
	defer cancel()
	if _, err := p.mirror.Sync(ctx, p.scope(), strings.Join(ch.Titles, "\n")); err != nil {
		p.log.Warn("failed to mirror playlist", logging.String("change", ch.Kind.String()), logging.Err(err))
	}
}

func (p *Player) scope() string {
	if id := p.GuildID(); id != "" {
		return id
	}
	return "playlist"
}

// onceCloser makes Close idempotent so the session and the sink can both release the stream
type onceCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.ReadCloser.Close()
		if c.cancel != nil {
			c.cancel()
		}
	})
	return c.err
}

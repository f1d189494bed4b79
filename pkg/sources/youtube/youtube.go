package youtube

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/latoulicious/kenny/pkg/music"
)

// Name identifies this provider in logs and errors
const Name = "youtube"

var hosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
	"www.youtu.be":      true,
}

var errNoAudio = errors.New("no audio formats available")

// videoClient is the part of *youtube.Client this source uses
type videoClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// Source streams YouTube videos as audio
type Source struct {
	client videoClient
}

// New creates a Source backed by the kkdai YouTube client
func New() *Source {
	return &Source{client: &youtube.Client{}}
}

func (s *Source) Name() string { return Name }

// Owns reports whether locator is a YouTube URL
func (s *Source) Owns(locator string) bool {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return hosts[strings.ToLower(u.Hostname())]
}

// Canonicalize rewrites any YouTube video URL to https://youtube.com/watch?v=ID
func (s *Source) Canonicalize(_ context.Context, query string) (string, bool, error) {
	if !s.Owns(query) {
		return "", false, nil
	}
	id, err := youtube.ExtractVideoID(strings.TrimSpace(query))
	if err != nil {
		return "", false, nil
	}
	return Canonical(id), true, nil
}

// Canonical builds the stored form of a video URL
func Canonical(id string) string {
	return "https://youtube.com/watch?v=" + id
}

// Title fetches the video title
func (s *Source) Title(ctx context.Context, locator string) (string, error) {
	video, err := s.client.GetVideoContext(ctx, locator)
	if err != nil {
		return "", music.NewProviderError(Name, "metadata", err)
	}
	return video.Title, nil
}

// Open streams the best audio-only format, falling back to any format that carries audio
func (s *Source) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	video, err := s.client.GetVideoContext(ctx, locator)
	if err != nil {
		return nil, music.NewProviderError(Name, "metadata", err)
	}

	format, err := pickFormat(video.Formats)
	if err != nil {
		return nil, music.NewProviderError(Name, "format", err)
	}

	stream, _, err := s.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, music.NewProviderError(Name, "stream", err)
	}
	return stream, nil
}

func pickFormat(formats youtube.FormatList) (*youtube.Format, error) {
	withAudio := formats.WithAudioChannels()
	if len(withAudio) == 0 {
		return nil, errNoAudio
	}

	candidates := make(youtube.FormatList, 0, len(withAudio))
	for _, f := range withAudio {
		if strings.HasPrefix(f.MimeType, "audio/") {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		candidates = withAudio
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Bitrate > candidates[j].Bitrate
	})
	best := candidates[0]
	return &best, nil
}

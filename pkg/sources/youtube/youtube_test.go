package youtube

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kkdai/youtube/v2"
	"github.com/latoulicious/kenny/pkg/music"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	video    *youtube.Video
	err      error
	streamed *youtube.Format
}

func (f *fakeClient) GetVideoContext(_ context.Context, _ string) (*youtube.Video, error) {
	return f.video, f.err
}

func (f *fakeClient) GetStreamContext(_ context.Context, _ *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error) {
	f.streamed = format
	return io.NopCloser(strings.NewReader("opus")), 4, nil
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
		ok    bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=43", "https://youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", "https://youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"mobile", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "https://youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"bare id is not a url", "dQw4w9WgXcQ", "", false},
		{"other host", "https://soundcloud.com/artist/track", "", false},
		{"free text", "never gonna give you up", "", false},
	}

	s := &Source{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := s.Canonicalize(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOwns(t *testing.T) {
	s := &Source{}
	assert.True(t, s.Owns("https://youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.True(t, s.Owns("http://music.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.False(t, s.Owns("https://notyoutube.com/watch?v=dQw4w9WgXcQ"))
	assert.False(t, s.Owns("youtube.com/watch?v=dQw4w9WgXcQ"))
}

func TestTitle(t *testing.T) {
	s := &Source{client: &fakeClient{video: &youtube.Video{Title: "Never Gonna Give You Up"}}}
	title, err := s.Title(context.Background(), Canonical("dQw4w9WgXcQ"))
	require.NoError(t, err)
	assert.Equal(t, "Never Gonna Give You Up", title)
}

func TestTitleFailureIsProviderError(t *testing.T) {
	s := &Source{client: &fakeClient{err: errors.New("video is private")}}
	_, err := s.Title(context.Background(), Canonical("dQw4w9WgXcQ"))

	var pe *music.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, Name, pe.Provider)
	assert.ErrorIs(t, err, music.ErrNotFound)
}

func TestOpenPrefersAudioOnly(t *testing.T) {
	client := &fakeClient{video: &youtube.Video{
		Title: "x",
		Formats: youtube.FormatList{
			{ItagNo: 18, MimeType: `video/mp4; codecs="avc1"`, Bitrate: 500000, AudioChannels: 2},
			{ItagNo: 249, MimeType: `audio/webm; codecs="opus"`, Bitrate: 50000, AudioChannels: 2},
			{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 140000, AudioChannels: 2},
			{ItagNo: 137, MimeType: `video/mp4; codecs="avc1"`, Bitrate: 900000},
		},
	}}
	s := &Source{client: client}

	stream, err := s.Open(context.Background(), Canonical("dQw4w9WgXcQ"))
	require.NoError(t, err)
	defer stream.Close()
	require.NotNil(t, client.streamed)
	assert.Equal(t, 251, client.streamed.ItagNo)
}

func TestOpenWithoutAudio(t *testing.T) {
	client := &fakeClient{video: &youtube.Video{
		Formats: youtube.FormatList{{ItagNo: 137, MimeType: "video/mp4"}},
	}}
	s := &Source{client: client}

	_, err := s.Open(context.Background(), Canonical("dQw4w9WgXcQ"))
	assert.ErrorIs(t, err, music.ErrNotFound)
	assert.ErrorIs(t, err, errNoAudio)
}

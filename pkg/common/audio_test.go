package common

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEncoder struct {
	frames [][]int16
	fail   bool
}

func (e *recordingEncoder) Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error) {
	if e.fail {
		return nil, errors.New("encoder broke")
	}
	e.frames = append(e.frames, append([]int16(nil), pcm...))
	return []byte{byte(len(e.frames))}, nil
}

func pcmBytes(samples int, value int16) []byte {
	buf := new(bytes.Buffer)
	for i := 0; i < samples; i++ {
		_ = binary.Write(buf, binary.LittleEndian, value)
	}
	return buf.Bytes()
}

func TestStreamPCMToDiscord(t *testing.T) {
	send := make(chan []byte, 10)
	ap := newPipeline(send, nil, 0.5, nil)
	enc := &recordingEncoder{}

	// two full frames and a short tail
	data := pcmBytes(frameSize*channels*2+10, 1000)
	err := ap.streamPCMToDiscord(context.Background(), bytes.NewReader(data), enc)
	require.NoError(t, err)

	require.Len(t, enc.frames, 3)
	assert.Len(t, send, 3)
	assert.Equal(t, int16(500), enc.frames[0][0])
	assert.Equal(t, int16(500), enc.frames[2][9])
	assert.Equal(t, int16(0), enc.frames[2][10])
}

func TestStreamPCMToDiscordCancelled(t *testing.T) {
	send := make(chan []byte, 10)
	ap := newPipeline(send, nil, 1, nil)
	enc := &recordingEncoder{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ap.streamPCMToDiscord(ctx, bytes.NewReader(pcmBytes(frameSize*channels, 1)), enc)
	require.NoError(t, err)
	assert.Empty(t, enc.frames)
}

func TestStreamPCMToDiscordSkipsEncoderErrors(t *testing.T) {
	send := make(chan []byte, 10)
	ap := newPipeline(send, nil, 1, nil)

	err := ap.streamPCMToDiscord(context.Background(), bytes.NewReader(pcmBytes(frameSize*channels, 1)), &recordingEncoder{fail: true})
	require.NoError(t, err)
	assert.Empty(t, send)
}

func TestPipelineVolume(t *testing.T) {
	ap := newPipeline(make(chan []byte), nil, 0.5, nil)
	assert.InDelta(t, 0.5, ap.Volume(), 1e-9)

	ap.SetVolume(1.2)
	assert.InDelta(t, 1.2, ap.Volume(), 1e-9)
	assert.False(t, ap.IsPlaying())

	// stopping an idle pipeline is a no-op
	ap.Stop()
}

func TestBytesToInt16(t *testing.T) {
	out := make([]int16, 3)
	bytesToInt16([]byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80}, out)
	assert.Equal(t, []int16{1, -1, -32768}, out)
}

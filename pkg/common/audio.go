package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/latoulicious/kenny/pkg/logging"
	"layeh.com/gopus"
)

const (
	sampleRate  = 48000
	channels    = 2
	// samples per channel, 20ms at 48kHz
	frameSize   = 960
	frameBytes  = frameSize * channels * 2
	opusBitrate = 128000
	sendTimeout = 100 * time.Millisecond
)

// ErrAlreadyPlaying is returned by Play while a previous stream is still running
var ErrAlreadyPlaying = errors.New("pipeline is already playing")

// opusEncoder is the part of gopus.Encoder the pipeline needs
type opusEncoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// AudioPipeline decodes one stream at a time with ffmpeg and sends it to a voice connection
type AudioPipeline struct {
	voiceConn *discordgo.VoiceConnection
	send      chan<- []byte
	speaking  func(bool) error
	gain      *Gain
	logger    logging.Logger
	ffmpeg    string

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isPlaying bool
}

// NewAudioPipeline creates a pipeline for vc at the given volume
func NewAudioPipeline(vc *discordgo.VoiceConnection, volume float64, logger logging.Logger) *AudioPipeline {
	ap := newPipeline(vc.OpusSend, vc.Speaking, volume, logger)
	ap.voiceConn = vc
	return ap
}

func newPipeline(send chan<- []byte, speaking func(bool) error, volume float64, logger logging.Logger) *AudioPipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AudioPipeline{
		send:     send,
		speaking: speaking,
		gain:     NewGain(volume),
		logger:   logger,
		ffmpeg:   "ffmpeg",
	}
}

// Play starts streaming in the background. The pipeline owns stream and closes it.
// onEnd runs once when the stream stops; natural is false when it was stopped or failed.
func (ap *AudioPipeline) Play(stream io.ReadCloser, onEnd func(natural bool)) error {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if ap.isPlaying {
		stream.Close()
		return ErrAlreadyPlaying
	}

	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		stream.Close()
		return fmt.Errorf("failed to create opus encoder: %w", err)
	}
	encoder.SetBitrate(opusBitrate)

	ctx, cancel := context.WithCancel(context.Background())
	ap.cancel = cancel
	ap.done = make(chan struct{})
	ap.isPlaying = true

	go ap.run(ctx, stream, encoder, ap.done, onEnd)
	return nil
}

func (ap *AudioPipeline) run(ctx context.Context, stream io.ReadCloser, enc opusEncoder, done chan struct{}, onEnd func(bool)) {
	err := ap.streamAudio(ctx, stream, enc)
	stream.Close()

	natural := err == nil && ctx.Err() == nil
	if err != nil && ctx.Err() == nil {
		ap.logger.Warn("Audio stream failed", logging.Err(err))
	}

	ap.mu.Lock()
	ap.isPlaying = false
	ap.mu.Unlock()
	close(done)

	if onEnd != nil {
		onEnd(natural)
	}
}

// streamAudio pipes stream through ffmpeg and sends the PCM it produces
func (ap *AudioPipeline) streamAudio(ctx context.Context, stream io.Reader, enc opusEncoder) error {
	cmd := exec.CommandContext(ctx, ap.ffmpeg,
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "48000",
		"-ac", "2",
		"pipe:1")
	cmd.Stdin = stream
	// the stdin copy may block on a slow network read after ffmpeg is killed
	cmd.WaitDelay = 2 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
	}()

	if ap.voiceConn != nil {
		if err := ap.waitForVoiceReady(ctx); err != nil {
			return err
		}
	}

	if ap.speaking != nil {
		ap.speaking(true)
		defer ap.speaking(false)
	}

	return ap.streamPCMToDiscord(ctx, stdout, enc)
}

// streamPCMToDiscord frames PCM, applies the volume and sends Opus packets
func (ap *AudioPipeline) streamPCMToDiscord(ctx context.Context, reader io.Reader, enc opusEncoder) error {
	buffer := make([]byte, frameBytes)
	samples := make([]int16, frameSize*channels)
	frames := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := io.ReadFull(reader, buffer)
		if errors.Is(err, io.EOF) {
			ap.logger.Debug("Audio stream ended", logging.Int("frames", frames))
			return nil
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("error reading PCM data: %w", err)
		}

		// a short final frame is padded with silence
		bytesToInt16(buffer[:n], samples)
		for i := n / 2; i < len(samples); i++ {
			samples[i] = 0
		}
		ap.gain.Apply(samples)

		opus, encErr := enc.Encode(samples, frameSize, frameBytes)
		if encErr != nil {
			ap.logger.Warn("Opus encoding error", logging.Err(encErr))
		} else {
			select {
			case ap.send <- opus:
				frames++
			case <-time.After(sendTimeout):
				ap.logger.Debug("Opus send blocked, skipping frame")
			case <-ctx.Done():
				return nil
			}
		}

		if err != nil {
			return nil
		}
	}
}

func (ap *AudioPipeline) waitForVoiceReady(ctx context.Context) error {
	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		ap.voiceConn.RLock()
		ready := ap.voiceConn.Ready
		ap.voiceConn.RUnlock()
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("timeout waiting for voice connection")
		case <-ticker.C:
		}
	}
}

// Stop cancels the running stream and waits for it to wind down
func (ap *AudioPipeline) Stop() {
	ap.mu.Lock()
	cancel, done := ap.cancel, ap.done
	ap.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SetVolume changes the level of the running and future streams
func (ap *AudioPipeline) SetVolume(volume float64) {
	ap.gain.SetVolume(volume)
}

// Volume returns the current level
func (ap *AudioPipeline) Volume() float64 {
	return ap.gain.Volume()
}

// IsPlaying reports whether a stream is running
func (ap *AudioPipeline) IsPlaying() bool {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.isPlaying
}

// VoiceConnection returns the connection the pipeline sends to
func (ap *AudioPipeline) VoiceConnection() *discordgo.VoiceConnection {
	return ap.voiceConn
}

func bytesToInt16(data []byte, out []int16) {
	for i := 0; i < len(data)/2 && i < len(out); i++ {
		out[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
}

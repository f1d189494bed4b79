package common

import (
	"math"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
)

// MaxVolume is the loudest setting the volume command accepts
const MaxVolume = 1.5

// frameStreamer feeds one interleaved s16le stereo frame into a beep chain
type frameStreamer struct {
	samples [][2]float64
	pos     int
}

func (f *frameStreamer) load(pcm []int16) {
	n := len(pcm) / 2
	if cap(f.samples) < n {
		f.samples = make([][2]float64, n)
	}
	f.samples = f.samples[:n]
	for i := 0; i < n; i++ {
		f.samples[i][0] = float64(pcm[2*i]) / math.MaxInt16
		f.samples[i][1] = float64(pcm[2*i+1]) / math.MaxInt16
	}
	f.pos = 0
}

func (f *frameStreamer) Stream(samples [][2]float64) (int, bool) {
	if f.pos >= len(f.samples) {
		return 0, false
	}
	n := copy(samples, f.samples[f.pos:])
	f.pos += n
	return n, true
}

func (f *frameStreamer) Err() error { return nil }

var _ beep.Streamer = (*frameStreamer)(nil)

// Gain scales PCM frames by the current volume. 1 leaves audio untouched.
type Gain struct {
	mu     sync.Mutex
	source *frameStreamer
	fx     *effects.Gain
	buf    [][2]float64
}

// NewGain creates a gain stage at volume
func NewGain(volume float64) *Gain {
	src := &frameStreamer{}
	g := &Gain{
		source: src,
		fx:     &effects.Gain{Streamer: src},
	}
	g.SetVolume(volume)
	return g
}

// SetVolume changes the level for the next frame. It is clamped to [0, MaxVolume].
func (g *Gain) SetVolume(volume float64) {
	volume = math.Max(0, math.Min(MaxVolume, volume))
	g.mu.Lock()
	// effects.Gain multiplies by 1+Gain
	g.fx.Gain = volume - 1
	g.mu.Unlock()
}

// Volume returns the current level
func (g *Gain) Volume() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fx.Gain + 1
}

// Apply scales an interleaved stereo frame in place, clipping at the int16 range
func (g *Gain) Apply(pcm []int16) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fx.Gain == 0 {
		return
	}

	g.source.load(pcm)
	n := len(g.source.samples)
	if cap(g.buf) < n {
		g.buf = make([][2]float64, n)
	}
	buf := g.buf[:n]

	read := 0
	for read < n {
		m, ok := g.fx.Stream(buf[read:])
		if !ok {
			break
		}
		read += m
	}

	for i := 0; i < read; i++ {
		pcm[2*i] = toInt16(buf[i][0])
		pcm[2*i+1] = toInt16(buf[i][1])
	}
}

func toInt16(v float64) int16 {
	v = math.Round(v * math.MaxInt16)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGainApply(t *testing.T) {
	tests := []struct {
		name   string
		volume float64
		in     []int16
		want   []int16
	}{
		{"unity is untouched", 1, []int16{1000, -1000, 32767, -32768}, []int16{1000, -1000, 32767, -32768}},
		{"half", 0.5, []int16{1000, -1000, 2000, 0}, []int16{500, -500, 1000, 0}},
		{"mute", 0, []int16{1000, -1000}, []int16{0, 0}},
		{"boost clips", 1.5, []int16{30000, -30000, 100, -100}, []int16{math.MaxInt16, math.MinInt16, 150, -150}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := append([]int16(nil), tt.in...)
			NewGain(tt.volume).Apply(pcm)
			assert.Equal(t, tt.want, pcm)
		})
	}
}

func TestGainSetVolumeClamps(t *testing.T) {
	g := NewGain(0.5)
	assert.InDelta(t, 0.5, g.Volume(), 1e-9)

	g.SetVolume(3)
	assert.InDelta(t, MaxVolume, g.Volume(), 1e-9)

	g.SetVolume(-1)
	assert.InDelta(t, 0, g.Volume(), 1e-9)
}

func TestGainReusesBuffers(t *testing.T) {
	g := NewGain(0.5)
	big := make([]int16, 1920)
	for i := range big {
		big[i] = 200
	}
	g.Apply(big)
	assert.Equal(t, int16(100), big[1919])

	small := []int16{400, 400}
	g.Apply(small)
	assert.Equal(t, []int16{200, 200}, small)
}

package tone

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/avatarvoice/internal/wav"
)

func TestGenerate_RoundTrip(t *testing.T) {
	tests := []struct {
		text     string
		duration float64
	}{
		{"", 0.5},
		{"   ", 0.5},
		{"Hello", 0.5},
		{"Hello world", 1.0},
		{"one two three four five six seven", 3.5},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			out := Generate(tt.text)

			h, err := wav.ParseHeader(out)
			require.NoError(t, err)

			assert.Equal(t, SampleRate, h.SampleRate)
			assert.Equal(t, 1, h.Channels)
			assert.Equal(t, 16, h.BitsPerSample)
			assert.Equal(t, Frames(tt.text), h.Frames())
			assert.Equal(t, tt.duration, Duration(tt.text))
			assert.InDelta(t, Duration(tt.text), h.Duration(), 0.001)
			assert.Len(t, out, wav.HeaderSize+h.Frames()*2)
		})
	}
}

func TestGenerate_IsSine(t *testing.T) {
	out := Generate("hi")
	h, err := wav.ParseHeader(out)
	require.NoError(t, err)

	pcm := out[h.DataOffset:]
	sample := func(i int) int16 { return int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8) }

	assert.Equal(t, int16(0), sample(0))
	// A quarter period of 440 Hz at 22050 Hz is ~12.5 samples; the wave peaks near there.
	peak := int16(amplitude * math.Sin(2*math.Pi*Frequency*12/SampleRate))
	assert.Equal(t, peak, sample(12))
}

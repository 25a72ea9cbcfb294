// Package tone generates the placeholder sine-wave audio served when no real
// voice source is available. It has no failure mode.
package tone

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/nadzzz/avatarvoice/internal/wav"
)

const (
	// SampleRate of the generated audio in Hz.
	SampleRate = 22050
	// Frequency of the generated tone in Hz.
	Frequency = 440.0
	// SecondsPerWord is the duration allotted to each word of input text.
	SecondsPerWord = 0.5

	amplitude = 32767
)

// Format is mono 16-bit PCM at SampleRate.
var Format = wav.Format{SampleRate: SampleRate, Channels: 1, BitsPerSample: 16}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Duration returns max(1, words) * 0.5 seconds for text.
func Duration(text string) float64 {
	return float64(billedWords(text)) * SecondsPerWord
}

// Frames returns the exact number of sample frames Generate produces for text.
func Frames(text string) int {
	// SecondsPerWord * SampleRate is not an integer for every rate, so keep
	// the arithmetic in whole frames per half second.
	return billedWords(text) * SampleRate / 2
}

// Generate returns a WAV container holding a 440 Hz sine wave whose length is
// Duration(text).
func Generate(text string) []byte {
	n := Frames(text)
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*Frequency*float64(i)/SampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return wav.Encode(pcm, Format)
}

func billedWords(text string) int {
	return max(1, WordCount(text))
}

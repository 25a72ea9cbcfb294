// Package message defines the request and response types shared by every transport.
package message

import (
	"encoding/base64"

	"github.com/nadzzz/avatarvoice/internal/lipsync"
	"github.com/nadzzz/avatarvoice/internal/speaker"
	"github.com/nadzzz/avatarvoice/internal/viseme"
)

// FormatWAV is the only audio format the service produces.
const FormatWAV = "wav"

// SynthesisRequest asks for speech audio and, optionally, a lip-sync timeline.
type SynthesisRequest struct {
	// Text to speak. Required; limited to tts.max_text_chars characters.
	Text string `json:"text" example:"Hello world"`

	// Speaker selects the voice (e.g., "kelly", "ken"). Empty uses the default speaker.
	Speaker string `json:"speaker,omitempty" example:"kelly"`

	// IncludePhonemes adds the timeline to the response.
	IncludePhonemes bool `json:"include_phonemes,omitempty"`

	// Format is the requested audio format. Only "wav" is supported.
	Format string `json:"format,omitempty" example:"wav"`
}

// SynthesisResponse is the synthesized audio plus its timeline.
type SynthesisResponse struct {
	// RequestID is a unique identifier for this request (UUID).
	RequestID string `json:"request_id"`

	// Audio is the WAV container, base64-encoded.
	Audio string `json:"audio"`

	// AudioFormat is always "wav".
	AudioFormat string `json:"audio_format"`

	// Duration of the audio in seconds.
	Duration float64 `json:"duration"`

	// DurationEstimated is set when the container could not be parsed and the
	// duration was estimated from the word count.
	DurationEstimated bool `json:"duration_estimated,omitempty"`

	SampleRate int    `json:"sample_rate"`
	Speaker    string `json:"speaker"`
	Text       string `json:"text"`

	// Engine identifies the source tier that produced the audio
	// (piper_custom, reference_file, voice_segments, fallback_file,
	// piper_fallback, simple_generated).
	Engine string `json:"engine"`

	// Phonemes is the lip-sync timeline. Omitted when not requested.
	Phonemes []lipsync.Entry `json:"phonemes,omitempty"`
}

// SetAudioBytes base64-encodes raw audio bytes into Audio.
func (r *SynthesisResponse) SetAudioBytes(audio []byte) {
	r.Audio = base64.StdEncoding.EncodeToString(audio)
}

// AudioBytes decodes Audio.
func (r *SynthesisResponse) AudioBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.Audio)
}

// VoiceInfo describes a speaker and the availability of each of its tiers.
type VoiceInfo struct {
	Speaker string               `json:"speaker"`
	Default bool                 `json:"default,omitempty"`
	Tiers   []speaker.TierStatus `json:"tiers"`
}

// VisemeList is the viseme vocabulary.
type VisemeList struct {
	Core     []viseme.Viseme `json:"core"`
	Extended []viseme.Viseme `json:"extended"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Allowed []string `json:"allowed,omitempty"`
}

// Package tts turns a speaker's source tiers into audio.
//
// The Materializer knows how to produce WAV bytes from each kind of candidate:
// trained Piper models and stock voices go through a Synthesizer, reference and
// fallback recordings are played back as stored, segment directories yield their
// first recording, and the synthetic tone is generated in process. Resolve walks
// a speaker profile with the tiered resolver and returns the first tier that
// produced audio.
package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/metrics"
	"github.com/nadzzz/avatarvoice/internal/resolve"
	"github.com/nadzzz/avatarvoice/internal/speaker"
	"github.com/nadzzz/avatarvoice/internal/tts/tone"
	"github.com/nadzzz/avatarvoice/internal/wav"
)

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Model and Config are the trained voice files for CLI engines.
	Model  string
	Config string

	// Voice is the stock voice name for server engines.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize generates a WAV container from the given text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the synthesized audio as a WAV file.
	Audio []byte

	// Format is the PCM layout the engine announced for Audio. Zero when the
	// engine only hands back a file.
	Format wav.Format
}

// Result is the audio produced for one request.
type Result struct {
	Audio  []byte
	Format wav.Format
	Frames int
	Engine string

	// Estimated is set when the container could not be parsed; Duration then
	// falls back to the synthetic per-word formula.
	Estimated bool
	estimate  float64
}

// Duration is Frames/SampleRate, or the per-word estimate when Estimated.
func (r *Result) Duration() float64 {
	if r.Estimated || r.Format.SampleRate == 0 {
		return r.estimate
	}
	return float64(r.Frames) / float64(r.Format.SampleRate)
}

// Materializer produces audio for a single candidate.
type Materializer struct {
	// Model runs trained voice models. Nil disables trained_model tiers.
	Model Synthesizer
	// Stock runs generic voices. Nil disables stock_voice tiers.
	Stock Synthesizer

	// ToolTimeout bounds each external synthesis call.
	ToolTimeout time.Duration
	Logger      *slog.Logger
}

// Valid reports whether c can be attempted with the configured engines.
func (m *Materializer) Valid(c speaker.Candidate) bool {
	switch c.Kind {
	case speaker.TrainedModel:
		if m.Model == nil {
			return false
		}
	case speaker.StockVoice:
		if m.Stock == nil {
			return false
		}
	}
	return c.Available()
}

// Materialize produces audio for text from candidate c.
func (m *Materializer) Materialize(ctx context.Context, c speaker.Candidate, text string) (*Result, error) {
	var (
		audio    []byte
		reported wav.Format
		err      error
	)

	switch c.Kind {
	case speaker.TrainedModel:
		audio, reported, err = m.synthesize(ctx, m.Model, text, SynthesizeOpts{Model: c.ModelPath, Config: c.ConfigPath})
	case speaker.StockVoice:
		audio, reported, err = m.synthesize(ctx, m.Stock, text, SynthesizeOpts{Voice: c.Voice})
	case speaker.ReferenceFile, speaker.FallbackFile:
		audio, err = readAudio(c.Path)
	case speaker.SegmentDirectory:
		audio, err = firstSegment(c.Path)
	case speaker.SyntheticTone:
		return &Result{
			Audio:    tone.Generate(text),
			Format:   tone.Format,
			Frames:   tone.Frames(text),
			Engine:   c.Engine(),
			estimate: tone.Duration(text),
		}, nil
	default:
		return nil, errs.New(errs.KindInternal, "tts.materialize", fmt.Sprintf("unknown tier %q", c.Kind))
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Audio: audio, Engine: c.Engine(), estimate: tone.Duration(text)}

	h, err := wav.ParseHeader(audio)
	if err != nil {
		m.logger().Warn("unparseable audio container, estimating duration",
			"tier", c.Tier(), "bytes", len(audio), "error", err)
		metrics.RecordEstimated(c.Tier())
		res.Estimated = true
		return res, nil
	}

	// The container is authoritative; a disagreeing engine is only reported.
	if reported != (wav.Format{}) && reported != h.Format {
		m.logger().Warn("engine format disagrees with container",
			"tier", c.Tier(), "reported", reported, "container", h.Format)
		metrics.RecordFormatMismatch(c.Tier())
	}

	res.Format = h.Format
	res.Frames = h.Frames()
	return res, nil
}

// Resolve walks the profile's tiers in order and returns the first that
// produces audio for text.
func (m *Materializer) Resolve(ctx context.Context, p *speaker.Profile, text string) (resolve.Selection[speaker.Candidate, *Result], error) {
	r := &resolve.Resolver[speaker.Candidate, *Result]{
		Name:  "audio",
		Valid: m.Valid,
		Materialize: func(ctx context.Context, c speaker.Candidate) (*Result, error) {
			return m.Materialize(ctx, c, text)
		},
		Tier:     speaker.Candidate.Tier,
		Observer: metrics.Tiers{},
		Logger:   m.logger(),
	}
	return r.Resolve(ctx, p.ID(), p.Candidates())
}

// Close releases the engines.
func (m *Materializer) Close() error {
	var first error
	for _, s := range []Synthesizer{m.Model, m.Stock} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Materializer) synthesize(ctx context.Context, s Synthesizer, text string, opts SynthesizeOpts) ([]byte, wav.Format, error) {
	if m.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.ToolTimeout)
		defer cancel()
	}

	res, err := s.Synthesize(ctx, text, opts)
	if err != nil {
		return nil, wav.Format{}, errs.Wrap(errs.KindExternalTool, "tts.synthesize", "engine failed", err)
	}
	if len(res.Audio) == 0 {
		return nil, wav.Format{}, errs.New(errs.KindExternalTool, "tts.synthesize", "engine returned no audio")
	}
	return res.Audio, res.Format, nil
}

func (m *Materializer) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func readAudio(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalTool, "tts.read", "reading recording", err)
	}
	return data, nil
}

// firstSegment returns the lexicographically first .wav file in dir. Segments
// are not concatenated or selected by content.
func firstSegment(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalTool, "tts.segments", "listing segments", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			return readAudio(filepath.Join(dir, e.Name()))
		}
	}
	return nil, errs.New(errs.KindExternalTool, "tts.segments", "no .wav segments in "+dir)
}

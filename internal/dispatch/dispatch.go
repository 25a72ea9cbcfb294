// Package dispatch implements the synthesis pipeline shared by all transports.
//
// The dispatcher validates a request, resolves the speaker's source tiers to
// audio, measures the audio and derives the lip-sync timeline. Transports only
// decode requests and encode responses.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/lipsync"
	"github.com/nadzzz/avatarvoice/internal/message"
	"github.com/nadzzz/avatarvoice/internal/speaker"
	"github.com/nadzzz/avatarvoice/internal/tts"
	"github.com/nadzzz/avatarvoice/internal/viseme"
)

// Options are the request limits.
type Options struct {
	DefaultSpeaker string
	MaxTextChars   int
}

// Dispatcher is the central synthesis engine.
type Dispatcher struct {
	speakers     *speaker.Registry
	materializer *tts.Materializer
	opts         Options
}

// New creates a new Dispatcher.
func New(speakers *speaker.Registry, m *tts.Materializer, opts Options) *Dispatcher {
	if opts.MaxTextChars <= 0 {
		opts.MaxTextChars = 2000
	}
	return &Dispatcher{speakers: speakers, materializer: m, opts: opts}
}

// Validate checks a request and returns the speaker profile it addresses.
// Checks run in a fixed order: text presence, text length, speaker, format.
func (d *Dispatcher) Validate(req *message.SynthesisRequest) (*speaker.Profile, error) {
	const op = "dispatch.validate"

	if strings.TrimSpace(req.Text) == "" {
		return nil, errs.Input(errs.CodeUnprocessable, op, "field 'text' is required and must be a non-empty string")
	}
	if n := utf8.RuneCountInString(req.Text); n > d.opts.MaxTextChars {
		return nil, errs.Input(errs.CodeTooLarge, op,
			fmt.Sprintf("text exceeds maximum allowed length of %d characters", d.opts.MaxTextChars))
	}

	id := strings.ToLower(strings.TrimSpace(req.Speaker))
	if id == "" {
		id = d.opts.DefaultSpeaker
	}
	p, ok := d.speakers.Lookup(id)
	if !ok {
		return nil, errs.Input(errs.CodeUnprocessable, op, "unsupported speaker", d.speakers.IDs()...)
	}

	if f := strings.ToLower(strings.TrimSpace(req.Format)); f != "" && f != message.FormatWAV {
		return nil, errs.Input(errs.CodeUnsupportedMedia, op, "unsupported format", message.FormatWAV)
	}

	return p, nil
}

// Handle processes a single request through the full pipeline.
func (d *Dispatcher) Handle(ctx context.Context, req *message.SynthesisRequest) (*message.SynthesisResponse, error) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := slog.With("request_id", requestID)

	// Step 1: Validate.
	profile, err := d.Validate(req)
	if err != nil {
		logger.Info("request rejected", "error", err)
		return nil, err
	}
	logger = logger.With("speaker", profile.ID())
	logger.Info("synthesis started", "text_length", len(req.Text), "include_phonemes", req.IncludePhonemes)

	// Step 2: Resolve the speaker's tiers to audio.
	sel, err := d.materializer.Resolve(ctx, profile, req.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Error("no tier produced audio", "error", err)
		return nil, errs.Wrap(errs.KindInternal, "dispatch.handle", "resolving audio", err)
	}
	audio := sel.Value
	logger = logger.With("tier", sel.Tier, "engine", audio.Engine)

	resp := &message.SynthesisResponse{
		RequestID:         requestID,
		AudioFormat:       message.FormatWAV,
		Duration:          audio.Duration(),
		DurationEstimated: audio.Estimated,
		SampleRate:        audio.Format.SampleRate,
		Speaker:           profile.ID(),
		Text:              req.Text,
		Engine:            audio.Engine,
	}
	resp.SetAudioBytes(audio.Audio)

	// Step 3: Derive the timeline from the measured duration.
	if req.IncludePhonemes {
		resp.Phonemes = lipsync.Build(req.Text, resp.Duration)
	}

	logger.Info("synthesis complete",
		"duration", resp.Duration,
		"estimated", resp.DurationEstimated,
		"audio_bytes", len(audio.Audio),
		"skipped_tiers", len(sel.Attempts),
		"elapsed", time.Since(start))

	return resp, nil
}

// Voices reports every speaker with its tier availability.
func (d *Dispatcher) Voices() []message.VoiceInfo {
	ids := d.speakers.IDs()
	out := make([]message.VoiceInfo, 0, len(ids))
	for _, id := range ids {
		v, _ := d.Voice(id)
		out = append(out, v)
	}
	return out
}

// Voice reports one speaker's tier availability.
func (d *Dispatcher) Voice(id string) (message.VoiceInfo, error) {
	p, ok := d.speakers.Lookup(strings.ToLower(id))
	if !ok {
		return message.VoiceInfo{}, errs.Input(errs.CodeUnprocessable, "dispatch.voice", "unsupported speaker", d.speakers.IDs()...)
	}
	report := p.Report()
	for i, c := range p.Candidates() {
		report[i].Available = d.materializer.Valid(c)
	}
	return message.VoiceInfo{
		Speaker: p.ID(),
		Default: p.ID() == d.opts.DefaultSpeaker,
		Tiers:   report,
	}, nil
}

// Visemes returns the viseme vocabulary.
func (d *Dispatcher) Visemes() message.VisemeList {
	return message.VisemeList{Core: viseme.Core, Extended: viseme.Extended}
}

package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/speaker"
	"github.com/nadzzz/avatarvoice/internal/wav"
)

type fakeSynth struct {
	audio  []byte
	format wav.Format
	err    error
	block bool
	got   SynthesizeOpts
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error) {
	f.got = opts
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &SynthesizeResult{Audio: f.audio, Format: f.format}, nil
}

func (f *fakeSynth) Close() error { return nil }

// wavOf returns a mono 16-bit container holding seconds of silence at rate.
func wavOf(rate int, seconds float64) []byte {
	n := int(float64(rate) * seconds)
	return wav.Encode(make([]byte, n*2), wav.Format{SampleRate: rate, Channels: 1, BitsPerSample: 16})
}

func write(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestResolve_ToneOnly(t *testing.T) {
	m := &Materializer{}
	sel, err := m.Resolve(context.Background(), speaker.NewProfile("kelly", nil), "Hello world")
	require.NoError(t, err)

	assert.Equal(t, "synthetic_tone", sel.Tier)
	assert.Equal(t, "simple_generated", sel.Value.Engine)
	assert.False(t, sel.Value.Estimated)
	assert.InDelta(t, 1.0, sel.Value.Duration(), 1e-9)
	assert.Equal(t, 22050, sel.Value.Format.SampleRate)
}

func TestResolve_ReferenceFileDuration(t *testing.T) {
	dir := t.TempDir()
	ref := write(t, filepath.Join(dir, "ref.wav"), wavOf(16000, 2.5))

	m := &Materializer{}
	p := speaker.NewProfile("ken", []speaker.Candidate{
		{Kind: speaker.ReferenceFile, Path: ref},
	})

	sel, err := m.Resolve(context.Background(), p, "one two three")
	require.NoError(t, err)
	assert.Equal(t, 0, sel.Index)
	assert.Equal(t, "reference_file", sel.Value.Engine)
	assert.InDelta(t, 2.5, sel.Value.Duration(), 1e-9)
	assert.Equal(t, 16000, sel.Value.Format.SampleRate)
}

func TestMaterialize_UnparseableIsEstimated(t *testing.T) {
	dir := t.TempDir()
	bad := write(t, filepath.Join(dir, "bad.wav"), []byte("definitely not riff"))

	m := &Materializer{}
	res, err := m.Materialize(context.Background(), speaker.Candidate{Kind: speaker.FallbackFile, Path: bad}, "a b c")
	require.NoError(t, err)

	assert.True(t, res.Estimated)
	assert.InDelta(t, 1.5, res.Duration(), 1e-9)
	assert.Equal(t, []byte("definitely not riff"), res.Audio)
}

func TestMaterialize_SegmentDirectory(t *testing.T) {
	dir := t.TempDir()
	segs := filepath.Join(dir, "segments")
	write(t, filepath.Join(segs, "b.wav"), wavOf(8000, 1))
	write(t, filepath.Join(segs, "a.wav"), wavOf(8000, 0.25))
	write(t, filepath.Join(segs, "0_notes.txt"), []byte("skip me"))

	m := &Materializer{}
	res, err := m.Materialize(context.Background(), speaker.Candidate{Kind: speaker.SegmentDirectory, Path: segs}, "x")
	require.NoError(t, err)
	assert.Equal(t, "voice_segments", res.Engine)
	assert.InDelta(t, 0.25, res.Duration(), 1e-9)
}

func TestMaterialize_EmptySegmentDirectoryDescends(t *testing.T) {
	dir := t.TempDir()
	segs := filepath.Join(dir, "segments")
	require.NoError(t, os.Mkdir(segs, 0o755))
	fallback := write(t, filepath.Join(dir, "fallback.wav"), wavOf(22050, 1))

	m := &Materializer{}
	_, err := m.Materialize(context.Background(), speaker.Candidate{Kind: speaker.SegmentDirectory, Path: segs}, "x")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindExternalTool))

	p := speaker.NewProfile("kelly", []speaker.Candidate{
		{Kind: speaker.SegmentDirectory, Path: segs},
		{Kind: speaker.FallbackFile, Path: fallback},
	})
	sel, err := m.Resolve(context.Background(), p, "x")
	require.NoError(t, err)
	assert.Equal(t, "fallback_file", sel.Tier)
	require.Len(t, sel.Attempts, 1)
	assert.False(t, sel.Attempts[0].Skipped())
}

func TestResolve_TrainedModel(t *testing.T) {
	dir := t.TempDir()
	model := write(t, filepath.Join(dir, "kelly.onnx"), []byte("m"))
	conf := write(t, filepath.Join(dir, "kelly.json"), []byte("{}"))
	candidates := []speaker.Candidate{{Kind: speaker.TrainedModel, ModelPath: model, ConfigPath: conf}}

	t.Run("disabled without engine", func(t *testing.T) {
		m := &Materializer{}
		sel, err := m.Resolve(context.Background(), speaker.NewProfile("kelly", candidates), "hi")
		require.NoError(t, err)
		assert.Equal(t, "synthetic_tone", sel.Tier)
		assert.True(t, sel.Attempts[0].Skipped())
	})

	t.Run("engine output used", func(t *testing.T) {
		fake := &fakeSynth{audio: wavOf(22050, 0.75)}
		m := &Materializer{Model: fake}
		sel, err := m.Resolve(context.Background(), speaker.NewProfile("kelly", candidates), "hi")
		require.NoError(t, err)
		assert.Equal(t, "piper_custom", sel.Value.Engine)
		assert.InDelta(t, 0.75, sel.Value.Duration(), 1e-9)
		assert.Equal(t, SynthesizeOpts{Model: model, Config: conf}, fake.got)
	})

	t.Run("container wins over announced format", func(t *testing.T) {
		announced := wav.Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16}
		m := &Materializer{Model: &fakeSynth{audio: wavOf(22050, 0.5), format: announced}}
		sel, err := m.Resolve(context.Background(), speaker.NewProfile("kelly", candidates), "hi")
		require.NoError(t, err)
		assert.Equal(t, "piper_custom", sel.Value.Engine)
		assert.Equal(t, wav.Format{SampleRate: 22050, Channels: 1, BitsPerSample: 16}, sel.Value.Format)
		assert.InDelta(t, 0.5, sel.Value.Duration(), 1e-9)
	})

	t.Run("engine failure descends", func(t *testing.T) {
		m := &Materializer{Model: &fakeSynth{err: errors.New("exit status 1")}}
		sel, err := m.Resolve(context.Background(), speaker.NewProfile("kelly", candidates), "hi")
		require.NoError(t, err)
		assert.Equal(t, "synthetic_tone", sel.Tier)
		require.Len(t, sel.Attempts, 1)
		assert.True(t, errs.IsKind(sel.Attempts[0].Err, errs.KindExternalTool))
	})

	t.Run("empty output descends", func(t *testing.T) {
		m := &Materializer{Model: &fakeSynth{}}
		sel, err := m.Resolve(context.Background(), speaker.NewProfile("kelly", candidates), "hi")
		require.NoError(t, err)
		assert.Equal(t, "synthetic_tone", sel.Tier)
	})

	t.Run("timeout descends", func(t *testing.T) {
		m := &Materializer{Model: &fakeSynth{block: true}, ToolTimeout: 20 * time.Millisecond}
		sel, err := m.Resolve(context.Background(), speaker.NewProfile("kelly", candidates), "hi")
		require.NoError(t, err)
		assert.Equal(t, "synthetic_tone", sel.Tier)
	})
}

func TestResolve_StockVoice(t *testing.T) {
	fake := &fakeSynth{audio: wavOf(22050, 0.5)}
	m := &Materializer{Stock: fake}
	p := speaker.NewProfile("ken", []speaker.Candidate{
		{Kind: speaker.StockVoice, Voice: "en_US-ryan-medium", Endpoint: "piper:10200"},
	})

	sel, err := m.Resolve(context.Background(), p, "hello")
	require.NoError(t, err)
	assert.Equal(t, "piper_fallback", sel.Value.Engine)
	assert.Equal(t, "en_US-ryan-medium", fake.got.Voice)
}

func TestResolve_CancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Materializer{}
	_, err := m.Resolve(ctx, speaker.NewProfile("kelly", nil), "hi")
	assert.ErrorIs(t, err, context.Canceled)
}

package speaker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/avatarvoice/internal/config"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestCandidate_Available(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "model.onnx"))
	touch(t, filepath.Join(dir, "model.json"))
	touch(t, filepath.Join(dir, "ref.wav"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "segments"), 0o755))

	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"model present", Candidate{Kind: TrainedModel, ModelPath: filepath.Join(dir, "model.onnx"), ConfigPath: filepath.Join(dir, "model.json")}, true},
		{"model without config", Candidate{Kind: TrainedModel, ModelPath: filepath.Join(dir, "model.onnx"), ConfigPath: filepath.Join(dir, "missing.json")}, false},
		{"reference present", Candidate{Kind: ReferenceFile, Path: filepath.Join(dir, "ref.wav")}, true},
		{"reference is a directory", Candidate{Kind: ReferenceFile, Path: filepath.Join(dir, "segments")}, false},
		{"fallback missing", Candidate{Kind: FallbackFile, Path: filepath.Join(dir, "nope.wav")}, false},
		{"segments present", Candidate{Kind: SegmentDirectory, Path: filepath.Join(dir, "segments")}, true},
		{"segments is a file", Candidate{Kind: SegmentDirectory, Path: filepath.Join(dir, "ref.wav")}, false},
		{"stock voice with endpoint", Candidate{Kind: StockVoice, Voice: "en_US-amy-medium", Endpoint: "localhost:10200"}, true},
		{"stock voice without endpoint", Candidate{Kind: StockVoice, Voice: "en_US-amy-medium"}, false},
		{"tone", Candidate{Kind: SyntheticTone}, true},
		{"unknown", Candidate{Kind: "mystery"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Available())
		})
	}
}

func TestNewProfile_AppendsTone(t *testing.T) {
	p := NewProfile("kelly", []Candidate{{Kind: ReferenceFile, Path: "/x.wav"}})
	cs := p.Candidates()
	require.Len(t, cs, 2)
	assert.Equal(t, SyntheticTone, cs[1].Kind)

	// Already terminated lists are left alone.
	p = NewProfile("ken", []Candidate{{Kind: SyntheticTone}})
	assert.Len(t, p.Candidates(), 1)

	p = NewProfile("empty", nil)
	assert.Equal(t, []Candidate{{Kind: SyntheticTone}}, p.Candidates())
}

func TestProfile_CandidatesIsACopy(t *testing.T) {
	p := NewProfile("kelly", []Candidate{{Kind: ReferenceFile, Path: "/a.wav"}})
	cs := p.Candidates()
	cs[0].Path = "/changed.wav"
	assert.Equal(t, "/a.wav", p.Candidates()[0].Path)
}

func TestFromConfig(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "dist/reference_kelly.wav"))

	cfg := &config.Config{
		TTS:      config.TTSConfig{BaseDir: base, Piper: config.PiperConfig{Endpoint: "piper:10200"}},
		Speakers: config.DefaultSpeakers(),
	}

	reg, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"ken", "kelly"}, reg.IDs())

	kelly, ok := reg.Lookup("kelly")
	require.True(t, ok)
	report := kelly.Report()
	require.Len(t, report, 6)

	assert.Equal(t, "piper_custom", report[0].Engine)
	assert.False(t, report[0].Available)
	assert.Equal(t, "reference_file", report[1].Engine)
	assert.True(t, report[1].Available)
	assert.Equal(t, filepath.Join(base, "dist/reference_kelly.wav"), report[1].Source)
	assert.Equal(t, "piper_fallback", report[4].Engine)
	assert.Equal(t, "en_US-amy-medium", report[4].Source)
	assert.True(t, report[4].Available)
	assert.Equal(t, "simple_generated", report[5].Engine)

	_, ok = reg.Lookup("bob")
	assert.False(t, ok)
}

func TestFromConfig_UnknownType(t *testing.T) {
	cfg := &config.Config{Speakers: map[string]config.SpeakerConfig{
		"kelly": {Tiers: []config.TierConfig{{Type: "cassette"}}},
	}}
	_, err := FromConfig(cfg)
	assert.ErrorContains(t, err, "cassette")
}

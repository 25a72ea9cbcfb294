package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Point at an empty directory so no config file is found.
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.HealthPort)
	assert.True(t, cfg.Transports.HTTP.Enabled)
	assert.Equal(t, 8080, cfg.Transports.HTTP.Port)
	assert.False(t, cfg.Transports.GRPC.Enabled)
	assert.Equal(t, 2000, cfg.TTS.MaxTextChars)
	assert.Equal(t, 30*time.Second, cfg.TTS.ToolTimeout)
	assert.Equal(t, "kelly", cfg.TTS.DefaultSpeaker)
	assert.Equal(t, "piper", cfg.TTS.Piper.Binary)

	require.Contains(t, cfg.Speakers, "kelly")
	require.Contains(t, cfg.Speakers, "ken")
	assert.Len(t, cfg.Speakers["kelly"].Tiers, 6)
	assert.Equal(t, "en_US-ryan-medium", cfg.Speakers["ken"].Tiers[4].Voice)

	assert.Equal(t, 365, cfg.Frames.Avatars["kelly"].Target)
	assert.Equal(t, 347, cfg.Frames.Avatars["ken"].Target)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tts:
  default_speaker: ken
  tool_timeout: 5s
  piper:
    endpoint: ${PIPER_ADDR}
speakers:
  ken:
    tiers:
      - type: reference_file
        path: voices/ken.wav
      - type: synthetic_tone
frames:
  avatars:
    ken:
      target: 100
logging:
  level: debug
  format: text
`), 0o644))

	t.Setenv("AVATARVOICE_TTS_MAX_TEXT_CHARS", "500")
	t.Setenv("PIPER_ADDR", "piper.local:10200")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.TTS.MaxTextChars)
	assert.Equal(t, 5*time.Second, cfg.TTS.ToolTimeout)
	assert.Equal(t, "piper.local:10200", cfg.TTS.Piper.Endpoint)
	assert.Equal(t, "ken", cfg.TTS.DefaultSpeaker)

	require.Len(t, cfg.Speakers, 1)
	assert.Equal(t, []TierConfig{
		{Type: "reference_file", Path: "voices/ken.wav"},
		{Type: "synthetic_tone"},
	}, cfg.Speakers["ken"].Tiers)

	assert.Equal(t, map[string]AvatarConfig{"ken": {Target: 100}}, cfg.Frames.Avatars)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AVATARVOICE_TRANSPORTS_GRPC_ENABLED=true\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("AVATARVOICE_TRANSPORTS_GRPC_ENABLED") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Transports.GRPC.Enabled)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			TTS:      TTSConfig{MaxTextChars: 2000, DefaultSpeaker: "kelly"},
			Speakers: DefaultSpeakers(),
			Frames:   FramesConfig{Avatars: DefaultAvatars()},
		}
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero max chars", func(c *Config) { c.TTS.MaxTextChars = 0 }, "max_text_chars"},
		{"unknown default speaker", func(c *Config) { c.TTS.DefaultSpeaker = "bob" }, "default_speaker"},
		{"tier without type", func(c *Config) {
			c.Speakers["kelly"] = SpeakerConfig{Tiers: []TierConfig{{Path: "x.wav"}}}
		}, "missing type"},
		{"target below two", func(c *Config) { c.Frames.Avatars["ken"] = AvatarConfig{Target: 1} }, "target"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("VOICE_ROOT", "/srv/voices")
	assert.Equal(t, "/srv/voices", resolveEnvRef("${VOICE_ROOT}"))
	assert.Equal(t, "${UNSET_VAR_XYZ}", resolveEnvRef("${UNSET_VAR_XYZ}"))
	assert.Equal(t, "plain", resolveEnvRef("plain"))
}

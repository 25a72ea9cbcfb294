// Package config handles loading and validating the avatarvoice configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration shared by the daemon and the offline tools.
type Config struct {
	Server     ServerConfig             `mapstructure:"server"`
	Transports TransportsConfig         `mapstructure:"transports"`
	TTS        TTSConfig                `mapstructure:"tts"`
	Speakers   map[string]SpeakerConfig `mapstructure:"speakers"`
	Frames     FramesConfig             `mapstructure:"frames"`
	Logging    LoggingConfig            `mapstructure:"logging"`
}

// ServerConfig holds the health and metrics server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Enabled      bool  `mapstructure:"enabled"`
	Port         int   `mapstructure:"port"`
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// TTSConfig configures request validation and the external synthesis engines.
type TTSConfig struct {
	// BaseDir is the directory relative tier paths are resolved against.
	BaseDir        string        `mapstructure:"base_dir"`
	MaxTextChars   int           `mapstructure:"max_text_chars"`
	DefaultSpeaker string        `mapstructure:"default_speaker"`
	ToolTimeout    time.Duration `mapstructure:"tool_timeout"`
	Piper          PiperConfig   `mapstructure:"piper"`
}

// PiperConfig holds the Piper engine settings.
//
// Binary is the piper CLI used for trained model tiers. Endpoint is a Wyoming
// TCP endpoint (host:port) used for stock voice tiers; leave it empty to make
// stock voice tiers unavailable.
type PiperConfig struct {
	Binary   string `mapstructure:"binary"`
	Endpoint string `mapstructure:"endpoint"`
	TempDir  string `mapstructure:"temp_dir"`
}

// SpeakerConfig lists a speaker's source tiers in priority order.
type SpeakerConfig struct {
	Tiers []TierConfig `mapstructure:"tiers"`
}

// TierConfig describes one source candidate. Which fields are used depends on Type:
//
//	trained_model      model_path, config_path
//	reference_file     path
//	segment_directory  path
//	fallback_file      path
//	stock_voice        voice
//	synthetic_tone     (none)
type TierConfig struct {
	Type       string `mapstructure:"type"`
	ModelPath  string `mapstructure:"model_path"`
	ConfigPath string `mapstructure:"config_path"`
	Path       string `mapstructure:"path"`
	Voice      string `mapstructure:"voice"`
}

// FramesConfig configures the offline frame reduction and viseme manifest tools.
type FramesConfig struct {
	AssetsDir string                  `mapstructure:"assets_dir"`
	Debounce  time.Duration           `mapstructure:"debounce"`
	Avatars   map[string]AvatarConfig `mapstructure:"avatars"`
}

// AvatarConfig holds the per-avatar frame budget.
type AvatarConfig struct {
	Target int `mapstructure:"target"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// DefaultSpeakers mirrors the voice layout the service was first deployed with.
func DefaultSpeakers() map[string]SpeakerConfig {
	return map[string]SpeakerConfig{
		"kelly": {Tiers: []TierConfig{
			{Type: "trained_model", ModelPath: "dist/configs/kelly_model.onnx", ConfigPath: "dist/configs/kelly_config.json"},
			{Type: "reference_file", Path: "dist/reference_kelly.wav"},
			{Type: "segment_directory", Path: "dist/data/kelly/segments"},
			{Type: "fallback_file", Path: "production-deploy/kelly_test.wav"},
			{Type: "stock_voice", Voice: "en_US-amy-medium"},
			{Type: "synthetic_tone"},
		}},
		"ken": {Tiers: []TierConfig{
			{Type: "trained_model", ModelPath: "dist/configs/ken_model.onnx", ConfigPath: "dist/configs/ken_config.json"},
			{Type: "reference_file", Path: "dist/reference_ken_mono16k.wav"},
			{Type: "segment_directory", Path: "dist/data/ken/segments"},
			{Type: "fallback_file", Path: "production-deploy/test_ken_voice.wav"},
			{Type: "stock_voice", Voice: "en_US-ryan-medium"},
			{Type: "synthetic_tone"},
		}},
	}
}

// DefaultAvatars holds the animation frame budgets per avatar.
func DefaultAvatars() map[string]AvatarConfig {
	return map[string]AvatarConfig{
		"kelly": {Target: 365},
		"ken":   {Target: 347},
	}
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./avatarvoice.yaml, ./configs/avatarvoice.yaml, /etc/avatarvoice/avatarvoice.yaml.
// A .env file in the working directory is loaded into the environment first.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.http.max_body_bytes", 1<<20)
	v.SetDefault("tts.base_dir", ".")
	v.SetDefault("tts.max_text_chars", 2000)
	v.SetDefault("tts.default_speaker", "kelly")
	v.SetDefault("tts.tool_timeout", 30*time.Second)
	v.SetDefault("tts.piper.binary", "piper")
	v.SetDefault("tts.piper.endpoint", "")
	v.SetDefault("tts.piper.temp_dir", "")
	v.SetDefault("frames.assets_dir", "production-deploy/assets/avatars")
	v.SetDefault("frames.debounce", 2*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("avatarvoice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/avatarvoice")
	}

	// Environment variables: AVATARVOICE_TTS_MAX_TEXT_CHARS, AVATARVOICE_TTS_PIPER_ENDPOINT, etc.
	v.SetEnvPrefix("AVATARVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if len(cfg.Speakers) == 0 {
		cfg.Speakers = DefaultSpeakers()
	}
	if len(cfg.Frames.Avatars) == 0 {
		cfg.Frames.Avatars = DefaultAvatars()
	}

	// Resolve env var references in path fields (e.g., "${VOICE_ROOT}")
	cfg.TTS.BaseDir = resolveEnvRef(cfg.TTS.BaseDir)
	cfg.TTS.Piper.Endpoint = resolveEnvRef(cfg.TTS.Piper.Endpoint)
	cfg.Frames.AssetsDir = resolveEnvRef(cfg.Frames.AssetsDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-field constraints viper cannot express.
func (c *Config) Validate() error {
	if c.TTS.MaxTextChars <= 0 {
		return fmt.Errorf("tts.max_text_chars must be positive, got %d", c.TTS.MaxTextChars)
	}
	if _, ok := c.Speakers[c.TTS.DefaultSpeaker]; !ok {
		return fmt.Errorf("tts.default_speaker %q is not a configured speaker", c.TTS.DefaultSpeaker)
	}
	for id, sp := range c.Speakers {
		for i, tier := range sp.Tiers {
			if tier.Type == "" {
				return fmt.Errorf("speakers.%s.tiers[%d]: missing type", id, i)
			}
		}
	}
	for name, a := range c.Frames.Avatars {
		if a.Target < 2 {
			return fmt.Errorf("frames.avatars.%s.target must be at least 2, got %d", name, a.Target)
		}
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

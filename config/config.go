// Package config loads voxy settings: defaults, then an optional YAML
// file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voxy/hotkey"
	"voxy/inject"
	"voxy/transcriber"
)

var ErrMissingAPIKey = errors.New("no API key configured (set OPENAI_API_KEY)")

type AudioConfig struct {
	Device           string  `yaml:"device"`
	SampleRate       int     `yaml:"sample_rate"`
	Channels         int     `yaml:"channels"`
	SilenceThreshold float64 `yaml:"silence_threshold"`
	SilenceStopS     float64 `yaml:"silence_stop_s"`
}

type TranscriptionConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	TimeoutS   int    `yaml:"timeout_s"`
	MaxRetries int    `yaml:"max_retries"`
}

type InjectConfig struct {
	Mode           string `yaml:"mode"`
	KeyIntervalMS  int    `yaml:"key_interval_ms"`
	RestoreAfterMS int    `yaml:"restore_after_ms"`
}

type Config struct {
	Hotkey        string              `yaml:"hotkey"`
	PushToTalk    bool                `yaml:"push_to_talk"`
	Cues          bool                `yaml:"cues"`
	Overlay       string              `yaml:"overlay"`
	LogLevel      string              `yaml:"log_level"`
	TempDir       string              `yaml:"temp_dir"`
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Inject        InjectConfig        `yaml:"inject"`
}

func Default() Config {
	return Config{
		Hotkey:   "alt+shift+s",
		Cues:     true,
		Overlay:  "tui",
		LogLevel: "info",
		TempDir:  "_temp",
		Audio: AudioConfig{
			SampleRate:       44100,
			Channels:         1,
			SilenceThreshold: 50,
			SilenceStopS:     1.5,
		},
		Transcription: TranscriptionConfig{
			Provider:   "openai",
			Language:   "en",
			TimeoutS:   60,
			MaxRetries: 0,
		},
		Inject: InjectConfig{
			Mode:           "paste",
			KeyIntervalMS:  10,
			RestoreAfterMS: 600,
		},
	}
}

// DefaultPath is where Load looks when neither a path nor VOXY_CONFIG is
// given. A missing file there is not an error.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "voxy", "config.yaml")
}

// Load builds the configuration and validates it. When validation fails the
// returned Config is still populated, so callers may choose to tolerate
// ErrMissingAPIKey.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := true
	if path == "" {
		path = os.Getenv("VOXY_CONFIG")
	}
	if path == "" {
		path = DefaultPath()
		explicit = false
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
		case os.IsNotExist(err):
			return cfg, fmt.Errorf("config file not found: %w", err)
		default:
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Hotkey, "VOXY_HOTKEY")
	overrideBool(&cfg.PushToTalk, "VOXY_PUSH_TO_TALK")
	overrideBool(&cfg.Cues, "VOXY_CUES")
	overrideString(&cfg.Overlay, "VOXY_OVERLAY")
	overrideString(&cfg.LogLevel, "VOXY_LOG_LEVEL")
	overrideString(&cfg.TempDir, "VOXY_TEMP_DIR")
	overrideString(&cfg.Audio.Device, "VOXY_DEVICE")
	overrideFloat(&cfg.Audio.SilenceThreshold, "VOXY_SILENCE_THRESHOLD")
	overrideFloat(&cfg.Audio.SilenceStopS, "VOXY_SILENCE_STOP")
	overrideString(&cfg.Transcription.Provider, "VOXY_PROVIDER")
	overrideString(&cfg.Transcription.APIKey, "OPENAI_API_KEY")
	if cfg.Transcription.Provider == "groq" {
		overrideString(&cfg.Transcription.APIKey, "GROQ_API_KEY")
	}
	overrideString(&cfg.Transcription.BaseURL, "OPENAI_BASE_URL")
	overrideString(&cfg.Transcription.Model, "OPENAI_MODEL")
	overrideString(&cfg.Transcription.Language, "VOXY_LANGUAGE")
	overrideString(&cfg.Inject.Mode, "VOXY_INJECT_MODE")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

// Validate checks every setting. ErrMissingAPIKey is reported only once
// everything else is valid.
func (c Config) Validate() error {
	if _, err := hotkey.ParseCombo(c.Hotkey); err != nil {
		return err
	}
	switch c.Overlay {
	case "tui", "gui", "none":
	default:
		return errors.New("overlay must be one of tui|gui|none")
	}
	if !slices.Contains(transcriber.Providers(), c.Transcription.Provider) {
		return fmt.Errorf("transcription.provider must be one of %s", strings.Join(transcriber.Providers(), "|"))
	}
	if _, err := inject.ParseMode(c.Inject.Mode); err != nil {
		return err
	}
	if c.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		return errors.New("audio.channels must be 1 or 2")
	}
	if c.Audio.SilenceThreshold < 0 {
		return errors.New("audio.silence_threshold must be >= 0")
	}
	if c.Audio.SilenceStopS <= 0 {
		return errors.New("audio.silence_stop_s must be positive")
	}
	if c.Transcription.TimeoutS <= 0 {
		return errors.New("transcription.timeout_s must be positive")
	}
	if c.Transcription.MaxRetries < 0 {
		return errors.New("transcription.max_retries must be >= 0")
	}
	if c.Inject.KeyIntervalMS < 0 || c.Inject.RestoreAfterMS < 0 {
		return errors.New("inject intervals must be >= 0")
	}
	if c.TempDir == "" {
		return errors.New("temp_dir must not be empty")
	}
	if c.Transcription.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (c Config) SilenceStop() time.Duration {
	return time.Duration(c.Audio.SilenceStopS * float64(time.Second))
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.Transcription.TimeoutS) * time.Second
}

func (c Config) KeyInterval() time.Duration {
	return time.Duration(c.Inject.KeyIntervalMS) * time.Millisecond
}

func (c Config) RestoreAfter() time.Duration {
	return time.Duration(c.Inject.RestoreAfterMS) * time.Millisecond
}

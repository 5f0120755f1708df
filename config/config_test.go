package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"VOXY_CONFIG", "VOXY_HOTKEY", "VOXY_PUSH_TO_TALK", "VOXY_CUES", "VOXY_OVERLAY", "VOXY_LOG_LEVEL",
	"VOXY_TEMP_DIR", "VOXY_DEVICE", "VOXY_SILENCE_THRESHOLD", "VOXY_SILENCE_STOP",
	"VOXY_PROVIDER", "OPENAI_API_KEY", "GROQ_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
	"VOXY_LANGUAGE", "VOXY_INJECT_MODE",
}

// isolate hides the caller's environment and config directory.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	if cfg.Hotkey != "alt+shift+s" || cfg.Transcription.Language != "en" || cfg.TempDir != "_temp" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.SilenceStop() != 1500*time.Millisecond {
		t.Errorf("SilenceStop() = %v", cfg.SilenceStop())
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("VOXY_HOTKEY", "ctrl+shift+space")
	t.Setenv("VOXY_PUSH_TO_TALK", "true")
	t.Setenv("VOXY_CUES", "false")
	t.Setenv("VOXY_OVERLAY", "none")
	t.Setenv("VOXY_SILENCE_THRESHOLD", "120")
	t.Setenv("VOXY_SILENCE_STOP", "0.75")
	t.Setenv("VOXY_DEVICE", "USB")
	t.Setenv("OPENAI_MODEL", "gpt-4o-transcribe")
	t.Setenv("VOXY_LANGUAGE", "de")
	t.Setenv("VOXY_INJECT_MODE", "stdout")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transcription.APIKey != "sk-test" || cfg.Hotkey != "ctrl+shift+space" || !cfg.PushToTalk || cfg.Cues {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Audio.SilenceThreshold != 120 || cfg.SilenceStop() != 750*time.Millisecond {
		t.Errorf("silence overrides: %+v", cfg.Audio)
	}
	if cfg.Audio.Device != "USB" || cfg.Transcription.Model != "gpt-4o-transcribe" ||
		cfg.Transcription.Language != "de" || cfg.Inject.Mode != "stdout" || cfg.Overlay != "none" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestGroqKey(t *testing.T) {
	isolate(t)
	t.Setenv("VOXY_PROVIDER", "groq")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("GROQ_API_KEY", "gsk-groq")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transcription.APIKey != "gsk-groq" {
		t.Errorf("APIKey = %q, want the groq key", cfg.Transcription.APIKey)
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "voxy.yaml")
	data := []byte(`
hotkey: ctrl+alt+f9
audio:
  silence_threshold: 80
transcription:
  api_key: from-file
  language: fr
inject:
  mode: type
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOXY_LANGUAGE", "es")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hotkey != "ctrl+alt+f9" || cfg.Audio.SilenceThreshold != 80 || cfg.Inject.Mode != "type" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("unset field lost its default: %d", cfg.Audio.SampleRate)
	}
	if cfg.Transcription.Language != "es" {
		t.Errorf("env should win over file, got %q", cfg.Transcription.Language)
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("overlay: gui\ntranscription:\n  api_key: k\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOXY_CONFIG", path)
	cfg, err := Load("")
	if err != nil || cfg.Overlay != "gui" {
		t.Fatalf("Load = %+v, %v", cfg, err)
	}
}

func TestLoadErrors(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for explicit missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("audio: [unclosed"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Transcription.APIKey = "k"
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"hotkey", func(c *Config) { c.Hotkey = "s" }},
		{"overlay", func(c *Config) { c.Overlay = "hologram" }},
		{"provider", func(c *Config) { c.Transcription.Provider = "carrier-pigeon" }},
		{"inject mode", func(c *Config) { c.Inject.Mode = "telepathy" }},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"channels", func(c *Config) { c.Audio.Channels = 6 }},
		{"threshold", func(c *Config) { c.Audio.SilenceThreshold = -1 }},
		{"silence stop", func(c *Config) { c.Audio.SilenceStopS = 0 }},
		{"timeout", func(c *Config) { c.Transcription.TimeoutS = 0 }},
		{"temp dir", func(c *Config) { c.TempDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || errors.Is(err, ErrMissingAPIKey) {
				t.Errorf("Validate() = %v, want a range error", err)
			}
		})
	}
}

func TestMissingKeyReportedLast(t *testing.T) {
	cfg := Default()
	cfg.Overlay = "bogus"
	if err := cfg.Validate(); errors.Is(err, ErrMissingAPIKey) {
		t.Error("missing key reported before an invalid overlay")
	}
}

package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Engine.LangCode != "a" {
		t.Fatalf("expected default lang code 'a', got %q", cfg.Engine.LangCode)
	}
	if cfg.Engine.DefaultVoice != "af_heart" {
		t.Fatalf("expected default voice af_heart, got %q", cfg.Engine.DefaultVoice)
	}
	if cfg.Engine.DefaultSpeed != 1.0 {
		t.Fatalf("expected default speed 1.0, got %v", cfg.Engine.DefaultSpeed)
	}
	if cfg.Engine.SplitPattern != `\n+` {
		t.Fatalf("expected default split pattern, got %q", cfg.Engine.SplitPattern)
	}
	if cfg.Engine.SampleRate != 24000 {
		t.Fatalf("expected default sample rate 24000, got %d", cfg.Engine.SampleRate)
	}
	if len(cfg.Engine.VoicesExtra) != 0 {
		t.Fatalf("expected no extra voices, got %v", cfg.Engine.VoicesExtra)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LANG_CODE", "b")
	t.Setenv("DEFAULT_VOICE", "bf_emma")
	t.Setenv("DEFAULT_SPEED", "1.25")
	t.Setenv("SPLIT_PATTERN", `[.!?]+`)
	t.Setenv("SAMPLE_RATE", "22050")
	t.Setenv("VOICES_EXTRA", "af_bella, am_adam")
	t.Setenv("KOKORO_HTTP_PORT", "9090")
	t.Setenv("KOKORO_ENGINE_MODE", "mock")
	t.Setenv("KOKORO_HISTORY_ENABLED", "true")
	t.Setenv("KOKORO_HISTORY_MAX_REQUESTS", "42")
	t.Setenv("KOKORO_BUS_SERVERS", "nats://one:4222, nats://two:4222")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Engine.LangCode != "b" {
		t.Fatalf("expected lang code override, got %q", cfg.Engine.LangCode)
	}
	if cfg.Engine.DefaultVoice != "bf_emma" {
		t.Fatalf("expected voice override, got %q", cfg.Engine.DefaultVoice)
	}
	if cfg.Engine.DefaultSpeed != 1.25 {
		t.Fatalf("expected speed override, got %v", cfg.Engine.DefaultSpeed)
	}
	if cfg.Engine.SplitPattern != `[.!?]+` {
		t.Fatalf("expected split pattern override, got %q", cfg.Engine.SplitPattern)
	}
	if cfg.Engine.SampleRate != 22050 {
		t.Fatalf("expected sample rate override, got %d", cfg.Engine.SampleRate)
	}
	if !reflect.DeepEqual(cfg.Engine.VoicesExtra, []string{"af_bella", "am_adam"}) {
		t.Fatalf("expected extra voices override, got %v", cfg.Engine.VoicesExtra)
	}
	if cfg.HTTP.Port != 9090 {
		t.Fatalf("expected port override, got %d", cfg.HTTP.Port)
	}
	if cfg.Engine.Mode != "mock" {
		t.Fatalf("expected engine mode override, got %q", cfg.Engine.Mode)
	}
	if !cfg.History.Enabled || cfg.History.MaxRequests != 42 {
		t.Fatalf("expected history overrides, got %+v", cfg.History)
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 bus servers, got %v", cfg.Bus.Servers)
	}
}

func TestMalformedNumericEnvIsFatal(t *testing.T) {
	cases := map[string]string{
		"SAMPLE_RATE":      "fast",
		"DEFAULT_SPEED":    "1.x",
		"KOKORO_HTTP_PORT": "eighty",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	mutate := func(f func(*Config)) Config {
		cfg := Default()
		cfg.Engine.Mode = "mock"
		f(&cfg)
		return cfg
	}

	cases := []struct {
		name string
		cfg  Config
	}{
		{"negative speed", mutate(func(c *Config) { c.Engine.DefaultSpeed = -1 })},
		{"zero sample rate", mutate(func(c *Config) { c.Engine.SampleRate = 0 })},
		{"bad port", mutate(func(c *Config) { c.HTTP.Port = 70000 })},
		{"bad mode", mutate(func(c *Config) { c.Engine.Mode = "remote" })},
		{"exec without command", mutate(func(c *Config) { c.Engine.Mode = "exec"; c.Engine.Command = "" })},
		{"bad split pattern", mutate(func(c *Config) { c.Engine.SplitPattern = "[" })},
		{"empty lang code", mutate(func(c *Config) { c.Engine.LangCode = "" })},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validate(tc.cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestVoicesMergedSortedDeduplicated(t *testing.T) {
	e := EngineConfig{
		DefaultVoice: "af_heart",
		VoicesExtra:  []string{"am_adam", "af_heart", " af_bella ", ""},
	}
	got := e.Voices()
	want := []string{"af_bella", "af_heart", "am_adam"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

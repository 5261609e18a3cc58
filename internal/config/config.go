package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// EngineConfig describes the external synthesis engine and the process-wide
// defaults applied when a request omits a field.
type EngineConfig struct {
	Mode         string   `yaml:"mode"` // mock, exec
	Command      string   `yaml:"command"`
	LangCode     string   `yaml:"lang_code"`
	DefaultVoice string   `yaml:"default_voice"`
	DefaultSpeed float64  `yaml:"default_speed"`
	SplitPattern string   `yaml:"split_pattern"`
	SampleRate   int      `yaml:"sample_rate"`
	Channels     int      `yaml:"channels"`
	VoicesExtra  []string `yaml:"voices_extra"`
	TimeoutMS    int      `yaml:"timeout_ms"`
}

type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRequests   int    `yaml:"max_requests"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Engine      EngineConfig    `yaml:"engine"`
	History     HistoryConfig   `yaml:"history"`
	Bus         BusConfig       `yaml:"bus"`
}

// Voices returns the informational voice list: the default voice merged with
// any configured extras, sorted and duplicate-free. It is display metadata,
// not an allow-list; requests may name voices outside it.
func (e EngineConfig) Voices() []string {
	seen := map[string]struct{}{}
	var voices []string
	for _, v := range append([]string{e.DefaultVoice}, e.VoicesExtra...) {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		voices = append(voices, v)
	}
	sort.Strings(voices)
	return voices
}

func Default() Config {
	return Config{
		ServiceName: "kokorod",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Engine: EngineConfig{
			Mode:         "mock",
			LangCode:     "a", // 'a' => American English
			DefaultVoice: "af_heart",
			DefaultSpeed: 1.0,
			SplitPattern: `\n+`,
			SampleRate:   24000,
			Channels:     1,
			TimeoutMS:    120000,
		},
		History: HistoryConfig{
			Enabled:       false,
			Path:          "./data/kokorod-history.db",
			RetentionDays: 30,
			MaxRequests:   10000,
		},
		Bus: BusConfig{
			Enabled:        false,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	overrideString(&cfg.ServiceName, "KOKORO_SERVICE_NAME")
	overrideString(&cfg.Environment, "KOKORO_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "KOKORO_HTTP_BIND")
	overrideString(&cfg.Telemetry.LogLevel, "KOKORO_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "KOKORO_TELEMETRY_OTLP_ENDPOINT")
	overrideString(&cfg.Engine.Mode, "KOKORO_ENGINE_MODE")
	overrideString(&cfg.Engine.Command, "KOKORO_ENGINE_COMMAND")
	overrideString(&cfg.History.Path, "KOKORO_HISTORY_PATH")
	overrideStringSlice(&cfg.Bus.Servers, "KOKORO_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "KOKORO_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "KOKORO_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "KOKORO_BUS_TOKEN")

	// Synthesis defaults keep the variable names the existing deployments use.
	overrideString(&cfg.Engine.LangCode, "LANG_CODE")
	overrideString(&cfg.Engine.DefaultVoice, "DEFAULT_VOICE")
	overrideString(&cfg.Engine.SplitPattern, "SPLIT_PATTERN")
	overrideStringSlice(&cfg.Engine.VoicesExtra, "VOICES_EXTRA")

	// A malformed numeric value is a fatal misconfiguration, never silently
	// replaced by the default.
	return errors.Join(
		overrideInt(&cfg.HTTP.Port, "KOKORO_HTTP_PORT"),
		overrideInt(&cfg.Engine.SampleRate, "SAMPLE_RATE"),
		overrideInt(&cfg.Engine.Channels, "KOKORO_ENGINE_CHANNELS"),
		overrideInt(&cfg.Engine.TimeoutMS, "KOKORO_ENGINE_TIMEOUT_MS"),
		overrideFloat(&cfg.Engine.DefaultSpeed, "DEFAULT_SPEED"),
		overrideBool(&cfg.Telemetry.OTLPInsecure, "KOKORO_TELEMETRY_OTLP_INSECURE"),
		overrideBool(&cfg.History.Enabled, "KOKORO_HISTORY_ENABLED"),
		overrideInt(&cfg.History.RetentionDays, "KOKORO_HISTORY_RETENTION_DAYS"),
		overrideInt(&cfg.History.MaxRequests, "KOKORO_HISTORY_MAX_REQUESTS"),
		overrideBool(&cfg.History.VacuumOnStart, "KOKORO_HISTORY_VACUUM_ON_START"),
		overrideBool(&cfg.Bus.Enabled, "KOKORO_BUS_ENABLED"),
		overrideBool(&cfg.Bus.TLSInsecure, "KOKORO_BUS_TLS_INSECURE"),
		overrideInt(&cfg.Bus.ConnectTimeout, "KOKORO_BUS_CONNECT_TIMEOUT_MS"),
	)
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) error {
	value, ok := os.LookupEnv(envKey)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", envKey, value)
	}
	*target = parsed
	return nil
}

func overrideFloat(target *float64, envKey string) error {
	value, ok := os.LookupEnv(envKey)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("%s: invalid float %q", envKey, value)
	}
	*target = parsed
	return nil
}

func overrideBool(target *bool, envKey string) error {
	value, ok := os.LookupEnv(envKey)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", envKey, value)
	}
	*target = parsed
	return nil
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Engine.Mode {
	case "mock", "exec":
	default:
		return errors.New("engine.mode must be one of mock|exec")
	}
	if cfg.Engine.Mode == "exec" && cfg.Engine.Command == "" {
		return errors.New("engine.command must be set when mode=exec")
	}
	if cfg.Engine.LangCode == "" {
		return errors.New("engine.lang_code must not be empty")
	}
	if cfg.Engine.DefaultVoice == "" {
		return errors.New("engine.default_voice must not be empty")
	}
	if cfg.Engine.DefaultSpeed <= 0 {
		return errors.New("engine.default_speed must be positive")
	}
	if cfg.Engine.SampleRate <= 0 {
		return errors.New("engine.sample_rate must be positive")
	}
	if cfg.Engine.Channels <= 0 {
		return errors.New("engine.channels must be positive")
	}
	if cfg.Engine.TimeoutMS <= 0 {
		return errors.New("engine.timeout_ms must be positive")
	}
	if _, err := regexp.Compile(cfg.Engine.SplitPattern); err != nil {
		return fmt.Errorf("engine.split_pattern is not a valid pattern: %w", err)
	}
	if cfg.History.Enabled {
		if cfg.History.Path == "" {
			return errors.New("history.path must not be empty when history is enabled")
		}
		if cfg.History.RetentionDays < 0 {
			return errors.New("history.retention_days must be >= 0")
		}
	}
	if cfg.Bus.Enabled && len(cfg.Bus.Servers) == 0 {
		return errors.New("bus.servers must not be empty when bus is enabled")
	}
	return nil
}

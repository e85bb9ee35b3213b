package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	Traces       bool   `yaml:"traces"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Storage     StorageConfig   `yaml:"storage"`
	STT         STTConfig       `yaml:"stt"`
	Notes       NotesConfig     `yaml:"notes"`
	UI          UIConfig        `yaml:"ui"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// StorageConfig selects the blob store backend and the keys the app persists under.
type StorageConfig struct {
	Backend       string `yaml:"backend"` // memory, sqlite, nats
	Path          string `yaml:"path"`
	Bucket        string `yaml:"bucket"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
	NotesKey      string `yaml:"notes_key"`
	ThemeKey      string `yaml:"theme_key"`
	VisitedKey    string `yaml:"visited_key"`
}

type STTConfig struct {
	Mode           string   `yaml:"mode"` // none, mock, exec, nats
	Command        string   `yaml:"command"`
	Language       string   `yaml:"language"`
	Continuous     bool     `yaml:"continuous"`
	InterimResults bool     `yaml:"interim_results"`
	MockPhrases    []string `yaml:"mock_phrases"`
	MockIntervalMS int      `yaml:"mock_interval_ms"`
	// Serve publishes the local recognizer on the bus for remote clients.
	Serve bool `yaml:"serve"`
}

type NotesConfig struct {
	SaveOnEnd bool `yaml:"save_on_end"`
}

type UIConfig struct {
	Shortcut              string `yaml:"shortcut"`
	NotificationTimeoutMS int    `yaml:"notification_timeout_ms"`
}

func Default() Config {
	return Config{
		RuntimeName: "whispnote",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Storage: StorageConfig{
			Backend:    "sqlite",
			Path:       "./data/whispnote.db",
			Bucket:     "whispnote",
			NotesKey:   "whisp-notes",
			ThemeKey:   "whisp-theme",
			VisitedKey: "whisp-visited",
		},
		STT: STTConfig{
			Mode:           "mock",
			Language:       "en-US",
			Continuous:     true,
			InterimResults: true,
			MockPhrases:    []string{"hello from whispnote", "this is a #demo note"},
			MockIntervalMS: 600,
		},
		UI: UIConfig{
			Shortcut:              "ctrl+@",
			NotificationTimeoutMS: 3000,
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

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LogLevel maps telemetry.log_level onto a slog level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Telemetry.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "WHISPNOTE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "WHISPNOTE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "WHISPNOTE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "WHISPNOTE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "WHISPNOTE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "WHISPNOTE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "WHISPNOTE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.Traces, "WHISPNOTE_TELEMETRY_TRACES")
	overrideBool(&cfg.Bus.Enabled, "WHISPNOTE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "WHISPNOTE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "WHISPNOTE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "WHISPNOTE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "WHISPNOTE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "WHISPNOTE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "WHISPNOTE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "WHISPNOTE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "WHISPNOTE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "WHISPNOTE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Storage.Backend, "WHISPNOTE_STORAGE_BACKEND")
	overrideString(&cfg.Storage.Path, "WHISPNOTE_STORAGE_PATH")
	overrideString(&cfg.Storage.Bucket, "WHISPNOTE_STORAGE_BUCKET")
	overrideBool(&cfg.Storage.VacuumOnStart, "WHISPNOTE_STORAGE_VACUUM_ON_START")
	overrideString(&cfg.Storage.NotesKey, "WHISPNOTE_STORAGE_NOTES_KEY")
	overrideString(&cfg.Storage.ThemeKey, "WHISPNOTE_STORAGE_THEME_KEY")
	overrideString(&cfg.Storage.VisitedKey, "WHISPNOTE_STORAGE_VISITED_KEY")
	overrideString(&cfg.STT.Mode, "WHISPNOTE_STT_MODE")
	overrideString(&cfg.STT.Command, "WHISPNOTE_STT_COMMAND")
	overrideString(&cfg.STT.Language, "WHISPNOTE_STT_LANGUAGE")
	overrideBool(&cfg.STT.Continuous, "WHISPNOTE_STT_CONTINUOUS")
	overrideBool(&cfg.STT.InterimResults, "WHISPNOTE_STT_INTERIM_RESULTS")
	overrideStringSlice(&cfg.STT.MockPhrases, "WHISPNOTE_STT_MOCK_PHRASES")
	overrideInt(&cfg.STT.MockIntervalMS, "WHISPNOTE_STT_MOCK_INTERVAL_MS")
	overrideBool(&cfg.STT.Serve, "WHISPNOTE_STT_SERVE")
	overrideBool(&cfg.Notes.SaveOnEnd, "WHISPNOTE_NOTES_SAVE_ON_END")
	overrideString(&cfg.UI.Shortcut, "WHISPNOTE_UI_SHORTCUT")
	overrideInt(&cfg.UI.NotificationTimeoutMS, "WHISPNOTE_UI_NOTIFICATION_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
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
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
			if cfg.Bus.StoreDir == "" {
				return errors.New("bus.store_dir must not be empty when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Storage.Backend {
	case "memory":
	case "sqlite":
		if cfg.Storage.Path == "" {
			return errors.New("storage.path must be set when backend=sqlite")
		}
	case "nats":
		if !cfg.Bus.Enabled {
			return errors.New("storage.backend=nats requires bus.enabled")
		}
		if cfg.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set when backend=nats")
		}
	default:
		return errors.New("storage.backend must be one of memory|sqlite|nats")
	}
	if cfg.Storage.NotesKey == "" || cfg.Storage.ThemeKey == "" || cfg.Storage.VisitedKey == "" {
		return errors.New("storage.notes_key, storage.theme_key and storage.visited_key must not be empty")
	}
	if cfg.Storage.NotesKey == cfg.Storage.ThemeKey || cfg.Storage.NotesKey == cfg.Storage.VisitedKey || cfg.Storage.ThemeKey == cfg.Storage.VisitedKey {
		return errors.New("storage keys must be distinct")
	}
	switch cfg.STT.Mode {
	case "none", "mock":
	case "exec":
		if cfg.STT.Command == "" {
			return errors.New("stt.command must be set when mode=exec")
		}
	case "nats":
		if !cfg.Bus.Enabled {
			return errors.New("stt.mode=nats requires bus.enabled")
		}
	default:
		return errors.New("stt.mode must be one of none|mock|exec|nats")
	}
	if cfg.STT.Serve {
		if !cfg.Bus.Enabled {
			return errors.New("stt.serve requires bus.enabled")
		}
		if cfg.STT.Mode == "nats" {
			return errors.New("stt.serve needs a local recognizer, not mode=nats")
		}
	}
	if cfg.STT.Language == "" {
		return errors.New("stt.language must not be empty")
	}
	if cfg.STT.MockIntervalMS < 0 {
		return errors.New("stt.mock_interval_ms must be >= 0")
	}
	if cfg.UI.NotificationTimeoutMS < 0 {
		return errors.New("ui.notification_timeout_ms must be >= 0")
	}
	return nil
}

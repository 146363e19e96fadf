// Package config resolves process configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Probe   ProbeConfig   `koanf:"probe" validate:"required"`
	Monitor MonitorConfig `koanf:"monitor" validate:"required"`
	Store   StoreConfig   `koanf:"store" validate:"required"`
	Log     LogConfig     `koanf:"log" validate:"required"`
	Server  ServerConfig  `koanf:"server" validate:"required"`
	Tracing TracingConfig `koanf:"tracing"`
}

type ProbeConfig struct {
	BaseURL   string `koanf:"base_url" validate:"required,url"`
	APIPath   string `koanf:"api_path"`
	TimeoutMs int    `koanf:"timeout_ms" validate:"required,min=1"`
}

type MonitorConfig struct {
	DurationMinutes float64 `koanf:"duration_minutes" validate:"required,gt=0"`
	IntervalMs      int     `koanf:"interval_ms" validate:"min=0"`
	CasesPath       string  `koanf:"cases_path" validate:"required"`
	BugCasesPath    string  `koanf:"bug_cases_path" validate:"required"`
}

type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error none"`
	Format string `koanf:"format" validate:"oneof=console json"`
	File   string `koanf:"file"`
}

type ServerConfig struct {
	Addr        string `koanf:"addr" validate:"required"`
	MetricsAddr string `koanf:"metrics_addr"`
}

type TracingConfig struct {
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

// envKeys maps the recognised environment variables onto config paths.
var envKeys = map[string]string{
	"BASE_URL":                    "probe.base_url",
	"API_URL":                     "probe.api_path",
	"TIMEOUT_PER_REQUEST":         "probe.timeout_ms",
	"TIMEOUT_MONITOR_IN_MINUTES":  "monitor.duration_minutes",
	"TIMEOUT_BETWEEN_REQUESTS":    "monitor.interval_ms",
	"TEST_CASES_PATH":             "monitor.cases_path",
	"BUG_CASES_PATH":              "monitor.bug_cases_path",
	"DB_PATH":                     "store.path",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"LOG_FILE":                    "log.file",
	"SERVER_ADDR":                 "server.addr",
	"METRICS_ADDR":                "server.metrics_addr",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "tracing.otlp_endpoint",
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Probe: ProbeConfig{
			BaseURL:   "https://qa-challenge-nine.vercel.app",
			APIPath:   "/api/name-checker",
			TimeoutMs: 10000,
		},
		Monitor: MonitorConfig{
			DurationMinutes: 10,
			IntervalMs:      1000,
			CasesPath:       "data/test-cases.json",
			BugCasesPath:    "data/test-cases-special.json",
		},
		Store: StoreConfig{Path: "request_logs.db"},
		Log:   LogConfig{Level: "info", Format: "console"},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads an optional .env file, overlays the environment on Default and validates
// the result. Components receive the returned struct and never read the environment.
func Load(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	k := koanf.New(".")
	err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// ProbeURL is the fully resolved endpoint.
func (c ProbeConfig) ProbeURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.APIPath
}

func (c ProbeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c MonitorConfig) Duration() time.Duration {
	return time.Duration(c.DurationMinutes * float64(time.Minute))
}

func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

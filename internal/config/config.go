package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Algorithm modes.
const (
	ModeNative = "native"
	ModeExec   = "exec"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// Static client and dataset files. When DataURL is set the map loads the
	// dataset from it instead of DataFile.
	StaticDir   string
	DataFile    string
	DataURL     string
	DataTimeout time.Duration
	SourceCSV   string

	// Algorithm execution.
	AlgorithmMode  string
	ExecutableDir  string
	ExecuteTimeout time.Duration
	ExecuteRate    float64

	// Map controls.
	YearMin        int
	YearMax        int
	RedrawDebounce time.Duration
	PopupDebounce  time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Run event publishing; disabled when KafkaBrokers is empty.
	KafkaBrokers  []string
	KafkaRunTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	executeTimeout, err := parsePositiveDuration("EXECUTE_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	redrawDebounce, err := parsePositiveDuration("REDRAW_DEBOUNCE", "300ms")
	if err != nil {
		return nil, err
	}
	popupDebounce, err := parsePositiveDuration("POPUP_DEBOUNCE", "100ms")
	if err != nil {
		return nil, err
	}
	dataTimeout, err := parsePositiveDuration("DATA_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	executeRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("EXECUTE_RATE", "1"), 64)
	if err != nil || executeRate <= 0 {
		return nil, errors.New("invalid EXECUTE_RATE")
	}

	yearMin, err := parseInt("YEAR_MIN", "1990")
	if err != nil {
		return nil, err
	}
	yearMax, err := parseInt("YEAR_MAX", "2004")
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":3000"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     splitList(sharedcfg.EnvOrDefault("CORS_ORIGINS", "*")),

		StaticDir:   os.Getenv("STATIC_DIR"),
		DataFile:    sharedcfg.EnvOrDefault("DATA_FILE", "public/earthquake_data.json"),
		DataURL:     os.Getenv("DATA_URL"),
		DataTimeout: dataTimeout,
		SourceCSV:   sharedcfg.EnvOrDefault("SOURCE_CSV", "earthquake_data.csv"),

		AlgorithmMode:  strings.ToLower(sharedcfg.EnvOrDefault("ALGORITHM_MODE", ModeNative)),
		ExecutableDir:  sharedcfg.EnvOrDefault("EXECUTABLE_DIR", "."),
		ExecuteTimeout: executeTimeout,
		ExecuteRate:    executeRate,

		YearMin:        yearMin,
		YearMax:        yearMax,
		RedrawDebounce: redrawDebounce,
		PopupDebounce:  popupDebounce,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		KafkaBrokers:  splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaRunTopic: sharedcfg.EnvOrDefault("KAFKA_RUN_TOPIC", "earthquake-runs"),
	}

	if cfg.AlgorithmMode != ModeNative && cfg.AlgorithmMode != ModeExec {
		return nil, fmt.Errorf("invalid ALGORITHM_MODE %q: want %s or %s", cfg.AlgorithmMode, ModeNative, ModeExec)
	}
	if cfg.YearMin > cfg.YearMax {
		return nil, errors.New("YEAR_MIN must not exceed YEAR_MAX")
	}
	if cfg.DataFile == "" {
		return nil, errors.New("DATA_FILE is required")
	}
	if cfg.DataURL != "" && !strings.HasPrefix(cfg.DataURL, "http://") && !strings.HasPrefix(cfg.DataURL, "https://") {
		return nil, fmt.Errorf("invalid DATA_URL %q: want an http or https URL", cfg.DataURL)
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaRunTopic == "" {
		return nil, errors.New("KAFKA_RUN_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// RunEventsEnabled reports whether generation runs are published to Kafka.
func (c *Config) RunEventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/buoy-data-etl/internal/domain"
)

// Ledger backends.
const (
	LedgerMemory = "memory"
	LedgerSQLite = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers   []string
	KafkaSinkTopic string
	HTTPAddr       string
	LogLevel       string
	LogFormat      string

	ShutdownTimeout time.Duration
	PollInterval    time.Duration

	InboxDir     string
	StationsFile string

	LedgerBackend    string
	LedgerSQLitePath string
	LedgerCacheSize  int

	// Publish throttling; a zero rate disables it.
	PublishRate  float64
	PublishBurst int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("POLL_INTERVAL", "5m"))
	if err != nil || pollInterval <= 0 {
		return nil, errors.New("invalid POLL_INTERVAL")
	}

	cacheSize, err := parsePositiveInt("LEDGER_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	publishRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("PUBLISH_RATE", "0"), 64)
	if err != nil || publishRate < 0 {
		return nil, errors.New("invalid PUBLISH_RATE")
	}

	publishBurst, err := parsePositiveInt("PUBLISH_BURST", 500)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:   sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "buoy-observations"),
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		PollInterval:     pollInterval,
		InboxDir:         sharedcfg.EnvOrDefault("INBOX_DIR", "./data/inbox"),
		StationsFile:     sharedcfg.EnvOrDefault("STATIONS_FILE", "./config/stations.json"),
		LedgerBackend:    sharedcfg.EnvOrDefault("LEDGER_BACKEND", LedgerMemory),
		LedgerSQLitePath: sharedcfg.EnvOrDefault("LEDGER_SQLITE_PATH", "./data/ledger.db"),
		LedgerCacheSize:  cacheSize,
		PublishRate:      publishRate,
		PublishBurst:     publishBurst,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.InboxDir == "" {
		return nil, errors.New("INBOX_DIR is required")
	}
	switch cfg.LedgerBackend {
	case LedgerMemory, LedgerSQLite:
	default:
		return nil, fmt.Errorf("invalid LEDGER_BACKEND %q (allowed: memory, sqlite)", cfg.LedgerBackend)
	}
	if cfg.LedgerBackend == LedgerSQLite && cfg.LedgerSQLitePath == "" {
		return nil, errors.New("LEDGER_SQLITE_PATH is required when LEDGER_BACKEND is sqlite")
	}

	return cfg, nil
}

// LoadStations reads the station links from a JSON array file.
func LoadStations(path string) ([]domain.StationLink, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations file: %w", err)
	}

	var stations []domain.StationLink
	if err := json.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("parse stations file %s: %w", path, err)
	}
	if len(stations) == 0 {
		return nil, fmt.Errorf("stations file %s lists no stations", path)
	}

	seen := make(map[string]bool, len(stations))
	for i, s := range stations {
		if s.ID == "" {
			return nil, fmt.Errorf("station %d in %s has no id", i, path)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate station id %q in %s", s.ID, path)
		}
		seen[s.ID] = true
	}
	return stations, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

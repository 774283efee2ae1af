package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "buoy-observations", cfg.KafkaSinkTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, "./data/inbox", cfg.InboxDir)
	assert.Equal(t, "./config/stations.json", cfg.StationsFile)
	assert.Equal(t, LedgerMemory, cfg.LedgerBackend)
	assert.Equal(t, "./data/ledger.db", cfg.LedgerSQLitePath)
	assert.Equal(t, 1000, cfg.LedgerCacheSize)
	assert.Zero(t, cfg.PublishRate)
	assert.Equal(t, 500, cfg.PublishBurst)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("POLL_INTERVAL", "90s")
	t.Setenv("INBOX_DIR", "/srv/ftp")
	t.Setenv("STATIONS_FILE", "/etc/buoy/stations.json")
	t.Setenv("LEDGER_BACKEND", "sqlite")
	t.Setenv("LEDGER_SQLITE_PATH", "/var/lib/buoy/ledger.db")
	t.Setenv("LEDGER_CACHE_SIZE", "50")
	t.Setenv("PUBLISH_RATE", "250.5")
	t.Setenv("PUBLISH_BURST", "100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 90*time.Second, cfg.PollInterval)
	assert.Equal(t, "/srv/ftp", cfg.InboxDir)
	assert.Equal(t, "/etc/buoy/stations.json", cfg.StationsFile)
	assert.Equal(t, LedgerSQLite, cfg.LedgerBackend)
	assert.Equal(t, "/var/lib/buoy/ledger.db", cfg.LedgerSQLitePath)
	assert.Equal(t, 50, cfg.LedgerCacheSize)
	assert.Equal(t, 250.5, cfg.PublishRate)
	assert.Equal(t, 100, cfg.PublishBurst)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"POLL_INTERVAL", "soon"},
		{"POLL_INTERVAL", "0s"},
		{"LEDGER_CACHE_SIZE", "0"},
		{"LEDGER_CACHE_SIZE", "many"},
		{"PUBLISH_RATE", "-5"},
		{"PUBLISH_BURST", "-1"},
		{"LEDGER_BACKEND", "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func writeStations(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadStations(t *testing.T) {
	path := writeStations(t, `[
		{"id": "seychelles-01", "file_pattern": "Seychelles}*.his", "timezone": "Indian/Mahe"},
		{"id": "seychelles-02", "file_pattern": "Praslin}*.his", "timezone": "Indian/Mahe", "start_date": "2024-01-01T00:00:00Z"}
	]`)

	stations, err := LoadStations(path)
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "seychelles-01", stations[0].ID)
	assert.Equal(t, "Seychelles}*.his", stations[0].FilePattern)
	assert.Equal(t, "Indian/Mahe", stations[0].Timezone)
	assert.False(t, stations[0].HasStartDate())

	assert.True(t, stations[1].HasStartDate())
	assert.Equal(t, 2024, stations[1].StartDate.Year())
}

func TestLoadStations_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"invalid json", `{not json`, "parse stations file"},
		{"empty list", `[]`, "lists no stations"},
		{"missing id", `[{"timezone": "UTC"}]`, "has no id"},
		{"duplicate id", `[{"id": "a"}, {"id": "a"}]`, "duplicate station id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadStations(writeStations(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadStations_MissingFile(t *testing.T) {
	_, err := LoadStations(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read stations file")
}

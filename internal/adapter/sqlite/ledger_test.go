package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStation = "seychelles-01"
	augustFile  = "Seychelles}2025-08.his"
)

func setupLedger(t *testing.T, clock clockwork.Clock) *Ledger {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	l, err := New(context.Background(), db, clock)
	require.NoError(t, err)
	return l
}

func TestLedger_SeenAfterMark(t *testing.T) {
	ctx := context.Background()
	l := setupLedger(t, nil)

	seen, err := l.Seen(ctx, testStation, augustFile, "abc")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.Mark(ctx, testStation, augustFile, "abc"))

	seen, err = l.Seen(ctx, testStation, augustFile, "abc")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestLedger_MarkOverwritesDigest(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.August, 1, 8, 0, 0, 0, time.UTC))
	l := setupLedger(t, clock)

	require.NoError(t, l.Mark(ctx, testStation, augustFile, "v1"))
	clock.Advance(30 * time.Minute)
	require.NoError(t, l.Mark(ctx, testStation, augustFile, "v2"))

	seen, err := l.Seen(ctx, testStation, augustFile, "v1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = l.Seen(ctx, testStation, augustFile, "v2")
	require.NoError(t, err)
	assert.True(t, seen)

	var processedAt string
	require.NoError(t, l.db.QueryRow(
		"SELECT processed_at FROM processed_files WHERE station_id = ? AND filename = ?",
		testStation, augustFile,
	).Scan(&processedAt))
	assert.Equal(t, "2025-08-01T08:30:00Z", processedAt)
}

func TestLedger_StationsAreIndependent(t *testing.T) {
	ctx := context.Background()
	l := setupLedger(t, nil)
	require.NoError(t, l.Mark(ctx, testStation, augustFile, "abc"))

	seen, err := l.Seen(ctx, "seychelles-02", augustFile, "abc")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestOpen_FileBackedSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	l, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, l.Mark(ctx, testStation, augustFile, "abc"))
	require.NoError(t, l.Close())

	l, err = Open(ctx, path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	seen, err := l.Seen(ctx, testStation, augustFile, "abc")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		want string
	}{
		{"memory", ":memory:", ":memory:"},
		{"plain path", filepath.Join(dir, "l.db"), "file:" + filepath.Join(dir, "l.db") + "?_busy_timeout=5000&_journal_mode=WAL"},
		{"file uri with params", "file:" + filepath.Join(dir, "l.db") + "?cache=shared", "file:" + filepath.Join(dir, "l.db") + "?cache=shared&_busy_timeout=5000&_journal_mode=WAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := buildDSN("")
	require.Error(t, err)
}

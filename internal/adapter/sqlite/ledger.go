// Package sqlite is a durable processed-file ledger, so a restarted service
// does not re-publish every file of the current month.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/get-digest.sql
var getDigestSQL string

//go:embed sql/upsert-digest.sql
var upsertDigestSQL string

// Ledger implements pipeline.Ledger on a SQLite table.
type Ledger struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open opens (creating if needed) the ledger database at path and applies the schema.
func Open(ctx context.Context, path string, clock clockwork.Clock) (*Ledger, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger open: %w", err)
	}
	// One writer at a time; sqlite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger ping: %w", err)
	}
	return New(ctx, db, clock)
}

// New wraps an already open database and applies the schema.
func New(ctx context.Context, db *sql.DB, clock clockwork.Clock) (*Ledger, error) {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ledger{db: db, clock: clock}, nil
}

// Seen reports whether file was last published with this digest.
func (l *Ledger) Seen(ctx context.Context, stationID, file, digest string) (bool, error) {
	var stored string
	err := l.db.QueryRowContext(ctx, getDigestSQL, stationID, file).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup %s/%s: %w", stationID, file, err)
	}
	return stored == digest, nil
}

// Mark records digest as the published content of file.
func (l *Ledger) Mark(ctx context.Context, stationID, file, digest string) error {
	processedAt := l.clock.Now().UTC().Format(time.RFC3339Nano)
	if _, err := l.db.ExecContext(ctx, upsertDigestSQL, stationID, file, digest, processedAt); err != nil {
		return fmt.Errorf("ledger mark %s/%s: %w", stationID, file, err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func buildDSN(path string) (string, error) {
	if path == "" {
		return "", errors.New("ledger path is empty")
	}
	if path == ":memory:" {
		return path, nil
	}

	dir := filepath.Dir(strings.TrimPrefix(path, "file:"))
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

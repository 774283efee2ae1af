// Package ledger remembers which file contents have already been published
// so a poll cycle can skip files the mirror has not changed.
package ledger

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is an in-process ledger bounded by an LRU policy. Entries evicted
// from it are simply re-published on the next cycle.
// It implements pipeline.Ledger.
type Memory struct {
	cache *lru.Cache[string, string]
}

// NewMemory creates a ledger holding at most maxEntries files.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, string](maxEntries)
	return &Memory{cache: cache}
}

// Seen reports whether file was last published with this digest.
func (m *Memory) Seen(_ context.Context, stationID, file, digest string) (bool, error) {
	got, ok := m.cache.Get(key(stationID, file))
	return ok && got == digest, nil
}

// Mark records digest as the published content of file.
func (m *Memory) Mark(_ context.Context, stationID, file, digest string) error {
	m.cache.Add(key(stationID, file), digest)
	return nil
}

// Len returns the number of tracked files.
func (m *Memory) Len() int {
	return m.cache.Len()
}

func key(stationID, file string) string {
	return stationID + "|" + file
}

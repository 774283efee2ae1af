package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// FileBatch is one decoded file on its way to the sink.
type FileBatch struct {
	StationID  string
	SourceFile string
	// BatchID ties every record of one publish together.
	BatchID   string
	DecodedAt time.Time
	Batch     Batch
}

// ObservationID derives a stable key for a station's observation. Re-decoding
// a grown monthly file yields the same IDs for rows already published, so
// downstream upserts stay idempotent.
func ObservationID(stationID string, obsTime time.Time) string {
	input := stationID + "|" + obsTime.UTC().Format(time.RFC3339Nano)
	hash := sha256.Sum256([]byte(input))
	return stationID + "-" + hex.EncodeToString(hash[:8])
}

// ContentDigest fingerprints raw file content for the processed-file ledger.
func ContentDigest(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

package domain

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DecoderType identifies this decoder to the host's registry.
	DecoderType = "bouy_sc"
	// DecoderDisplayName is the operator-facing label.
	DecoderDisplayName = "Bouy Decoder - Seychelles"
)

// FileDecoder is the capability a host needs from a decoder plugin: pick the
// files that matter for a station, then turn each one into observations.
type FileDecoder interface {
	Type() string
	Select(link StationLink, files []string) ([]string, error)
	Decode(content []byte) (Batch, error)
}

// timestampLayouts are tried in order for obs_time. Layouts without a zone
// are interpreted as UTC; fractional seconds are accepted by all of them.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BuoyDecoder reads Seychelles wave-buoy history files (*.his): headerless
// comma-separated rows with a fixed 19-column layout.
type BuoyDecoder struct {
	*Selector
}

var _ FileDecoder = (*BuoyDecoder)(nil)

// NewBuoyDecoder returns a decoder whose selection uses matcher and clock.
// Either may be nil.
func NewBuoyDecoder(matcher FilenameMatcher, clock clockwork.Clock) *BuoyDecoder {
	return &BuoyDecoder{Selector: NewSelector(matcher, clock)}
}

func (d *BuoyDecoder) Type() string { return DecoderType }

// Decode parses a whole file. Any bad row rejects the file: no partial batch
// is ever returned alongside an error.
func (d *BuoyDecoder) Decode(content []byte) (Batch, error) {
	return DecodeReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
}

// DecodeReader parses rows from r until EOF.
func DecodeReader(r io.Reader) (Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	batch := Batch{Values: []Observation{}}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return batch, nil
		}
		if err != nil {
			var perr *csv.ParseError
			line := 0
			if errors.As(err, &perr) {
				line = perr.Line
			}
			return Batch{}, &DecodeError{Kind: KindMalformed, Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)

		if isBlankRecord(record) {
			continue
		}

		obs, err := parseRow(record)
		if err != nil {
			var derr *DecodeError
			if errors.As(err, &derr) {
				derr.Line = line
			}
			return Batch{}, err
		}
		batch.Values = append(batch.Values, obs)
	}
}

func parseRow(record []string) (Observation, error) {
	if len(record) != NumFields {
		return Observation{}, &DecodeError{
			Kind: KindSchemaMismatch,
			Err:  fmt.Errorf("got %d columns, want %d", len(record), NumFields),
		}
	}

	ts, err := parseTimestamp(strings.TrimSpace(record[0]))
	if err != nil {
		return Observation{}, &DecodeError{Kind: KindTimestampParse, Err: err}
	}

	obs := Observation{ObsTime: ts}
	for i := range obs.Values {
		obs.Values[i] = InferValue(strings.TrimSpace(record[i+1]))
	}
	return obs, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("obs_time is empty")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised obs_time %q", s)
}

// isBlankRecord catches whitespace-only lines, which csv hands back as a
// single field rather than skipping.
func isBlankRecord(record []string) bool {
	return len(record) == 1 && strings.TrimSpace(record[0]) == ""
}

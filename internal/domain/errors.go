package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches any *ConfigurationError.
	ErrConfiguration = errors.New("station configuration error")

	// ErrSchemaMismatch matches decode failures caused by a row of the wrong width.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrTimestampParse matches decode failures on the obs_time column.
	ErrTimestampParse = errors.New("timestamp parse")
	// ErrMalformedRow matches rows the CSV tokenizer rejects outright.
	ErrMalformedRow = errors.New("malformed row")
)

// ConfigurationError reports a station link the selector cannot work with.
// It is not retryable without an operator fix.
type ConfigurationError struct {
	StationID string
	Field     string
	Err       error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("station %q: invalid %s: %v", e.StationID, e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// DecodeErrorKind classifies why a file was rejected.
type DecodeErrorKind int

const (
	KindSchemaMismatch DecodeErrorKind = iota + 1
	KindTimestampParse
	KindMalformed
)

func (k DecodeErrorKind) String() string {
	switch k {
	case KindSchemaMismatch:
		return "schema_mismatch"
	case KindTimestampParse:
		return "timestamp_parse"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

func (k DecodeErrorKind) sentinel() error {
	switch k {
	case KindSchemaMismatch:
		return ErrSchemaMismatch
	case KindTimestampParse:
		return ErrTimestampParse
	case KindMalformed:
		return ErrMalformedRow
	default:
		return nil
	}
}

// DecodeError rejects a whole file. Line is 1-based within the source.
type DecodeError struct {
	Kind DecodeErrorKind
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode line %d: %s: %v", e.Line, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

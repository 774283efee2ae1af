// Package domain decodes Seychelles wave-buoy history files.
//
// # Data Source
//
// The buoy logger writes one rolling history file per month, named after the
// station and the month it covers:
//
//	Seychelles}2025-08.his
//
// An FTP mirror outside this service copies the files locally. The file for
// the current month keeps growing until the month rolls over; older files are
// final.
//
// # File Format
//
// Headerless, comma-separated, one observation per line, 19 columns in a fixed
// order (see [FieldNames]):
//
//	2025-08-01T07:31:59.999Z,15.38,191.3,37.7,7.143,274.0,11.09,8.23,3.86,9.19,11.05,14.94,0.584,0.840,1.59,3.441E-2,25.00,25.80,0
//
// The first column is an RFC 3339 UTC timestamp. The rest are spectral wave
// parameters, temperatures and a battery flag. Values are passed through as
// read: numbers stay float64 (scientific notation included), empty cells are
// null, anything else is kept as text. No unit conversion or range checks.
//
// # Selection
//
// A station with a start date is backfilling and processes every file its
// pattern matches. A live station only processes the file for the current
// month, with "current" evaluated in the station's timezone so the rollover
// happens at local midnight. See [Selector.Select].
//
// # Failure Policy
//
// Decoding is all-or-nothing per file. A row of the wrong width
// ([ErrSchemaMismatch]) or with an unreadable timestamp ([ErrTimestampParse])
// rejects the whole file rather than publishing a partial month.
package domain

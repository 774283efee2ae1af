package domain

import (
	"errors"
	"time"
)

// StationLink is the host's view of one monitoring station. The core only
// reads it.
type StationLink struct {
	ID string `json:"id"`
	// FilePattern is a path.Match glob applied to remote filenames,
	// e.g. "Seychelles}*.his". Empty matches everything.
	FilePattern string `json:"file_pattern"`
	// Timezone is an IANA zone name such as "Indian/Mahe".
	Timezone string `json:"timezone"`
	// StartDate, when set, puts the station in backfill mode.
	StartDate *time.Time `json:"start_date,omitempty"`
}

// HasStartDate reports whether historical backfill is configured.
func (s StationLink) HasStartDate() bool {
	return s.StartDate != nil && !s.StartDate.IsZero()
}

// Location resolves the station's timezone.
func (s StationLink) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return nil, &ConfigurationError{StationID: s.ID, Field: "timezone", Err: errors.New("timezone is not set")}
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, &ConfigurationError{StationID: s.ID, Field: "timezone", Err: err}
	}
	return loc, nil
}

// Mode names how a station's files are selected.
func (s StationLink) Mode() string {
	if s.HasStartDate() {
		return "backfill"
	}
	return "live"
}

// StationStatus is a point-in-time report on one station's processing.
type StationStatus struct {
	ID             string    `json:"id"`
	Mode           string    `json:"mode"`
	LastCycleAt    time.Time `json:"last_cycle_at,omitzero"`
	LastError      string    `json:"last_error,omitempty"`
	FilesPublished int       `json:"files_published"`
	FilesRejected  int       `json:"files_rejected"`
	LastFile       string    `json:"last_file,omitempty"`
	LastPublishAt  time.Time `json:"last_publish_at,omitzero"`
}

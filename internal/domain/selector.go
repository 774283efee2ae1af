package domain

import (
	"path"
	"strings"

	"github.com/jonboulle/clockwork"
)

// FilenameMatcher is the base filename predicate applied before any
// station-mode refinement.
type FilenameMatcher interface {
	Match(link StationLink, files []string) ([]string, error)
}

// PatternMatcher keeps files whose name matches the station's FilePattern glob.
type PatternMatcher struct{}

func (PatternMatcher) Match(link StationLink, files []string) ([]string, error) {
	if link.FilePattern == "" {
		return append([]string{}, files...), nil
	}
	if _, err := path.Match(link.FilePattern, ""); err != nil {
		return nil, &ConfigurationError{StationID: link.ID, Field: "file pattern", Err: err}
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		if ok, _ := path.Match(link.FilePattern, f); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Selector decides which remote files a station should process this cycle.
type Selector struct {
	matcher FilenameMatcher
	clock   clockwork.Clock
}

// NewSelector builds a Selector. A nil matcher means PatternMatcher; a nil
// clock means wall time.
func NewSelector(matcher FilenameMatcher, clock clockwork.Clock) *Selector {
	if matcher == nil {
		matcher = PatternMatcher{}
	}
	return &Selector{matcher: matcher, clock: orRealClock(clock)}
}

// Select returns the subset of files to process, in input order.
//
// Stations with a start date are backfilling and get every base-matched file.
// Live stations only get files carrying the current YYYY-MM token, where
// "current" is evaluated in the station's own timezone.
func (s *Selector) Select(link StationLink, files []string) ([]string, error) {
	base, err := s.matcher.Match(link, files)
	if err != nil {
		return nil, err
	}
	matched := restrictTo(files, base)
	if link.HasStartDate() {
		return matched, nil
	}

	token, err := s.MonthToken(link)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(matched))
	for _, f := range matched {
		if strings.Contains(f, token) {
			out = append(out, f)
		}
	}
	return out, nil
}

// MonthToken returns the zero-padded "YYYY-MM" of now in the station's timezone.
func (s *Selector) MonthToken(link StationLink) (string, error) {
	loc, err := link.Location()
	if err != nil {
		return "", err
	}
	return s.clock.Now().In(loc).Format("2006-01"), nil
}

// restrictTo walks files in order and keeps those the matcher returned, so a
// matcher can neither reorder the listing nor add names to it.
func restrictTo(files, matched []string) []string {
	keep := make(map[string]int, len(matched))
	for _, m := range matched {
		keep[m]++
	}
	out := make([]string, 0, len(matched))
	for _, f := range files {
		if keep[f] > 0 {
			keep[f]--
			out = append(out, f)
		}
	}
	return out
}

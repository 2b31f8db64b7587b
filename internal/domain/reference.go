package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrInvalidReference is returned when a station list entry does not encode
// a station and year.
var ErrInvalidReference = errors.New("invalid feed reference")

// FeedRef locates the raw feed of one station-year.
type FeedRef struct {
	Station string `json:"station"`
	Year    int    `json:"year"`
	Path    string `json:"path"`
}

// StationYearRef is a parsed station list entry: the target year's feed and
// the following year's feed that supplies lookahead context.
type StationYearRef struct {
	Reference  string
	Station    string
	Year       int
	Current    FeedRef
	Subsequent FeedRef
}

// ParseReference decodes a feed path of the form <dir>/<YEAR>/<STATION>-...-<YEAR><ext>.
// The year comes from the parent directory name and the station from the
// filename prefix before the first hyphen. The subsequent year's path is
// derived by replacing the year in both the directory and the filename.
func ParseReference(ref string) (StationYearRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return StationYearRef{}, fmt.Errorf("%w: empty reference", ErrInvalidReference)
	}

	dir := filepath.Dir(ref)
	yearDir := filepath.Base(dir)
	year, err := strconv.Atoi(yearDir)
	if err != nil {
		return StationYearRef{}, fmt.Errorf("%w: %q: year directory %q is not a number", ErrInvalidReference, ref, yearDir)
	}

	base := filepath.Base(ref)
	station, _, found := strings.Cut(base, "-")
	if !found || station == "" {
		return StationYearRef{}, fmt.Errorf("%w: %q: filename has no station prefix", ErrInvalidReference, ref)
	}
	if _, err := strconv.Atoi(station); err != nil {
		return StationYearRef{}, fmt.Errorf("%w: %q: station %q is not numeric", ErrInvalidReference, ref, station)
	}

	nextBase, ok := swapFilenameYear(base, year)
	if !ok {
		return StationYearRef{}, fmt.Errorf("%w: %q: filename does not carry year %d", ErrInvalidReference, ref, year)
	}
	nextPath := filepath.Join(filepath.Dir(dir), strconv.Itoa(year+1), nextBase)

	return StationYearRef{
		Reference:  ref,
		Station:    station,
		Year:       year,
		Current:    FeedRef{Station: station, Year: year, Path: ref},
		Subsequent: FeedRef{Station: station, Year: year + 1, Path: nextPath},
	}, nil
}

// swapFilenameYear replaces the last "-<year>" token in base with the next
// year.
func swapFilenameYear(base string, year int) (string, bool) {
	token := "-" + strconv.Itoa(year)
	i := strings.LastIndex(base, token)
	if i < 0 {
		return "", false
	}
	return base[:i] + "-" + strconv.Itoa(year+1) + base[i+len(token):], true
}

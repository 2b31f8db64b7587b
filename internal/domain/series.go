package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// HoursPerCommonYear is the series length of a non-leap year.
	HoursPerCommonYear = 8760
	// HoursPerLeapYear is the series length of a leap year.
	HoursPerLeapYear = 8784
)

// Field names a tracked meteorological quantity.
type Field string

const (
	DryBulbTemperature  Field = "dry_bulb_temperature"  // °C
	DewPointTemperature Field = "dew_point_temperature" // °C
	AtmosphericPressure Field = "atmospheric_pressure"  // Pa
	WindDirection       Field = "wind_direction"        // degrees
	WindSpeed           Field = "wind_speed"            // m/s
)

// TrackedFields lists every field a station-year must carry, in the order
// they are repaired and reported.
var TrackedFields = []Field{
	DryBulbTemperature,
	DewPointTemperature,
	AtmosphericPressure,
	WindDirection,
	WindSpeed,
}

// Observation is one hourly reading. The zero value is an absent reading.
type Observation struct {
	Value   float64
	Present bool
}

// Present returns a present observation holding v.
func Present(v float64) Observation {
	return Observation{Value: v, Present: true}
}

// Missing returns an absent observation.
func Missing() Observation {
	return Observation{}
}

// ParseObservation converts a raw feed value to an Observation. Empty
// strings, the sentinel, unparseable text, NaN and infinities are absent.
// The parsed value is multiplied by scale.
func ParseObservation(raw, sentinel string, scale float64) Observation {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == sentinel {
		return Missing()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing()
	}
	return Present(v * scale)
}

// HoursInYear returns the number of hourly slots in year.
func HoursInYear(year int) int {
	if isLeap(year) {
		return HoursPerLeapYear
	}
	return HoursPerCommonYear
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// HourOfYear returns the series index of t within its UTC year.
func HourOfYear(t time.Time) int {
	t = t.UTC()
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(start) / time.Hour)
}

// TimeOfHour returns the UTC timestamp for index hour of year.
func TimeOfHour(year, hour int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(hour) * time.Hour)
}

// AnnualSeries is the hourly record of one field for one station-year. It is
// immutable once built.
type AnnualSeries struct {
	field Field
	year  int
	obs   []Observation
}

// NewAnnualSeries copies obs into a series. It fails unless len(obs) equals
// HoursInYear(year).
func NewAnnualSeries(field Field, year int, obs []Observation) (*AnnualSeries, error) {
	want := HoursInYear(year)
	if len(obs) != want {
		return nil, &ParseError{Field: field, Year: year, Msg: fmt.Sprintf("series has %d hours, want %d", len(obs), want)}
	}
	cp := make([]Observation, want)
	copy(cp, obs)
	return &AnnualSeries{field: field, year: year, obs: cp}, nil
}

// Field returns the quantity the series records.
func (s *AnnualSeries) Field() Field { return s.field }

// Year returns the calendar year the series covers.
func (s *AnnualSeries) Year() int { return s.year }

// Len returns the number of hourly slots.
func (s *AnnualSeries) Len() int { return len(s.obs) }

// At returns the observation at hour-of-year i.
func (s *AnnualSeries) At(i int) Observation { return s.obs[i] }

// Observations returns a copy of every slot.
func (s *AnnualSeries) Observations() []Observation {
	cp := make([]Observation, len(s.obs))
	copy(cp, s.obs)
	return cp
}

// MissingCount returns the number of absent slots.
func (s *AnnualSeries) MissingCount() int {
	n := 0
	for _, o := range s.obs {
		if !o.Present {
			n++
		}
	}
	return n
}

// StationYear carries every tracked series of one station for one year.
type StationYear struct {
	Station string
	Year    int
	Series  map[Field]*AnnualSeries
}

// Hours returns the series length expected for the station-year.
func (sy *StationYear) Hours() int {
	return HoursInYear(sy.Year)
}

// SeriesFor returns the series for f, or an error naming the field if the
// station-year does not carry it.
func (sy *StationYear) SeriesFor(f Field) (*AnnualSeries, error) {
	s, ok := sy.Series[f]
	if !ok || s == nil {
		return nil, &ParseError{Station: sy.Station, Year: sy.Year, Field: f, Msg: "field not loaded"}
	}
	return s, nil
}

// SeriesBuilder collects timestamped readings into hour-of-year slots for
// every tracked field. Hours never set remain absent.
type SeriesBuilder struct {
	station string
	year    int
	slots   map[Field][]Observation
}

// NewSeriesBuilder starts an empty station-year where every slot is absent.
func NewSeriesBuilder(station string, year int) *SeriesBuilder {
	n := HoursInYear(year)
	slots := make(map[Field][]Observation, len(TrackedFields))
	for _, f := range TrackedFields {
		slots[f] = make([]Observation, n)
	}
	return &SeriesBuilder{station: station, year: year, slots: slots}
}

// Set records obs for field f at timestamp t. A later reading for the same
// hour replaces an earlier one. Timestamps outside the builder's year are
// rejected.
func (b *SeriesBuilder) Set(f Field, t time.Time, obs Observation) error {
	if t.UTC().Year() != b.year {
		return &ParseError{Station: b.station, Year: b.year, Field: f, Msg: fmt.Sprintf("reading at %s is outside year", t.UTC().Format(time.RFC3339))}
	}
	slots, ok := b.slots[f]
	if !ok {
		return &ParseError{Station: b.station, Year: b.year, Field: f, Msg: "untracked field"}
	}
	slots[HourOfYear(t)] = obs
	return nil
}

// Build freezes the collected slots into a StationYear.
func (b *SeriesBuilder) Build() (*StationYear, error) {
	sy := &StationYear{Station: b.station, Year: b.year, Series: make(map[Field]*AnnualSeries, len(b.slots))}
	for _, f := range TrackedFields {
		s, err := NewAnnualSeries(f, b.year, b.slots[f])
		if err != nil {
			return nil, err
		}
		sy.Series[f] = s
	}
	return sy, nil
}

// Package isdlite reads and writes NOAA ISD-Lite hourly feeds.
//
// Each line holds one hour of observations in whitespace-separated columns:
//
//	year month day hour temp dewpoint slp winddir windspeed sky precip1h precip6h
//
// Temperatures and wind speed are scaled by 10, sea level pressure is in
// tenths of hectopascals, and -9999 marks a missing value. Timestamps are
// UTC. Hours with no line are treated as missing.
package isdlite

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
)

// MissingSentinel is the ISD-Lite marker for an unreported value.
const MissingSentinel = "-9999"

const minColumns = 9

// column maps a tracked field to its ISD-Lite column and the factor that
// converts the raw integer to the domain unit.
type column struct {
	field domain.Field
	index int
	scale float64
}

var columns = []column{
	{domain.DryBulbTemperature, 4, 0.1},
	{domain.DewPointTemperature, 5, 0.1},
	{domain.AtmosphericPressure, 6, 10}, // tenths of hPa -> Pa
	{domain.WindDirection, 7, 1},
	{domain.WindSpeed, 8, 0.1},
}

// Parse reads an uncompressed ISD-Lite stream for station and year.
func Parse(ctx context.Context, r io.Reader, station string, year int) (*domain.StationYear, error) {
	b := domain.NewSeriesBuilder(station, year)
	sc := bufio.NewScanner(r)

	line := 0
	for sc.Scan() {
		line++
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if err := parseLine(b, text, station, year, line); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &domain.ParseError{Station: station, Year: year, Line: line, Msg: err.Error()}
	}

	return b.Build()
}

func parseLine(b *domain.SeriesBuilder, text, station string, year, line int) error {
	cols := strings.Fields(text)
	if len(cols) < minColumns {
		return &domain.ParseError{Station: station, Year: year, Line: line, Msg: fmt.Sprintf("expected at least %d columns, got %d", minColumns, len(cols))}
	}

	ts, err := parseTimestamp(cols[:4])
	if err != nil {
		return &domain.ParseError{Station: station, Year: year, Line: line, Msg: err.Error()}
	}

	for _, c := range columns {
		obs := domain.ParseObservation(cols[c.index], MissingSentinel, c.scale)
		if err := b.Set(c.field, ts, obs); err != nil {
			var pe *domain.ParseError
			if errors.As(err, &pe) {
				pe.Line = line
			}
			return err
		}
	}
	return nil
}

func parseTimestamp(cols []string) (time.Time, error) {
	var v [4]int
	for i, s := range cols {
		n, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp column %q", s)
		}
		v[i] = n
	}
	year, month, day, hour := v[0], v[1], v[2], v[3]
	if month < 1 || month > 12 || hour < 0 || hour > 23 || day < 1 {
		return time.Time{}, fmt.Errorf("invalid timestamp %04d-%02d-%02d %02d", year, month, day, hour)
	}
	ts := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
	if ts.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return ts, nil
}

// Package epw writes, reads, and validates EnergyPlus Weather (EPW) files.
//
// Only the fields carried by an AMY station-year are populated: dry bulb
// temperature, dew point, relative humidity (derived from the two
// temperatures), atmospheric pressure, wind direction, and wind speed. Every
// other column holds the EPW "missing" marker for that column.
package epw

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
)

// HeaderLines is the number of header lines preceding the hourly data.
const HeaderLines = 8

// dataColumns is the number of comma-separated columns in an EPW data row.
const dataColumns = 35

// EPW missing markers for the populated columns.
const (
	missingTemperature = 99.9
	missingHumidity    = 999
	missingPressure    = 999999
	missingDirection   = 999
	missingSpeed       = 999.0
)

// dataSourceFlags marks the populated columns as observed data.
const dataSourceFlags = "?9?9?9?9E0?9?9?9?9?9?9?9?9?9?9?9?9?9?9?9*9*9?9?9?9"

// Record is one hourly EPW data row. Hour is 1-24 per the EPW convention,
// where hour 1 covers 00:00-01:00.
type Record struct {
	Year        int
	Month       int
	Day         int
	Hour        int
	DryBulb     float64 // °C
	DewPoint    float64 // °C
	RelHumidity int     // %
	Pressure    int     // Pa
	WindDir     int     // degrees
	WindSpeed   float64 // m/s
}

// recordsFromStationYear converts a repaired station-year into EPW rows.
// Absent observations become EPW missing markers, which validation rejects.
func recordsFromStationYear(sy *domain.StationYear) []Record {
	n := sy.Hours()
	recs := make([]Record, n)
	get := func(f domain.Field, h int) domain.Observation {
		s, ok := sy.Series[f]
		if !ok || s == nil || h >= s.Len() {
			return domain.Missing()
		}
		return s.At(h)
	}

	for h := 0; h < n; h++ {
		ts := domain.TimeOfHour(sy.Year, h)
		r := Record{
			Year:        ts.Year(),
			Month:       int(ts.Month()),
			Day:         ts.Day(),
			Hour:        ts.Hour() + 1,
			DryBulb:     missingTemperature,
			DewPoint:    missingTemperature,
			RelHumidity: missingHumidity,
			Pressure:    missingPressure,
			WindDir:     missingDirection,
			WindSpeed:   missingSpeed,
		}
		db, dp := get(domain.DryBulbTemperature, h), get(domain.DewPointTemperature, h)
		if db.Present {
			r.DryBulb = round1(db.Value)
		}
		if dp.Present {
			r.DewPoint = round1(dp.Value)
		}
		if db.Present && dp.Present {
			r.RelHumidity = relativeHumidity(db.Value, dp.Value)
		}
		if o := get(domain.AtmosphericPressure, h); o.Present {
			r.Pressure = int(math.Round(o.Value))
		}
		if o := get(domain.WindDirection, h); o.Present {
			r.WindDir = int(math.Round(o.Value))
		}
		if o := get(domain.WindSpeed, h); o.Present {
			r.WindSpeed = round1(o.Value)
		}
		recs[h] = r
	}
	return recs
}

// relativeHumidity derives RH from dry bulb and dew point temperatures using
// the Magnus approximation, clamped to 0-100.
func relativeHumidity(dryBulb, dewPoint float64) int {
	const a, b = 17.625, 243.04
	rh := 100 * math.Exp(a*dewPoint/(b+dewPoint)) / math.Exp(a*dryBulb/(b+dryBulb))
	return int(math.Round(math.Max(0, math.Min(100, rh))))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// format renders the record as a full 35-column EPW data row.
func (r Record) format() string {
	return fmt.Sprintf("%d,%d,%d,%d,0,%s,%.1f,%.1f,%d,%d,"+
		"9999,9999,9999,9999,9999,9999,999999,999999,999999,9999,"+
		"%d,%.1f,99,99,9999,99999,9,999999999,999,.999,999,99,999,999,99",
		r.Year, r.Month, r.Day, r.Hour, dataSourceFlags,
		r.DryBulb, r.DewPoint, r.RelHumidity, r.Pressure,
		r.WindDir, r.WindSpeed,
	)
}

// parseRecord decodes an EPW data row.
func parseRecord(line string) (Record, error) {
	cols := strings.Split(line, ",")
	if len(cols) != dataColumns {
		return Record{}, fmt.Errorf("expected %d columns, got %d", dataColumns, len(cols))
	}

	var r Record
	ints := []struct {
		col int
		dst *int
	}{
		{0, &r.Year}, {1, &r.Month}, {2, &r.Day}, {3, &r.Hour},
		{8, &r.RelHumidity}, {9, &r.Pressure}, {20, &r.WindDir},
	}
	floats := []struct {
		col int
		dst *float64
	}{
		{6, &r.DryBulb}, {7, &r.DewPoint}, {21, &r.WindSpeed},
	}

	for _, c := range ints {
		v, err := strconv.Atoi(strings.TrimSpace(cols[c.col]))
		if err != nil {
			return Record{}, fmt.Errorf("column %d: %w", c.col+1, err)
		}
		*c.dst = v
	}
	for _, c := range floats {
		v, err := strconv.ParseFloat(strings.TrimSpace(cols[c.col]), 64)
		if err != nil {
			return Record{}, fmt.Errorf("column %d: %w", c.col+1, err)
		}
		*c.dst = v
	}
	return r, nil
}

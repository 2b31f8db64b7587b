package epw

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStation = "725300"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// completeYear builds a station-year with every tracked field fully observed.
func completeYear(t *testing.T, year int) *domain.StationYear {
	t.Helper()
	values := map[domain.Field]float64{
		domain.DryBulbTemperature:  12.3,
		domain.DewPointTemperature: 4.5,
		domain.AtmosphericPressure: 101325,
		domain.WindDirection:       270,
		domain.WindSpeed:           3.6,
	}
	sy := &domain.StationYear{Station: testStation, Year: year, Series: map[domain.Field]*domain.AnnualSeries{}}
	for f, v := range values {
		obs := make([]domain.Observation, domain.HoursInYear(year))
		for i := range obs {
			obs[i] = domain.Present(v)
		}
		s, err := domain.NewAnnualSeries(f, year, obs)
		require.NoError(t, err)
		sy.Series[f] = s
	}
	return sy
}

func withValue(t *testing.T, sy *domain.StationYear, f domain.Field, hour int, o domain.Observation) {
	t.Helper()
	obs := sy.Series[f].Observations()
	obs[hour] = o
	s, err := domain.NewAnnualSeries(f, sy.Year, obs)
	require.NoError(t, err)
	sy.Series[f] = s
}

func TestRelativeHumidity(t *testing.T) {
	assert.Equal(t, 100, relativeHumidity(10, 10))
	assert.Equal(t, 59, relativeHumidity(12.3, 4.5))
	assert.Equal(t, 100, relativeHumidity(5, 8), "supersaturation clamps")
}

func TestRecordFormatRoundTrip(t *testing.T) {
	r := Record{Year: 2019, Month: 3, Day: 10, Hour: 24, DryBulb: -4.2, DewPoint: -9.1, RelHumidity: 68, Pressure: 99870, WindDir: 45, WindSpeed: 7.2}
	line := r.format()
	assert.Len(t, strings.Split(line, ","), dataColumns)

	got, err := parseRecord(line)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = parseRecord("2019,1,1")
	require.Error(t, err)
}

func TestValidateRecords(t *testing.T) {
	sy := completeYear(t, 2019)
	assert.Empty(t, ValidateRecords(2019, recordsFromStationYear(sy)))

	t.Run("short year", func(t *testing.T) {
		recs := recordsFromStationYear(sy)[:100]
		v := ValidateRecords(2019, recs)
		require.Len(t, v, 1)
		assert.Equal(t, -1, v[0].Hour)
		assert.Contains(t, v[0].Message, "expected 8760")
	})

	t.Run("out of range", func(t *testing.T) {
		recs := recordsFromStationYear(sy)
		recs[5].WindSpeed = 55
		recs[9].Pressure = 20000
		v := ValidateRecords(2019, recs)
		require.Len(t, v, 2)
		assert.Equal(t, 5, v[0].Hour)
		assert.Equal(t, "wind_speed", v[0].Field)
		assert.Equal(t, 9, v[1].Hour)
		assert.Equal(t, "atmospheric_pressure", v[1].Field)
	})

	t.Run("missing marker", func(t *testing.T) {
		recs := recordsFromStationYear(sy)
		recs[0].WindDir = missingDirection
		v := ValidateRecords(2019, recs)
		require.Len(t, v, 1)
		assert.Equal(t, "missing value", v[0].Message)
	})

	t.Run("timestamp out of sequence", func(t *testing.T) {
		recs := recordsFromStationYear(sy)
		recs[1], recs[2] = recs[2], recs[1]
		v := ValidateRecords(2019, recs)
		require.Len(t, v, 2)
		assert.Equal(t, "timestamp", v[0].Field)
	})
}

func TestWriter_WritesValidFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(filepath.Join(dir, "epw"), filepath.Join(dir, "epw_validation_errors.csv"), discardLogger())
	require.NoError(t, err)

	path, err := w.Write(context.Background(), completeYear(t, 2020))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "epw", "725300_AMY_2020.epw"), path)

	f, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, f.Header, HeaderLines)
	assert.True(t, strings.HasPrefix(f.Header[0], "LOCATION,725300"))
	assert.Equal(t, "HOLIDAYS/DAYLIGHT SAVINGS,Yes,0,0,0", f.Header[4])
	assert.Equal(t, "DATA PERIODS,1,1,Data,Wednesday,1/1,12/31", f.Header[7])
	assert.Len(t, f.Records, domain.HoursPerLeapYear)
	assert.Equal(t, 2020, f.Year())
	assert.Empty(t, ValidateRecords(2020, f.Records))

	first, last := f.Records[0], f.Records[len(f.Records)-1]
	assert.Equal(t, Record{Year: 2020, Month: 1, Day: 1, Hour: 1, DryBulb: 12.3, DewPoint: 4.5, RelHumidity: 59, Pressure: 101325, WindDir: 270, WindSpeed: 3.6}, first)
	assert.Equal(t, 12, last.Month)
	assert.Equal(t, 31, last.Day)
	assert.Equal(t, 24, last.Hour)

	entries, err := os.ReadDir(filepath.Join(dir, "epw"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriter_RejectsInvalidYear(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "epw_validation_errors.csv")
	require.NoError(t, os.WriteFile(logPath, []byte("stale\n"), 0o644))

	w, err := NewWriter(dir, logPath, discardLogger())
	require.NoError(t, err)

	sy := completeYear(t, 2019)
	withValue(t, sy, domain.WindSpeed, 42, domain.Present(80))
	withValue(t, sy, domain.AtmosphericPressure, 100, domain.Missing())

	_, err = w.Write(context.Background(), sy)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Violations, 2)

	_, statErr := os.Stat(filepath.Join(dir, FileName(testStation, 2019)))
	assert.True(t, os.IsNotExist(statErr), "invalid data produces no file")

	fh, err := os.Open(logPath)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"file", "violation"}, rows[0])
	assert.Equal(t, "725300_AMY_2019.epw", rows[1][0])
	assert.Contains(t, rows[1][1], "wind_speed")
	assert.Equal(t, 2, w.ViolationsLogged())
}

func TestWriter_CapsLoggedViolations(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "v.csv")
	w, err := NewWriter(dir, logPath, discardLogger())
	require.NoError(t, err)

	sy := completeYear(t, 2019)
	obs := make([]domain.Observation, domain.HoursPerCommonYear)
	for i := range obs {
		obs[i] = domain.Present(90)
	}
	s, err := domain.NewAnnualSeries(domain.DryBulbTemperature, 2019, obs)
	require.NoError(t, err)
	sy.Series[domain.DryBulbTemperature] = s

	_, err = w.Write(context.Background(), sy)
	require.Error(t, err)
	assert.Equal(t, maxLoggedViolations+1, w.ViolationsLogged())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "and 8710 more")
}

func TestWriter_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, filepath.Join(dir, "v.csv"), discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Write(ctx, completeYear(t, 2019))
	require.ErrorIs(t, err, context.Canceled)
}

// expiringCtx reports live for the first n Err calls and expired after.
type expiringCtx struct {
	context.Context
	n int
}

func (c *expiringCtx) Err() error {
	if c.n > 0 {
		c.n--
		return nil
	}
	return context.DeadlineExceeded
}

func TestWriter_DeadlineBeforeRenameLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "epw")
	w, err := NewWriter(out, filepath.Join(dir, "v.csv"), discardLogger())
	require.NoError(t, err)

	_, err = w.Write(&expiringCtx{Context: context.Background(), n: 1}, completeYear(t, 2019))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "neither the EPW file nor its temp file should remain")
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadFile(filepath.Join(dir, "missing.epw"))
	require.Error(t, err)

	short := filepath.Join(dir, "short.epw")
	require.NoError(t, os.WriteFile(short, []byte("LOCATION,x\n"), 0o644))
	_, err = ReadFile(short)
	require.ErrorContains(t, err, "header lines")

	bad := filepath.Join(dir, "bad.epw")
	content := strings.Repeat("H\n", HeaderLines) + "2019,1,1,1\n"
	require.NoError(t, os.WriteFile(bad, []byte(content), 0o644))
	_, err = ReadFile(bad)
	require.ErrorContains(t, err, "line 9")
}

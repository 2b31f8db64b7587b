package isdlite

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	"github.com/klauspost/compress/gzip"
)

const missingInt = -9999

// Encode writes sy as ISD-Lite lines. Hours where every tracked field is
// absent are omitted, as NOAA does for unreported hours.
func Encode(w io.Writer, sy *domain.StationYear) error {
	bw := bufio.NewWriter(w)
	n := sy.Hours()
	vals := make([]int, len(columns))

	for h := 0; h < n; h++ {
		reported := false
		for i, c := range columns {
			vals[i] = missingInt
			s, ok := sy.Series[c.field]
			if !ok || s == nil {
				continue
			}
			if o := s.At(h); o.Present {
				vals[i] = int(math.Round(o.Value / c.scale))
				reported = true
			}
		}
		if !reported {
			continue
		}
		ts := domain.TimeOfHour(sy.Year, h)
		if _, err := fmt.Fprintf(bw, "%4d %02d %02d %02d %5d %5d %5d %5d %5d %5d %5d %5d\n",
			ts.Year(), int(ts.Month()), ts.Day(), ts.Hour(),
			vals[0], vals[1], vals[2], vals[3], vals[4],
			missingInt, missingInt, missingInt,
		); err != nil {
			return fmt.Errorf("encode hour %d: %w", h, err)
		}
	}
	return bw.Flush()
}

// WriteFile encodes sy to path, gzip-compressing when path ends in ".gz".
// Parent directories are created as needed.
func WriteFile(path string, sy *domain.StationYear) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create feed: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".gz") {
		if err := Encode(f, sy); err != nil {
			return err
		}
		return f.Close()
	}

	zw := gzip.NewWriter(f)
	if err := Encode(zw, sy); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close gzip stream: %w", err)
	}
	return f.Close()
}

// FileName returns the canonical ISD-Lite file name for a station, WBAN,
// and year, e.g. "725300-94846-2019.gz".
func FileName(station, wban string, year int) string {
	return fmt.Sprintf("%s-%s-%d.gz", station, wban, year)
}

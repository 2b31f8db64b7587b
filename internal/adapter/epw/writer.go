package epw

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
)

// maxLoggedViolations caps how many violations per file go to the log.
const maxLoggedViolations = 50

// Writer implements domain.Writer. It validates each station-year, writes
// conforming ones to dir, and records violations in a CSV log.
type Writer struct {
	dir     string
	logPath string
	logger  *slog.Logger

	mu     sync.Mutex
	logged int
}

// NewWriter creates dir if needed and truncates the validation log at
// logPath so each run starts with an empty log.
func NewWriter(dir, logPath string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create epw dir: %w", err)
	}
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		return nil, fmt.Errorf("truncate validation log: %w", err)
	}
	return &Writer{dir: dir, logPath: logPath, logger: logger}, nil
}

// FileName returns the output file name for a station-year.
func FileName(station string, year int) string {
	return fmt.Sprintf("%s_AMY_%d.epw", station, year)
}

// Write validates sy and writes it as an EPW file. A failed validation
// returns a *domain.ValidationError and leaves no output file behind.
func (w *Writer) Write(ctx context.Context, sy *domain.StationYear) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := FileName(sy.Station, sy.Year)
	recs := recordsFromStationYear(sy)
	if violations := ValidateRecords(sy.Year, recs); len(violations) > 0 {
		if err := w.logViolations(name, violations); err != nil {
			w.logger.Error("write validation log failed", "file", name, "error", err)
		}
		return "", &domain.ValidationError{Station: sy.Station, Year: sy.Year, Violations: violations}
	}

	path := filepath.Join(w.dir, name)
	if err := writeAtomic(ctx, path, header(sy), recs); err != nil {
		return "", err
	}
	return path, nil
}

// ViolationsLogged reports how many violation rows were written this run.
func (w *Writer) ViolationsLogged() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.logged
}

func (w *Writer) logViolations(name string, violations []domain.Violation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.logPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write([]string{"file", "violation"}); err != nil {
			return err
		}
	}
	for i, v := range violations {
		if i == maxLoggedViolations {
			_ = cw.Write([]string{name, fmt.Sprintf("... and %d more", len(violations)-i)})
			w.logged++
			break
		}
		if err := cw.Write([]string{name, v.String()}); err != nil {
			return err
		}
		w.logged++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}

// header builds the eight EPW header lines.
func header(sy *domain.StationYear) []string {
	leap := "No"
	if domain.HoursInYear(sy.Year) == domain.HoursPerLeapYear {
		leap = "Yes"
	}
	firstDay := time.Date(sy.Year, time.January, 1, 0, 0, 0, 0, time.UTC).Weekday()
	return []string{
		fmt.Sprintf("LOCATION,%s,-,-,NOAA ISD-Lite,%s,0.00,0.00,0.0,0.0", sy.Station, sy.Station),
		"DESIGN CONDITIONS,0",
		"TYPICAL/EXTREME PERIODS,0",
		"GROUND TEMPERATURES,0",
		fmt.Sprintf("HOLIDAYS/DAYLIGHT SAVINGS,%s,0,0,0", leap),
		fmt.Sprintf("COMMENTS 1,Actual Meteorological Year %d from NOAA ISD-Lite observations", sy.Year),
		"COMMENTS 2,Gaps repaired by linear interpolation and two-week imputation",
		fmt.Sprintf("DATA PERIODS,1,1,Data,%s,1/1,12/31", firstDay),
	}
}

// writeAtomic writes to a temporary file in the target directory and renames
// it into place so readers never see a partial EPW.
// writeAtomic renames the finished temp file into place only if ctx is still
// live, so an abandoned conversion never publishes an output file.
func writeAtomic(ctx context.Context, path string, head []string, recs []Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".epw-*")
	if err != nil {
		return fmt.Errorf("create temp epw: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	bw := bufio.NewWriter(tmp)
	for _, line := range head {
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	for _, r := range recs {
		bw.WriteString(r.format())
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write epw: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close epw: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename epw: %w", err)
	}
	return nil
}

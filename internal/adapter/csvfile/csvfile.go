// Package csvfile reads the station list and writes the batch error log.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
)

// ErrStationListMissing is returned when the station list file does not exist.
var ErrStationListMissing = errors.New("station list not found")

// ReadStationList returns the feed references in the first column of the CSV
// at path. The first row is a header. Blank references are skipped.
func ReadStationList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStationListMissing, path)
		}
		return nil, fmt.Errorf("open station list: %w", err)
	}
	defer f.Close()
	return parseStationList(f)
}

func parseStationList(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read station list header: %w", err)
	}

	var refs []string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read station list: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		if ref := strings.TrimSpace(row[0]); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// TruncateErrorLog removes a stale error log from a previous run.
func TruncateErrorLog(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("truncate error log: %w", err)
	}
	return nil
}

// WriteErrorLog writes one (file, error) row per failed result. Nothing is
// written when there are no failures.
func WriteErrorLog(path string, results []domain.ConversionResult) error {
	var rows [][]string
	for _, r := range results {
		if r.Succeeded() {
			continue
		}
		rows = append(rows, []string{r.Reference, r.Reason})
	}
	if len(rows) == 0 {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create error log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file", "error"}); err != nil {
		return fmt.Errorf("write error log: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write error log: %w", err)
	}
	return f.Close()
}

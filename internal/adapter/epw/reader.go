package epw

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// File is a parsed EPW file.
type File struct {
	Header  []string
	Records []Record
}

// Year returns the year of the first data row, or 0 for an empty file.
func (f *File) Year() int {
	if len(f.Records) == 0 {
		return 0
	}
	return f.Records[0].Year
}

// ReadFile parses the header and hourly rows of the EPW file at path.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open epw: %w", err)
	}
	defer fh.Close()

	out := &File{}
	sc := bufio.NewScanner(fh)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if line <= HeaderLines {
			out.Header = append(out.Header, text)
			continue
		}
		if text == "" {
			continue
		}
		r, err := parseRecord(text)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		out.Records = append(out.Records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read epw: %w", err)
	}
	if len(out.Header) < HeaderLines {
		return nil, fmt.Errorf("%s: expected %d header lines, got %d", path, HeaderLines, len(out.Header))
	}
	return out, nil
}

package isdlite

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	"github.com/klauspost/compress/gzip"
)

// FileLoader implements domain.Loader for ISD-Lite files on the local
// filesystem. Gzip-compressed files are detected by their magic bytes.
type FileLoader struct{}

// NewFileLoader creates a filesystem loader.
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load opens feed.Path and parses it into a StationYear.
func (l *FileLoader) Load(ctx context.Context, feed domain.FeedRef) (*domain.StationYear, error) {
	f, err := os.Open(feed.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFeedNotFound, feed.Path)
		}
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	r, closeFn, err := decompress(f)
	if err != nil {
		return nil, &domain.ParseError{Station: feed.Station, Year: feed.Year, Msg: err.Error()}
	}
	defer closeFn()

	return Parse(ctx, r, feed.Station, feed.Year)
}

// decompress wraps r in a gzip reader when the stream starts with the gzip
// magic number.
func decompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("read feed header: %w", err)
	}
	if len(magic) < 2 || magic[0] != 0x1f || magic[1] != 0x8b {
		return br, func() {}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("open gzip stream: %w", err)
	}
	return zr, func() { _ = zr.Close() }, nil
}

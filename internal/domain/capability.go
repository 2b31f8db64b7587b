package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrFeedNotFound is returned by a Loader when the raw feed for a
// station-year does not exist.
var ErrFeedNotFound = errors.New("feed not found")

// Loader reads one raw annual feed into a StationYear.
type Loader interface {
	Load(ctx context.Context, feed FeedRef) (*StationYear, error)
}

// Writer persists a repaired StationYear and returns the output location.
// A *ValidationError means the record set failed structural validation.
type Writer interface {
	Write(ctx context.Context, sy *StationYear) (string, error)
}

// ParseError reports raw data that cannot form a fixed-length annual series.
type ParseError struct {
	Station string
	Year    int
	Field   Field
	Line    int
	Msg     string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse feed")
	if e.Station != "" {
		fmt.Fprintf(&b, " station %s", e.Station)
	}
	if e.Year != 0 {
		fmt.Fprintf(&b, " year %d", e.Year)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	return b.String()
}

// Violation is one structural problem found while validating an output file.
type Violation struct {
	Hour    int // -1 for file-level problems
	Field   string
	Message string
}

func (v Violation) String() string {
	if v.Hour < 0 {
		return v.Message
	}
	return fmt.Sprintf("hour %d %s: %s", v.Hour, v.Field, v.Message)
}

// ValidationError reports an output record set that does not conform to the
// target format.
type ValidationError struct {
	Station    string
	Year       int
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("validate %s/%d: invalid", e.Station, e.Year)
	}
	return fmt.Sprintf("validate %s/%d: %d violations, first: %s", e.Station, e.Year, len(e.Violations), e.Violations[0])
}

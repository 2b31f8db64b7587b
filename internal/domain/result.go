package domain

import "time"

// Status is the top-level classification of a conversion.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// FailureKind groups failures by the stage that produced them.
type FailureKind string

const (
	FailureInput      FailureKind = "input"      // feed missing or reference malformed
	FailureStructural FailureKind = "structural" // feed cannot form an annual series
	FailureRepair     FailureKind = "repair"     // a gap could not be repaired
	FailureValidation FailureKind = "validation" // output rejected by the writer
	FailureTimeout    FailureKind = "timeout"
	FailureInternal   FailureKind = "internal"
)

// ConversionResult is the outcome of converting one station-year.
type ConversionResult struct {
	Index       int          `json:"index"`
	Reference   string       `json:"reference"`
	Station     string       `json:"station,omitempty"`
	Year        int          `json:"year,omitempty"`
	Status      Status       `json:"status"`
	OutputPath  string       `json:"output_path,omitempty"`
	FailureKind FailureKind  `json:"failure_kind,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	Gaps        []GapRepair  `json:"gaps,omitempty"`
	RunID       string       `json:"run_id,omitempty"`
	ProcessedAt time.Time    `json:"processed_at"`
	Duration    JSONDuration `json:"duration"`
}

// Succeeded reports whether the conversion produced an output file.
func (r ConversionResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// NewSuccess builds a success result for ref.
func NewSuccess(ref StationYearRef, outputPath string, gaps []GapRepair) ConversionResult {
	return ConversionResult{
		Reference:   ref.Reference,
		Station:     ref.Station,
		Year:        ref.Year,
		Status:      StatusSuccess,
		OutputPath:  outputPath,
		Gaps:        gaps,
		ProcessedAt: clock.Now(),
	}
}

// NewFailure builds a failure result. ref may be partially filled when the
// reference itself could not be parsed.
func NewFailure(ref StationYearRef, kind FailureKind, reason string, gaps []GapRepair) ConversionResult {
	return ConversionResult{
		Reference:   ref.Reference,
		Station:     ref.Station,
		Year:        ref.Year,
		Status:      StatusFailure,
		FailureKind: kind,
		Reason:      reason,
		Gaps:        gaps,
		ProcessedAt: clock.Now(),
	}
}

// JSONDuration marshals as a Go duration string.
type JSONDuration time.Duration

func (d JSONDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *JSONDuration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = JSONDuration(v)
	return nil
}

package pipeline

import (
	"fmt"
	"time"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
)

// Report aggregates the results of one batch run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Results    []domain.ConversionResult // sorted by Index
	Aborted    bool
}

// Successes returns the successful results in input order.
func (r Report) Successes() []domain.ConversionResult {
	return r.filter(true)
}

// Failures returns the failed results in input order.
func (r Report) Failures() []domain.ConversionResult {
	return r.filter(false)
}

func (r Report) Succeeded() int { return len(r.Successes()) }

func (r Report) Failed() int { return len(r.Failures()) }

func (r Report) filter(success bool) []domain.ConversionResult {
	var out []domain.ConversionResult
	for _, res := range r.Results {
		if res.Succeeded() == success {
			out = append(out, res)
		}
	}
	return out
}

func progress(done, total int) string {
	return fmt.Sprintf("%d/%d", done, total)
}

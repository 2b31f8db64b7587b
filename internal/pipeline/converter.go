package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	"github.com/couchcryptid/amy-epw-etl/internal/observability"
)

// Converter turns one station-year feed reference into a repaired EPW file.
// It implements StationYearConverter.
type Converter struct {
	loader  domain.Loader
	writer  domain.Writer
	policy  domain.RepairPolicy
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewConverter creates a Converter that reads feeds with loader, repairs them
// under policy, and hands the result to writer.
func NewConverter(loader domain.Loader, writer domain.Writer, policy domain.RepairPolicy, logger *slog.Logger, metrics *observability.Metrics) *Converter {
	return &Converter{
		loader:  loader,
		writer:  writer,
		policy:  policy,
		logger:  logger,
		metrics: metrics,
	}
}

// Convert never panics and never returns an error: every outcome, including
// an internal fault, is reported in the returned ConversionResult.
func (c *Converter) Convert(ctx context.Context, ref string) (res domain.ConversionResult) {
	start := time.Now()
	target := domain.StationYearRef{Reference: ref}

	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("conversion panicked", "reference", ref, "panic", p, "stack", string(debug.Stack()))
			res = domain.NewFailure(target, domain.FailureInternal, fmt.Sprintf("internal error: %v", p), nil)
		}
		res.Duration = domain.JSONDuration(time.Since(start))
	}()

	parsed, err := domain.ParseReference(ref)
	if err != nil {
		return domain.NewFailure(target, domain.FailureInput, err.Error(), nil)
	}
	target = parsed

	current, fail := c.load(ctx, target, target.Current, "current")
	if fail != nil {
		return *fail
	}
	subsequent, fail := c.load(ctx, target, target.Subsequent, "subsequent")
	if fail != nil {
		return *fail
	}

	repaired, gaps, fail := c.repair(ctx, target, current, subsequent)
	if fail != nil {
		return *fail
	}

	if ctx.Err() != nil {
		return domain.NewFailure(target, domain.FailureTimeout, "timeout", gaps)
	}
	path, err := c.writer.Write(ctx, repaired)
	if err != nil {
		var ve *domain.ValidationError
		switch {
		case errors.As(err, &ve):
			return domain.NewFailure(target, domain.FailureValidation, err.Error(), gaps)
		case isContextErr(err):
			return domain.NewFailure(target, domain.FailureTimeout, "timeout", gaps)
		default:
			return domain.NewFailure(target, domain.FailureInternal, fmt.Sprintf("write output: %v", err), gaps)
		}
	}

	c.logger.Debug("station-year converted", "station", target.Station, "year", target.Year, "gaps", len(gaps), "output", path)
	return domain.NewSuccess(target, path, gaps)
}

// load reads one feed and maps loader errors to failure kinds.
func (c *Converter) load(ctx context.Context, target domain.StationYearRef, feed domain.FeedRef, which string) (*domain.StationYear, *domain.ConversionResult) {
	sy, err := c.loader.Load(ctx, feed)
	if err == nil {
		return sy, nil
	}

	var (
		kind   domain.FailureKind
		reason string
		pe     *domain.ParseError
	)
	switch {
	case isContextErr(err):
		kind, reason = domain.FailureTimeout, "timeout"
	case errors.Is(err, domain.ErrFeedNotFound):
		kind, reason = domain.FailureInput, fmt.Sprintf("%s year feed %s: %v", which, feed.Path, err)
	case errors.As(err, &pe):
		kind, reason = domain.FailureStructural, err.Error()
	default:
		kind, reason = domain.FailureInput, fmt.Sprintf("load %s year feed %s: %v", which, feed.Path, err)
	}
	f := domain.NewFailure(target, kind, reason, nil)
	return nil, &f
}

// repair runs the gap engine over every tracked field of current. The
// subsequent year is read-only context.
func (c *Converter) repair(ctx context.Context, target domain.StationYearRef, current, subsequent *domain.StationYear) (*domain.StationYear, []domain.GapRepair, *domain.ConversionResult) {
	out := &domain.StationYear{
		Station: current.Station,
		Year:    current.Year,
		Series:  make(map[domain.Field]*domain.AnnualSeries, len(domain.TrackedFields)),
	}
	var gaps []domain.GapRepair

	for _, f := range domain.TrackedFields {
		if ctx.Err() != nil {
			fail := domain.NewFailure(target, domain.FailureTimeout, "timeout", gaps)
			return nil, nil, &fail
		}

		series, err := current.SeriesFor(f)
		if err != nil {
			fail := domain.NewFailure(target, domain.FailureStructural, err.Error(), gaps)
			return nil, nil, &fail
		}
		var next *domain.AnnualSeries
		if subsequent != nil {
			next, _ = subsequent.SeriesFor(f)
		}

		sr, err := domain.RepairSeries(c.policy, series, next)
		c.countGaps(f, sr.Gaps)
		gaps = append(gaps, sr.Gaps...)
		if err != nil {
			var ue *domain.UnrepairableGapError
			kind := domain.FailureInternal
			if errors.As(err, &ue) {
				kind = domain.FailureRepair
			}
			c.logger.Debug("gap repair failed", "station", target.Station, "year", target.Year, "field", f, "error", err)
			fail := domain.NewFailure(target, kind, err.Error(), gaps)
			return nil, nil, &fail
		}
		out.Series[f] = sr.Series
	}
	return out, gaps, nil
}

func (c *Converter) countGaps(f domain.Field, gaps []domain.GapRepair) {
	for _, g := range gaps {
		c.metrics.GapRepairs.WithLabelValues(string(f), string(g.Outcome)).Inc()
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	"github.com/couchcryptid/amy-epw-etl/internal/observability"
	"github.com/google/uuid"
)

// StationYearConverter converts one feed reference. It must report every
// outcome in the result instead of panicking or blocking past ctx.
type StationYearConverter interface {
	Convert(ctx context.Context, ref string) domain.ConversionResult
}

// ResultPublisher receives each conversion result as it completes.
type ResultPublisher interface {
	Publish(ctx context.Context, r domain.ConversionResult) error
}

// Batch runs a station list through a StationYearConverter with a bounded
// worker pool.
type Batch struct {
	converter StationYearConverter
	publisher ResultPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	workers   int
	timeout   time.Duration
}

// NewBatch creates a Batch. publisher may be nil. workers below 1 run
// sequentially; a zero timeout disables the per-conversion deadline.
func NewBatch(c StationYearConverter, publisher ResultPublisher, logger *slog.Logger, metrics *observability.Metrics, workers int, timeout time.Duration) *Batch {
	if workers < 1 {
		workers = 1
	}
	return &Batch{
		converter: c,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		workers:   workers,
		timeout:   timeout,
	}
}

// CheckReadiness returns nil once the batch has finished at least one
// conversion, or an error describing why it is not yet ready.
func (b *Batch) CheckReadiness(_ context.Context) error {
	if !b.ready.Load() {
		return errors.New("batch has not finished any conversion yet")
	}
	return nil
}

// Run converts every reference in refs and returns the results in input
// order. Cancelling ctx stops dispatch; the report then holds only the
// results obtained so far and is marked Aborted.
func (b *Batch) Run(ctx context.Context, refs []string) Report {
	report := Report{RunID: uuid.NewString(), StartedAt: domain.Now(), Total: len(refs)}
	b.logger.Info("batch started", "run_id", report.RunID, "station_years", len(refs), "workers", b.workers)
	b.metrics.BatchRunning.Set(1)
	defer b.metrics.BatchRunning.Set(0)
	b.metrics.BatchPending.Set(float64(len(refs)))

	var (
		mu      sync.Mutex
		results = make([]domain.ConversionResult, 0, len(refs))
		wg      sync.WaitGroup
		jobs    = make(chan int)
	)

	for range b.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				r, ok := b.convertOne(ctx, refs[i])
				if !ok {
					continue
				}
				r.Index = i
				r.RunID = report.RunID

				mu.Lock()
				results = append(results, r)
				done := len(results)
				mu.Unlock()

				b.finish(ctx, r, done, len(refs))
			}
		}()
	}

dispatch:
	for i := range refs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	slices.SortFunc(results, func(a, c domain.ConversionResult) int { return a.Index - c.Index })
	report.Results = results
	report.FinishedAt = domain.Now()
	report.Aborted = len(results) < len(refs)

	if report.Aborted {
		b.logger.Warn("batch aborted", "run_id", report.RunID, "done", len(results), "total", len(refs), "reason", ctx.Err())
	} else {
		b.logger.Info("batch finished", "run_id", report.RunID, "succeeded", report.Succeeded(), "failed", report.Failed(),
			"duration", report.FinishedAt.Sub(report.StartedAt))
	}
	return report
}

// convertOne runs a single conversion under the optional per-conversion
// deadline. It returns false when the batch itself was cancelled and the
// result was abandoned.
func (b *Batch) convertOne(ctx context.Context, ref string) (domain.ConversionResult, bool) {
	if ctx.Err() != nil {
		return domain.ConversionResult{}, false
	}
	cctx, cancel := ctx, context.CancelFunc(func() {})
	if b.timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, b.timeout)
	}
	defer cancel()

	done := make(chan domain.ConversionResult, 1)
	go func() { done <- b.converter.Convert(cctx, ref) }()

	select {
	case r := <-done:
		if ctx.Err() != nil && r.FailureKind == domain.FailureTimeout {
			return domain.ConversionResult{}, false
		}
		return r, true
	case <-cctx.Done():
		go b.discardLate(done)
		if ctx.Err() != nil {
			return domain.ConversionResult{}, false
		}
		target, err := domain.ParseReference(ref)
		if err != nil {
			target = domain.StationYearRef{Reference: ref}
		}
		r := domain.NewFailure(target, domain.FailureTimeout, "timeout", nil)
		r.Duration = domain.JSONDuration(b.timeout)
		return r, true
	}
}

// discardLate waits for an abandoned conversion and removes any output it
// still managed to write.
func (b *Batch) discardLate(done <-chan domain.ConversionResult) {
	r := <-done
	if !r.Succeeded() || r.OutputPath == "" {
		return
	}
	if err := os.Remove(r.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		b.logger.Error("remove abandoned output failed", "path", r.OutputPath, "error", err)
		return
	}
	b.logger.Warn("removed output of abandoned conversion", "path", r.OutputPath)
}

// finish records metrics, logs progress, and publishes r.
func (b *Batch) finish(ctx context.Context, r domain.ConversionResult, done, total int) {
	if r.Succeeded() {
		b.metrics.ConversionsSucceeded.Inc()
	} else {
		b.metrics.ConversionsFailed.WithLabelValues(string(r.FailureKind)).Inc()
	}
	b.metrics.ConversionDuration.Observe(time.Duration(r.Duration).Seconds())
	b.metrics.BatchPending.Dec()
	b.ready.Store(true)

	if r.Succeeded() {
		b.logger.Info("station-year converted", "progress", progress(done, total),
			"station", r.Station, "year", r.Year, "gaps", len(r.Gaps), "output", r.OutputPath)
	} else {
		b.logger.Warn("station-year failed", "progress", progress(done, total),
			"reference", r.Reference, "kind", r.FailureKind, "reason", r.Reason)
	}

	if b.publisher == nil {
		return
	}
	if err := b.publisher.Publish(ctx, r); err != nil {
		b.metrics.PublishErrors.Inc()
		b.logger.Warn("publish result failed", "reference", r.Reference, "error", err)
	}
}

package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	"github.com/couchcryptid/amy-epw-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConverter returns canned results keyed by reference. Refs listed in
// block wait for ctx to finish.
type scriptedConverter struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]domain.FailureKind
	block   map[string]bool
	delay   map[string]time.Duration
	started chan string
}

func (s *scriptedConverter) Convert(ctx context.Context, ref string) domain.ConversionResult {
	s.mu.Lock()
	s.calls = append(s.calls, ref)
	s.mu.Unlock()
	if s.started != nil {
		s.started <- ref
	}

	target := domain.StationYearRef{Reference: ref}
	if s.block[ref] {
		<-ctx.Done()
		return domain.NewFailure(target, domain.FailureTimeout, "timeout", nil)
	}
	if d := s.delay[ref]; d > 0 {
		time.Sleep(d)
	}
	if kind, ok := s.fail[ref]; ok {
		return domain.NewFailure(target, kind, fmt.Sprintf("%s failure", kind), nil)
	}
	return domain.NewSuccess(target, ref+".epw", nil)
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []domain.ConversionResult
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, r domain.ConversionResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, r)
	return nil
}

func refs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("data/2019/%06d-99999-2019.gz", i)
	}
	return out
}

func TestBatch_Run_Sequential(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() { domain.SetClock(nil) })

	in := refs(4)
	conv := &scriptedConverter{fail: map[string]domain.FailureKind{in[1]: domain.FailureRepair, in[3]: domain.FailureInput}}
	metrics := newTestMetrics()
	b := pipeline.NewBatch(conv, nil, discardLogger(), metrics, 1, 0)

	report := b.Run(context.Background(), in)

	assert.False(t, report.Aborted)
	assert.Equal(t, in, conv.calls, "sequential batch converts in input order")
	require.Len(t, report.Results, 4)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 2, report.Failed())
	assert.Equal(t, in[1], report.Failures()[0].Reference)
	assert.Equal(t, in[2], report.Successes()[1].Reference)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, fakeClock.Now(), report.StartedAt)
	for i, r := range report.Results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, report.RunID, r.RunID)
		assert.Equal(t, fakeClock.Now(), r.ProcessedAt)
	}

	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.ConversionsSucceeded), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ConversionsFailed.WithLabelValues("repair")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.BatchPending), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.BatchRunning), 0)
}

func TestBatch_Run_WorkerPoolKeepsInputOrder(t *testing.T) {
	in := refs(12)
	delay := map[string]time.Duration{}
	for i, ref := range in {
		delay[ref] = time.Duration(len(in)-i) * time.Millisecond
	}
	conv := &scriptedConverter{delay: delay}
	b := pipeline.NewBatch(conv, nil, discardLogger(), newTestMetrics(), 4, 0)

	report := b.Run(context.Background(), in)

	require.Len(t, report.Results, len(in))
	for i, r := range report.Results {
		assert.Equal(t, in[i], r.Reference)
		assert.Equal(t, i, r.Index)
	}
	assert.Len(t, conv.calls, len(in))
}

func TestBatch_Run_Timeout(t *testing.T) {
	in := refs(3)
	conv := &scriptedConverter{block: map[string]bool{in[1]: true}}
	metrics := newTestMetrics()
	b := pipeline.NewBatch(conv, nil, discardLogger(), metrics, 2, 20*time.Millisecond)

	report := b.Run(context.Background(), in)

	require.Len(t, report.Results, 3)
	assert.False(t, report.Aborted)
	timedOut := report.Results[1]
	assert.Equal(t, domain.FailureTimeout, timedOut.FailureKind)
	assert.Equal(t, "timeout", timedOut.Reason)
	assert.Equal(t, "000001", timedOut.Station)
	assert.True(t, report.Results[0].Succeeded())
	assert.True(t, report.Results[2].Succeeded())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ConversionsFailed.WithLabelValues("timeout")), 0)
}

// lateWriter ignores ctx and writes its output after delay.
type lateWriter struct {
	dir   string
	delay time.Duration
	wrote chan struct{}
}

func (l lateWriter) Convert(_ context.Context, ref string) domain.ConversionResult {
	time.Sleep(l.delay)
	path := filepath.Join(l.dir, filepath.Base(ref)+".epw")
	if err := os.WriteFile(path, []byte("epw"), 0o644); err != nil {
		return domain.NewFailure(domain.StationYearRef{Reference: ref}, domain.FailureInternal, err.Error(), nil)
	}
	close(l.wrote)
	return domain.NewSuccess(domain.StationYearRef{Reference: ref}, path, nil)
}

func TestBatch_Run_TimeoutRemovesLateOutput(t *testing.T) {
	dir := t.TempDir()
	in := refs(1)
	conv := lateWriter{dir: dir, delay: 50 * time.Millisecond, wrote: make(chan struct{})}
	b := pipeline.NewBatch(conv, nil, discardLogger(), newTestMetrics(), 1, 10*time.Millisecond)

	report := b.Run(context.Background(), in)

	require.Len(t, report.Results, 1)
	assert.Equal(t, domain.FailureTimeout, report.Results[0].FailureKind)
	late := filepath.Join(dir, filepath.Base(in[0])+".epw")
	<-conv.wrote
	assert.Eventually(t, func() bool {
		entries, err := os.ReadDir(dir)
		return err == nil && len(entries) == 0
	}, 2*time.Second, 10*time.Millisecond, "output %s of a timed-out conversion should be removed", late)
}

func TestBatch_Run_AbortedOnCancel(t *testing.T) {
	in := refs(5)
	conv := &scriptedConverter{block: map[string]bool{in[1]: true}, started: make(chan string, len(in))}
	b := pipeline.NewBatch(conv, nil, discardLogger(), newTestMetrics(), 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for ref := range conv.started {
			if ref == in[1] {
				cancel()
				return
			}
		}
	}()

	report := b.Run(ctx, in)

	assert.True(t, report.Aborted)
	require.Len(t, report.Results, 1, "only results obtained before cancellation")
	assert.Equal(t, in[0], report.Results[0].Reference)
	assert.Equal(t, 5, report.Total)
}

func TestBatch_Run_PublishesResults(t *testing.T) {
	in := refs(3)
	pub := &recordingPublisher{}
	b := pipeline.NewBatch(&scriptedConverter{}, pub, discardLogger(), newTestMetrics(), 2, 0)

	report := b.Run(context.Background(), in)

	assert.Equal(t, 3, report.Succeeded())
	assert.Len(t, pub.published, 3)
	for _, r := range pub.published {
		assert.Equal(t, report.RunID, r.RunID)
	}
}

func TestBatch_Run_PublishErrorsDoNotFailBatch(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	metrics := newTestMetrics()
	b := pipeline.NewBatch(&scriptedConverter{}, pub, discardLogger(), metrics, 1, 0)

	report := b.Run(context.Background(), refs(2))

	assert.Equal(t, 2, report.Succeeded())
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.PublishErrors), 0)
}

func TestBatch_Readiness(t *testing.T) {
	b := pipeline.NewBatch(&scriptedConverter{}, nil, discardLogger(), newTestMetrics(), 1, 0)
	require.Error(t, b.CheckReadiness(context.Background()))

	b.Run(context.Background(), refs(1))
	assert.NoError(t, b.CheckReadiness(context.Background()))
}

func TestBatch_Run_Empty(t *testing.T) {
	b := pipeline.NewBatch(&scriptedConverter{}, nil, discardLogger(), newTestMetrics(), 3, 0)
	report := b.Run(context.Background(), nil)
	assert.False(t, report.Aborted)
	assert.Empty(t, report.Results)
	assert.Zero(t, report.Failed())
}

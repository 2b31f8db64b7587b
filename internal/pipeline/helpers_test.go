package pipeline_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	"github.com/couchcryptid/amy-epw-etl/internal/observability"
	"github.com/stretchr/testify/require"
)

const (
	testStation = "725300"
	testRef     = "data/2019/725300-94846-2019.gz"
	nextPath    = "data/2020/725300-94846-2020.gz"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

// baseValue is a plausible reading for f at hour h, quantised to the
// resolution ISD-Lite stores.
func baseValue(f domain.Field, h int) float64 {
	switch f {
	case domain.DryBulbTemperature:
		return float64(h%240)/10 - 5
	case domain.DewPointTemperature:
		return float64(h%120)/10 - 10
	case domain.AtmosphericPressure:
		return 101000 + float64(h%50)*10
	case domain.WindDirection:
		return float64(h % 360)
	default:
		return float64(h%100) / 10
	}
}

// fullYear builds a station-year with every field observed at every hour.
func fullYear(t *testing.T, station string, year int) *domain.StationYear {
	t.Helper()
	sy := &domain.StationYear{Station: station, Year: year, Series: map[domain.Field]*domain.AnnualSeries{}}
	for _, f := range domain.TrackedFields {
		obs := make([]domain.Observation, domain.HoursInYear(year))
		for h := range obs {
			obs[h] = domain.Present(baseValue(f, h))
		}
		s, err := domain.NewAnnualSeries(f, year, obs)
		require.NoError(t, err)
		sy.Series[f] = s
	}
	return sy
}

// withGap returns a copy of sy with field f absent over [start, start+length).
func withGap(t *testing.T, sy *domain.StationYear, f domain.Field, start, length int) *domain.StationYear {
	t.Helper()
	out := &domain.StationYear{Station: sy.Station, Year: sy.Year, Series: map[domain.Field]*domain.AnnualSeries{}}
	for k, v := range sy.Series {
		out.Series[k] = v
	}
	obs := sy.Series[f].Observations()
	for h := start; h < start+length; h++ {
		obs[h] = domain.Missing()
	}
	s, err := domain.NewAnnualSeries(f, sy.Year, obs)
	require.NoError(t, err)
	out.Series[f] = s
	return out
}

// --- mocks ---

type mockLoader struct {
	feeds map[string]*domain.StationYear
	errs  map[string]error
}

func newMockLoader() *mockLoader {
	return &mockLoader{feeds: map[string]*domain.StationYear{}, errs: map[string]error{}}
}

func (m *mockLoader) Load(ctx context.Context, feed domain.FeedRef) (*domain.StationYear, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.errs[feed.Path]; ok {
		return nil, err
	}
	sy, ok := m.feeds[feed.Path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", feed.Path, domain.ErrFeedNotFound)
	}
	return sy, nil
}

type mockWriter struct {
	mu      sync.Mutex
	written []*domain.StationYear
	err     error
	panics  bool
}

func (m *mockWriter) Write(_ context.Context, sy *domain.StationYear) (string, error) {
	if m.panics {
		panic("writer exploded")
	}
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, sy)
	return fmt.Sprintf("out/%s_AMY_%d.epw", sy.Station, sy.Year), nil
}

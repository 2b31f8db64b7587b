package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/amy-epw-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/amy-epw-etl/internal/adapter/epw"
	"github.com/couchcryptid/amy-epw-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/amy-epw-etl/internal/adapter/isdlite"
	kafkaadapter "github.com/couchcryptid/amy-epw-etl/internal/adapter/kafka"
	"github.com/couchcryptid/amy-epw-etl/internal/config"
	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	"github.com/couchcryptid/amy-epw-etl/internal/observability"
	"github.com/couchcryptid/amy-epw-etl/internal/pipeline"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

// Output layout under --output-dir.
const (
	epwSubdir         = "epw"
	validationLogName = "epw_validation_errors.csv"
	errorLogName      = "errors.csv"
	lockFileName      = ".amyepw.lock"
)

type convertFlags struct {
	stationList    string
	outputDir      string
	maxInterpolate int
	maxImpute      int
	workers        int
	timeout        time.Duration
	httpAddr       string
}

func newConvertCommand(a *app) *cobra.Command {
	var f convertFlags

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert every station-year in the station list to an EPW file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return withCode(exitFailure, fmt.Errorf("load config: %w", err))
			}
			applyConvertFlags(cmd, cfg, f)
			if err := cfg.Validate(); err != nil {
				return withCode(exitFailure, fmt.Errorf("invalid config: %w", err))
			}
			return runConvert(cmd.Context(), a, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.stationList, "station-list", "", "CSV whose first column lists the ISD-Lite feeds to convert (env STATION_LIST)")
	flags.StringVar(&f.outputDir, "output-dir", "", "Directory for EPW files and logs (env OUTPUT_DIR)")
	flags.IntVar(&f.maxInterpolate, "max-records-to-interpolate", domain.DefaultMaxInterpolate, "Longest gap filled by linear interpolation")
	flags.IntVar(&f.maxImpute, "max-records-to-impute", domain.DefaultMaxImpute, "Longest gap filled by two-week imputation")
	flags.IntVar(&f.workers, "workers", 1, "Concurrent conversions")
	flags.DurationVar(&f.timeout, "timeout", 0, "Per-conversion timeout, 0 for none")
	flags.StringVar(&f.httpAddr, "http-addr", "", "Serve /healthz, /readyz and /metrics on this address while running")
	return cmd
}

// applyConvertFlags overrides cfg with every flag the user set explicitly.
func applyConvertFlags(cmd *cobra.Command, cfg *config.Config, f convertFlags) {
	changed := cmd.Flags().Changed
	if changed("station-list") {
		cfg.StationList = f.stationList
	}
	if changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if changed("max-records-to-interpolate") {
		cfg.MaxRecordsToInterpolate = f.maxInterpolate
	}
	if changed("max-records-to-impute") {
		cfg.MaxRecordsToImpute = f.maxImpute
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("timeout") {
		cfg.ConversionTimeout = f.timeout
	}
	if changed("http-addr") {
		cfg.HTTPAddr = f.httpAddr
	}
}

func runConvert(ctx context.Context, a *app, cfg *config.Config) error {
	logger := observability.NewLogger(cfg)
	metrics := a.newMetrics()

	policy, err := cfg.RepairPolicy()
	if err != nil {
		return withCode(exitFailure, err)
	}

	refs, err := csvfile.ReadStationList(cfg.StationList)
	if err != nil {
		if errors.Is(err, csvfile.ErrStationListMissing) {
			return withCode(exitPreflight, err)
		}
		return withCode(exitFailure, err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return withCode(exitFailure, fmt.Errorf("create output dir: %w", err))
	}
	lock := flock.New(filepath.Join(cfg.OutputDir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return withCode(exitFailure, fmt.Errorf("acquire output lock: %w", err))
	}
	if !ok {
		return withCode(exitFailure, fmt.Errorf("another batch is writing to %s", cfg.OutputDir))
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release output lock failed", "error", err)
		}
	}()

	errorLog := filepath.Join(cfg.OutputDir, errorLogName)
	if err := csvfile.TruncateErrorLog(errorLog); err != nil {
		return withCode(exitFailure, err)
	}
	writer, err := epw.NewWriter(filepath.Join(cfg.OutputDir, epwSubdir), filepath.Join(cfg.OutputDir, validationLogName), logger)
	if err != nil {
		return withCode(exitFailure, err)
	}

	loader := isdlite.NewCachedLoader(isdlite.NewFileLoader(), cfg.LoaderCacheSize, metrics)
	converter := pipeline.NewConverter(loader, writer, policy, logger, metrics)

	var publisher pipeline.ResultPublisher
	if cfg.KafkaEnabled {
		p := kafkaadapter.NewResultPublisher(cfg, logger)
		defer func() {
			if err := p.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		publisher = p
		logger.Info("publishing results to kafka", "topic", cfg.KafkaResultsTopic, "brokers", cfg.KafkaBrokers)
	}

	batch := pipeline.NewBatch(converter, publisher, logger, metrics, cfg.Workers, cfg.ConversionTimeout)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, batch, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("ops server error", "error", err)
			}
		}()
		defer shutdownServer(srv, cfg.ShutdownTimeout, logger)
	}

	report := batch.Run(ctx, refs)

	if err := csvfile.WriteErrorLog(errorLog, report.Results); err != nil {
		logger.Error("write error log failed", "error", err)
	}
	fmt.Fprintln(a.stdout, renderSummary(report))

	if report.Aborted {
		return withCode(exitFailure, fmt.Errorf("batch aborted after %d of %d station-years", len(report.Results), report.Total))
	}
	return nil
}

func shutdownServer(srv *httpadapter.Server, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("ops server shutdown error", "error", err)
	}
}

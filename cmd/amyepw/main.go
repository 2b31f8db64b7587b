// Command amyepw converts NOAA ISD-Lite station-year feeds into
// Actual Meteorological Year EPW weather files.
//
// Usage:
//
//	amyepw convert --station-list files_to_convert.csv --output-dir out
//	amyepw gaps data/2019/725300-94846-2019.gz
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/amy-epw-etl/internal/observability"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1 // bad configuration or an aborted batch
	exitPreflight = 2 // station list missing
)

// exitError carries a process exit code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout, newMetrics: observability.NewMetrics}
	err := newRootCommand(a).ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

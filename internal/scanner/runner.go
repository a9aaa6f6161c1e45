package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/faireye-hive/hive-cache/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Confirmer asks a human whether a batch action should proceed.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Runner executes sweeps in the background after a delay. A sweep, once
// scheduled, is never cancelled by its caller.
type Runner struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRunner returns a runner logging to logger.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Schedule runs fn after delay on its own goroutine and returns at once.
// The context passed to fn carries ctx's values but not its cancellation.
// A panic inside fn is recovered and logged.
func (r *Runner) Schedule(ctx context.Context, name string, delay time.Duration, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if delay > 0 {
			time.Sleep(delay)
		}
		r.run(ctx, name, fn)
	}()
}

// RunNow executes fn synchronously with the same recovery and metrics as
// Schedule.
func (r *Runner) RunNow(ctx context.Context, name string, fn func(context.Context) error) error {
	return r.run(ctx, name, fn)
}

func (r *Runner) run(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	span, ctx := observability.NewSpan(ctx, "scan."+name, attribute.String("scanner", name))
	defer span.End()
	defer observability.TrackScan(name)()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scanner %s panicked: %v", name, rec)
		}
		if err != nil {
			span.SetError(err)
			observability.ScanRuns.WithLabelValues(name, "error").Inc()
			observability.LogAsyncOperationError(ctx, r.logger, "scan."+name, err)
			return
		}
		observability.ScanRuns.WithLabelValues(name, "ok").Inc()
		observability.LogAsyncOperationEnd(ctx, r.logger, "scan."+name)
	}()

	observability.LogAsyncOperationStart(ctx, r.logger, "scan."+name)
	return fn(ctx)
}

// Wait blocks until every scheduled sweep has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

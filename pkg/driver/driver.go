// Package driver assembles execution contexts from upstream locus data and
// runs user filters against them, one synchronous invocation per locus.
package driver

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/locusflow/locusflow/pkg/errors"
	"github.com/locusflow/locusflow/pkg/filter"
	"github.com/locusflow/locusflow/pkg/source"
	"github.com/locusflow/locusflow/pkg/streams"
	"github.com/locusflow/locusflow/pkg/telemetry"
)

// Config configures a Driver. All collaborators are passed explicitly; the
// driver holds no process-wide state.
type Config struct {
	// Timeout is the wall-clock budget per invocation. Zero disables the
	// budget. User filters are untrusted code; deployments should set it.
	Timeout time.Duration

	// Workers bounds batch concurrency. Zero means NumCPU.
	Workers int

	Logger  zerolog.Logger
	Tracer  trace.Tracer
	Metrics telemetry.Metrics
}

// Driver runs filters against loci fetched from a source. Each invocation is
// isolated: a fresh context, no shared mutable state with any other
// invocation.
type Driver struct {
	src      source.LocusSource
	registry *streams.Registry
	cfg      Config
}

// New creates a driver over the given source and stream registry.
func New(src source.LocusSource, registry *streams.Registry, cfg Config) *Driver {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.NoopTracer()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics{}
	}
	return &Driver{src: src, registry: registry, cfg: cfg}
}

// Run fetches the locus, builds a fresh execution context, and invokes the
// filter exactly once. The returned report always carries the requested side
// effects up to the point of failure; a filter fault or timeout is recorded
// in the report's Err and returned.
//
// The error return is non-nil only when no invocation happened at all
// (unknown locus, insufficient history, source failure, cancellation).
func (d *Driver) Run(ctx context.Context, locusID int64, name string, fn filter.Func) (*filter.Report, error) {
	ctx, span := d.cfg.Tracer.Start(ctx, "driver.run",
		trace.WithAttributes(
			attribute.Int64("locus_id", locusID),
			attribute.String("filter", name),
		))
	defer span.End()

	fetchStart := time.Now()
	locus, err := d.src.Get(ctx, locusID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	d.cfg.Metrics.Timer(telemetry.MetricSourceLatency, time.Since(fetchStart), nil)

	// Pipeline precondition: a locus only reaches filters once it has at
	// least two measurements.
	if len(locus.Measurements) < 2 {
		err := errors.InsufficientHistory(locusID, len(locus.Measurements))
		span.RecordError(err)
		return nil, err
	}

	fctx := filter.NewContext(locus, d.registry)
	start := time.Now()
	invokeErr := d.invoke(ctx, fctx, locusID, name, fn)
	duration := time.Since(start)

	report := fctx.Report(name, duration, invokeErr)

	tags := map[string]string{telemetry.TagFilter: name}
	d.cfg.Metrics.Counter(telemetry.MetricInvocationsTotal, 1, tags)
	d.cfg.Metrics.Timer(telemetry.MetricInvocationDuration, duration, tags)
	d.cfg.Metrics.Counter(telemetry.MetricPropertiesSet, int64(len(report.NewProperties)), tags)
	d.cfg.Metrics.Counter(telemetry.MetricStreamRequests, int64(len(report.NewStreams)), tags)

	if invokeErr != nil {
		span.RecordError(invokeErr)
		if errors.IsCode(invokeErr, errors.CodeFilterTimeout) {
			d.cfg.Metrics.Counter(telemetry.MetricInvocationTimeouts, 1, tags)
		} else {
			d.cfg.Metrics.Counter(telemetry.MetricInvocationErrors, 1, tags)
		}
		d.cfg.Logger.Warn().
			Err(invokeErr).
			Int64("locus_id", locusID).
			Str("filter", name).
			Dur("duration", duration).
			Msg("filter invocation failed")
		return report, invokeErr
	}

	d.cfg.Logger.Debug().
		Int64("locus_id", locusID).
		Str("filter", name).
		Dur("duration", duration).
		Int("properties", len(report.NewProperties)).
		Strs("streams", report.NewStreams).
		Msg("filter invocation complete")
	return report, nil
}

// invoke runs the filter in its own goroutine so a wall-clock budget can be
// enforced and a panic contained. Go cannot kill a running goroutine, so a
// timed-out filter is abandoned; the context it holds is never committed.
func (d *Driver) invoke(ctx context.Context, fctx *filter.Context, locusID int64, name string, fn filter.Func) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.FilterExecution(name, locusID, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := fn(fctx); err != nil {
			// Structured usage errors pass through with their code.
			if e, ok := err.(*errors.Error); ok {
				done <- e
				return
			}
			done <- errors.FilterExecution(name, locusID, err)
			return
		}
		done <- nil
	}()

	var budget <-chan time.Time
	if d.cfg.Timeout > 0 {
		timer := time.NewTimer(d.cfg.Timeout)
		defer timer.Stop()
		budget = timer.C
	}

	select {
	case err := <-done:
		return err
	case <-budget:
		return errors.FilterTimeout(name, locusID, d.cfg.Timeout.String())
	case <-ctx.Done():
		return errors.ContextCanceled("filter invocation")
	}
}

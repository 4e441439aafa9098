package driver

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/locusflow/locusflow/pkg/filter"
)

// BatchResult pairs one locus's outcome with its position in the input.
// Report is nil when no invocation happened (source failure, insufficient
// history); Err carries whatever went wrong.
type BatchResult struct {
	LocusID int64
	Report  *filter.Report
	Err     error
}

// ProgressFunc is called after each completed invocation with the running
// completion count. Called from worker goroutines; implementations must be
// safe for concurrent use.
type ProgressFunc func(completed, total int)

// RunBatch runs the filter over every locus id, bounded by the configured
// worker count. Results are index-aligned with the input: result i always
// belongs to ids[i], whatever order invocations finish in. Failures are
// per-index and never affect other loci. Only context cancellation stops the
// batch early.
func (d *Driver) RunBatch(ctx context.Context, ids []int64, name string, fn filter.Func) []BatchResult {
	return d.RunBatchProgress(ctx, ids, name, fn, nil)
}

// RunBatchProgress is RunBatch with a completion callback for progress bars.
func (d *Driver) RunBatchProgress(ctx context.Context, ids []int64, name string, fn filter.Func, progress ProgressFunc) []BatchResult {
	results := make([]BatchResult, len(ids))

	var (
		mu        sync.Mutex
		completed int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = BatchResult{LocusID: id, Err: err}
				return nil
			}

			report, err := d.Run(ctx, id, name, fn)
			results[i] = BatchResult{LocusID: id, Report: report, Err: err}

			if progress != nil {
				mu.Lock()
				completed++
				n := completed
				mu.Unlock()
				progress(n, len(ids))
			}
			// Per-locus failures are recorded, not propagated; one bad
			// filter run must not cancel its neighbors.
			return nil
		})
	}

	g.Wait()
	return results
}

// Succeeded returns the reports of the successful results, input order
// preserved.
func Succeeded(results []BatchResult) []*filter.Report {
	reports := make([]*filter.Report, 0, len(results))
	for _, r := range results {
		if r.Err == nil && r.Report != nil {
			reports = append(reports, r.Report)
		}
	}
	return reports
}

// Package commit applies validated filter reports: it persists requested
// properties onto the locus record and delivers stream requests to their
// destinations. Until a report passes through here, nothing a filter did is
// externally visible.
package commit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/errors"
	"github.com/locusflow/locusflow/pkg/filter"
	"github.com/locusflow/locusflow/pkg/streams"
	"github.com/locusflow/locusflow/pkg/telemetry"
)

// PropertyStore durably stores committed properties onto a locus record.
type PropertyStore interface {
	// Put upserts the properties for the locus.
	Put(ctx context.Context, locusID int64, props map[string]model.Value) error

	// Close releases resources.
	Close() error
}

// Committer validates and applies reports. Stream validation happens here
// again even though the execution context already checked it: validation may
// have been deferred when the context was built without a registry, and no
// delivery may precede it.
type Committer struct {
	registry  *streams.Registry
	store     PropertyStore
	publisher streams.Publisher
	log       zerolog.Logger
	metrics   telemetry.Metrics
}

// New creates a committer. Store and publisher may be nil when the
// deployment only wants one of the two effects.
func New(registry *streams.Registry, store PropertyStore, publisher streams.Publisher, log zerolog.Logger, metrics telemetry.Metrics) *Committer {
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	return &Committer{
		registry:  registry,
		store:     store,
		publisher: publisher,
		log:       log,
		metrics:   metrics,
	}
}

// Commit applies one report. Failed reports are rejected outright; a report
// naming a stream outside the registry fails before any property write or
// delivery. Partial failures after validation are collected and surfaced as
// CodeCommitFailed.
func (c *Committer) Commit(ctx context.Context, report *filter.Report) error {
	if report.Failed() {
		return errors.Wrap(report.Err, errors.CodeCommitFailed, "refusing to commit failed invocation").
			WithContext("locus_id", report.LocusID).
			WithContext("invocation_id", report.InvocationID)
	}

	for _, stream := range report.NewStreams {
		if !c.registry.Has(stream) {
			return errors.UnknownStream(stream, c.registry.Names())
		}
	}

	var merr errors.MultiError

	if c.store != nil && len(report.NewProperties) > 0 {
		if err := c.store.Put(ctx, report.LocusID, report.NewProperties); err != nil {
			merr.Add(errors.Wrap(err, errors.CodePropertyStore, "property persistence failed").
				WithContext("locus_id", report.LocusID))
		}
	}

	if c.publisher != nil {
		for _, stream := range report.NewStreams {
			if err := c.publisher.Publish(ctx, stream, report); err != nil {
				merr.Add(err)
				continue
			}
			c.metrics.Counter(telemetry.MetricDeliveriesTotal, 1,
				map[string]string{telemetry.TagStream: stream})
		}
	}

	c.metrics.Counter(telemetry.MetricCommitsTotal, 1, nil)
	if merr.HasErrors() {
		c.metrics.Counter(telemetry.MetricCommitErrors, 1, nil)
		return errors.Wrap(merr.Combined(), errors.CodeCommitFailed, "commit incomplete").
			WithContext("locus_id", report.LocusID).
			WithContext("invocation_id", report.InvocationID)
	}

	c.log.Info().
		Int64("locus_id", report.LocusID).
		Str("invocation_id", report.InvocationID).
		Int("properties", len(report.NewProperties)).
		Strs("streams", report.NewStreams).
		Msg("report committed")
	return nil
}

// CommitAll commits every successful report in a batch, returning the first
// validation error per report via the result slice. Index-aligned with the
// input.
func (c *Committer) CommitAll(ctx context.Context, reports []*filter.Report) []error {
	errs := make([]error, len(reports))
	for i, report := range reports {
		errs[i] = c.Commit(ctx, report)
	}
	return errs
}

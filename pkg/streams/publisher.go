package streams

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/locusflow/locusflow/pkg/filter"
)

// Publisher delivers a committed report to one output stream. Delivery
// happens only after the commit pipeline has validated the report; this
// component never publishes uncommitted intent.
type Publisher interface {
	// Publish delivers the report to the named stream.
	Publish(ctx context.Context, stream string, report *filter.Report) error

	// Close releases resources.
	Close() error
}

// LogPublisher writes stream deliveries to the structured log. Useful for
// development and for dry-run testing of new filters.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher creates a log-backed publisher.
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish logs the delivery.
func (p *LogPublisher) Publish(_ context.Context, stream string, report *filter.Report) error {
	p.log.Info().
		Str("stream", stream).
		Int64("locus_id", report.LocusID).
		Str("filter", report.FilterName).
		Str("invocation_id", report.InvocationID).
		Msg("stream delivery")
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }

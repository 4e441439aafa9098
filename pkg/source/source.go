// Package source provides access to upstream locus data: the ordered
// measurement history and the precomputed catalog match set for a locus
// identifier. Sources are read-only and assumed consistent at call time.
package source

import (
	"context"

	"github.com/locusflow/locusflow/internal/model"
)

// LocusSource fetches assembled locus data by identifier.
type LocusSource interface {
	// Get returns the locus for id, measurements sorted (MJD, AlertID)
	// ascending. An unknown id fails with CodeLocusNotFound.
	Get(ctx context.Context, id int64) (*model.Locus, error)

	// IDs lists every locus identifier the source knows, ascending.
	IDs(ctx context.Context) ([]int64, error)

	// Close releases resources.
	Close() error
}

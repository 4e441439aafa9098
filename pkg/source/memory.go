package source

import (
	"context"
	"sort"
	"sync"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/errors"
)

// MemorySource serves loci from memory (for testing and embedding).
type MemorySource struct {
	mu   sync.RWMutex
	loci map[int64]*model.Locus
}

// NewMemorySource creates a source over the given loci. Measurement
// histories are sorted on insertion.
func NewMemorySource(loci ...*model.Locus) *MemorySource {
	s := &MemorySource{loci: make(map[int64]*model.Locus, len(loci))}
	for _, l := range loci {
		s.Put(l)
	}
	return s
}

// Put adds or replaces a locus.
func (s *MemorySource) Put(l *model.Locus) {
	l.Sort()
	s.mu.Lock()
	s.loci[l.ID] = l
	s.mu.Unlock()
}

// Get returns the locus for id.
func (s *MemorySource) Get(_ context.Context, id int64) (*model.Locus, error) {
	s.mu.RLock()
	l, ok := s.loci[id]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.LocusNotFound(id)
	}
	return l, nil
}

// IDs lists known locus identifiers, ascending.
func (s *MemorySource) IDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.loci))
	for id := range s.loci {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close is a no-op.
func (s *MemorySource) Close() error { return nil }

// Package filter implements the execution contract for user-supplied alert
// filters: a per-invocation context over one locus's assembled data, and the
// report of property and stream side effects the filter requested.
package filter

import (
	"sync"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/errors"
)

// Func is a user-supplied filter. It inspects the context and optionally
// records properties and stream requests. A non-nil return is a fault and is
// surfaced to the driver's caller as a filter execution error.
//
// Filters must not retain the context beyond their own invocation.
type Func func(*Context) error

// StreamChecker validates stream names against the caller's registry of
// valid destinations. *streams.Registry satisfies it.
type StreamChecker interface {
	Has(name string) bool
	Names() []string
}

// Context is the read/write facade handed to a filter for exactly one
// invocation. It bundles the triggering measurement, the full measurement
// history, the precomputed catalog matches, and the two output collections.
// The output collections are mutex-guarded: when an invocation overruns its
// budget the driver seals a report while the abandoned filter goroutine may
// still be writing.
type Context struct {
	locus    *model.Locus
	current  *model.Measurement
	registry StreamChecker

	mu            sync.Mutex
	newProperties map[string]model.Value
	newStreams    map[string]struct{}
}

// NewContext builds a fresh context for one invocation. The triggering
// measurement is the latest in the locus history.
func NewContext(locus *model.Locus, registry StreamChecker) *Context {
	return &Context{
		locus:         locus,
		current:       locus.Latest(),
		registry:      registry,
		newProperties: make(map[string]model.Value),
		newStreams:    make(map[string]struct{}),
	}
}

// LocusID returns the identifier of the locus under execution.
func (c *Context) LocusID() int64 {
	return c.locus.ID
}

// Properties returns a snapshot of all known scalar fields of the triggering
// measurement, merged with any properties set earlier in this invocation.
// Custom properties win on name collision. The returned map is a copy;
// mutating it does not affect context state.
func (c *Context) Properties() map[string]model.Value {
	props := make(map[string]model.Value, len(c.current.Fields)+2)
	props[model.FieldAlertID] = model.IntValue(c.current.AlertID)
	props[model.FieldMJD] = model.FloatValue(c.current.MJD)
	for name, v := range c.current.Fields {
		props[name] = v
	}
	c.mu.Lock()
	for name, v := range c.newProperties {
		props[name] = v
	}
	c.mu.Unlock()
	return props
}

// CatalogMatches returns the precomputed catalog match set. Catalogs with no
// matches are absent keys; callers test membership on the key set.
func (c *Context) CatalogMatches() map[string][]model.CatalogMatch {
	return c.locus.Matches
}

// SetProperty records a scalar property to be persisted onto the locus when
// the caller commits the report. Accepted kinds are integers, floats, and
// strings; anything else fails with CodeInvalidPropertyType and leaves the
// output untouched. The last write for a name within one invocation wins.
func (c *Context) SetProperty(name string, value any) error {
	v, ok := model.FromNative(value)
	if !ok || v.Kind == model.KindNull || v.Kind == model.KindBool {
		return errors.InvalidPropertyType(name, value)
	}
	c.mu.Lock()
	c.newProperties[name] = v
	c.mu.Unlock()
	return nil
}

// SendToStream requests publication of this locus to the named output
// stream when the caller commits the report. Duplicate requests collapse.
// A name outside the registry fails with CodeUnknownStream.
func (c *Context) SendToStream(name string) error {
	if c.registry != nil && !c.registry.Has(name) {
		return errors.UnknownStream(name, c.registry.Names())
	}
	c.mu.Lock()
	c.newStreams[name] = struct{}{}
	c.mu.Unlock()
	return nil
}

package filter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/errors"
)

// Builtin filters. They mirror the worked examples shipped with the
// platform's tutorial material and double as smoke tests for a deployment's
// stream wiring.
const (
	BuiltinHighSNR       = "high_snr"
	BuiltinExtragalactic = "extragalactic"
	BuiltinHighAmplitude = "high_amplitude"
)

// registry maps filter names to functions. Runtime selection without
// if/else chains in main code.
type registry struct {
	mu      sync.RWMutex
	filters map[string]Func
}

var defaultRegistry = &registry{filters: make(map[string]Func)}

// Register adds a named filter to the process-wide registry. Later
// registrations replace earlier ones.
func Register(name string, fn Func) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.filters[name] = fn
}

// Lookup returns a registered filter by name.
func Lookup(name string) (Func, error) {
	defaultRegistry.mu.RLock()
	fn, ok := defaultRegistry.filters[name]
	defaultRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown filter: %s (known: %v)", name, Names())
	}
	return fn, nil
}

// Names returns the registered filter names, sorted.
func Names() []string {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()

	names := make([]string, 0, len(defaultRegistry.filters))
	for name := range defaultRegistry.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(BuiltinHighSNR, HighSNR(10.0))
	Register(BuiltinExtragalactic, Extragalactic("ned", "veron", "sdss_gals"))
	Register(BuiltinHighAmplitude, HighAmplitude(1.0))
}

// HighSNR tags loci whose triggering alert has a signal-to-noise ratio above
// threshold, computed as mag error reciprocal when no snr field is present.
func HighSNR(threshold float64) Func {
	return func(ctx *Context) error {
		props := ctx.Properties()

		snr := props["snr"]
		if snr.IsNull() {
			sigmag := props["sigmag"]
			if sigmag.Kind != model.KindFloat || sigmag.Float <= 0 {
				return nil
			}
			snr = model.FloatValue(1.0 / sigmag.Float)
		}
		if snr.Kind != model.KindFloat || snr.Float <= threshold {
			return nil
		}

		if err := ctx.SetProperty("snr", snr.Float); err != nil {
			return err
		}
		return ctx.SendToStream(BuiltinHighSNR)
	}
}

// Extragalactic tags loci that match at least one of the given extragalactic
// catalogs. Membership is tested on the key set of the match mapping; absent
// catalogs have no key.
func Extragalactic(catalogs ...string) Func {
	return func(ctx *Context) error {
		matches := ctx.CatalogMatches()
		for _, name := range catalogs {
			if hits, ok := matches[name]; ok {
				if err := ctx.SetProperty("matched_catalog", name); err != nil {
					return err
				}
				if err := ctx.SetProperty("match_count", len(hits)); err != nil {
					return err
				}
				return ctx.SendToStream(BuiltinExtragalactic)
			}
		}
		return nil
	}
}

// HighAmplitude tags loci whose magnitude range across the full history
// exceeds minRange.
func HighAmplitude(minRange float64) Func {
	return func(ctx *Context) error {
		ts, err := ctx.TimeSeries([]string{"mag"}, nil)
		if err != nil {
			// Loci without photometry are simply not candidates.
			if errors.IsCode(err, errors.CodeUnknownField) {
				return nil
			}
			return err
		}

		var lo, hi float64
		seen := false
		for _, v := range ts.Column("mag") {
			if v.Kind != model.KindFloat {
				continue
			}
			if !seen {
				lo, hi = v.Float, v.Float
				seen = true
				continue
			}
			if v.Float < lo {
				lo = v.Float
			}
			if v.Float > hi {
				hi = v.Float
			}
		}
		if !seen || hi-lo <= minRange {
			return nil
		}

		if err := ctx.SetProperty("amplitude", hi-lo); err != nil {
			return err
		}
		return ctx.SendToStream(BuiltinHighAmplitude)
	}
}

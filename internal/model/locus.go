// Package model defines core data structures for locusflow.
package model

import (
	"fmt"
	"sort"
	"strconv"
)

// Reserved field names present on every measurement. They are always the
// first two columns of any time-series projection.
const (
	FieldAlertID = "alert_id"
	FieldMJD     = "mjd"
)

// ValueKind indicates the semantic type of a field value.
type ValueKind uint8

const (
	// KindNull marks a field absent from a measurement. Projections emit
	// it explicitly rather than dropping the row.
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindString
	KindBool
)

// String returns a human-readable kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a tagged scalar. Exactly one of the payload fields is meaningful,
// selected by Kind.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

// Null is the explicit missing-value marker.
var Null = Value{Kind: KindNull}

// IntValue wraps an int64.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// FloatValue wraps a float64.
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// BoolValue wraps a bool.
func BoolValue(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// IsNull reports whether the value is the missing marker.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Equal reports exact equality. Values of different kinds are never equal;
// there is no numeric coercion, so IntValue(1) != FloatValue(1).
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindString:
		return v.Str == other.Str
	case KindBool:
		return v.Bool == other.Bool
	default:
		return false
	}
}

// String renders the value for logs and CSV output. Null renders empty.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// Native returns the untagged Go value (nil for Null). Used by JSON encoding
// of reports and catalog records.
func (v Value) Native() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindBool:
		return v.Bool
	default:
		return nil
	}
}

// FromNative converts a Go scalar into a tagged Value. The second return is
// false when the input is not a supported scalar kind.
func FromNative(v any) (Value, bool) {
	switch x := v.(type) {
	case int:
		return IntValue(int64(x)), true
	case int8:
		return IntValue(int64(x)), true
	case int16:
		return IntValue(int64(x)), true
	case int32:
		return IntValue(int64(x)), true
	case int64:
		return IntValue(x), true
	case uint:
		return IntValue(int64(x)), true
	case uint8:
		return IntValue(int64(x)), true
	case uint16:
		return IntValue(int64(x)), true
	case uint32:
		return IntValue(int64(x)), true
	case float32:
		return FloatValue(float64(x)), true
	case float64:
		return FloatValue(x), true
	case string:
		return StringValue(x), true
	case bool:
		return BoolValue(x), true
	case Value:
		return x, true
	case nil:
		return Null, true
	default:
		return Null, false
	}
}

// Measurement is one observation attached to a locus. AlertID identifies the
// originating survey event; MJD is the observation timestamp as a modified
// Julian date. Fields carries the remaining per-measurement attributes, which
// vary from measurement to measurement.
type Measurement struct {
	AlertID int64
	MJD     float64
	Fields  map[string]Value
}

// Field returns the named field, resolving the reserved names to their
// dedicated carriers. Absent fields come back as Null.
func (m *Measurement) Field(name string) Value {
	switch name {
	case FieldAlertID:
		return IntValue(m.AlertID)
	case FieldMJD:
		return FloatValue(m.MJD)
	}
	if v, ok := m.Fields[name]; ok {
		return v
	}
	return Null
}

// CatalogMatch is one matched entry from a reference catalog. Attribute
// names and meanings are catalog-specific and opaque to this system.
type CatalogMatch map[string]Value

// Locus aggregates the measurement history and catalog matches for one sky
// position. Measurements are kept sorted by (MJD, AlertID) ascending; Matches
// never maps a catalog name to an empty slice.
type Locus struct {
	ID           int64
	Measurements []Measurement
	Matches      map[string][]CatalogMatch
}

// Sort orders the measurement history by MJD ascending, ties broken by
// AlertID ascending. Sources call it once after assembly.
func (l *Locus) Sort() {
	sort.SliceStable(l.Measurements, func(i, j int) bool {
		a, b := &l.Measurements[i], &l.Measurements[j]
		if a.MJD != b.MJD {
			return a.MJD < b.MJD
		}
		return a.AlertID < b.AlertID
	})
}

// Latest returns the most recent measurement. Callers guarantee a non-empty
// history before invoking filters.
func (l *Locus) Latest() *Measurement {
	if len(l.Measurements) == 0 {
		return nil
	}
	return &l.Measurements[len(l.Measurements)-1]
}

// FieldNames returns every field name observed across the history, reserved
// names first, the rest sorted for deterministic output.
func (l *Locus) FieldNames() []string {
	seen := make(map[string]struct{})
	for i := range l.Measurements {
		for name := range l.Measurements[i].Fields {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen)+2)
	names = append(names, FieldAlertID, FieldMJD)
	rest := make([]string, 0, len(seen))
	for name := range seen {
		if name == FieldAlertID || name == FieldMJD {
			continue
		}
		rest = append(rest, name)
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// HasField reports whether the name is reserved or present in any
// measurement of the history.
func (l *Locus) HasField(name string) bool {
	if name == FieldAlertID || name == FieldMJD {
		return true
	}
	for i := range l.Measurements {
		if _, ok := l.Measurements[i].Fields[name]; ok {
			return true
		}
	}
	return false
}

// Validate checks structural invariants after assembly.
func (l *Locus) Validate() error {
	for name, matches := range l.Matches {
		if len(matches) == 0 {
			return fmt.Errorf("catalog %q present with no matches", name)
		}
	}
	return nil
}

package filter

import (
	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/errors"
)

// TimeSeries is a columnar projection of a locus's measurement history.
// Fields and Columns are index-aligned; the two reserved columns (alert_id,
// mjd) always come first. Rows follow arrival order: MJD ascending, ties
// broken by AlertID ascending. Cells a measurement never carried hold the
// explicit Null marker.
type TimeSeries struct {
	Fields  []string
	Columns [][]model.Value
}

// NumRows returns the number of measurements in the projection.
func (t *TimeSeries) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0])
}

// NumFields returns the number of projected columns, reserved included.
func (t *TimeSeries) NumFields() int {
	return len(t.Fields)
}

// Row returns the i-th row across all columns.
func (t *TimeSeries) Row(i int) []model.Value {
	row := make([]model.Value, len(t.Columns))
	for c := range t.Columns {
		row[c] = t.Columns[c][i]
	}
	return row
}

// Column returns the values of the named column, or nil if not projected.
func (t *TimeSeries) Column(name string) []model.Value {
	for i, f := range t.Fields {
		if f == name {
			return t.Columns[i]
		}
	}
	return nil
}

// TimeSeries projects the measurement history onto the requested fields.
// The reserved fields are always prepended, whether or not requested. When
// where is non-empty, only measurements whose listed fields equal the given
// values exactly are included; a stored value of a different kind compares
// as not-equal, never as an error. A requested or filtered field name that
// no measurement has ever carried fails with CodeUnknownField.
func (c *Context) TimeSeries(fields []string, where map[string]model.Value) (*TimeSeries, error) {
	for _, name := range fields {
		if !c.locus.HasField(name) {
			return nil, errors.UnknownField(name, c.locus.FieldNames())
		}
	}
	for name := range where {
		if !c.locus.HasField(name) {
			return nil, errors.UnknownField(name, c.locus.FieldNames())
		}
	}

	// Reserved columns first, then the requested fields minus any
	// redundant reserved mentions.
	projected := make([]string, 0, len(fields)+2)
	projected = append(projected, model.FieldAlertID, model.FieldMJD)
	for _, name := range fields {
		if name == model.FieldAlertID || name == model.FieldMJD {
			continue
		}
		projected = append(projected, name)
	}

	ts := &TimeSeries{
		Fields:  projected,
		Columns: make([][]model.Value, len(projected)),
	}

	for i := range c.locus.Measurements {
		m := &c.locus.Measurements[i]
		if !matchesWhere(m, where) {
			continue
		}
		for col, name := range projected {
			ts.Columns[col] = append(ts.Columns[col], m.Field(name))
		}
	}
	return ts, nil
}

// matchesWhere reports whether every filter equality holds exactly.
func matchesWhere(m *model.Measurement, where map[string]model.Value) bool {
	for name, want := range where {
		if !m.Field(name).Equal(want) {
			return false
		}
	}
	return true
}

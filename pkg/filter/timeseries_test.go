package filter

import (
	"reflect"
	"testing"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/errors"
)

func TestTimeSeries_ReservedFirst(t *testing.T) {
	ctx := NewContext(testLocus(), nil)

	ts, err := ctx.TimeSeries([]string{"mag"}, nil)
	if err != nil {
		t.Fatalf("TimeSeries failed: %v", err)
	}

	want := []string{"alert_id", "mjd", "mag"}
	if !reflect.DeepEqual(ts.Fields, want) {
		t.Errorf("Fields = %v, want %v", ts.Fields, want)
	}
	if ts.NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3", ts.NumRows())
	}

	// Rows in mjd order, reserved columns populated from the measurement.
	first := ts.Row(0)
	if !first[0].Equal(model.IntValue(1)) || !first[1].Equal(model.FloatValue(59000.1)) {
		t.Errorf("first row = %v", first)
	}
	last := ts.Row(2)
	if !last[2].Equal(model.FloatValue(17.0)) {
		t.Errorf("last mag = %v", last[2])
	}
}

func TestTimeSeries_ReservedRequestedExplicitly(t *testing.T) {
	ctx := NewContext(testLocus(), nil)

	ts, err := ctx.TimeSeries([]string{"mjd", "mag", "alert_id"}, nil)
	if err != nil {
		t.Fatalf("TimeSeries failed: %v", err)
	}

	// No duplicated columns when reserved names are requested.
	want := []string{"alert_id", "mjd", "mag"}
	if !reflect.DeepEqual(ts.Fields, want) {
		t.Errorf("Fields = %v, want %v", ts.Fields, want)
	}
}

func TestTimeSeries_MissingCellsAreNull(t *testing.T) {
	ctx := NewContext(testLocus(), nil)

	ts, err := ctx.TimeSeries([]string{"snr"}, nil)
	if err != nil {
		t.Fatalf("TimeSeries failed: %v", err)
	}

	col := ts.Column("snr")
	if len(col) != 3 {
		t.Fatalf("snr column length = %d", len(col))
	}
	// Only the second measurement carried snr.
	if !col[0].IsNull() || !col[2].IsNull() {
		t.Errorf("expected explicit nulls, got %v", col)
	}
	if !col[1].Equal(model.FloatValue(12.0)) {
		t.Errorf("snr[1] = %v", col[1])
	}
}

func TestTimeSeries_UnknownField(t *testing.T) {
	ctx := NewContext(testLocus(), nil)

	_, err := ctx.TimeSeries([]string{"mag", "nope"}, nil)
	if !errors.IsCode(err, errors.CodeUnknownField) {
		t.Errorf("err = %v, want CodeUnknownField", err)
	}

	_, err = ctx.TimeSeries([]string{"mag"}, map[string]model.Value{"nope": model.IntValue(1)})
	if !errors.IsCode(err, errors.CodeUnknownField) {
		t.Errorf("where err = %v, want CodeUnknownField", err)
	}
}

func TestTimeSeries_Where(t *testing.T) {
	ctx := NewContext(testLocus(), nil)

	ts, err := ctx.TimeSeries([]string{"mag"}, map[string]model.Value{
		"passband": model.StringValue("g"),
	})
	if err != nil {
		t.Fatalf("TimeSeries failed: %v", err)
	}

	if ts.NumRows() != 2 {
		t.Fatalf("NumRows = %d, want 2 g-band rows", ts.NumRows())
	}
	ids := ts.Column("alert_id")
	if !ids[0].Equal(model.IntValue(1)) || !ids[1].Equal(model.IntValue(3)) {
		t.Errorf("filtered ids = %v", ids)
	}
}

func TestTimeSeries_WhereKindMismatch(t *testing.T) {
	ctx := NewContext(testLocus(), nil)

	// mag values are floats; an integer clause matches nothing rather
	// than erroring.
	ts, err := ctx.TimeSeries([]string{"mag"}, map[string]model.Value{
		"mag": model.IntValue(17),
	})
	if err != nil {
		t.Fatalf("TimeSeries failed: %v", err)
	}
	if ts.NumRows() != 0 {
		t.Errorf("NumRows = %d, want 0", ts.NumRows())
	}
}

func TestTimeSeries_WhereOnMissingCell(t *testing.T) {
	ctx := NewContext(testLocus(), nil)

	// snr exists on one measurement; rows without it never match.
	ts, err := ctx.TimeSeries([]string{"mag"}, map[string]model.Value{
		"snr": model.FloatValue(12.0),
	})
	if err != nil {
		t.Fatalf("TimeSeries failed: %v", err)
	}
	if ts.NumRows() != 1 {
		t.Fatalf("NumRows = %d, want 1", ts.NumRows())
	}
	if !ts.Column("alert_id")[0].Equal(model.IntValue(2)) {
		t.Errorf("matched row = %v", ts.Row(0))
	}
}

package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/filter"
)

func testSeries() *filter.TimeSeries {
	return &filter.TimeSeries{
		Fields: []string{"alert_id", "mjd", "mag", "passband"},
		Columns: [][]model.Value{
			{model.IntValue(1), model.IntValue(2)},
			{model.FloatValue(59000.1), model.FloatValue(59000.5)},
			{model.FloatValue(18.5), model.Null},
			{model.StringValue("g"), model.StringValue("r")},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(testSeries(), &buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}
	if lines[0] != "alert_id,mjd,mag,passband" {
		t.Errorf("header = %q", lines[0])
	}
	// Null cells render empty.
	if !strings.HasSuffix(lines[2], ",,r") {
		t.Errorf("null cell not empty: %q", lines[2])
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	ts := &filter.TimeSeries{Fields: []string{"alert_id", "mjd"}, Columns: [][]model.Value{{}, {}}}

	var buf bytes.Buffer
	if err := WriteCSV(ts, &buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "alert_id,mjd" {
		t.Errorf("empty projection should be header only, got %q", buf.String())
	}
}

func TestToArrow(t *testing.T) {
	rec, err := ToArrow(testSeries())
	if err != nil {
		t.Fatalf("ToArrow failed: %v", err)
	}
	defer rec.Release()

	if rec.NumRows() != 2 || rec.NumCols() != 4 {
		t.Fatalf("record shape = %dx%d", rec.NumRows(), rec.NumCols())
	}

	schema := rec.Schema()
	wantTypes := []arrow.DataType{
		arrow.PrimitiveTypes.Int64,
		arrow.PrimitiveTypes.Float64,
		arrow.PrimitiveTypes.Float64,
		arrow.BinaryTypes.String,
	}
	for i, want := range wantTypes {
		if got := schema.Field(i).Type; !arrow.TypeEqual(got, want) {
			t.Errorf("column %d type = %v, want %v", i, got, want)
		}
	}

	// The null mag cell must be an Arrow null, not a zero.
	magCol := rec.Column(2)
	if magCol.IsValid(1) {
		t.Error("expected null at mag[1]")
	}
	if magCol.NullN() != 1 {
		t.Errorf("mag nulls = %d, want 1", magCol.NullN())
	}
}

func TestToArrow_MixedColumnFallsBackToString(t *testing.T) {
	ts := &filter.TimeSeries{
		Fields: []string{"alert_id", "mjd", "odd"},
		Columns: [][]model.Value{
			{model.IntValue(1)},
			{model.FloatValue(59000.1)},
			{model.IntValue(5)},
		},
	}
	ts.Columns[2] = []model.Value{model.IntValue(5), model.StringValue("x")}
	ts.Columns[0] = append(ts.Columns[0], model.IntValue(2))
	ts.Columns[1] = append(ts.Columns[1], model.FloatValue(59000.2))

	rec, err := ToArrow(ts)
	if err != nil {
		t.Fatalf("ToArrow failed: %v", err)
	}
	defer rec.Release()

	if got := rec.Schema().Field(2).Type; !arrow.TypeEqual(got, arrow.BinaryTypes.String) {
		t.Errorf("mixed column type = %v, want string", got)
	}
}

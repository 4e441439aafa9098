package source

import (
	"context"
	"database/sql"
	"reflect"
	"testing"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/errors"
)

func TestMemorySource(t *testing.T) {
	l := &model.Locus{
		ID: 3,
		Measurements: []model.Measurement{
			{AlertID: 2, MJD: 59001.0},
			{AlertID: 1, MJD: 59000.0},
		},
	}
	src := NewMemorySource(l, &model.Locus{ID: 1})

	got, err := src.Get(context.Background(), 3)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	// Put sorts the history.
	if got.Measurements[0].AlertID != 1 {
		t.Errorf("history not sorted: %+v", got.Measurements)
	}

	_, err = src.Get(context.Background(), 99)
	if !errors.IsCode(err, errors.CodeLocusNotFound) {
		t.Errorf("err = %v, want CodeLocusNotFound", err)
	}

	ids, err := src.IDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []int64{1, 3}) {
		t.Errorf("IDs = %v, want [1 3]", ids)
	}
}

func TestDecodeValue(t *testing.T) {
	num := func(f float64) sql.NullFloat64 { return sql.NullFloat64{Float64: f, Valid: true} }
	str := func(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

	tests := []struct {
		name string
		kind string
		num  sql.NullFloat64
		str  sql.NullString
		want model.Value
	}{
		{"int", "int", num(42), sql.NullString{}, model.IntValue(42)},
		{"float", "float", num(1.5), sql.NullString{}, model.FloatValue(1.5)},
		{"string", "string", sql.NullFloat64{}, str("g"), model.StringValue("g")},
		{"bool true", "bool", num(1), sql.NullString{}, model.BoolValue(true)},
		{"bool false", "bool", num(0), sql.NullString{}, model.BoolValue(false)},
		{"null kind", "null", sql.NullFloat64{}, sql.NullString{}, model.Null},
		{"int with null payload", "int", sql.NullFloat64{}, sql.NullString{}, model.Null},
		{"unknown kind", "blob", num(1), str("x"), model.Null},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeValue(tt.kind, tt.num, tt.str); !got.Equal(tt.want) {
				t.Errorf("decodeValue = %v, want %v", got, tt.want)
			}
		})
	}
}

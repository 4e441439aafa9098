package filter

import (
	"testing"
	"time"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/errors"
)

// checkerStub satisfies StreamChecker without pulling in the streams
// package, which depends on this one.
type checkerStub []string

func (c checkerStub) Has(name string) bool {
	for _, n := range c {
		if n == name {
			return true
		}
	}
	return false
}

func (c checkerStub) Names() []string { return c }

func testLocus() *model.Locus {
	return &model.Locus{
		ID: 17,
		Measurements: []model.Measurement{
			{AlertID: 1, MJD: 59000.1, Fields: map[string]model.Value{
				"mag":      model.FloatValue(18.5),
				"passband": model.StringValue("g"),
			}},
			{AlertID: 2, MJD: 59000.2, Fields: map[string]model.Value{
				"mag":      model.FloatValue(18.1),
				"passband": model.StringValue("r"),
				"snr":      model.FloatValue(12.0),
			}},
			{AlertID: 3, MJD: 59000.9, Fields: map[string]model.Value{
				"mag":      model.FloatValue(17.0),
				"passband": model.StringValue("g"),
			}},
		},
		Matches: map[string][]model.CatalogMatch{
			"ned": {{"z": model.FloatValue(0.021)}},
		},
	}
}

func TestContext_Properties(t *testing.T) {
	ctx := NewContext(testLocus(), nil)

	props := ctx.Properties()

	// The triggering measurement is the latest by mjd.
	if !props[model.FieldAlertID].Equal(model.IntValue(3)) {
		t.Errorf("alert_id = %v, want 3", props[model.FieldAlertID])
	}
	if !props[model.FieldMJD].Equal(model.FloatValue(59000.9)) {
		t.Errorf("mjd = %v", props[model.FieldMJD])
	}
	if !props["mag"].Equal(model.FloatValue(17.0)) {
		t.Errorf("mag = %v, want latest value", props["mag"])
	}
	// Fields only earlier measurements carried are not in the snapshot.
	if !props["snr"].IsNull() {
		t.Errorf("snr = %v, want absent", props["snr"])
	}
}

func TestContext_Properties_Snapshot(t *testing.T) {
	ctx := NewContext(testLocus(), nil)

	first := ctx.Properties()
	first["mag"] = model.FloatValue(0)

	second := ctx.Properties()
	if !second["mag"].Equal(model.FloatValue(17.0)) {
		t.Error("mutating a returned snapshot leaked into context state")
	}
}

func TestContext_SetProperty(t *testing.T) {
	ctx := NewContext(testLocus(), nil)

	if err := ctx.SetProperty("score", 0.93); err != nil {
		t.Fatalf("SetProperty(float) failed: %v", err)
	}
	if err := ctx.SetProperty("count", 4); err != nil {
		t.Fatalf("SetProperty(int) failed: %v", err)
	}
	if err := ctx.SetProperty("label", "agn"); err != nil {
		t.Fatalf("SetProperty(string) failed: %v", err)
	}

	props := ctx.Properties()
	if !props["score"].Equal(model.FloatValue(0.93)) {
		t.Errorf("score = %v", props["score"])
	}

	// Later writes win.
	if err := ctx.SetProperty("score", 0.99); err != nil {
		t.Fatal(err)
	}
	if got := ctx.Properties()["score"]; !got.Equal(model.FloatValue(0.99)) {
		t.Errorf("score after rewrite = %v", got)
	}

	// Custom properties shadow measurement fields in the snapshot.
	if err := ctx.SetProperty("mag", 1.0); err != nil {
		t.Fatal(err)
	}
	if got := ctx.Properties()["mag"]; !got.Equal(model.FloatValue(1.0)) {
		t.Errorf("mag after shadow = %v", got)
	}
}

func TestContext_SetProperty_Rejected(t *testing.T) {
	ctx := NewContext(testLocus(), nil)

	tests := []struct {
		name  string
		value any
	}{
		{"slice", []int{1, 2}},
		{"map", map[string]int{"a": 1}},
		{"bool", true},
		{"nil", nil},
		{"struct", struct{ X int }{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ctx.SetProperty("x", tt.value)
			if !errors.IsCode(err, errors.CodeInvalidPropertyType) {
				t.Errorf("SetProperty(%v) err = %v, want CodeInvalidPropertyType", tt.value, err)
			}
		})
	}

	// A rejected write leaves the output untouched.
	if got := ctx.Properties()["x"]; !got.IsNull() {
		t.Errorf("rejected write leaked: %v", got)
	}
}

func TestContext_SendToStream(t *testing.T) {
	ctx := NewContext(testLocus(), checkerStub{"high_snr", "rare"})

	if err := ctx.SendToStream("high_snr"); err != nil {
		t.Fatalf("SendToStream failed: %v", err)
	}
	// Duplicates collapse.
	if err := ctx.SendToStream("high_snr"); err != nil {
		t.Fatal(err)
	}
	if err := ctx.SendToStream("rare"); err != nil {
		t.Fatal(err)
	}

	err := ctx.SendToStream("nope")
	if !errors.IsCode(err, errors.CodeUnknownStream) {
		t.Errorf("unknown stream err = %v, want CodeUnknownStream", err)
	}

	report := ctx.Report("t", time.Millisecond, nil)
	want := []string{"high_snr", "rare"}
	if len(report.NewStreams) != 2 || report.NewStreams[0] != want[0] || report.NewStreams[1] != want[1] {
		t.Errorf("NewStreams = %v, want %v", report.NewStreams, want)
	}
}

func TestContext_SendToStream_NilRegistry(t *testing.T) {
	// Without a registry, validation is deferred to commit time.
	ctx := NewContext(testLocus(), nil)
	if err := ctx.SendToStream("anything"); err != nil {
		t.Errorf("nil registry should defer validation, got %v", err)
	}
}

func TestContext_SealWhileWriting(t *testing.T) {
	ctx := NewContext(testLocus(), checkerStub{"relay"})

	// A writer standing in for an abandoned, timed-out filter goroutine.
	// Run with -race.
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			ctx.SetProperty("n", i)
			ctx.SendToStream("relay")
			ctx.Properties()
		}
	}()

	for i := 0; i < 100; i++ {
		report := ctx.Report("busy", time.Millisecond, nil)
		if report.LocusID != 17 {
			t.Fatalf("locus = %d, want 17", report.LocusID)
		}
	}
	close(stop)
	<-done
}

func TestContext_Report(t *testing.T) {
	ctx := NewContext(testLocus(), nil)
	ctx.SetProperty("score", 1.5)
	ctx.SendToStream("b")
	ctx.SendToStream("a")

	report := ctx.Report("my_filter", 42*time.Millisecond, nil)

	if report.InvocationID == "" {
		t.Error("expected an invocation id")
	}
	if report.LocusID != 17 || report.FilterName != "my_filter" {
		t.Errorf("report identity = %d/%s", report.LocusID, report.FilterName)
	}
	if report.Failed() {
		t.Error("clean run should not be failed")
	}
	if len(report.NewStreams) != 2 || report.NewStreams[0] != "a" {
		t.Errorf("streams not sorted: %v", report.NewStreams)
	}
	if !report.NewProperties["score"].Equal(model.FloatValue(1.5)) {
		t.Errorf("properties = %v", report.NewProperties)
	}
}

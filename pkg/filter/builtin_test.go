package filter

import (
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/locusflow/locusflow/internal/model"
)

func TestRegistry(t *testing.T) {
	for _, name := range []string{BuiltinHighSNR, BuiltinExtragalactic, BuiltinHighAmplitude} {
		if _, err := Lookup(name); err != nil {
			t.Errorf("Lookup(%s) failed: %v", name, err)
		}
	}

	if _, err := Lookup("no_such_filter"); err == nil {
		t.Error("expected an error for an unregistered name")
	}

	Register("custom", func(ctx *Context) error { return nil })
	if _, err := Lookup("custom"); err != nil {
		t.Errorf("Lookup(custom) failed: %v", err)
	}
}

func TestHighSNR(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]model.Value
		wantStream bool
	}{
		{"above threshold", map[string]model.Value{"snr": model.FloatValue(25)}, true},
		{"below threshold", map[string]model.Value{"snr": model.FloatValue(3)}, false},
		{"sigmag fallback", map[string]model.Value{"sigmag": model.FloatValue(0.05)}, true},
		{"sigmag too noisy", map[string]model.Value{"sigmag": model.FloatValue(0.5)}, false},
		{"no usable field", map[string]model.Value{"mag": model.FloatValue(18)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locus := &model.Locus{
				ID: 1,
				Measurements: []model.Measurement{
					{AlertID: 1, MJD: 59000.0},
					{AlertID: 2, MJD: 59001.0, Fields: tt.fields},
				},
			}
			ctx := NewContext(locus, checkerStub{BuiltinHighSNR})

			if err := HighSNR(10.0)(ctx); err != nil {
				t.Fatalf("filter faulted: %v", err)
			}

			report := ctx.Report(BuiltinHighSNR, 0, nil)
			got := len(report.NewStreams) == 1
			if got != tt.wantStream {
				t.Errorf("streamed = %v, want %v", got, tt.wantStream)
			}
		})
	}
}

func TestExtragalactic(t *testing.T) {
	locus := testLocus() // has a ned match
	ctx := NewContext(locus, checkerStub{BuiltinExtragalactic})

	if err := Extragalactic("ned", "veron")(ctx); err != nil {
		t.Fatalf("filter faulted: %v", err)
	}

	report := ctx.Report(BuiltinExtragalactic, 0, nil)
	if !report.NewProperties["matched_catalog"].Equal(model.StringValue("ned")) {
		t.Errorf("matched_catalog = %v", report.NewProperties["matched_catalog"])
	}
	if !report.NewProperties["match_count"].Equal(model.IntValue(1)) {
		t.Errorf("match_count = %v", report.NewProperties["match_count"])
	}
	if len(report.NewStreams) != 1 {
		t.Errorf("streams = %v", report.NewStreams)
	}
}

func TestExtragalactic_NoMatch(t *testing.T) {
	locus := testLocus()
	locus.Matches = nil
	ctx := NewContext(locus, checkerStub{BuiltinExtragalactic})

	if err := Extragalactic("ned", "veron")(ctx); err != nil {
		t.Fatalf("filter faulted: %v", err)
	}
	if report := ctx.Report(BuiltinExtragalactic, 0, nil); len(report.NewStreams) != 0 {
		t.Errorf("streams = %v, want none", report.NewStreams)
	}
}

func TestHighAmplitude(t *testing.T) {
	ctx := NewContext(testLocus(), checkerStub{BuiltinHighAmplitude})

	// testLocus mags span 17.0 to 18.5.
	if err := HighAmplitude(1.0)(ctx); err != nil {
		t.Fatalf("filter faulted: %v", err)
	}

	report := ctx.Report(BuiltinHighAmplitude, 0, nil)
	amp := report.NewProperties["amplitude"]
	if amp.Kind != model.KindFloat || amp.Float < 1.49 || amp.Float > 1.51 {
		t.Errorf("amplitude = %v, want 1.5", amp)
	}
}

func TestHighAmplitude_NoPhotometry(t *testing.T) {
	locus := &model.Locus{
		ID: 2,
		Measurements: []model.Measurement{
			{AlertID: 1, MJD: 59000.0, Fields: map[string]model.Value{"flux": model.FloatValue(1)}},
			{AlertID: 2, MJD: 59001.0, Fields: map[string]model.Value{"flux": model.FloatValue(2)}},
		},
	}
	ctx := NewContext(locus, nil)

	// Missing mag field is not a fault for this filter.
	if err := HighAmplitude(1.0)(ctx); err != nil {
		t.Errorf("expected nil for loci without photometry, got %v", err)
	}
}

func TestReport_JSONRoundTrip(t *testing.T) {
	ctx := NewContext(testLocus(), nil)
	ctx.SetProperty("score", 0.5)
	ctx.SetProperty("label", "agn")
	ctx.SendToStream("rare")

	orig := ctx.Report("f", 150*time.Millisecond, stderrors.New("boom"))

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var restored Report
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if restored.InvocationID != orig.InvocationID || restored.LocusID != orig.LocusID {
		t.Errorf("identity lost: %+v", restored)
	}
	if !restored.NewProperties["label"].Equal(model.StringValue("agn")) {
		t.Errorf("label = %v", restored.NewProperties["label"])
	}
	// JSON numbers come back as floats.
	if !restored.NewProperties["score"].Equal(model.FloatValue(0.5)) {
		t.Errorf("score = %v", restored.NewProperties["score"])
	}
	if restored.Duration != orig.Duration {
		t.Errorf("duration = %v, want %v", restored.Duration, orig.Duration)
	}
	if restored.Err == nil || restored.Err.Error() != "boom" {
		t.Errorf("err = %v", restored.Err)
	}
}

package filter

import (
	"encoding/json"
	stderrors "errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/locusflow/locusflow/internal/model"
)

// Report is the structured record of one filter invocation: the side effects
// the filter requested, plus execution metadata. Nothing in a report has been
// applied to persistent storage; the commit pipeline does that after
// validation.
type Report struct {
	InvocationID  string                 `json:"invocation_id"`
	LocusID       int64                  `json:"locus_id"`
	FilterName    string                 `json:"filter_name"`
	NewProperties map[string]model.Value `json:"-"`
	NewStreams    []string               `json:"new_streams"`
	Duration      time.Duration          `json:"duration_ns"`
	Err           error                  `json:"-"`

	// Context is the execution context the filter ran against, retained so
	// callers can inspect the assembled per-locus view (time series, catalog
	// matches) after the run. Nil on reports restored from the wire.
	Context *Context `json:"-"`
}

// Report seals the context's output collections into a report. Stream names
// come back sorted for deterministic output.
func (c *Context) Report(filterName string, duration time.Duration, err error) *Report {
	c.mu.Lock()
	streams := make([]string, 0, len(c.newStreams))
	for name := range c.newStreams {
		streams = append(streams, name)
	}
	props := make(map[string]model.Value, len(c.newProperties))
	for name, v := range c.newProperties {
		props[name] = v
	}
	c.mu.Unlock()
	sort.Strings(streams)

	return &Report{
		InvocationID:  uuid.NewString(),
		LocusID:       c.locus.ID,
		FilterName:    filterName,
		NewProperties: props,
		NewStreams:    streams,
		Duration:      duration,
		Err:           err,
		Context:       c,
	}
}

// Failed reports whether the invocation faulted or timed out.
func (r *Report) Failed() bool {
	return r.Err != nil
}

// wireReport is the JSON shape used by the HTTP API and the S3 archive.
type wireReport struct {
	InvocationID  string         `json:"invocation_id"`
	LocusID       int64          `json:"locus_id"`
	FilterName    string         `json:"filter_name"`
	NewProperties map[string]any `json:"new_properties"`
	NewStreams    []string       `json:"new_streams"`
	DurationMS    float64        `json:"duration_ms"`
	Error         string         `json:"error,omitempty"`
}

// MarshalJSON renders the report with native property values and a string
// error.
func (r *Report) MarshalJSON() ([]byte, error) {
	props := make(map[string]any, len(r.NewProperties))
	for name, v := range r.NewProperties {
		props[name] = v.Native()
	}
	errStr := ""
	if r.Err != nil {
		errStr = r.Err.Error()
	}
	return json.Marshal(wireReport{
		InvocationID:  r.InvocationID,
		LocusID:       r.LocusID,
		FilterName:    r.FilterName,
		NewProperties: props,
		NewStreams:    r.NewStreams,
		DurationMS:    float64(r.Duration) / float64(time.Millisecond),
		Error:         errStr,
	})
}

// UnmarshalJSON restores a report from its wire shape. JSON numbers come
// back as Float values; an archived error becomes an opaque error string.
func (r *Report) UnmarshalJSON(data []byte) error {
	var w wireReport
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.InvocationID = w.InvocationID
	r.LocusID = w.LocusID
	r.FilterName = w.FilterName
	r.NewStreams = w.NewStreams
	r.Duration = time.Duration(w.DurationMS * float64(time.Millisecond))
	r.NewProperties = make(map[string]model.Value, len(w.NewProperties))
	for name, v := range w.NewProperties {
		if tagged, ok := model.FromNative(v); ok {
			r.NewProperties[name] = tagged
		}
	}
	r.Err = nil
	if w.Error != "" {
		r.Err = stderrors.New(w.Error)
	}
	return nil
}

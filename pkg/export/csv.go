// Package export renders time-series projections for interchange: CSV and
// XLSX for people, Arrow records for columnar tooling.
package export

import (
	"encoding/csv"
	"io"

	"github.com/locusflow/locusflow/internal/pool"
	"github.com/locusflow/locusflow/pkg/filter"
)

var bufferPool = pool.NewBufferPool(pool.DefaultBufferSize)

// WriteCSV writes the projection as CSV, header first. Null cells render as
// empty fields.
func WriteCSV(ts *filter.TimeSeries, w io.Writer) error {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	cw := csv.NewWriter(buf)
	if err := cw.Write(ts.Fields); err != nil {
		return err
	}

	record := make([]string, ts.NumFields())
	for i := 0; i < ts.NumRows(); i++ {
		for c, v := range ts.Row(i) {
			record[c] = v.String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	_, err := w.Write(buf.Bytes())
	return err
}

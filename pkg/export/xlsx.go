package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/locusflow/locusflow/pkg/filter"
)

// WriteXLSX writes the projection as an Excel workbook with one sheet.
// Null cells stay empty; numeric cells keep their numeric type.
func WriteXLSX(ts *filter.TimeSeries, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "TimeSeries"
	f.SetSheetName("Sheet1", sheet)

	header := make([]any, ts.NumFields())
	for i, name := range ts.Fields {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := 0; i < ts.NumRows(); i++ {
		row := make([]any, ts.NumFields())
		for c, v := range ts.Row(i) {
			row[c] = v.Native()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

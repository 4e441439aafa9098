package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/export"
	"github.com/locusflow/locusflow/pkg/filter"
	"github.com/locusflow/locusflow/pkg/tui"
)

var (
	exportLocusID int64
	exportFields  []string
	exportWhere   []string
	exportOutput  string
	exportFormat  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a locus time series to CSV or XLSX",
	Long: `Project a locus's alert history onto the requested fields and write it
out. The alert_id and mjd columns are always included first; rows are
ordered by mjd ascending. Measurements missing a requested field get an
empty cell.

Where-clauses filter rows by exact field equality (format: field=value).

Examples:
  locusflow export --locus 42 --fields mag,magerr -o locus42.csv
  locusflow export --locus 42 --fields mag --where passband=g -o g_band.xlsx
  locusflow export --locus 42 -o full.csv`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().Int64Var(&exportLocusID, "locus", 0, "Locus ID (required)")
	exportCmd.Flags().StringSliceVar(&exportFields, "fields", nil, "Fields to project (default: all)")
	exportCmd.Flags().StringArrayVar(&exportWhere, "where", nil, "Row filters, exact equality (field=value)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output path (required; .csv or .xlsx)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Output format (csv, xlsx) - inferred from extension if not set")

	exportCmd.MarkFlagRequired("locus")
	exportCmd.MarkFlagRequired("output")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, cancel := signalContext()
	defer cancel()

	locus, err := src.Get(ctx, exportLocusID)
	if err != nil {
		return err
	}

	where, err := parseWhere(exportWhere)
	if err != nil {
		return err
	}

	fields := exportFields
	if len(fields) == 0 {
		fields = locus.FieldNames()
	}

	fctx := filter.NewContext(locus, nil)
	ts, err := fctx.TimeSeries(fields, where)
	if err != nil {
		return err
	}

	format := exportFormat
	if format == "" {
		switch {
		case strings.HasSuffix(exportOutput, ".xlsx"):
			format = "xlsx"
		default:
			format = "csv"
		}
	}

	switch format {
	case "csv":
		f, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := export.WriteCSV(ts, f); err != nil {
			return err
		}
	case "xlsx":
		if err := export.WriteXLSX(ts, exportOutput); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown export format %q", format)
	}

	tui.Success(fmt.Sprintf("wrote %d rows x %d columns to %s", ts.NumRows(), ts.NumFields(), exportOutput))
	return nil
}

// parseWhere turns field=value pairs into typed equality filters. Values
// parse as int, then float, then fall back to string; equality is exact,
// so an integer clause never matches a float cell.
func parseWhere(clauses []string) (map[string]model.Value, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	where := make(map[string]model.Value, len(clauses))
	for _, clause := range clauses {
		field, raw, ok := strings.Cut(clause, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid where clause %q (want field=value)", clause)
		}
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil && !strings.Contains(raw, ".") {
			where[field] = model.IntValue(i)
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
			where[field] = model.FloatValue(f)
		} else {
			where[field] = model.StringValue(raw)
		}
	}
	return where, nil
}

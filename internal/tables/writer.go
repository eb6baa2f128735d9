package tables

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/comp-benchmark/internal/model"
)

// Output formats accepted by WriteFile.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// SheetName is the worksheet the XLSX writer fills.
const SheetName = "Benchmarks"

// Columns is the header row of tabular benchmark output.
var Columns = []string{
	"region", "family_code", "family_display_name", "internal_level", "category",
	"range_start", "range_mid", "range_end",
	"internal_min", "internal_median", "internal_max", "internal_count",
	"lookup_key",
}

// FormatFor picks an output format from a file name when none is given.
func FormatFor(path, format string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch strings.ToLower(format) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", eris.Errorf("tables: unsupported output format %q", format)
}

// WriteFile writes rows to path in the given format.
func WriteFile(path, format string, rows []model.BenchmarkRow) error {
	format, err := FormatFor(path, format)
	if err != nil {
		return err
	}
	if format == FormatXLSX {
		return WriteXLSX(path, rows)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "tables: create %s", path)
	}
	if format == FormatCSV {
		err = WriteCSV(f, rows)
	} else {
		err = WriteJSON(f, rows)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = eris.Wrapf(cerr, "tables: close %s", path)
	}
	return err
}

func record(r model.BenchmarkRow) []string {
	return []string{
		r.Region, r.FamilyCode, r.FamilyDisplayName, r.InternalLevel, string(r.Category),
		money(r.RangeStart), money(r.RangeMid), money(r.RangeEnd),
		money(r.InternalMin), money(r.InternalMedian), money(r.InternalMax),
		strconv.Itoa(r.InternalCount),
		r.LookupKey,
	}
}

// money renders an optional amount; empty when absent.
func money(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// WriteCSV writes a header row followed by one line per benchmark row.
func WriteCSV(w io.Writer, rows []model.BenchmarkRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "tables: write csv header")
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			return eris.Wrap(err, "tables: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "tables: flush csv")
}

// WriteJSON writes the rows as an indented JSON array. Absent amounts are
// null.
func WriteJSON(w io.Writer, rows []model.BenchmarkRow) error {
	if rows == nil {
		rows = []model.BenchmarkRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(rows), "tables: encode json")
}

// WriteXLSX writes the rows to the Benchmarks sheet of a new workbook.
// Amounts are numeric cells so spreadsheet formulas work on them.
func WriteXLSX(path string, rows []model.BenchmarkRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "tables: add sheet")
	}

	hdr := sheet.AddRow()
	for _, c := range Columns {
		hdr.AddCell().SetString(c)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		for i, v := range record(r) {
			c := row.AddCell()
			if isNumericColumn(i) && v != "" {
				if x, err := strconv.ParseFloat(v, 64); err == nil {
					c.SetFloat(x)
					continue
				}
			}
			c.SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "tables: save %s", path)
	}
	return nil
}

// isNumericColumn reports whether column i of Columns holds an amount or
// count.
func isNumericColumn(i int) bool {
	return i >= 5 && i <= 11
}

// Package fetcher reads tabular source files (CSV and XLSX) into row grids.
package fetcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadTable reads a whole CSV or XLSX file, header row included. The format
// is chosen by file extension.
func ReadTable(ctx context.Context, path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return ReadCSVFile(ctx, path, CSVOptions{TrimSpace: true, LazyQuotes: true})
	case ".tsv":
		return ReadCSVFile(ctx, path, CSVOptions{Delimiter: '\t', TrimSpace: true, LazyQuotes: true})
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	default:
		return nil, eris.Errorf("fetcher: unsupported file type %q", path)
	}
}

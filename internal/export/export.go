// Package export renders extraction results into tabular output following
// the template's output contract: cells in csv_headers order, missing and
// failed fields as empty cells, the _source_file computed column carrying
// the document's source name.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/openextract/openextract/internal/engine"
	"github.com/openextract/openextract/internal/template"
)

// Row returns the ordered cells for one result. Headers that map to missing
// or failed fields render as empty strings, never as errors.
func Row(result *engine.Result, t *template.Template) []string {
	cells := make([]string, len(t.Output.CSVHeaders))
	for i, h := range t.Output.CSVHeaders {
		if h == template.SourceFileColumn {
			cells[i] = result.Source
			continue
		}
		if out, ok := result.Fields[h]; ok {
			cells[i] = out.CSVString()
		}
	}
	return cells
}

// WriteCSV writes the header row and one row per result to w. Nil results
// (failed batch items) are skipped; their absence is reported elsewhere.
func WriteCSV(w io.Writer, t *template.Template, results []*engine.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Output.CSVHeaders); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		if err := cw.Write(Row(r, t)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX returns an XLSX workbook (as bytes) with the same layout as WriteCSV:
// one sheet, header row, one row per result.
func XLSX(t *template.Template, results []*engine.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	for c, h := range t.Output.CSVHeaders {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("set header %q: %w", h, err)
		}
	}
	rowNum := 2
	for _, r := range results {
		if r == nil {
			continue
		}
		for c, v := range Row(r, t) {
			cell, err := excelize.CoordinatesToCellName(c+1, rowNum)
			if err != nil {
				return nil, fmt.Errorf("data cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		rowNum++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

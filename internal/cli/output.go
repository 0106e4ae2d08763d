// Package cli provides output formatting for the openextract CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/openextract/openextract/internal/engine"
	"github.com/openextract/openextract/internal/export"
	"github.com/openextract/openextract/internal/template"
	"github.com/openextract/openextract/pkg/utils"
)

// OutputFormat is the format for extraction output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCSV is tabular output in the template's csv_headers order.
	OutputCSV OutputFormat = "csv"
)

// Item pairs one document's extraction outcome with its source for output.
type Item struct {
	Source string         `json:"source,omitempty"`
	Result *engine.Result `json:"result,omitempty"`
	Report *engine.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// WriteExtraction writes extraction items to w in the given format. CSV
// renders one row per successful document; failed documents are skipped
// there (their errors still appear in text and json formats).
func WriteExtraction(w io.Writer, t *template.Template, items []Item, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case OutputCSV:
		results := make([]*engine.Result, 0, len(items))
		for _, it := range items {
			if it.Result != nil {
				results = append(results, it.Result)
			}
		}
		return export.WriteCSV(w, t, results)
	default:
		writeExtractionText(w, t, items)
		return nil
	}
}

func writeExtractionText(w io.Writer, t *template.Template, items []Item) {
	for _, it := range items {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		source := it.Source
		if source == "" {
			source = "(stdin)"
		}
		fmt.Fprintf(w, "%s  [template: %s]\n", source, t.ID)
		if it.Error != "" {
			fmt.Fprintf(w, "  ERROR: %s\n", it.Error)
			continue
		}
		for i := range t.Fields {
			f := &t.Fields[i]
			out, ok := it.Result.Fields[f.Name]
			if !ok {
				continue
			}
			switch out.Status {
			case engine.StatusFound:
				fmt.Fprintf(w, "  %-28s %-14s (%s)\n", f.DisplayName+":", out.Value.String(), out.Origin)
			case engine.StatusNotFound:
				fmt.Fprintf(w, "  %-28s <not found>\n", f.DisplayName+":")
			case engine.StatusCoercionFailed:
				fmt.Fprintf(w, "  %-28s <coercion failed: %s> raw=%q\n",
					f.DisplayName+":", out.Reason, utils.Truncate(out.Raw, 40))
			}
		}
		if it.Report != nil {
			fmt.Fprintf(w, "  valid=%v extracted=%d/%d",
				it.Report.Valid, it.Report.FieldsExtracted, it.Report.FieldsTotal)
			if len(it.Report.Errors) > 0 {
				fmt.Fprintf(w, " errors=%d", len(it.Report.Errors))
			}
			if len(it.Report.Warnings) > 0 {
				fmt.Fprintf(w, " warnings=%d", len(it.Report.Warnings))
			}
			fmt.Fprintln(w)
			for _, e := range it.Report.Errors {
				fmt.Fprintf(w, "    error:   %s\n", e)
			}
			for _, warn := range it.Report.Warnings {
				fmt.Fprintf(w, "    warning: %s\n", warn)
			}
		}
	}
}

// WriteTemplateList pretty-prints the template catalog grouped by category.
func WriteTemplateList(w io.Writer, templates []*template.Template) {
	if len(templates) == 0 {
		fmt.Fprintln(w, "No templates found.")
		return
	}
	lastCategory := ""
	for _, t := range templates {
		if t.Category != lastCategory {
			fmt.Fprintf(w, "\n[%s]\n", t.Category)
			lastCategory = t.Category
		}
		fmt.Fprintf(w, "  %s\n", t.Summary())
		if t.Description != "" {
			fmt.Fprintf(w, "    %s\n", utils.Truncate(t.Description, 70))
		}
	}
	fmt.Fprintf(w, "\nTotal: %d templates\n", len(templates))
}

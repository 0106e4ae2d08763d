package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/openextract/openextract/internal/engine"
	"github.com/openextract/openextract/internal/template"
)

const cliTemplateJSON = `{
  "template_id": "receipt",
  "template_name": "Store Receipt",
  "document_type": "receipt",
  "fields": [
    {"field_name": "store", "display_name": "Store", "data_type": "string",
     "required": true, "regex_pattern": "Store: (.+)"},
    {"field_name": "total", "display_name": "Total", "data_type": "currency",
     "required": true, "regex_pattern": "Total: \\$([\\d,.]+)"}
  ],
  "output_format": {"csv_headers": ["_source_file", "store", "total"]}
}`

func cliFixture(t *testing.T) (*template.Template, []Item) {
	t.Helper()
	tmpl, err := template.Parse([]byte(cliTemplateJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	eng := engine.NewEngine()
	result, err := eng.Extract(engine.Document{
		Source: "r1.txt",
		Pages:  []string{"Store: Corner Shop\nTotal: $8.40"},
	}, tmpl)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	items := []Item{
		{Source: "r1.txt", Result: result, Report: engine.Validate(result, tmpl)},
		{Source: "bad.txt", Error: "document has no text"},
	}
	return tmpl, items
}

func TestWriteExtractionText(t *testing.T) {
	tmpl, items := cliFixture(t)
	var buf bytes.Buffer
	if err := WriteExtraction(&buf, tmpl, items, OutputText); err != nil {
		t.Fatalf("WriteExtraction: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Corner Shop", "8.40", "primary", "ERROR: document has no text", "valid=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteExtractionJSON(t *testing.T) {
	tmpl, items := cliFixture(t)
	var buf bytes.Buffer
	if err := WriteExtraction(&buf, tmpl, items, OutputJSON); err != nil {
		t.Fatalf("WriteExtraction: %v", err)
	}
	var back []Item
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(back) != 2 || back[1].Error == "" {
		t.Errorf("items = %+v", back)
	}
}

func TestWriteExtractionCSV(t *testing.T) {
	tmpl, items := cliFixture(t)
	var buf bytes.Buffer
	if err := WriteExtraction(&buf, tmpl, items, OutputCSV); err != nil {
		t.Fatalf("WriteExtraction: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// Header plus one row; the failed item has no result to render.
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d:\n%s", len(lines), buf.String())
	}
	if lines[1] != "r1.txt,Corner Shop,8.40" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestWriteTemplateList(t *testing.T) {
	tmpl, _ := cliFixture(t)
	tmpl.Category = "receipts"
	var buf bytes.Buffer
	WriteTemplateList(&buf, []*template.Template{tmpl})
	out := buf.String()
	if !strings.Contains(out, "[receipts]") || !strings.Contains(out, "receipt") {
		t.Errorf("list output:\n%s", out)
	}
	if !strings.Contains(out, "Total: 1 templates") {
		t.Errorf("missing total line:\n%s", out)
	}

	buf.Reset()
	WriteTemplateList(&buf, nil)
	if !strings.Contains(buf.String(), "No templates found.") {
		t.Errorf("empty list output: %q", buf.String())
	}
}

package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/openextract/openextract/internal/engine"
	"github.com/openextract/openextract/internal/template"
)

const exportTemplateJSON = `{
  "template_id": "export-test",
  "template_name": "Export Test",
  "document_type": "test",
  "fields": [
    {"field_name": "name", "display_name": "Name", "data_type": "string", "required": true,
     "regex_pattern": "Name: (.+)"},
    {"field_name": "total", "display_name": "Total", "data_type": "currency", "required": true,
     "regex_pattern": "Total: \\$([\\d,.]+)"},
    {"field_name": "due", "display_name": "Due", "data_type": "date", "required": false,
     "regex_pattern": "Due: (\\S+)"}
  ],
  "output_format": {
    "csv_headers": ["_source_file", "total", "name", "due"],
    "date_format": "YYYY-MM-DD"
  }
}`

func exportFixture(t *testing.T) (*template.Template, *engine.Result) {
	t.Helper()
	tmpl, err := template.Parse([]byte(exportTemplateJSON))
	if err != nil {
		t.Fatalf("parse template: %v", err)
	}
	result, err := engine.NewEngine().Extract(engine.Document{
		Source: "doc-1.pdf",
		Pages:  []string{"Name: Acme Corp\nTotal: $1,234.50"},
	}, tmpl)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return tmpl, result
}

func TestRow(t *testing.T) {
	tmpl, result := exportFixture(t)
	row := Row(result, tmpl)

	// Cells follow csv_headers order, not field declaration order, and the
	// missing optional date renders as an empty cell.
	want := []string{"doc-1.pdf", "1234.50", "Acme Corp", ""}
	if len(row) != len(want) {
		t.Fatalf("row = %v", row)
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("row[%d] = %q, want %q", i, row[i], want[i])
		}
	}
}

func TestWriteCSV(t *testing.T) {
	tmpl, result := exportFixture(t)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, tmpl, []*engine.Result{result, nil, result}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header plus 2 rows (nil skipped):\n%s", len(lines), buf.String())
	}
	if lines[0] != "_source_file,total,name,due" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "doc-1.pdf,1234.50,Acme Corp," {
		t.Errorf("row = %q", lines[1])
	}
}

func TestXLSX(t *testing.T) {
	tmpl, result := exportFixture(t)

	data, err := XLSX(tmpl, []*engine.Result{result})
	if err != nil {
		t.Fatalf("XLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][0] != "_source_file" || rows[0][1] != "total" {
		t.Errorf("header row = %v", rows[0])
	}
	if rows[1][0] != "doc-1.pdf" || rows[1][1] != "1234.50" || rows[1][2] != "Acme Corp" {
		t.Errorf("data row = %v", rows[1])
	}
}

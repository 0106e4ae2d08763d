// Package template defines the extraction template model and its load-time
// validation. A template is parsed once, validated, and immutable afterwards;
// concurrent extractions may share it freely.
package template

import "regexp"

// DataType is the semantic type a field's raw match is coerced into.
type DataType string

// Supported field data types.
const (
	TypeString     DataType = "string"
	TypeInteger    DataType = "integer"
	TypeCurrency   DataType = "currency"
	TypeDate       DataType = "date"
	TypeBoolean    DataType = "boolean"
	TypePercentage DataType = "percentage"
)

// SourceFileColumn is the computed CSV column carrying the source file name.
// It is the only output header that does not map to a declared field.
const SourceFileColumn = "_source_file"

// validDataTypes is the closed set of accepted data_type values.
var validDataTypes = map[DataType]bool{
	TypeString:     true,
	TypeInteger:    true,
	TypeCurrency:   true,
	TypeDate:       true,
	TypeBoolean:    true,
	TypePercentage: true,
}

// Field is one named, typed extraction rule within a template.
type Field struct {
	Name             string   `json:"field_name"`
	DisplayName      string   `json:"display_name"`
	DataType         DataType `json:"data_type"`
	Required         bool     `json:"required"`
	Pattern          string   `json:"regex_pattern"`
	FallbackPatterns []string `json:"fallback_patterns,omitempty"`
	Section          string   `json:"section,omitempty"`

	primary   *regexp.Regexp
	fallbacks []*regexp.Regexp
}

// Primary returns the compiled primary pattern.
func (f *Field) Primary() *regexp.Regexp { return f.primary }

// Fallbacks returns the compiled fallback patterns in declared order.
func (f *Field) Fallbacks() []*regexp.Regexp { return f.fallbacks }

// OutputFormat is a template's output contract: the ordered CSV headers and
// the date format dates are rendered in.
type OutputFormat struct {
	CSVHeaders []string `json:"csv_headers"`
	DateFormat string   `json:"date_format,omitempty"`
}

// Template describes which fields to extract from one class of document and how.
type Template struct {
	ID           string       `json:"template_id"`
	Name         string       `json:"template_name"`
	Description  string       `json:"description,omitempty"`
	DocumentType string       `json:"document_type"`
	Version      string       `json:"version,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Fields       []Field      `json:"fields"`
	Output       OutputFormat `json:"output_format"`

	// Category is derived from the template's subdirectory by the registry;
	// it is metadata only and not part of the template document itself.
	Category string `json:"-"`
}

// Field returns the declaration with the given field name, or nil.
func (t *Template) Field(name string) *Field {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// dateLayouts maps template date_format tokens to Go time layouts.
var dateLayouts = map[string]string{
	"YYYY-MM-DD": "2006-01-02",
	"MM/DD/YYYY": "01/02/2006",
	"DD/MM/YYYY": "02/01/2006",
	"YYYY/MM/DD": "2006/01/02",
	"MM-DD-YYYY": "01-02-2006",
	"DD-MM-YYYY": "02-01-2006",
}

// DefaultDateFormat is used when a template omits output_format.date_format.
const DefaultDateFormat = "YYYY-MM-DD"

// DateOutputLayout returns the Go time layout for a template date_format
// token. ok is false for unknown tokens.
func DateOutputLayout(format string) (layout string, ok bool) {
	if format == "" {
		format = DefaultDateFormat
	}
	layout, ok = dateLayouts[format]
	return layout, ok
}

package engine

import (
	"fmt"

	"github.com/openextract/openextract/internal/template"
)

// Report summarizes which required and optional fields succeeded or failed
// for one extraction result.
type Report struct {
	Valid           bool     `json:"valid"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	FieldsExtracted int      `json:"fields_extracted"`
	FieldsTotal     int      `json:"fields_total"`
}

// Validate checks a result against the template's required-field contract.
// Required fields that are missing or failed coercion produce errors;
// optional fields that are missing or failed coercion produce warnings.
// Valid is true iff there are zero errors. Pure function: no I/O, no side
// effects, no mutation of its inputs.
func Validate(result *Result, t *template.Template) *Report {
	rep := &Report{
		Errors:      []string{},
		Warnings:    []string{},
		FieldsTotal: len(t.Fields),
	}
	for i := range t.Fields {
		f := &t.Fields[i]
		out, ok := result.Fields[f.Name]
		if !ok {
			out = Outcome{Status: StatusNotFound, Origin: OriginNone}
		}
		switch out.Status {
		case StatusFound:
			rep.FieldsExtracted++
		case StatusNotFound:
			if f.Required {
				rep.Errors = append(rep.Errors, fmt.Sprintf("required field %q not found", f.DisplayName))
			} else {
				rep.Warnings = append(rep.Warnings, fmt.Sprintf("optional field %q not found", f.DisplayName))
			}
		case StatusCoercionFailed:
			msg := fmt.Sprintf("field %q failed %s coercion: %s", f.DisplayName, f.DataType, out.Reason)
			if f.Required {
				rep.Errors = append(rep.Errors, "required "+msg)
			} else {
				rep.Warnings = append(rep.Warnings, "optional "+msg)
			}
		}
	}
	rep.Valid = len(rep.Errors) == 0
	return rep
}

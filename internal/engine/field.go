package engine

import (
	"github.com/openextract/openextract/internal/template"
	"github.com/openextract/openextract/pkg/utils"
)

// ExtractField resolves one field against document text and coerces the
// captured value. A resolver miss short-circuits to not_found without
// invoking the coercer; a coercion failure keeps the raw captured text so
// the validator and the template author can see what matched.
func ExtractField(text string, f *template.Field, dateFormat string) Outcome {
	raw, origin, found := Resolve(text, f)
	if !found {
		return Outcome{Status: StatusNotFound, Origin: OriginNone}
	}
	raw = utils.CleanText(raw)
	v, err := Coerce(raw, f.DataType, dateFormat)
	if err != nil {
		return Outcome{Status: StatusCoercionFailed, Raw: raw, Origin: origin, Reason: err.Error()}
	}
	return Outcome{Status: StatusFound, Value: &v, Raw: raw, Origin: origin}
}

// Package engine implements the template-driven extraction core: pattern
// resolution, type coercion, per-field extraction, document orchestration,
// and validation. The engine is pure computation over in-memory text; same
// inputs always produce the same result.
package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openextract/openextract/internal/template"
)

// Status classifies one field's extraction outcome.
type Status string

const (
	// StatusFound means a pattern matched and the value coerced cleanly.
	StatusFound Status = "found"
	// StatusNotFound means no pattern (primary or fallback) matched.
	StatusNotFound Status = "not_found"
	// StatusCoercionFailed means a pattern matched but the raw text did not
	// coerce to the field's declared type. Raw carries the offending text.
	StatusCoercionFailed Status = "coercion_failed"
)

// Origin identifies which pattern produced a match: the primary pattern or
// a zero-based fallback index.
type Origin int

const (
	// OriginNone means no pattern matched.
	OriginNone Origin = -2
	// OriginPrimary means the primary pattern matched.
	OriginPrimary Origin = -1
)

func (o Origin) String() string {
	switch {
	case o == OriginPrimary:
		return "primary"
	case o >= 0:
		return fmt.Sprintf("fallback[%d]", int(o))
	default:
		return "none"
	}
}

// MarshalJSON renders the origin in its diagnostic string form
// ("primary", "fallback[2]", "none").
func (o Origin) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON parses the diagnostic string form back into an Origin.
func (o *Origin) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch {
	case s == "primary":
		*o = OriginPrimary
	case s == "none" || s == "":
		*o = OriginNone
	case strings.HasPrefix(s, "fallback[") && strings.HasSuffix(s, "]"):
		n, err := strconv.Atoi(s[len("fallback[") : len(s)-1])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid origin %q", s)
		}
		*o = Origin(n)
	default:
		return fmt.Errorf("invalid origin %q", s)
	}
	return nil
}

// Value is a coerced, typed field value. Exactly one of the carrier fields
// is meaningful, selected by Type.
type Value struct {
	Type   template.DataType
	Text   string          // string and date values (dates already normalized)
	Number int64           // integer values
	Amount decimal.Decimal // currency and percentage values (fixed-point)
	Flag   bool            // boolean values
}

// String returns the canonical string form of the value: the form rendered
// into CSV cells. Currency always carries two fractional digits.
func (v Value) String() string {
	switch v.Type {
	case template.TypeInteger:
		return strconv.FormatInt(v.Number, 10)
	case template.TypeCurrency:
		return v.Amount.StringFixed(2)
	case template.TypePercentage:
		return v.Amount.String()
	case template.TypeBoolean:
		return strconv.FormatBool(v.Flag)
	default:
		return v.Text
	}
}

// Equal reports whether two values have the same type and the same content.
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case template.TypeInteger:
		return v.Number == other.Number
	case template.TypeCurrency, template.TypePercentage:
		return v.Amount.Equal(other.Amount)
	case template.TypeBoolean:
		return v.Flag == other.Flag
	default:
		return v.Text == other.Text
	}
}

// valueJSON is the wire/storage form of a Value: the type tag plus the
// canonical string, which is lossless for every supported type.
type valueJSON struct {
	Type  template.DataType `json:"type"`
	Value string            `json:"value"`
}

// MarshalJSON encodes the value as {"type": ..., "value": canonical string}.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueJSON{Type: v.Type, Value: v.String()})
}

// UnmarshalJSON decodes the canonical form written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w valueJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v.Type = w.Type
	switch w.Type {
	case template.TypeInteger:
		n, err := strconv.ParseInt(w.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value %q", w.Value)
		}
		v.Number = n
	case template.TypeCurrency, template.TypePercentage:
		d, err := decimal.NewFromString(w.Value)
		if err != nil {
			return fmt.Errorf("invalid decimal value %q", w.Value)
		}
		v.Amount = d
	case template.TypeBoolean:
		b, err := strconv.ParseBool(w.Value)
		if err != nil {
			return fmt.Errorf("invalid boolean value %q", w.Value)
		}
		v.Flag = b
	default:
		v.Text = w.Value
	}
	return nil
}

// Outcome is the result of extracting one field: a typed value, or an
// explicit not-found / coercion-failed marker. Raw preserves the captured
// text on coercion failure so template patterns can be debugged.
type Outcome struct {
	Status Status `json:"status"`
	Value  *Value `json:"value,omitempty"`
	Raw    string `json:"raw,omitempty"`
	Origin Origin `json:"origin"`
	Reason string `json:"reason,omitempty"`
}

// Found reports whether the outcome carries a successfully coerced value.
func (o Outcome) Found() bool { return o.Status == StatusFound }

// CSVString returns the value's canonical string, or "" for missing and
// failed fields (missing fields render as empty cells, never as crashes).
func (o Outcome) CSVString() string {
	if o.Status == StatusFound && o.Value != nil {
		return o.Value.String()
	}
	return ""
}

// Result is the full set of field outcomes for one document under one
// template. It is immutable once the engine returns it.
type Result struct {
	TemplateID string             `json:"template_id"`
	Source     string             `json:"source,omitempty"`
	Fields     map[string]Outcome `json:"fields"`
}

// Outcome returns the outcome for a field name.
func (r *Result) Outcome(name string) (Outcome, bool) {
	o, ok := r.Fields[name]
	return o, ok
}

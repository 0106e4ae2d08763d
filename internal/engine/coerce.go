package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openextract/openextract/internal/template"
	"github.com/openextract/openextract/pkg/utils"
)

// dateInputLayouts are the accepted date input shapes, tried in order.
var dateInputLayouts = []string{
	"01/02/2006",
	"01-02-2006",
	"2006-01-02",
	"2006/01/02",
	"01/02/06",
	"01-02-06",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// currencySymbols are stripped before decimal parsing.
const currencySymbols = "$£€¥"

// hundred is the divisor for percent-unit values.
var hundred = decimal.NewFromInt(100)

// Coerce converts a raw captured string into the field's declared type.
// dateFormat is the template's output date format token; dates are
// normalized to it. Failure is reported as an error and is never fatal to
// the surrounding extraction.
//
// Percentage convention: a trailing "%" means the number is in percent units
// and it is divided by 100 ("25%" -> 0.25). A bare number is stored as-is
// ("0.25" -> 0.25, "25" -> 25); template authors who want bare percent units
// normalized must include the "%" in the capture group.
func Coerce(raw string, dataType template.DataType, dateFormat string) (Value, error) {
	raw = utils.CleanText(raw)
	switch dataType {
	case template.TypeString:
		return Value{Type: dataType, Text: raw}, nil
	case template.TypeInteger:
		n, err := coerceInteger(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: dataType, Number: n}, nil
	case template.TypeCurrency:
		d, err := coerceDecimal(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: dataType, Amount: d}, nil
	case template.TypeDate:
		s, err := coerceDate(raw, dateFormat)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: dataType, Text: s}, nil
	case template.TypeBoolean:
		b, err := coerceBoolean(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: dataType, Flag: b}, nil
	case template.TypePercentage:
		d, err := coercePercentage(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: dataType, Amount: d}, nil
	default:
		// Unreachable for validated templates.
		return Value{}, fmt.Errorf("unknown data type %q", dataType)
	}
}

// coerceInteger strips thousands separators and parses a whole number.
// Any remaining non-digit character fails.
func coerceInteger(raw string) (int64, error) {
	s := strings.ReplaceAll(raw, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty integer")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a whole number: %q", raw)
	}
	return n, nil
}

// coerceDecimal strips currency symbols and thousands separators, handles
// parenthesized negatives ("(1,234.56)"), and parses a fixed-point decimal
// normalized to two fractional digits. Binary floating point is never used,
// so there is no rounding drift.
func coerceDecimal(raw string) (decimal.Decimal, error) {
	s := raw
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' || strings.ContainsRune(currencySymbols, r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a decimal number: %q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d.Round(2), nil
}

// coerceDate parses raw against the accepted input layouts in order and
// renders the first success in the template's output format.
func coerceDate(raw string, dateFormat string) (string, error) {
	layout, ok := template.DateOutputLayout(dateFormat)
	if !ok {
		// Validated at template load; defend against direct calls.
		return "", fmt.Errorf("unknown output date format %q", dateFormat)
	}
	for _, in := range dateInputLayouts {
		t, err := time.Parse(in, raw)
		if err == nil {
			return t.Format(layout), nil
		}
	}
	return "", fmt.Errorf("not a recognized date: %q", raw)
}

// coerceBoolean maps a fixed vocabulary, case-insensitively. An empty
// capture means an unchecked checkbox and is false.
func coerceBoolean(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "yes", "true", "x", "checked", "1":
		return true, nil
	case "no", "false", "unchecked", "0", "":
		return false, nil
	default:
		return false, fmt.Errorf("not a recognized boolean token: %q", raw)
	}
}

// coercePercentage parses like currency; see Coerce for the bare-number
// convention.
func coercePercentage(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	d, err := coerceDecimal(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if percent {
		return d.DivRound(hundred, 6), nil
	}
	return d, nil
}

package engine

import (
	"encoding/json"
	"testing"

	"github.com/openextract/openextract/internal/template"
)

func TestOriginString(t *testing.T) {
	tests := []struct {
		origin Origin
		want   string
	}{
		{OriginPrimary, "primary"},
		{OriginNone, "none"},
		{Origin(0), "fallback[0]"},
		{Origin(2), "fallback[2]"},
	}
	for _, tt := range tests {
		if got := tt.origin.String(); got != tt.want {
			t.Errorf("Origin(%d).String() = %q, want %q", tt.origin, got, tt.want)
		}
	}
}

func TestOriginJSONRoundTrip(t *testing.T) {
	for _, origin := range []Origin{OriginPrimary, OriginNone, Origin(0), Origin(3)} {
		data, err := json.Marshal(origin)
		if err != nil {
			t.Fatalf("marshal %s: %v", origin, err)
		}
		var back Origin
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != origin {
			t.Errorf("round trip %s -> %s", origin, back)
		}
	}
	var bad Origin
	if err := json.Unmarshal([]byte(`"fallback[-1]"`), &bad); err == nil {
		t.Error("expected error for negative fallback index")
	}
	if err := json.Unmarshal([]byte(`"secondary"`), &bad); err == nil {
		t.Error("expected error for unknown origin token")
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	values := []Value{
		{Type: template.TypeString, Text: "Acme Corp"},
		mustCoerce(t, "$1,234.50", template.TypeCurrency),
		mustCoerce(t, "01/15/2024", template.TypeDate),
		mustCoerce(t, "42", template.TypeInteger),
		mustCoerce(t, "yes", template.TypeBoolean),
		mustCoerce(t, "7.5%", template.TypePercentage),
	}
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", v.Type, err)
		}
		var back Value
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !v.Equal(back) {
			t.Errorf("%s: round trip %q -> %q", v.Type, v.String(), back.String())
		}
	}
}

func mustCoerce(t *testing.T, raw string, dataType template.DataType) Value {
	t.Helper()
	v, err := Coerce(raw, dataType, template.DefaultDateFormat)
	if err != nil {
		t.Fatalf("Coerce(%q, %s): %v", raw, dataType, err)
	}
	return v
}

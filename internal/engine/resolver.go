package engine

import "github.com/openextract/openextract/internal/template"

// Resolve tries the field's primary pattern against text, then its fallback
// patterns in declared order, and returns the single capture group of the
// first match. Matching is case-sensitive unless the pattern itself opts in
// with (?i). The one-capture-group contract is enforced at template load, so
// m[1] always exists here.
func Resolve(text string, f *template.Field) (raw string, origin Origin, found bool) {
	if m := f.Primary().FindStringSubmatch(text); m != nil {
		return m[1], OriginPrimary, true
	}
	for i, re := range f.Fallbacks() {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], Origin(i), true
		}
	}
	return "", OriginNone, false
}

package upstream

import (
	"github.com/tidwall/gjson"
)

// Strings collects the string values of a JSON array, skipping empties.
func Strings(r gjson.Result) []string {
	out := []string{}
	r.ForEach(func(_, v gjson.Result) bool {
		if s := v.String(); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

// OptString returns nil when r is missing, null, or empty.
func OptString(r gjson.Result) *string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	s := r.String()
	if s == "" {
		return nil
	}
	return &s
}

// OptFloat returns nil when r is missing, null, or not numeric. Numeric
// strings, which several APIs use for decimals, are parsed.
func OptFloat(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		f := r.Float()
		return &f
	case gjson.String:
		if n := gjson.Parse(r.String()); n.Type == gjson.Number {
			f := n.Float()
			return &f
		}
	}
	return nil
}

// OptInt is OptFloat truncated to an integer.
func OptInt(r gjson.Result) *int {
	f := OptFloat(r)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

// Value converts r into plain Go values. Missing values become nil and
// arrays are never nil.
func Value(r gjson.Result) any {
	if !r.Exists() {
		return nil
	}
	if r.IsArray() {
		return Values(r)
	}
	return r.Value()
}

// Values converts each element of an array into plain Go values.
func Values(r gjson.Result) []any {
	out := []any{}
	r.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.Value())
		return true
	})
	return out
}

// Objects is Values for arrays of objects.
func Objects(r gjson.Result) []map[string]any {
	out := []map[string]any{}
	r.ForEach(func(_, v gjson.Result) bool {
		if m, ok := v.Value().(map[string]any); ok {
			out = append(out, m)
		}
		return true
	})
	return out
}

// Pick builds an object from selected paths of r, keyed by output name.
// Paths that do not exist are left out.
func Pick(r gjson.Result, fields map[string]string) map[string]any {
	out := make(map[string]any, len(fields))
	for name, path := range fields {
		if v := r.Get(path); v.Exists() && v.Type != gjson.Null {
			out[name] = Value(v)
		}
	}
	return out
}

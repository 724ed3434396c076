package model

import "time"

// Document is the wire shape of a remote collection entry. Values follow JSON
// conventions: numbers are float64, timestamps are RFC3339 strings.
type Document = map[string]any

func docString(d Document, key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

func docFloat(d Document, key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func docInt(d Document, key string) int {
	return int(docFloat(d, key))
}

func docBool(d Document, key string) bool {
	if v, ok := d[key].(bool); ok {
		return v
	}
	return false
}

func docTime(d Document, key string) time.Time {
	s, ok := d[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func docStrings(d Document, key string) []string {
	switch v := d[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

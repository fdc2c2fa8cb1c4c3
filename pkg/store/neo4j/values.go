package neo4j

import (
	driver "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// The driver returns untyped values: strings, int64, float64 and []any for
// lists. Missing properties come back as nil.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func countOf(records []*driver.Record) int {
	if len(records) == 0 || len(records[0].Values) == 0 {
		return 0
	}
	n, _ := records[0].Values[0].(int64)
	return int(n)
}

func stringsParam(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

package extract

import (
	"strconv"
	"strings"
	"time"
)

// nullMarkers are the values the API uses for missing numerics.
var nullMarkers = map[string]bool{"": true, "None": true, "none": true, "-": true, ".": true, "null": true}

// numOrNil parses a numeric API field, returning nil for the feed's null
// markers or unparseable values.
func numOrNil(s string) any {
	s = strings.TrimSpace(s)
	if nullMarkers[s] {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return f
}

// str reads a string field from a decoded payload, "" when absent or not a
// string.
func str(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return strings.TrimSpace(v)
}

// nilIfZero converts a zero time into a SQL NULL.
func nilIfZero(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// dateOrZero parses a YYYY-MM-DD field, zero time when missing or malformed.
func dateOrZero(s string) time.Time {
	s = strings.TrimSpace(s)
	if nullMarkers[s] {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Package models holds the wire types exchanged with the analytics backend.
package models

import (
	"strconv"
	"strings"
	"time"
)

// Record is one backend row. Fields are accessed by name because each
// resource type carries a different shape.
type Record map[string]any

// Page is the backend's paginated list response.
type Page struct {
	Data  []Record `json:"data"`
	Total int      `json:"total"`
	Page  int      `json:"page,omitempty"`
	Pages int      `json:"pages,omitempty"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// String returns the field as text. Numbers are rendered without exponent;
// nil, missing and empty values report false.
func (r Record) String(field string) (string, bool) {
	switch v := r[field].(type) {
	case nil:
		return "", false
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	default:
		return "", false
	}
}

// Float returns the field as a number. Numeric strings are parsed.
func (r Record) Float(field string) (float64, bool) {
	switch v := r[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Time returns the field parsed as a timestamp, in UTC.
func (r Record) Time(field string) (time.Time, bool) {
	s, ok := r[field].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Bool returns the field as a boolean. "true"/"false" strings are accepted.
func (r Record) Bool(field string) (bool, bool) {
	switch v := r[field].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

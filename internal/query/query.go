// Package query turns filter state into backend query parameters.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/ihttstats/internal/catalog"
)

// DateLayout is the wire format for date filters.
const DateLayout = "2006-01-02"

// ErrUnknownFilter is returned when a request names a filter the resource
// does not accept.
var ErrUnknownFilter = errors.New("unknown filter")

// ErrInvalidValue is returned when a filter value does not parse as its kind.
var ErrInvalidValue = errors.New("invalid filter value")

// Filter maps filter names to optional scalar values. Supported value types
// are string, bool, int, time.Time, pointers to those, and nil.
type Filter map[string]any

// Clone returns a shallow copy of f.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ToQueryParams keeps only present, non-empty values. false is kept.
func ToQueryParams(f Filter) map[string]string {
	out := make(map[string]string, len(f))
	for k, v := range f {
		if s, ok := encode(v); ok {
			out[k] = s
		}
	}
	return out
}

// ToValues is ToQueryParams shaped for url.Values.Encode.
func ToValues(f Filter) url.Values {
	v := make(url.Values)
	for k, s := range ToQueryParams(f) {
		v.Set(k, s)
	}
	return v
}

// Describe renders the present values as "key: value" pairs sorted by key,
// for report footers.
func Describe(f Filter) string {
	params := ToQueryParams(f)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+params[k])
	}
	return strings.Join(parts, ", ")
}

func encode(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case *string:
		if x == nil {
			return "", false
		}
		return encode(*x)
	case bool:
		return strconv.FormatBool(x), true
	case *bool:
		if x == nil {
			return "", false
		}
		return encode(*x)
	case int:
		return strconv.Itoa(x), true
	case *int:
		if x == nil {
			return "", false
		}
		return encode(*x)
	case time.Time:
		if x.IsZero() {
			return "", false
		}
		return x.UTC().Format(DateLayout), true
	case *time.Time:
		if x == nil {
			return "", false
		}
		return encode(*x)
	default:
		return "", false
	}
}

// ParseFilter validates url query values against the resource's accepted
// filters and converts them to their declared kinds. Keys listed in skip
// (e.g. "page", "format") are ignored. Empty strings are kept so the mapper
// drops them.
func ParseFilter(res *catalog.Resource, values url.Values, skip ...string) (Filter, error) {
	f := make(Filter, len(values))
	for key, vals := range values {
		if contains(skip, key) {
			continue
		}
		raw := ""
		if len(vals) > 0 {
			raw = vals[0]
		}
		v, err := parseValue(res, key, raw)
		if err != nil {
			return nil, err
		}
		f[key] = v
	}
	return f, nil
}

// ParseFilterJSON is ParseFilter for a decoded JSON object, where values
// may already be booleans or numbers.
func ParseFilterJSON(res *catalog.Resource, body map[string]any) (Filter, error) {
	f := make(Filter, len(body))
	for key, val := range body {
		var raw string
		switch x := val.(type) {
		case nil:
			if _, ok := res.Filter(key); !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, key)
			}
			f[key] = nil
			continue
		case string:
			raw = x
		case bool:
			raw = strconv.FormatBool(x)
		case float64:
			raw = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("%w: %q has unsupported type %T", ErrInvalidValue, key, val)
		}
		v, err := parseValue(res, key, raw)
		if err != nil {
			return nil, err
		}
		f[key] = v
	}
	return f, nil
}

func parseValue(res *catalog.Resource, key, raw string) (any, error) {
	spec, ok := res.Filter(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, key)
	}
	if raw == "" {
		return "", nil
	}

	switch spec.Kind {
	case catalog.FilterBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q must be true or false", ErrInvalidValue, key)
		}
		return b, nil
	case catalog.FilterInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q must be an integer", ErrInvalidValue, key)
		}
		return n, nil
	case catalog.FilterDate:
		if t, err := time.Parse(DateLayout, raw); err == nil {
			return t, nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q must be a YYYY-MM-DD date", ErrInvalidValue, key)
		}
		return t.UTC(), nil
	default:
		return raw, nil
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

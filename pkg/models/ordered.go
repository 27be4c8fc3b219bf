package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// NumberMap is a JSON object of category to number that remembers the order
// in which keys appeared in the source document.
//
// Besides plain numbers it accepts the other shapes the backend emits for
// chart data: objects carrying a "value" (or "amount"/"total"/"count") field,
// and arrays of {category|month|name, value|amount|total|count} items.
// Non-numeric entries are skipped.
type NumberMap struct {
	om *orderedmap.OrderedMap[string, float64]
}

// NewNumberMap builds a NumberMap from parallel key and value slices.
func NewNumberMap(keys []string, values []float64) NumberMap {
	m := NumberMap{om: orderedmap.New[string, float64](len(keys))}
	for i, k := range keys {
		m.Set(k, values[i])
	}
	return m
}

// Set stores v under k. A new key goes last; an existing key keeps its place.
func (m *NumberMap) Set(k string, v float64) {
	if m.om == nil {
		m.om = orderedmap.New[string, float64]()
	}
	m.om.Set(k, v)
}

// Keys returns the keys in source order.
func (m NumberMap) Keys() []string {
	out := make([]string, 0, m.Len())
	if m.om == nil {
		return out
	}
	for p := m.om.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// Get returns the value stored under k.
func (m NumberMap) Get(k string) (float64, bool) {
	if m.om == nil {
		return 0, false
	}
	return m.om.Get(k)
}

// Len returns the number of entries.
func (m NumberMap) Len() int {
	if m.om == nil {
		return 0
	}
	return m.om.Len()
}

// MarshalJSON writes the entries in source order. An empty map is "{}".
func (m NumberMap) MarshalJSON() ([]byte, error) {
	if m.Len() == 0 {
		return []byte("{}"), nil
	}
	return m.om.MarshalJSON()
}

// UnmarshalJSON decodes an object or array while preserving key order.
func (m *NumberMap) UnmarshalJSON(data []byte) error {
	*m = NumberMap{om: orderedmap.New[string, float64]()}
	trimmed := bytes.TrimSpace(data)
	if isNull(trimmed) {
		return nil
	}

	switch trimmed[0] {
	case '{':
		obj, err := decodeObject(trimmed)
		if err != nil {
			return err
		}
		for p := obj.Oldest(); p != nil; p = p.Next() {
			if v, ok := numberOf(p.Value); ok {
				m.Set(p.Key, v)
			}
		}
		return nil
	case '[':
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("decode chart array: %w", err)
		}
		for _, item := range items {
			label, ok := labelOf(item)
			if !ok {
				continue
			}
			if v, ok := numberOf(pickRaw(item, "value", "amount", "total", "count")); ok {
				m.Set(label, v)
			}
		}
		return nil
	default:
		return fmt.Errorf("decode chart data: unexpected %q", trimmed[0])
	}
}

func numberOf(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		return numberOf(pickRaw(obj, "value", "amount", "total", "count"))
	}
	return 0, false
}

func labelOf(item map[string]json.RawMessage) (string, bool) {
	raw := pickRaw(item, "category", "month", "name", "label")
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return fmt.Sprint(f), true
	}
	return "", false
}

func pickRaw(obj map[string]json.RawMessage, names ...string) json.RawMessage {
	for _, n := range names {
		if v, ok := obj[n]; ok {
			return v
		}
	}
	return nil
}

// OrderedRaw is a JSON object decoded into raw values with its key order.
type OrderedRaw = orderedmap.OrderedMap[string, json.RawMessage]

// decodeObject decodes a JSON object keeping key order. null decodes to an
// empty object; any other non-object is an error.
func decodeObject(data []byte) (*OrderedRaw, error) {
	obj := orderedmap.New[string, json.RawMessage]()
	trimmed := bytes.TrimSpace(data)
	if isNull(trimmed) {
		return obj, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("expected object, got %q", trimmed[0])
	}
	if err := obj.UnmarshalJSON(trimmed); err != nil {
		return nil, err
	}
	return obj, nil
}

func isNull(trimmed []byte) bool {
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

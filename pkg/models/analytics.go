package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Analytics is the payload of the -analytics, -analytics-report and
// -dashboard endpoints. ChartData is kept raw because some resources nest
// their maps one level deeper; use ChartMap to resolve a dotted path.
type Analytics struct {
	KPIs           NumberMap       `json:"kpis"`
	ChartData      json.RawMessage `json:"chartData,omitempty"`
	Total          int             `json:"total"`
	ReportAnalysis json.RawMessage `json:"reportAnalysis,omitempty"`
}

// ErrPathNotFound is returned by ChartMap when the dotted path does not exist.
var ErrPathNotFound = errors.New("chart data path not found")

// ChartMap resolves a dotted path such as "filtered.statusDistribution"
// inside ChartData and decodes it as an ordered category map.
func (a *Analytics) ChartMap(path string) (NumberMap, error) {
	raw := a.ChartData
	for _, part := range strings.Split(path, ".") {
		if isNull(bytes.TrimSpace(raw)) {
			return NumberMap{}, fmt.Errorf("%w: %q", ErrPathNotFound, path)
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return NumberMap{}, fmt.Errorf("chart data %q: %w", path, err)
		}
		next, ok := obj[part]
		if !ok {
			return NumberMap{}, fmt.Errorf("%w: %q", ErrPathNotFound, path)
		}
		raw = next
	}

	var m NumberMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return NumberMap{}, fmt.Errorf("chart data %q: %w", path, err)
	}
	return m, nil
}

// ChartMaps decodes every top-level chartData entry that is a category map,
// descending one level into nested groups such as "global" and "filtered".
// Keys of nested entries are joined with a dot.
func (a *Analytics) ChartMaps() ([]NamedMap, error) {
	if isNull(bytes.TrimSpace(a.ChartData)) {
		return nil, nil
	}
	top, err := decodeObject(a.ChartData)
	if err != nil {
		return nil, fmt.Errorf("chart data: %w", err)
	}

	var out []NamedMap
	for p := top.Oldest(); p != nil; p = p.Next() {
		var m NumberMap
		if err := json.Unmarshal(p.Value, &m); err == nil && m.Len() > 0 {
			out = append(out, NamedMap{Name: p.Key, Map: m})
			continue
		}
		nested, err := decodeObject(p.Value)
		if err != nil {
			continue
		}
		for np := nested.Oldest(); np != nil; np = np.Next() {
			var nm NumberMap
			if err := json.Unmarshal(np.Value, &nm); err == nil && nm.Len() > 0 {
				out = append(out, NamedMap{Name: p.Key + "." + np.Key, Map: nm})
			}
		}
	}
	return out, nil
}

// NamedMap pairs a chartData path with its decoded map.
type NamedMap struct {
	Name string
	Map  NumberMap
}

// Package chart adapts backend category maps to chart series and renders
// them as go-echarts HTML.
package chart

import (
	"sort"
	"strconv"
	"strings"

	"github.com/HerbHall/ihttstats/pkg/models"
)

// Point is one category of a chart series.
type Point struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// ToSeries converts m to points in the order its keys appeared in the
// source document.
func ToSeries(m models.NumberMap) []Point {
	keys := m.Keys()
	out := make([]Point, 0, len(keys))
	for _, k := range keys {
		v, _ := m.Get(k)
		out = append(out, Point{Category: k, Value: v})
	}
	return out
}

var spanishMonths = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6,
	"julio": 7, "agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10,
	"noviembre": 11, "diciembre": 12,
	"ene": 1, "feb": 2, "mar": 3, "abr": 4, "may": 5, "jun": 6,
	"jul": 7, "ago": 8, "sep": 9, "sept": 9, "oct": 10, "nov": 11, "dic": 12,
}

// monthKey returns a sortable year*100+month for a category, or false.
// Accepted: "2024-03", "2024-03-15", "Marzo", "mar", "Marzo 2024".
func monthKey(category string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(category))
	if len(s) >= 7 && s[4] == '-' {
		y, errY := strconv.Atoi(s[:4])
		m, errM := strconv.Atoi(s[5:7])
		if errY == nil && errM == nil && m >= 1 && m <= 12 {
			return y*100 + m, true
		}
	}

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	m, ok := spanishMonths[strings.TrimSuffix(fields[0], ".")]
	if !ok {
		return 0, false
	}
	year := 0
	if len(fields) > 1 {
		if y, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
			year = y
		}
	}
	return year*100 + m, true
}

// SortByMonth returns a copy of points in calendar order. Categories that
// are not months keep their relative order after the months.
func SortByMonth(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool {
		ki, oki := monthKey(out[i].Category)
		kj, okj := monthKey(out[j].Category)
		switch {
		case oki && okj:
			return ki < kj
		case oki:
			return true
		default:
			return false
		}
	})
	return out
}

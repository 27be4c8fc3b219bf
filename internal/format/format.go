// Package format renders record fields as report cells.
package format

import (
	"fmt"
	"math"
	"time"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/pkg/models"
	"github.com/dustin/go-humanize"
)

// Placeholders for absent values.
const (
	Missing     = "N/A"
	MissingDate = "NO DISPONIBLE"
	Yes         = "Sí"
	No          = "No"
)

// DateLayout is the DD/MM/YYYY layout used in every report.
const DateLayout = "02/01/2006"

// CurrencyPrefix precedes every money amount.
const CurrencyPrefix = "L. "

// Money renders v as "L. 1,234.56".
func Money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return CurrencyPrefix + humanize.FormatFloat("#,###.##", v)
}

// Percent renders v as "12.34%".
func Percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// Date renders t in UTC as DD/MM/YYYY, or MissingDate for the zero time.
func Date(t time.Time) string {
	if t.IsZero() {
		return MissingDate
	}
	return t.UTC().Format(DateLayout)
}

// Number renders v with thousands separators, dropping a zero fraction.
func Number(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return humanize.Comma(int64(v))
	}
	return humanize.FormatFloat("#,###.##", v)
}

// Bool renders b as Sí or No.
func Bool(b bool) string {
	if b {
		return Yes
	}
	return No
}

// Cell formats one record field according to the column kind.
func Cell(r models.Record, col catalog.Column) string {
	switch col.Kind {
	case catalog.KindDate:
		t, ok := r.Time(col.Field)
		if !ok {
			return MissingDate
		}
		return Date(t)
	case catalog.KindMoney:
		v, _ := r.Float(col.Field)
		return Money(v)
	case catalog.KindNumber:
		v, ok := r.Float(col.Field)
		if !ok {
			return Missing
		}
		return Number(v)
	case catalog.KindBool:
		b, ok := r.Bool(col.Field)
		if !ok {
			return Missing
		}
		return Bool(b)
	default:
		s, ok := r.String(col.Field)
		if !ok {
			return Missing
		}
		return s
	}
}

// FormatRow yields one cell per column, in column order.
func FormatRow(r models.Record, cols []catalog.Column) []string {
	row := make([]string, len(cols))
	for i, col := range cols {
		row[i] = Cell(r, col)
	}
	return row
}

// Headers returns the header of each column.
func Headers(cols []catalog.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Header
	}
	return out
}

// Value returns the typed cell for spreadsheet output: money and numbers as
// float64 (money defaults to 0), dates as time.Time or nil for an empty
// cell, everything else as the formatted string.
func Value(r models.Record, col catalog.Column) any {
	switch col.Kind {
	case catalog.KindMoney:
		v, _ := r.Float(col.Field)
		return v
	case catalog.KindNumber:
		if v, ok := r.Float(col.Field); ok {
			return v
		}
		return Missing
	case catalog.KindDate:
		if t, ok := r.Time(col.Field); ok {
			return t
		}
		return nil
	default:
		return Cell(r, col)
	}
}

// Package catalog describes every resource type the reporting tier serves:
// which backend endpoint feeds it, how records are keyed, which filters the
// backend accepts, and which columns and charts each output uses.
package catalog

import (
	"errors"
	"fmt"
)

// ErrUnknownResource is returned when a resource name is not in the catalog.
var ErrUnknownResource = errors.New("unknown resource")

// ColumnKind selects the formatting rule for a column's cells.
type ColumnKind string

// Column kinds.
const (
	KindText   ColumnKind = "text"
	KindDate   ColumnKind = "date"
	KindMoney  ColumnKind = "money"
	KindBool   ColumnKind = "bool"
	KindNumber ColumnKind = "number"
)

// FilterKind is the value type a filter accepts.
type FilterKind string

// Filter kinds.
const (
	FilterString FilterKind = "string"
	FilterBool   FilterKind = "bool"
	FilterInt    FilterKind = "int"
	FilterDate   FilterKind = "date"
)

// ChartKind selects the chart type rendered for a series.
type ChartKind string

// Chart kinds.
const (
	ChartPie  ChartKind = "pie"
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
)

// Column maps one output column to a record field.
type Column struct {
	Header string     `yaml:"header" json:"header"`
	Field  string     `yaml:"field" json:"field"`
	Kind   ColumnKind `yaml:"kind" json:"kind"`
}

// FilterSpec declares one accepted filter.
type FilterSpec struct {
	Name string     `yaml:"name" json:"name"`
	Kind FilterKind `yaml:"kind" json:"kind"`
}

// Chart declares one chart fed from the analytics chartData object.
// Path is dotted, e.g. "filtered.statusDistribution".
type Chart struct {
	ID     string    `yaml:"id" json:"id"`
	Title  string    `yaml:"title" json:"title"`
	Kind   ChartKind `yaml:"kind" json:"kind"`
	Path   string    `yaml:"path" json:"path"`
	Screen string    `yaml:"screen" json:"screen"`
	Months bool      `yaml:"months" json:"months"`
}

// Resource is one catalog entry.
type Resource struct {
	Name         string       `yaml:"name" json:"name"`
	Section      string       `yaml:"section" json:"section"`
	Title        string       `yaml:"title" json:"title"`
	Endpoint     string       `yaml:"endpoint" json:"endpoint"`
	Key          string       `yaml:"key" json:"key"`
	AmountField  string       `yaml:"amount_field" json:"amount_field"`
	StatusField  string       `yaml:"status_field" json:"status_field"`
	Sheet        string       `yaml:"sheet" json:"sheet"`
	Filters      []FilterSpec `yaml:"filters" json:"filters"`
	Columns      []Column     `yaml:"columns" json:"columns"`
	PDFColumns   []Column     `yaml:"pdf_columns" json:"pdf_columns"`
	ExcelColumns []Column     `yaml:"excel_columns" json:"excel_columns"`
	Charts       []Chart      `yaml:"charts" json:"charts"`
}

// Filter returns the definition of the named filter.
func (r *Resource) Filter(name string) (FilterSpec, bool) {
	for _, f := range r.Filters {
		if f.Name == name {
			return f, true
		}
	}
	return FilterSpec{}, false
}

// ChartsFor returns the charts drawn on the given screen. An empty screen
// selects the charts with no screen set.
func (r *Resource) ChartsFor(screen string) []Chart {
	out := make([]Chart, 0, len(r.Charts))
	for _, c := range r.Charts {
		if c.Screen == screen {
			out = append(out, c)
		}
	}
	return out
}

func (r *Resource) validate() error {
	switch {
	case r.Name == "":
		return errors.New("resource name is empty")
	case r.Endpoint == "":
		return fmt.Errorf("resource %q: endpoint is empty", r.Name)
	case r.Key == "":
		return fmt.Errorf("resource %q: key is empty", r.Name)
	case len(r.PDFColumns) == 0 || len(r.ExcelColumns) == 0:
		return fmt.Errorf("resource %q: pdf and excel columns are required", r.Name)
	}
	for _, cols := range [][]Column{r.Columns, r.PDFColumns, r.ExcelColumns} {
		for _, c := range cols {
			switch c.Kind {
			case KindText, KindDate, KindMoney, KindBool, KindNumber:
			default:
				return fmt.Errorf("resource %q: column %q has unknown kind %q", r.Name, c.Header, c.Kind)
			}
		}
	}
	for _, f := range r.Filters {
		switch f.Kind {
		case FilterString, FilterBool, FilterInt, FilterDate:
		default:
			return fmt.Errorf("resource %q: filter %q has unknown kind %q", r.Name, f.Name, f.Kind)
		}
	}
	for _, c := range r.Charts {
		switch c.Kind {
		case ChartPie, ChartBar, ChartLine:
		default:
			return fmt.Errorf("resource %q: chart %q has unknown kind %q", r.Name, c.ID, c.Kind)
		}
	}
	return nil
}

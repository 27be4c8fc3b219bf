package chart

import (
	"fmt"
	"io"
	"sync"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Instance is a chart bound to a render target.
type Instance struct {
	Target string
	Spec   catalog.Chart
	Series []Point
	Groups *Grouped

	charter components.Charter
}

// Board owns the charts drawn on one screen. A target holds at most one
// chart: rendering into an occupied target disposes the previous chart
// first.
type Board struct {
	onDispose func(target string)

	mu      sync.Mutex
	order   []string
	targets map[string]*Instance
}

// NewBoard creates an empty board. onDispose, if non-nil, is called for
// every chart released.
func NewBoard(onDispose func(target string)) *Board {
	return &Board{onDispose: onDispose, targets: make(map[string]*Instance)}
}

// Render builds the chart for spec and binds it to target.
func (b *Board) Render(target string, spec catalog.Chart, series []Point) (*Instance, error) {
	if spec.Months {
		series = SortByMonth(series)
	}
	c, err := build(target, spec, series)
	if err != nil {
		return nil, err
	}
	inst := &Instance{Target: target, Spec: spec, Series: series, charter: c}
	b.bind(inst)
	return inst, nil
}

// RenderGrouped builds a multi-series bar chart and binds it to target.
func (b *Board) RenderGrouped(target string, spec catalog.Chart, g Grouped) *Instance {
	inst := &Instance{Target: target, Spec: spec, Groups: &g, charter: buildGrouped(target, spec.Title, g)}
	b.bind(inst)
	return inst
}

// bind stores inst, disposing whatever held its target.
func (b *Board) bind(inst *Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.targets[inst.Target]; ok {
		b.disposeLocked(inst.Target)
	}
	b.targets[inst.Target] = inst
	b.order = append(b.order, inst.Target)
}

// Get returns the chart bound to target.
func (b *Board) Get(target string) (*Instance, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, ok := b.targets[target]
	return inst, ok
}

// Len returns the number of live charts.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.targets)
}

// DisposeAll releases every chart.
func (b *Board) DisposeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range append([]string(nil), b.order...) {
		b.disposeLocked(t)
	}
}

// disposeLocked unbinds target. Callers hold mu.
func (b *Board) disposeLocked(target string) {
	delete(b.targets, target)
	for i, t := range b.order {
		if t == target {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	if b.onDispose != nil {
		b.onDispose(target)
	}
}

// WriteHTML renders the live charts, in render order, as one HTML page.
func (b *Board) WriteHTML(w io.Writer, title string) error {
	b.mu.Lock()
	page := components.NewPage()
	page.PageTitle = title
	for _, t := range b.order {
		page.AddCharts(b.targets[t].charter)
	}
	b.mu.Unlock()

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	return nil
}

func build(target string, spec catalog.Chart, series []Point) (components.Charter, error) {
	initOpts := charts.WithInitializationOpts(opts.Initialization{ChartID: chartID(target)})
	title := charts.WithTitleOpts(opts.Title{Title: spec.Title})

	categories := make([]string, len(series))
	for i, p := range series {
		categories[i] = p.Category
	}

	switch spec.Kind {
	case catalog.ChartPie:
		data := make([]opts.PieData, len(series))
		for i, p := range series {
			data[i] = opts.PieData{Name: p.Category, Value: p.Value}
		}
		pie := charts.NewPie()
		pie.SetGlobalOptions(initOpts, title)
		pie.AddSeries(spec.Title, data)
		return pie, nil
	case catalog.ChartBar:
		data := make([]opts.BarData, len(series))
		for i, p := range series {
			data[i] = opts.BarData{Value: p.Value}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(initOpts, title)
		bar.SetXAxis(categories).AddSeries(spec.Title, data)
		return bar, nil
	case catalog.ChartLine:
		data := make([]opts.LineData, len(series))
		for i, p := range series {
			data[i] = opts.LineData{Value: p.Value}
		}
		line := charts.NewLine()
		line.SetGlobalOptions(initOpts, title)
		line.SetXAxis(categories).AddSeries(spec.Title, data)
		return line, nil
	default:
		return nil, fmt.Errorf("unknown chart kind %q", spec.Kind)
	}
}

// chartID turns a target such as "filtered/status" into a DOM-safe id.
func chartID(target string) string {
	out := []byte("chart_")
	for i := 0; i < len(target); i++ {
		c := target[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

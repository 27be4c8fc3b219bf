package chart

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Dataset is one named series of a grouped chart, aligned with the
// chart's categories.
type Dataset struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// Grouped is a multi-series bar chart. When Stacked is set the datasets are
// drawn on top of each other and Totals gives the height of each bar.
type Grouped struct {
	Categories []string  `json:"categories"`
	Datasets   []Dataset `json:"datasets"`
	Stacked    bool      `json:"stacked"`
}

// Cell is one (category, series) count to be pivoted.
type Cell struct {
	Category string
	Series   string
	Value    float64
}

// Pivot lays cells out as a stacked chart. Categories and datasets appear in
// first-seen order; a missing pair counts as zero and a repeated pair adds up.
func Pivot(cells []Cell) Grouped {
	g := Grouped{Categories: []string{}, Datasets: []Dataset{}, Stacked: true}
	catIdx := make(map[string]int)
	for _, c := range cells {
		if _, ok := catIdx[c.Category]; !ok {
			catIdx[c.Category] = len(g.Categories)
			g.Categories = append(g.Categories, c.Category)
		}
	}

	setIdx := make(map[string]int)
	for _, c := range cells {
		i, ok := setIdx[c.Series]
		if !ok {
			i = len(g.Datasets)
			setIdx[c.Series] = i
			g.Datasets = append(g.Datasets, Dataset{Label: c.Series, Values: make([]float64, len(g.Categories))})
		}
		g.Datasets[i].Values[catIdx[c.Category]] += c.Value
	}
	return g
}

// Totals returns the sum of every dataset per category.
func (g Grouped) Totals() []float64 {
	out := make([]float64, len(g.Categories))
	for _, d := range g.Datasets {
		for i, v := range d.Values {
			if i < len(out) {
				out[i] += v
			}
		}
	}
	return out
}

func buildGrouped(target, title string, g Grouped) components.Charter {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{ChartID: chartID(target)}),
		charts.WithTitleOpts(opts.Title{Title: title}),
	)
	bar.SetXAxis(g.Categories)
	for _, d := range g.Datasets {
		data := make([]opts.BarData, len(d.Values))
		for i, v := range d.Values {
			data[i] = opts.BarData{Value: v}
		}
		if g.Stacked {
			bar.AddSeries(d.Label, data, charts.WithBarChartOpts(opts.BarChart{Stack: "total"}))
			continue
		}
		bar.AddSeries(d.Label, data)
	}
	return bar
}

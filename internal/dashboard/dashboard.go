// Package dashboard serves per-resource KPIs and chart series, as JSON and
// as rendered chart pages.
package dashboard

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/internal/chart"
	"github.com/HerbHall/ihttstats/internal/config"
	"github.com/HerbHall/ihttstats/internal/plugin"
	"github.com/HerbHall/ihttstats/internal/query"
	"github.com/HerbHall/ihttstats/internal/server"
	"github.com/HerbHall/ihttstats/pkg/models"
	"go.uber.org/zap"
)

// Source fetches dashboard analytics and operations counts from the backend.
type Source interface {
	Dashboard(ctx context.Context, endpoint string, params map[string]string) (*models.Analytics, error)
	OperationsSource
}

// Module is the dashboard plugin.
type Module struct {
	catalog *catalog.Catalog
	source  Source
	logger  *zap.Logger
	now     func() time.Time
}

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// NewModule creates the dashboard module.
func NewModule(cat *catalog.Catalog, src Source) *Module {
	return &Module{catalog: cat, source: src, logger: zap.NewNop(), now: time.Now}
}

func (m *Module) Name() string    { return "dashboard" }
func (m *Module) Version() string { return "0.1.0" }

func (m *Module) Init(_ config.Config, logger *zap.Logger) error {
	m.logger = logger
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }
func (m *Module) Stop() error                   { return nil }

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/dashboards/{resource}", Handler: m.handleDashboard},
		{Method: "GET", Path: "/dashboards/{resource}/charts", Handler: m.handleCharts},
		{Method: "GET", Path: "/operations", Handler: m.handleOperations},
		{Method: "GET", Path: "/operations/charts", Handler: m.handleOperationsCharts},
	}
}

// Series is one catalog chart resolved against the analytics payload.
type Series struct {
	ID     string            `json:"id"`
	Title  string            `json:"title"`
	Kind   catalog.ChartKind `json:"kind"`
	Screen string            `json:"screen,omitempty"`
	Points []chart.Point     `json:"points"`
}

// Response is the JSON dashboard.
type Response struct {
	Resource string           `json:"resource"`
	Section  string           `json:"section"`
	Total    int              `json:"total"`
	KPIs     models.NumberMap `json:"kpis"`
	Charts   []Series         `json:"charts"`
}

// handleDashboard returns KPIs and every chart series of a resource.
func (m *Module) handleDashboard(w http.ResponseWriter, r *http.Request) {
	res, a, ok := m.fetch(w, r)
	if !ok {
		return
	}

	resp := Response{
		Resource: res.Name,
		Section:  res.Section,
		Total:    a.Total,
		KPIs:     a.KPIs,
		Charts:   []Series{},
	}
	for _, c := range res.Charts {
		points, ok := m.series(res, a, c)
		if !ok {
			continue
		}
		resp.Charts = append(resp.Charts, Series{
			ID:     c.ID,
			Title:  c.Title,
			Kind:   c.Kind,
			Screen: c.Screen,
			Points: points,
		})
	}
	server.WriteJSON(w, http.StatusOK, resp)
}

// handleCharts renders the charts of one screen as an HTML page. The board
// lives for the request; every chart is disposed when the page is written.
func (m *Module) handleCharts(w http.ResponseWriter, r *http.Request) {
	res, a, ok := m.fetch(w, r)
	if !ok {
		return
	}

	screen := r.URL.Query().Get("screen")
	board := chart.NewBoard(nil)
	defer board.DisposeAll()

	for _, c := range res.ChartsFor(screen) {
		points, ok := m.series(res, a, c)
		if !ok {
			continue
		}
		if _, err := board.Render(screen+"/"+c.ID, c, points); err != nil {
			server.WriteError(w, r, m.logger, err)
			return
		}
	}

	var buf bytes.Buffer
	if err := board.WriteHTML(&buf, res.Section); err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (m *Module) fetch(w http.ResponseWriter, r *http.Request) (*catalog.Resource, *models.Analytics, bool) {
	res, err := m.catalog.Get(r.PathValue("resource"))
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return nil, nil, false
	}
	filter, err := query.ParseFilter(res, r.URL.Query(), "screen")
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return nil, nil, false
	}
	a, err := m.source.Dashboard(r.Context(), res.Endpoint, query.ToQueryParams(filter))
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return nil, nil, false
	}
	return res, a, true
}

// series resolves one chart. Missing paths are skipped: the backend omits
// empty groups.
func (m *Module) series(res *catalog.Resource, a *models.Analytics, c catalog.Chart) ([]chart.Point, bool) {
	nm, err := a.ChartMap(c.Path)
	if err != nil {
		if !errors.Is(err, models.ErrPathNotFound) {
			m.logger.Warn("undecodable chart data",
				zap.String("resource", res.Name),
				zap.String("chart", c.ID),
				zap.Error(err),
			)
		}
		return nil, false
	}
	points := chart.ToSeries(nm)
	if c.Months {
		points = chart.SortByMonth(points)
	}
	return points, true
}

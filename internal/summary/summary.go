// Package summary aggregates the analytics of every catalog resource into
// one general overview.
package summary

import (
	"context"
	"fmt"
	"net/http"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/internal/config"
	"github.com/HerbHall/ihttstats/internal/export"
	"github.com/HerbHall/ihttstats/internal/format"
	"github.com/HerbHall/ihttstats/internal/identity"
	"github.com/HerbHall/ihttstats/internal/plugin"
	"github.com/HerbHall/ihttstats/internal/query"
	"github.com/HerbHall/ihttstats/internal/server"
	"github.com/HerbHall/ihttstats/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxConcurrent caps simultaneous backend calls during the fan-out.
const maxConcurrent = 4

// filters are the parameters the general overview accepts. They are passed
// unchanged to every resource's analytics endpoint.
var filters = &catalog.Resource{
	Name: "summary",
	Filters: []catalog.FilterSpec{
		{Name: "startDate", Kind: catalog.FilterDate},
		{Name: "endDate", Kind: catalog.FilterDate},
		{Name: "department", Kind: catalog.FilterString},
	},
}

// Source fetches per-resource analytics from the backend.
type Source interface {
	Analytics(ctx context.Context, endpoint string, params map[string]string) (*models.Analytics, error)
}

// Section is one resource's share of the summary.
type Section struct {
	Resource string           `json:"resource"`
	Section  string           `json:"section"`
	Total    int              `json:"total"`
	KPIs     models.NumberMap `json:"kpis"`
}

// Summary is the general overview.
type Summary struct {
	Total    int               `json:"total"`
	Params   map[string]string `json:"params,omitempty"`
	Sections []Section         `json:"sections"`
}

// Module is the summary plugin.
type Module struct {
	catalog  *catalog.Catalog
	source   Source
	exporter *export.Service
	logger   *zap.Logger
}

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// NewModule creates the summary module.
func NewModule(cat *catalog.Catalog, src Source, exp *export.Service) *Module {
	return &Module{catalog: cat, source: src, exporter: exp, logger: zap.NewNop()}
}

func (m *Module) Name() string    { return "summary" }
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
		{Method: "GET", Path: "/summary", Handler: m.handleSummary},
		{Method: "GET", Path: "/summary/report", Handler: m.handleReport},
	}
}

// Build fetches every resource's analytics under filter concurrently. Any
// failure fails the whole summary. Sections keep catalog order.
func (m *Module) Build(ctx context.Context, filter query.Filter) (*Summary, error) {
	resources, err := m.catalog.Resources()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	params := query.ToQueryParams(filter)
	sections := make([]Section, len(resources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, res := range resources {
		g.Go(func() error {
			a, err := m.source.Analytics(gctx, res.Endpoint, params)
			if err != nil {
				return fmt.Errorf("summary %s: %w", res.Name, err)
			}
			sections[i] = Section{
				Resource: res.Name,
				Section:  res.Section,
				Total:    a.Total,
				KPIs:     a.KPIs,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &Summary{Params: params, Sections: sections}
	for _, sec := range sections {
		s.Total += sec.Total
	}
	return s, nil
}

func (m *Module) handleSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := query.ParseFilter(filters, r.URL.Query())
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	s, err := m.Build(r.Context(), filter)
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, s)
}

// handleReport renders the summary as a PDF: one overview table, then the
// KPIs of each section.
func (m *Module) handleReport(w http.ResponseWriter, r *http.Request) {
	filter, err := query.ParseFilter(filters, r.URL.Query())
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	s, err := m.Build(r.Context(), filter)
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}

	overview := export.Table{
		Caption: "Resumen",
		Headers: []string{"Sección", "Registros"},
	}
	tables := []export.Table{}
	for _, sec := range s.Sections {
		overview.Rows = append(overview.Rows, []string{sec.Section, format.Number(float64(sec.Total))})
		if sec.KPIs.Len() > 0 {
			tables = append(tables, export.NumberTable(sec.Section, "Indicador", sec.KPIs))
		}
	}
	overview.Rows = append(overview.Rows, []string{"Total", format.Number(float64(s.Total))})

	a, err := m.exporter.ExportDocument(r.Context(), export.DocumentRequest{
		Name:   "summary",
		Title:  "Resumen General",
		Source: models.SourceSummary,
		Tables: append([]export.Table{overview}, tables...),
		Rows:   s.Total,
		Filter: filter,
		Viewer: identity.FromContext(r.Context()),
	})
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	export.WriteArtifact(w, a)
}

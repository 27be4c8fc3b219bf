package reports

import (
	"net/http"
	"strconv"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/internal/export"
	"github.com/HerbHall/ihttstats/internal/identity"
	"github.com/HerbHall/ihttstats/internal/plugin"
	"github.com/HerbHall/ihttstats/internal/query"
	"github.com/HerbHall/ihttstats/internal/server"
	"github.com/HerbHall/ihttstats/internal/services"
	"github.com/HerbHall/ihttstats/pkg/models"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/reports/{resource}", Handler: m.limiter.Wrap(m.handleReport)},
		{Method: "GET", Path: "/reports/{resource}/stats", Handler: m.handleStats},
		{Method: "GET", Path: "/reports/{resource}/analysis", Handler: m.limiter.Wrap(m.handleAnalysis)},
		{Method: "GET", Path: "/exports", Handler: m.handleListExports},
	}
}

// handleReport fetches the full filtered dataset and exports it.
func (m *Module) handleReport(w http.ResponseWriter, r *http.Request) {
	res, filter, ok := m.resolve(w, r)
	if !ok {
		return
	}
	page, err := m.source.List(r.Context(), res.Endpoint, query.ToQueryParams(filter))
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}

	a, err := m.exporter.Export(r.Context(), export.Request{
		Resource: res,
		Format:   r.URL.Query().Get("format"),
		Source:   models.SourceReport,
		Records:  page.Data,
		Filter:   filter,
		Viewer:   identity.FromContext(r.Context()),
	})
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	export.WriteArtifact(w, a)
}

// handleStats summarizes the de-duplicated filtered dataset.
func (m *Module) handleStats(w http.ResponseWriter, r *http.Request) {
	res, filter, ok := m.resolve(w, r)
	if !ok {
		return
	}
	page, err := m.source.List(r.Context(), res.Endpoint, query.ToQueryParams(filter))
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, export.Stats(res, page.Data))
}

// handleAnalysis renders the analytics report of a resource as a PDF.
func (m *Module) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	res, filter, ok := m.resolve(w, r)
	if !ok {
		return
	}
	analytics, err := m.source.AnalyticsReport(r.Context(), res.Endpoint, query.ToQueryParams(filter))
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}

	a, err := m.exporter.ExportAnalysis(r.Context(), export.AnalysisRequest{
		Resource:  res.Name,
		Title:     "Análisis de " + res.Section,
		Source:    models.SourceAnalysis,
		Analytics: analytics,
		Filter:    filter,
		Viewer:    identity.FromContext(r.Context()),
	})
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	export.WriteArtifact(w, a)
}

// handleListExports returns the export history, newest first.
func (m *Module) handleListExports(w http.ResponseWriter, r *http.Request) {
	if m.history == nil {
		server.WriteProblem(w, server.Problem{
			Type:   server.ProblemTypeInternal,
			Title:  "Service Unavailable",
			Status: http.StatusServiceUnavailable,
			Detail: "export history not available",
		})
		return
	}

	q := r.URL.Query()
	opts := services.ListOptions{
		Resource:  q.Get("resource"),
		SortOrder: q.Get("order"),
	}
	for key, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			server.BadRequest(w, key+" must be a non-negative integer", r.URL.Path)
			return
		}
		*dst = n
	}

	result, err := m.history.List(r.Context(), opts)
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, result)
}

// resolve looks up the path resource and parses the filter from the query,
// ignoring the output format parameter.
func (m *Module) resolve(w http.ResponseWriter, r *http.Request) (*catalog.Resource, query.Filter, bool) {
	res, err := m.catalog.Get(r.PathValue("resource"))
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return nil, nil, false
	}
	filter, err := query.ParseFilter(res, r.URL.Query(), "format")
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return nil, nil, false
	}
	return res, filter, true
}

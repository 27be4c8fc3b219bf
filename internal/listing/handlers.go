package listing

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/HerbHall/ihttstats/internal/export"
	"github.com/HerbHall/ihttstats/internal/identity"
	"github.com/HerbHall/ihttstats/internal/plugin"
	"github.com/HerbHall/ihttstats/internal/query"
	"github.com/HerbHall/ihttstats/internal/server"
	"github.com/HerbHall/ihttstats/pkg/models"
	"go.uber.org/zap"
)

// createViewRequest is the JSON body for POST /views.
type createViewRequest struct {
	Resource string         `json:"resource"`
	Filter   map[string]any `json:"filter"`
}

// filterRequest is the JSON body for PUT /views/{id}/filter.
type filterRequest struct {
	Filter map[string]any `json:"filter"`
}

// viewResponse is returned by every view endpoint except DELETE.
type viewResponse struct {
	ID       string          `json:"id"`
	Resource string          `json:"resource"`
	Filter   query.Filter    `json:"filter"`
	State    State           `json:"state"`
	Items    []models.Record `json:"items"`
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/views", Handler: m.handleCreateView},
		{Method: "GET", Path: "/views/{id}", Handler: m.handleGetView},
		{Method: "PUT", Path: "/views/{id}/filter", Handler: m.handleSubmitFilter},
		{Method: "DELETE", Path: "/views/{id}", Handler: m.handleDeleteView},
		{Method: "GET", Path: "/views/{id}/export", Handler: m.limiter.Wrap(m.handleExportView)},
	}
}

// handleCreateView opens a view and loads its first page.
func (m *Module) handleCreateView(w http.ResponseWriter, r *http.Request) {
	var req createViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid JSON body", r.URL.Path)
		return
	}
	if req.Resource == "" {
		server.BadRequest(w, "resource is required", r.URL.Path)
		return
	}

	res, err := m.catalog.Get(req.Resource)
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	filter, err := query.ParseFilterJSON(res, req.Filter)
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}

	acc := m.newAccumulator(res)
	if err := acc.SubmitNewFilter(r.Context(), filter); err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	v := m.views.Create(res, acc)

	m.logger.Debug("view opened",
		zap.String("view_id", v.ID),
		zap.String("resource", res.Name),
	)
	server.WriteJSON(w, http.StatusCreated, respond(v))
}

// handleGetView moves the display window when ?page= is given and returns it.
func (m *Module) handleGetView(w http.ResponseWriter, r *http.Request) {
	v, ok := m.lookup(w, r)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			server.BadRequest(w, "page must be a positive integer", r.URL.Path)
			return
		}
		if err := v.Acc.OnDisplayPageChange(r.Context(), page); err != nil {
			server.WriteError(w, r, m.logger, err)
			return
		}
	}
	server.WriteJSON(w, http.StatusOK, respond(v))
}

// handleSubmitFilter replaces the view's filter and reloads from page one.
func (m *Module) handleSubmitFilter(w http.ResponseWriter, r *http.Request) {
	v, ok := m.lookup(w, r)
	if !ok {
		return
	}

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid JSON body", r.URL.Path)
		return
	}
	filter, err := query.ParseFilterJSON(v.Resource, req.Filter)
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	if err := v.Acc.SubmitNewFilter(r.Context(), filter); err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, respond(v))
}

// handleDeleteView closes a view.
func (m *Module) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	if err := m.views.Delete(r.PathValue("id")); err != nil {
		server.NotFound(w, "view not found", r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportView exports the view. A PDF covers what the view has
// accumulated so far; a spreadsheet re-fetches the whole filtered set without
// pagination.
func (m *Module) handleExportView(w http.ResponseWriter, r *http.Request) {
	v, ok := m.lookup(w, r)
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}

	filter := v.Acc.Filter()
	records := v.Acc.Items()
	if format == models.FormatXLSX {
		page, err := m.source.List(r.Context(), v.Resource.Endpoint, query.ToQueryParams(filter))
		if err != nil {
			server.WriteError(w, r, m.logger, err)
			return
		}
		records = page.Data
	}

	viewer := identity.FromContext(r.Context()).WithSection(v.Resource.Section)
	a, err := m.exporter.Export(r.Context(), export.Request{
		Resource: v.Resource,
		Format:   format,
		Source:   models.SourceView,
		Records:  records,
		Filter:   filter,
		Viewer:   viewer,
	})
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	export.WriteArtifact(w, a)
}

func (m *Module) lookup(w http.ResponseWriter, r *http.Request) (*View, bool) {
	v, err := m.views.Get(r.PathValue("id"))
	if err != nil {
		server.NotFound(w, err.Error(), r.URL.Path)
		return nil, false
	}
	return v, true
}

func respond(v *View) viewResponse {
	snap := v.Acc.Snapshot()
	if snap.Window == nil {
		snap.Window = []models.Record{}
	}
	return viewResponse{
		ID:       v.ID,
		Resource: v.Resource.Name,
		Filter:   snap.Filter,
		State:    snap.State,
		Items:    snap.Window,
	}
}

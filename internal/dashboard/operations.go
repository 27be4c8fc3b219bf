package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/internal/chart"
	"github.com/HerbHall/ihttstats/internal/query"
	"github.com/HerbHall/ihttstats/internal/server"
	"github.com/HerbHall/ihttstats/pkg/models"
	"golang.org/x/sync/errgroup"
)

// OperationsSource fetches the expedient counts behind the operations screen.
type OperationsSource interface {
	ExpedientsByType(ctx context.Context, start, end time.Time) ([]models.ExpedientTypeStat, error)
	ExpedientsByProcedure(ctx context.Context, start, end time.Time) ([]models.ExpedientProcedureStat, error)
	ExpedientsByModality(ctx context.Context, start, end time.Time) ([]models.ExpedientModalityStat, error)
}

// Operations chart ids, also used as render targets under "operations/".
const (
	ChartByRegion    = "expedients-by-type"
	ChartByProcedure = "expedients-by-procedure"
	ChartByModality  = "expedients-by-modality"
)

// OperationsChart is one grouped chart of the operations screen.
type OperationsChart struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Groups chart.Grouped `json:"groups"`
	Totals []float64     `json:"totals,omitempty"`
}

// OperationsResponse is the JSON operations screen.
type OperationsResponse struct {
	Start  string            `json:"start"`
	End    string            `json:"end"`
	Charts []OperationsChart `json:"charts"`
}

// Operations fetches the three expedient breakdowns for [start, end]
// concurrently and lays them out as charts. Any failure fails the screen.
func (m *Module) Operations(ctx context.Context, start, end time.Time) ([]OperationsChart, error) {
	var (
		byType      []models.ExpedientTypeStat
		byProcedure []models.ExpedientProcedureStat
		byModality  []models.ExpedientModalityStat
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		byType, err = m.source.ExpedientsByType(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		byProcedure, err = m.source.ExpedientsByProcedure(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		byModality, err = m.source.ExpedientsByModality(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("operations: %w", err)
	}

	region := chart.Grouped{
		Categories: make([]string, len(byType)),
		Datasets: []chart.Dataset{
			{Label: "Proceso Normal", Values: make([]float64, len(byType))},
			{Label: "Renovación Automática", Values: make([]float64, len(byType))},
		},
	}
	for i, s := range byType {
		region.Categories[i] = s.CityCode
		region.Datasets[0].Values[i] = float64(s.NormalProcess)
		region.Datasets[1].Values[i] = float64(s.AutomaticRenewal)
	}

	procCells := make([]chart.Cell, len(byProcedure))
	for i, s := range byProcedure {
		procCells[i] = chart.Cell{Category: s.ProcedureType, Series: s.Category, Value: float64(s.Count)}
	}
	modCells := make([]chart.Cell, len(byModality))
	for i, s := range byModality {
		modCells[i] = chart.Cell{Category: s.ProcedureType, Series: s.ModalityOrCategory, Value: float64(s.Count)}
	}
	procedure := chart.Pivot(procCells)
	modality := chart.Pivot(modCells)

	return []OperationsChart{
		{ID: ChartByRegion, Title: "Expedientes por Regional", Groups: region},
		{ID: ChartByProcedure, Title: "Expedientes por Procedimiento", Groups: procedure, Totals: procedure.Totals()},
		{ID: ChartByModality, Title: "Expedientes por Modalidad", Groups: modality, Totals: modality.Totals()},
	}, nil
}

func (m *Module) handleOperations(w http.ResponseWriter, r *http.Request) {
	start, end, err := m.operationsRange(r)
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	out, err := m.Operations(r.Context(), start, end)
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, OperationsResponse{
		Start:  start.Format(query.DateLayout),
		End:    end.Format(query.DateLayout),
		Charts: out,
	})
}

// handleOperationsCharts renders the operations screen as HTML. Each chart
// owns the target "operations/<id>".
func (m *Module) handleOperationsCharts(w http.ResponseWriter, r *http.Request) {
	start, end, err := m.operationsRange(r)
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	out, err := m.Operations(r.Context(), start, end)
	if err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}

	board := chart.NewBoard(nil)
	defer board.DisposeAll()
	for _, c := range out {
		board.RenderGrouped("operations/"+c.ID, catalog.Chart{ID: c.ID, Title: c.Title, Kind: catalog.ChartBar}, c.Groups)
	}

	var buf bytes.Buffer
	if err := board.WriteHTML(&buf, "Operaciones"); err != nil {
		server.WriteError(w, r, m.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// operationsRange reads start and end (YYYY-MM-DD). A missing start is the
// first day of the current month and a missing end is today, both in UTC.
func (m *Module) operationsRange(r *http.Request) (time.Time, time.Time, error) {
	today := m.now().UTC().Truncate(24 * time.Hour)
	start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := today

	q := r.URL.Query()
	if s := q.Get("start"); s != "" {
		t, err := time.Parse(query.DateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %q must be a YYYY-MM-DD date", query.ErrInvalidValue, "start")
		}
		start = t
	}
	if s := q.Get("end"); s != "" {
		t, err := time.Parse(query.DateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: %q must be a YYYY-MM-DD date", query.ErrInvalidValue, "end")
		}
		end = t
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end is before start", query.ErrInvalidValue)
	}
	return start, end, nil
}

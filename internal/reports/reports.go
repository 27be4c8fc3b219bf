// Package reports serves full-dataset exports, quick statistics, analysis
// PDFs and the export history.
package reports

import (
	"context"
	"fmt"
	"strconv"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/internal/config"
	"github.com/HerbHall/ihttstats/internal/export"
	"github.com/HerbHall/ihttstats/internal/plugin"
	"github.com/HerbHall/ihttstats/internal/server"
	"github.com/HerbHall/ihttstats/internal/services"
	"github.com/HerbHall/ihttstats/internal/store"
	"github.com/HerbHall/ihttstats/pkg/models"
	"go.uber.org/zap"
)

// Source fetches full datasets and analysis payloads from the backend.
type Source interface {
	List(ctx context.Context, endpoint string, params map[string]string) (*models.Page, error)
	AnalyticsReport(ctx context.Context, endpoint string, params map[string]string) (*models.Analytics, error)
}

// Module is the reports plugin.
type Module struct {
	catalog  *catalog.Catalog
	source   Source
	exporter *export.Service
	store    *store.SQLiteStore
	history  services.ExportRepository
	limiter  *server.RateLimiter
	logger   *zap.Logger
}

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// NewModule creates the reports module. db may be nil when the history
// schema is managed elsewhere.
func NewModule(cat *catalog.Catalog, src Source, exp *export.Service, db *store.SQLiteStore, history services.ExportRepository) *Module {
	return &Module{
		catalog:  cat,
		source:   src,
		exporter: exp,
		store:    db,
		history:  history,
		logger:   zap.NewNop(),
	}
}

func (m *Module) Name() string    { return "reports" }
func (m *Module) Version() string { return "0.1.0" }

func (m *Module) Init(cfg config.Config, logger *zap.Logger) error {
	m.logger = logger
	if m.store != nil {
		if err := m.store.Migrate(context.Background(), m.Name(), services.ExportMigrations); err != nil {
			return fmt.Errorf("reports migrations: %w", err)
		}
	}
	m.limiter = server.NewRateLimiter(cfg.GetInt("export.rate_per_minute"))
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }

func (m *Module) Stop() error {
	if m.limiter != nil {
		m.limiter.Stop()
	}
	return nil
}

// Health implements plugin.HealthChecker by counting history rows and
// reporting the applied schema version.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	if m.history == nil {
		return plugin.HealthStatus{Status: "degraded", Details: map[string]string{"history": "not configured"}}
	}
	res, err := m.history.List(ctx, services.ListOptions{Limit: 1})
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Details: map[string]string{"history": err.Error()}}
	}
	details := map[string]string{"exports": strconv.Itoa(res.Total)}
	if m.store != nil {
		v, err := m.store.Version(ctx, m.Name())
		if err != nil {
			return plugin.HealthStatus{Status: "degraded", Details: map[string]string{"schema": err.Error()}}
		}
		details["schema"] = strconv.Itoa(v)
	}
	return plugin.HealthStatus{Status: "healthy", Details: details}
}

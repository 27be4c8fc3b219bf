// Package listing serves paginated detail views. Each view accumulates
// backend pages in memory as the user moves its display window, and can be
// exported in full.
package listing

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/internal/config"
	"github.com/HerbHall/ihttstats/internal/export"
	"github.com/HerbHall/ihttstats/internal/metrics"
	"github.com/HerbHall/ihttstats/internal/plugin"
	"github.com/HerbHall/ihttstats/internal/query"
	"github.com/HerbHall/ihttstats/internal/server"
	"github.com/HerbHall/ihttstats/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Source fetches record pages from the backend.
type Source interface {
	List(ctx context.Context, endpoint string, params map[string]string) (*models.Page, error)
}

// Module is the listing plugin.
type Module struct {
	catalog  *catalog.Catalog
	source   Source
	exporter *export.Service
	metrics  *metrics.Metrics
	logger   *zap.Logger

	pageSize int
	janitor  time.Duration
	views    *Views
	limiter  *server.RateLimiter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// NewModule creates the listing module. m may be nil.
func NewModule(cat *catalog.Catalog, src Source, exp *export.Service, m *metrics.Metrics) *Module {
	return &Module{
		catalog:  cat,
		source:   src,
		exporter: exp,
		metrics:  m,
		logger:   zap.NewNop(),
	}
}

func (m *Module) Name() string    { return "listing" }
func (m *Module) Version() string { return "0.1.0" }

func (m *Module) Init(cfg config.Config, logger *zap.Logger) error {
	m.logger = logger
	m.pageSize = cfg.GetInt("listing.display_page_size")
	m.janitor = cfg.GetDuration("listing.janitor_interval")
	if m.janitor <= 0 {
		m.janitor = time.Minute
	}

	var gauge prometheus.Gauge
	if m.metrics != nil {
		gauge = m.metrics.OpenViews
	}
	m.views = NewViews(cfg.GetDuration("listing.view_ttl"), gauge, logger)
	m.limiter = server.NewRateLimiter(cfg.GetInt("export.rate_per_minute"))

	m.logger.Info("listing module initialized",
		zap.Int("display_page_size", m.pageSize),
		zap.Duration("view_ttl", m.views.ttl),
	)
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.views.Run(ctx, m.janitor)
	}()
	return nil
}

func (m *Module) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if m.limiter != nil {
		m.limiter.Stop()
	}
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	return plugin.HealthStatus{
		Status:  "healthy",
		Details: map[string]string{"open_views": strconv.Itoa(m.views.Len())},
	}
}

// newAccumulator binds an accumulator to res's endpoint.
func (m *Module) newAccumulator(res *catalog.Resource) *Accumulator[models.Record] {
	fetch := func(ctx context.Context, filter query.Filter, page int) ([]models.Record, int, error) {
		params := query.ToQueryParams(filter)
		params["paginated"] = "true"
		params["page"] = strconv.Itoa(page)

		p, err := m.source.List(ctx, res.Endpoint, params)
		if err != nil {
			return nil, 0, err
		}
		return p.Data, p.Total, nil
	}
	onStale := func() {
		m.logger.Debug("discarded stale page", zap.String("resource", res.Name))
		if m.metrics != nil {
			m.metrics.StaleResponses.WithLabelValues(res.Name).Inc()
		}
	}
	return NewAccumulator(fetch, m.pageSize, onStale)
}

package listing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/pkg/models"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ErrViewNotFound is returned for an unknown or evicted view id.
var ErrViewNotFound = errors.New("view not found")

// View is one open detail screen: a resource plus its accumulated list.
type View struct {
	ID        string                      `json:"id"`
	Resource  *catalog.Resource           `json:"-"`
	Acc       *Accumulator[models.Record] `json:"-"`
	CreatedAt time.Time                   `json:"created_at"`

	lastUsed time.Time
}

// Views holds open views in memory and evicts the idle ones.
type Views struct {
	ttl    time.Duration
	gauge  prometheus.Gauge
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	views map[string]*View
}

// NewViews creates an empty set. gauge may be nil.
func NewViews(ttl time.Duration, gauge prometheus.Gauge, logger *zap.Logger) *Views {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Views{
		ttl:    ttl,
		gauge:  gauge,
		logger: logger,
		now:    time.Now,
		views:  make(map[string]*View),
	}
}

// Create registers a new view for res backed by acc.
func (vs *Views) Create(res *catalog.Resource, acc *Accumulator[models.Record]) *View {
	now := vs.now()
	v := &View{
		ID:        uuid.New().String(),
		Resource:  res,
		Acc:       acc,
		CreatedAt: now.UTC(),
		lastUsed:  now,
	}

	vs.mu.Lock()
	vs.views[v.ID] = v
	vs.mu.Unlock()
	vs.updateGauge()
	return v
}

// Get returns the view and marks it as used.
func (vs *Views) Get(id string) (*View, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	v, ok := vs.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	v.lastUsed = vs.now()
	return v, nil
}

// Delete closes a view.
func (vs *Views) Delete(id string) error {
	vs.mu.Lock()
	_, ok := vs.views[id]
	delete(vs.views, id)
	vs.mu.Unlock()
	if !ok {
		return ErrViewNotFound
	}
	vs.updateGauge()
	return nil
}

// Len returns the number of open views.
func (vs *Views) Len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.views)
}

// Evict drops views idle for longer than the TTL and returns how many went.
func (vs *Views) Evict() int {
	if vs.ttl <= 0 {
		return 0
	}
	cutoff := vs.now().Add(-vs.ttl)

	vs.mu.Lock()
	n := 0
	for id, v := range vs.views {
		if v.lastUsed.Before(cutoff) {
			delete(vs.views, id)
			n++
		}
	}
	vs.mu.Unlock()

	if n > 0 {
		vs.updateGauge()
		vs.logger.Debug("evicted idle views", zap.Int("count", n))
	}
	return n
}

// Run evicts idle views every interval until ctx is cancelled.
func (vs *Views) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			vs.Evict()
		}
	}
}

func (vs *Views) updateGauge() {
	if vs.gauge != nil {
		vs.gauge.Set(float64(vs.Len()))
	}
}

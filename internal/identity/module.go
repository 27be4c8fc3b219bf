package identity

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/HerbHall/ihttstats/internal/config"
	"github.com/HerbHall/ihttstats/internal/plugin"
	"go.uber.org/zap"
)

// Module exposes the resolved ViewContext to front ends.
type Module struct {
	logger *zap.Logger
}

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.HTTPProvider = (*Module)(nil)
)

// NewModule creates the identity module.
func NewModule() *Module {
	return &Module{logger: zap.NewNop()}
}

func (m *Module) Name() string    { return "identity" }
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
		{Method: "GET", Path: "/me", Handler: m.handleMe},
	}
}

// handleMe returns the caller's ViewContext.
func (m *Module) handleMe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(FromContext(r.Context()))
}

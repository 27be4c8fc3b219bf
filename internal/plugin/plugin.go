package plugin

import (
	"context"
	"net/http"

	"github.com/HerbHall/ihttstats/internal/config"
	"go.uber.org/zap"
)

// Route represents an HTTP route exposed by a plugin.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Plugin defines the interface that every ihttstats module implements.
type Plugin interface {
	// Name returns the plugin's unique identifier (e.g., "listing", "export").
	Name() string

	// Version returns the plugin's semantic version.
	Version() string

	// Init initializes the plugin with the service configuration and a
	// logger named after the plugin.
	Init(cfg config.Config, logger *zap.Logger) error

	// Start begins the plugin's background operations.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the plugin.
	Stop() error
}

// HTTPProvider is implemented by plugins that expose REST API routes.
type HTTPProvider interface {
	Routes() []Route
}

// HealthStatus is a plugin's self-reported health.
type HealthStatus struct {
	Status  string            `json:"status"` // "healthy", "degraded"
	Details map[string]string `json:"details,omitempty"`
}

// HealthChecker is implemented by plugins that report their health status.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

package server

import (
	"errors"
	"net/http"

	"github.com/HerbHall/ihttstats/internal/backend"
	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/internal/export"
	"github.com/HerbHall/ihttstats/internal/query"
	"github.com/HerbHall/ihttstats/internal/services"
	"go.uber.org/zap"
)

// WriteError maps err onto a problem response. Callers translate their own
// module-specific sentinels first.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	instance := r.URL.Path
	switch {
	case errors.Is(err, catalog.ErrUnknownResource), errors.Is(err, services.ErrNotFound):
		NotFound(w, err.Error(), instance)
	case errors.Is(err, query.ErrUnknownFilter), errors.Is(err, query.ErrInvalidValue):
		BadRequest(w, err.Error(), instance)
	case errors.Is(err, export.ErrNoData):
		NoData(w, "no data to export", instance)
	case errors.Is(err, export.ErrUnsupportedFormat):
		UnsupportedFormat(w, err.Error(), instance)
	case errors.Is(err, backend.ErrUnavailable):
		logger.Warn("backend failure",
			zap.String("path", instance),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		BadGateway(w, "the analytics backend could not be reached", instance)
	default:
		logger.Error("request failed",
			zap.String("path", instance),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		InternalError(w, "internal error", instance)
	}
}

package identity

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// SectionFunc returns the display section for a resource name, or "".
type SectionFunc func(resource string) string

// Middleware stores a ViewContext in every request context. A missing or
// invalid cookie yields an anonymous context.
type Middleware struct {
	cookieName string
	secret     []byte
	sections   SectionFunc
	logger     *zap.Logger
}

// NewMiddleware creates the identity middleware. sections may be nil.
func NewMiddleware(cookieName, secret string, sections SectionFunc, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		cookieName: cookieName,
		secret:     []byte(secret),
		sections:   sections,
		logger:     logger,
	}
}

// Wrap implements the server middleware signature.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := m.Resolve(r)
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), v)))
	})
}

// Resolve builds the ViewContext for r.
func (m *Middleware) Resolve(r *http.Request) ViewContext {
	v := ViewContext{
		ShortName: Anonymous,
		Title:     TitleFor(r.URL.Path),
	}
	if m.sections != nil {
		v.Section = m.sections(resourceFromPath(r.URL.Path))
	}

	cookie, err := r.Cookie(m.cookieName)
	if err != nil || len(m.secret) == 0 {
		return v
	}
	claims, err := ParseToken(cookie.Value, m.secret)
	if err != nil {
		m.logger.Debug("ignoring invalid identity cookie", zap.Error(err))
		return v
	}

	v.Name = claims.Name
	v.Position = claims.Position
	if short := ShortName(claims.Name); short != "" {
		v.ShortName = short
	}
	return v
}

// resourceFromPath extracts the resource segment of
// /api/v1/{dashboards|reports}/{resource}[/...].
func resourceFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 4 || parts[0] != "api" {
		return ""
	}
	switch parts[2] {
	case "dashboards", "reports":
		return parts[3]
	}
	return ""
}

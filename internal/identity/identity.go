// Package identity builds the per-request ViewContext shown in page headers
// and report footers. It reads the identity cookie for display only; it does
// not authorize anything.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Anonymous is the display name used when no identity cookie is present.
const Anonymous = "Invitado"

// DefaultTitle is the header title outside any named area.
const DefaultTitle = "IHTT"

// ViewContext carries display-only identity and navigation data.
type ViewContext struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Position  string `json:"position"`
	Section   string `json:"section"`
	Title     string `json:"title"`
}

// WithSection returns a copy of v with Section set.
func (v ViewContext) WithSection(section string) ViewContext {
	v.Section = section
	return v
}

// Requester is the name recorded as the author of an export.
func (v ViewContext) Requester() string {
	if v.Name != "" {
		return v.Name
	}
	return Anonymous
}

type contextKey struct{}

// NewContext returns ctx carrying v.
func NewContext(ctx context.Context, v ViewContext) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

// FromContext returns the ViewContext stored in ctx, or an anonymous one.
func FromContext(ctx context.Context) ViewContext {
	if v, ok := ctx.Value(contextKey{}).(ViewContext); ok {
		return v
	}
	return ViewContext{ShortName: Anonymous, Title: DefaultTitle}
}

// Claims are the identity cookie claims.
type Claims struct {
	jwt.RegisteredClaims
	Name     string `json:"name"`
	Position string `json:"position"`
}

// ErrEmptyToken is returned by ParseToken for an empty string.
var ErrEmptyToken = errors.New("token is empty")

// ParseToken validates an HS256 token signed with secret and returns its
// claims.
func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ShortName reduces a full name to first given name plus first surname.
// Four-part names ("Juan Carlos Pérez López") use the third word; shorter
// names use the second.
func ShortName(full string) string {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2, 3:
		return parts[0] + " " + parts[1]
	default:
		return parts[0] + " " + parts[2]
	}
}

// TitleFor maps a request path to the header title of its area.
func TitleFor(path string) string {
	switch {
	case strings.Contains(path, "inspection"):
		return "Inspectoría"
	case strings.Contains(path, "emissions"):
		return "Emisiones"
	case strings.Contains(path, "operations"):
		return "Operaciones"
	default:
		return DefaultTitle
	}
}

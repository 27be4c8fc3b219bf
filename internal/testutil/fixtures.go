package testutil

import (
	"fmt"

	"github.com/HerbHall/ihttstats/pkg/models"
)

// NewRecord returns a certificate-shaped record with sensible defaults.
// Override individual fields with options.
func NewRecord(opts ...func(models.Record)) models.Record {
	r := models.Record{
		"noticeCode":              "AV-0001",
		"ownerName":               "Transportes del Norte",
		"certificateNumber":       "CERT-0001",
		"totalNoticeAmount":       1500.5,
		"noticeStatusDescription": "PENDIENTE",
		"createdAt":               "2024-03-15T10:00:00Z",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithField sets a single field.
func WithField(key string, value any) func(models.Record) {
	return func(r models.Record) { r[key] = value }
}

// WithCode sets the noticeCode identity field.
func WithCode(code string) func(models.Record) {
	return WithField("noticeCode", code)
}

// WithoutField removes a field.
func WithoutField(key string) func(models.Record) {
	return func(r models.Record) { delete(r, key) }
}

// Records returns n records with distinct notice codes AV-0001..AV-n.
func Records(n int) []models.Record {
	out := make([]models.Record, n)
	for i := range out {
		out[i] = NewRecord(
			WithCode(fmt.Sprintf("AV-%04d", i+1)),
			WithField("certificateNumber", fmt.Sprintf("CERT-%04d", i+1)),
		)
	}
	return out
}

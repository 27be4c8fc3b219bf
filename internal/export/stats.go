package export

import (
	"strings"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/pkg/models"
)

// Status substrings counted by QuickStats, matched case-insensitively.
const (
	statusPending = "pendiente"
	statusPaid    = "pagad"
	statusActive  = "activo"
)

// QuickStats summarizes a de-duplicated dataset for the reports screen.
type QuickStats struct {
	Resource   string           `json:"resource"`
	Count      int              `json:"count"`
	Amount     float64          `json:"amount"`
	Pending    int              `json:"pending"`
	Paid       int              `json:"paid"`
	Active     int              `json:"active"`
	ByStatus   models.NumberMap `json:"by_status"`
	Duplicates int              `json:"duplicates"`
}

// Stats de-duplicates records by the resource key and summarizes them.
func Stats(res *catalog.Resource, records []models.Record) QuickStats {
	deduped := Dedupe(records, FieldKey(res.Key))
	qs := QuickStats{
		Resource:   res.Name,
		Count:      len(deduped.Records),
		Duplicates: deduped.Dropped,
	}

	for _, r := range deduped.Records {
		if res.AmountField != "" {
			if v, ok := r.Float(res.AmountField); ok {
				qs.Amount += v
			}
		}
		if res.StatusField == "" {
			continue
		}
		status, ok := r.String(res.StatusField)
		if !ok {
			continue
		}
		n, _ := qs.ByStatus.Get(status)
		qs.ByStatus.Set(status, n+1)

		lower := strings.ToLower(status)
		switch {
		case strings.Contains(lower, statusPending):
			qs.Pending++
		case strings.Contains(lower, statusPaid):
			qs.Paid++
		case strings.Contains(lower, statusActive):
			qs.Active++
		}
	}
	return qs
}

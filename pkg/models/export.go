package models

import "time"

// Export formats.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// Export sources: where the exported dataset came from.
const (
	SourceReport   = "report"
	SourceView     = "view"
	SourceAnalysis = "analysis"
	SourceSummary  = "summary"
)

// ExportEntry records one generated artifact.
type ExportEntry struct {
	ID         string    `json:"id"`
	Resource   string    `json:"resource"`
	Format     string    `json:"format"`
	Source     string    `json:"source"`
	RowsIn     int       `json:"rows_in"`
	RowsOut    int       `json:"rows_out"`
	Duplicates int       `json:"duplicates"`
	Parameters string    `json:"parameters"`
	Requester  string    `json:"requester"`
	CreatedAt  time.Time `json:"created_at"`
}

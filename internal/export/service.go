// Package export turns backend datasets into PDF and Excel artifacts. Every
// tabular export is de-duplicated by business key first, and every artifact
// is recorded in the export history.
package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/internal/format"
	"github.com/HerbHall/ihttstats/internal/identity"
	"github.com/HerbHall/ihttstats/internal/metrics"
	"github.com/HerbHall/ihttstats/internal/query"
	"github.com/HerbHall/ihttstats/pkg/models"
	"go.uber.org/zap"
)

// Sentinel errors.
var (
	ErrNoData            = errors.New("no data to export")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Content types of the generated artifacts.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ParseFormat normalizes a format query value. Empty means PDF.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", models.FormatPDF:
		return models.FormatPDF, nil
	case models.FormatXLSX, "excel":
		return models.FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Recorder persists export history entries.
type Recorder interface {
	Create(ctx context.Context, e *models.ExportEntry) error
}

// Artifact is a rendered export.
type Artifact struct {
	Filename    string
	ContentType string
	Body        []byte
	Entry       models.ExportEntry
}

// Request describes a tabular export.
type Request struct {
	Resource *catalog.Resource
	Format   string
	Source   string
	Records  []models.Record
	Filter   query.Filter
	Viewer   identity.ViewContext
}

// AnalysisRequest describes an analytics PDF: a KPI table plus one table per
// chart-data map.
type AnalysisRequest struct {
	Resource  string
	Title     string
	Source    string
	Analytics *models.Analytics
	Filter    query.Filter
	Viewer    identity.ViewContext
}

// Service renders artifacts and records them.
type Service struct {
	history Recorder
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a Service. history and m may be nil.
func NewService(history Recorder, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{history: history, metrics: m, logger: logger, now: time.Now}
}

// SetClock overrides the time source used for footers and file names.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Export de-duplicates req.Records by the resource key and renders them.
func (s *Service) Export(ctx context.Context, req Request) (*Artifact, error) {
	if req.Resource == nil {
		return nil, errors.New("export: resource is required")
	}
	fmtName, err := ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	if len(req.Records) == 0 {
		return nil, ErrNoData
	}

	res := req.Resource
	deduped := Dedupe(req.Records, FieldKey(res.Key))
	if deduped.Dropped > 0 {
		s.logger.Debug("dropped duplicate records",
			zap.String("resource", res.Name),
			zap.Int("dropped", deduped.Dropped),
		)
		if s.metrics != nil {
			s.metrics.DuplicatesDropped.WithLabelValues(res.Name).Add(float64(deduped.Dropped))
		}
	}

	now := s.now().UTC()
	var (
		body        []byte
		contentType string
	)
	switch fmtName {
	case models.FormatXLSX:
		body, err = RenderExcel(res.Sheet, res.ExcelColumns, deduped.Records)
		contentType = ContentTypeXLSX
	default:
		rows := make([][]string, len(deduped.Records))
		for i, r := range deduped.Records {
			rows[i] = format.FormatRow(r, res.PDFColumns)
		}
		body, err = RenderPDF(Document{
			Title:       res.Title,
			Tables:      []Table{{Headers: format.Headers(res.PDFColumns), Rows: rows}},
			Params:      query.Describe(req.Filter),
			GeneratedBy: req.Viewer.Requester(),
			GeneratedAt: now,
		})
		contentType = ContentTypePDF
	}
	if err != nil {
		return nil, fmt.Errorf("export %s as %s: %w", res.Name, fmtName, err)
	}

	a := &Artifact{
		Filename:    filename(res.Name, fmtName, now),
		ContentType: contentType,
		Body:        body,
		Entry: models.ExportEntry{
			Resource:   res.Name,
			Format:     fmtName,
			Source:     req.Source,
			RowsIn:     len(req.Records),
			RowsOut:    len(deduped.Records),
			Duplicates: deduped.Dropped,
			Parameters: query.Describe(req.Filter),
			Requester:  req.Viewer.Requester(),
			CreatedAt:  now,
		},
	}
	s.record(ctx, a)
	return a, nil
}

// ExportAnalysis renders an analytics payload as a PDF.
func (s *Service) ExportAnalysis(ctx context.Context, req AnalysisRequest) (*Artifact, error) {
	if req.Analytics == nil {
		return nil, ErrNoData
	}
	maps, err := req.Analytics.ChartMaps()
	if err != nil {
		return nil, fmt.Errorf("export analysis %s: %w", req.Resource, err)
	}
	if req.Analytics.KPIs.Len() == 0 && len(maps) == 0 {
		return nil, ErrNoData
	}

	tables := make([]Table, 0, len(maps)+1)
	if req.Analytics.KPIs.Len() > 0 {
		tables = append(tables, NumberTable("Indicadores", "Indicador", req.Analytics.KPIs))
	}
	for _, m := range maps {
		tables = append(tables, NumberTable(m.Name, "Categoría", m.Map))
	}

	return s.ExportDocument(ctx, DocumentRequest{
		Name:   req.Resource,
		Suffix: "analisis",
		Title:  req.Title,
		Source: req.Source,
		Tables: tables,
		Rows:   req.Analytics.Total,
		Filter: req.Filter,
		Viewer: req.Viewer,
	})
}

// DocumentRequest describes a free-form PDF made of tables.
type DocumentRequest struct {
	Name   string
	Suffix string
	Title  string
	Source string
	Tables []Table
	Rows   int
	Filter query.Filter
	Viewer identity.ViewContext
}

// ExportDocument renders req.Tables as a PDF and records it under req.Name.
func (s *Service) ExportDocument(ctx context.Context, req DocumentRequest) (*Artifact, error) {
	if len(req.Tables) == 0 {
		return nil, ErrNoData
	}
	now := s.now().UTC()
	body, err := RenderPDF(Document{
		Title:       req.Title,
		Tables:      req.Tables,
		Params:      query.Describe(req.Filter),
		GeneratedBy: req.Viewer.Requester(),
		GeneratedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", req.Name, err)
	}

	base := req.Name
	if req.Suffix != "" {
		base += "-" + req.Suffix
	}
	a := &Artifact{
		Filename:    filename(base, models.FormatPDF, now),
		ContentType: ContentTypePDF,
		Body:        body,
		Entry: models.ExportEntry{
			Resource:   req.Name,
			Format:     models.FormatPDF,
			Source:     req.Source,
			RowsIn:     req.Rows,
			RowsOut:    req.Rows,
			Parameters: query.Describe(req.Filter),
			Requester:  req.Viewer.Requester(),
			CreatedAt:  now,
		},
	}
	s.record(ctx, a)
	return a, nil
}

// record stores the history entry. A history failure is logged and does not
// fail the export.
func (s *Service) record(ctx context.Context, a *Artifact) {
	if s.metrics != nil {
		s.metrics.Exports.WithLabelValues(a.Entry.Resource, a.Entry.Format, a.Entry.Source).Inc()
	}
	if s.history == nil {
		return
	}
	if err := s.history.Create(ctx, &a.Entry); err != nil {
		s.logger.Error("failed to record export",
			zap.String("resource", a.Entry.Resource),
			zap.Error(err),
		)
	}
}

// NumberTable lays out m as a two-column table.
func NumberTable(caption, label string, m models.NumberMap) Table {
	rows := make([][]string, 0, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		rows = append(rows, []string{k, format.Number(v)})
	}
	return Table{Caption: caption, Headers: []string{label, "Valor"}, Rows: rows}
}

func filename(base, ext string, at time.Time) string {
	return fmt.Sprintf("%s-%s.%s", base, at.Format("20060102-150405"), ext)
}

// WriteArtifact sends a: PDFs inline, spreadsheets as attachments.
func WriteArtifact(w http.ResponseWriter, a *Artifact) {
	disposition := "attachment"
	if a.ContentType == ContentTypePDF {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, a.Filename))
	w.Header().Set("Content-Length", fmt.Sprint(len(a.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Body)
}

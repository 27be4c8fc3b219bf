package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/ihttstats/internal/catalog"
	"github.com/HerbHall/ihttstats/internal/identity"
	"github.com/HerbHall/ihttstats/internal/metrics"
	"github.com/HerbHall/ihttstats/internal/query"
	"github.com/HerbHall/ihttstats/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func testResource() *catalog.Resource {
	cols := []catalog.Column{
		{Header: "Fecha", Field: "startDate", Kind: catalog.KindDate},
		{Header: "Monto", Field: "totalAmount", Kind: catalog.KindMoney},
		{Header: "Estado", Field: "fineStatus", Kind: catalog.KindText},
		{Header: "Aviso de Cobro", Field: "noticeCode", Kind: catalog.KindText},
	}
	return &catalog.Resource{
		Name:         "fines",
		Section:      "Multas",
		Title:        "Listado de Multas",
		Endpoint:     "/fines",
		Key:          "noticeCode",
		AmountField:  "totalAmount",
		StatusField:  "fineStatus",
		Sheet:        "Multas",
		PDFColumns:   cols,
		ExcelColumns: cols,
	}
}

func fine(code any, amount float64, status string) models.Record {
	return models.Record{
		"noticeCode":  code,
		"totalAmount": amount,
		"fineStatus":  status,
		"startDate":   "2024-02-03T00:00:00Z",
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []models.ExportEntry
	err     error
}

func (f *fakeRecorder) Create(_ context.Context, e *models.ExportEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *e)
	return nil
}

func TestDedupeKeepsFirstAndKeyless(t *testing.T) {
	in := []models.Record{
		fine("A1", 100, "PENDIENTE"),
		fine("A1", 200, "PAGADA"),
		fine(nil, 50, "PENDIENTE"),
	}

	got := Dedupe(in, FieldKey("noticeCode"))

	require.Len(t, got.Records, 2)
	assert.Equal(t, 1, got.Dropped)
	amount, _ := got.Records[0].Float("totalAmount")
	assert.Equal(t, 100.0, amount, "first occurrence wins")
	_, hasKey := got.Records[1].String("noticeCode")
	assert.False(t, hasKey)
}

func TestDedupeKeylessNeverCollide(t *testing.T) {
	in := []models.Record{fine(nil, 1, ""), fine("", 2, ""), fine(nil, 3, "")}
	got := Dedupe(in, FieldKey("noticeCode"))
	assert.Len(t, got.Records, 3)
	assert.Zero(t, got.Dropped)
}

func TestDedupeIdempotent(t *testing.T) {
	in := []models.Record{fine("A", 1, ""), fine("B", 2, ""), fine("A", 3, ""), fine("C", 4, ""), fine("B", 5, "")}
	once := Dedupe(in, FieldKey("noticeCode"))
	twice := Dedupe(once.Records, FieldKey("noticeCode"))

	assert.Equal(t, once.Records, twice.Records)
	assert.Zero(t, twice.Dropped)
	assert.Equal(t, 2, once.Dropped)
}

func TestDedupeGeneric(t *testing.T) {
	got := Dedupe([]int{3, 1, 3, 2, 1}, func(i int) (string, bool) {
		return string(rune('0' + i)), true
	})
	assert.Equal(t, []int{3, 1, 2}, got.Records)
}

func TestStats(t *testing.T) {
	res := testResource()
	recs := []models.Record{
		fine("A1", 100, "PENDIENTE"),
		fine("A1", 100, "PENDIENTE"),
		fine("A2", 250.5, "Pagada"),
		fine("A3", 10, "ACTIVO"),
		fine("A4", 5, "ANULADO"),
	}

	qs := Stats(res, recs)

	assert.Equal(t, 4, qs.Count)
	assert.Equal(t, 1, qs.Duplicates)
	assert.InDelta(t, 365.5, qs.Amount, 0.001)
	assert.Equal(t, 1, qs.Pending)
	assert.Equal(t, 1, qs.Paid)
	assert.Equal(t, 1, qs.Active)
	assert.Equal(t, []string{"PENDIENTE", "Pagada", "ACTIVO", "ANULADO"}, qs.ByStatus.Keys())
}

func TestRenderPDF(t *testing.T) {
	rows := make([][]string, 120)
	for i := range rows {
		rows[i] = []string{"03/02/2024", "L. 1,000.00", "PENDIENTE", "AV-0001"}
	}
	body, err := RenderPDF(Document{
		Title:       "Listado de Multas",
		Tables:      []Table{{Headers: []string{"Fecha", "Monto", "Estado", "Aviso"}, Rows: rows}},
		Params:      "department: Cortés",
		GeneratedBy: "Ana Pérez",
		GeneratedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestRenderExcel(t *testing.T) {
	res := testResource()
	body, err := RenderExcel(res.Sheet, res.ExcelColumns, []models.Record{
		fine("A1", 1234.5, "PENDIENTE"),
		{"noticeCode": "A2"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Multas"}, f.GetSheetList())

	header, err := f.GetCellValue("Multas", "D1")
	require.NoError(t, err)
	assert.Equal(t, "Aviso de Cobro", header)

	raw, err := f.GetCellValue("Multas", "B2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1234.5", raw)

	missingAmount, err := f.GetCellValue("Multas", "B3", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "0", missingAmount)

	width, err := f.GetColWidth("Multas", "D")
	require.NoError(t, err)
	assert.Equal(t, float64(len("Aviso de Cobro")+2), width)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Certificados Escolares", sheetName("Certificados Escolares"))
	assert.Equal(t, "AB", sheetName("A/B"))
	assert.Equal(t, "Datos", sheetName(""))
	assert.Len(t, []rune(sheetName(strings.Repeat("x", 40))), 31)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]string{"": "pdf", "PDF": "pdf", "xlsx": "xlsx", "excel": "xlsx"} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("csv")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func newService(t *testing.T) (*Service, *fakeRecorder, *metrics.Metrics) {
	t.Helper()
	rec := &fakeRecorder{}
	m := metrics.New()
	svc := NewService(rec, m, zap.NewNop())
	svc.SetClock(func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) })
	return svc, rec, m
}

func TestServiceExport(t *testing.T) {
	svc, rec, m := newService(t)

	a, err := svc.Export(context.Background(), Request{
		Resource: testResource(),
		Format:   "xlsx",
		Source:   models.SourceReport,
		Records:  []models.Record{fine("A1", 1, "x"), fine("A1", 1, "x"), fine(nil, 2, "y")},
		Filter:   query.Filter{"fineStatus": "PENDIENTE", "startDate": nil},
		Viewer:   identity.ViewContext{Name: "Ana Pérez"},
	})
	require.NoError(t, err)

	assert.Equal(t, ContentTypeXLSX, a.ContentType)
	assert.Equal(t, "fines-20240501-093000.xlsx", a.Filename)
	assert.Equal(t, 3, a.Entry.RowsIn)
	assert.Equal(t, 2, a.Entry.RowsOut)
	assert.Equal(t, 1, a.Entry.Duplicates)
	assert.Equal(t, "fineStatus: PENDIENTE", a.Entry.Parameters)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, "Ana Pérez", rec.entries[0].Requester)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicatesDropped.WithLabelValues("fines")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("fines", "xlsx", "report")))
}

func TestServiceExportNoData(t *testing.T) {
	svc, rec, _ := newService(t)
	_, err := svc.Export(context.Background(), Request{Resource: testResource(), Format: "pdf"})
	assert.ErrorIs(t, err, ErrNoData)
	assert.Empty(t, rec.entries)
}

func TestServiceExportUnsupported(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Export(context.Background(), Request{
		Resource: testResource(),
		Format:   "docx",
		Records:  []models.Record{fine("A1", 1, "")},
	})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestServiceHistoryFailureDoesNotFail(t *testing.T) {
	svc, rec, _ := newService(t)
	rec.err = errors.New("disk full")

	a, err := svc.Export(context.Background(), Request{
		Resource: testResource(),
		Records:  []models.Record{fine("A1", 1, "")},
	})
	require.NoError(t, err)
	assert.Equal(t, ContentTypePDF, a.ContentType)
}

func TestServiceExportAnalysis(t *testing.T) {
	svc, rec, _ := newService(t)
	a, err := svc.ExportAnalysis(context.Background(), AnalysisRequest{
		Resource: "fines",
		Title:    "Análisis de Multas",
		Source:   models.SourceAnalysis,
		Analytics: &models.Analytics{
			KPIs:      models.NewNumberMap([]string{"total"}, []float64{3}),
			ChartData: []byte(`{"statusDistribution":{"PENDIENTE":2,"PAGADA":1}}`),
			Total:     3,
		},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(a.Body, []byte("%PDF")))
	assert.Equal(t, "fines-analisis-20240501-093000.pdf", a.Filename)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, models.SourceAnalysis, rec.entries[0].Source)
}

func TestServiceExportAnalysisEmpty(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.ExportAnalysis(context.Background(), AnalysisRequest{Resource: "fines", Analytics: &models.Analytics{}})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestServiceExportAnalysisNullChartData(t *testing.T) {
	svc, rec, _ := newService(t)

	var withKPIs models.Analytics
	require.NoError(t, json.Unmarshal([]byte(`{"kpis":{"total":3},"chartData":null,"total":3}`), &withKPIs))
	a, err := svc.ExportAnalysis(context.Background(), AnalysisRequest{Resource: "fines", Analytics: &withKPIs})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(a.Body, []byte("%PDF")))
	require.Len(t, rec.entries, 1)

	var bare models.Analytics
	require.NoError(t, json.Unmarshal([]byte(`{"kpis":null,"chartData":null,"total":0}`), &bare))
	_, err = svc.ExportAnalysis(context.Background(), AnalysisRequest{Resource: "fines", Analytics: &bare})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestWriteArtifact(t *testing.T) {
	w := httptest.NewRecorder()
	WriteArtifact(w, &Artifact{Filename: "a.pdf", ContentType: ContentTypePDF, Body: []byte("%PDF-1.3")})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `inline; filename="a.pdf"`, w.Header().Get("Content-Disposition"))

	w = httptest.NewRecorder()
	WriteArtifact(w, &Artifact{Filename: "a.xlsx", ContentType: ContentTypeXLSX, Body: []byte("PK")})
	assert.Equal(t, `attachment; filename="a.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "2", w.Header().Get("Content-Length"))
}

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/ihttstats/internal/backend"
	"github.com/HerbHall/ihttstats/pkg/models"
	"go.uber.org/zap"
)

// FakeBackend is an in-process stand-in for the analytics backend. Lists
// are served from Records, analytics payloads from Analytics. All paths are
// mounted under /api.
type FakeBackend struct {
	// PageSize is the size of each paginated page. Defaults to 10.
	PageSize int

	mu        sync.Mutex
	records   map[string][]models.Record
	analytics map[string]string
	failures  map[string]int
	requests  []*http.Request

	srv *httptest.Server
}

// NewFakeBackend starts a FakeBackend that is closed when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{
		PageSize:  10,
		records:   make(map[string][]models.Record),
		analytics: make(map[string]string),
		failures:  make(map[string]int),
	}
	fb.srv = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.srv.Close)
	return fb
}

// URL is the backend base URL, including the /api prefix.
func (fb *FakeBackend) URL() string { return fb.srv.URL + "/api" }

// SetRecords sets the dataset returned for endpoint (e.g. "/fines").
func (fb *FakeBackend) SetRecords(endpoint string, recs []models.Record) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.records[endpoint] = recs
}

// SetAnalytics sets the raw JSON served for a full path such as
// "/fines-analytics".
func (fb *FakeBackend) SetAnalytics(path, body string) {
	fb.SetJSON(path, body)
}

// SetJSON serves body verbatim for path, e.g.
// "/expedients-by-type/01-03-2024/31-03-2024".
func (fb *FakeBackend) SetJSON(path, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.analytics[path] = body
}

// Fail makes every request to path answer with status until cleared with 0.
func (fb *FakeBackend) Fail(path string, status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if status == 0 {
		delete(fb.failures, path)
		return
	}
	fb.failures[path] = status
}

// Requests returns a copy of the requests received so far.
func (fb *FakeBackend) Requests() []*http.Request {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]*http.Request, len(fb.requests))
	copy(out, fb.requests)
	return out
}

// Client returns a backend client pointed at fb.
func (fb *FakeBackend) Client(t *testing.T) *backend.Client {
	t.Helper()
	c, err := backend.New(backend.Options{
		BaseURL: fb.URL(),
		Timeout: 5 * time.Second,
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("testutil.FakeBackend.Client: %v", err)
	}
	return c
}

func (fb *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")

	fb.mu.Lock()
	fb.requests = append(fb.requests, r.Clone(r.Context()))
	status, failing := fb.failures[path]
	body, isAnalytics := fb.analytics[path]
	recs, isList := fb.records[path]
	pageSize := fb.PageSize
	fb.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case failing:
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"injected failure"}`))
	case isAnalytics:
		_, _ = w.Write([]byte(body))
	case isList:
		_ = json.NewEncoder(w).Encode(paginate(recs, r, pageSize))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}
}

func paginate(recs []models.Record, r *http.Request, pageSize int) models.Page {
	if pageSize <= 0 {
		pageSize = 10
	}
	total := len(recs)
	if r.URL.Query().Get("paginated") != "true" {
		return models.Page{Data: recs, Total: total, Page: 1, Pages: 1}
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return models.Page{Data: recs[start:end], Total: total, Page: page, Pages: pages}
}

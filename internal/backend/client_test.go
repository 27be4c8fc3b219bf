package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbHall/ihttstats/internal/metrics"
	"github.com/HerbHall/ihttstats/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, h http.HandlerFunc, retryMax int) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	m := metrics.New()
	c, err := New(Options{BaseURL: srv.URL + "/api", Timeout: 2 * time.Second, RetryMax: retryMax, Logger: zap.NewNop(), Metrics: m})
	require.NoError(t, err)
	return c, m
}

func TestList(t *testing.T) {
	var gotPath, gotQuery string
	c, m := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"noticeCode":"A1"},{"noticeCode":"A2"}],"total":25,"page":1,"pages":3}`))
	}, 0)

	page, err := c.List(context.Background(), "/fines", map[string]string{"paginated": "true", "page": "1"})
	require.NoError(t, err)

	assert.Equal(t, "/api/fines", gotPath)
	assert.Equal(t, "page=1&paginated=true", gotQuery)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 25, page.Total)
	code, _ := page.Data[0].String("noticeCode")
	assert.Equal(t, "A1", code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues("/fines", "ok")))
}

func TestListNullData(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null,"total":0}`))
	}, 0)

	page, err := c.List(context.Background(), "/fines", nil)
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
}

func TestAnalyticsEndpoints(t *testing.T) {
	var paths []string
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{"kpis":{"total":3},"chartData":{"statusDistribution":{"A":1}},"total":3}`))
	}, 0)

	ctx := context.Background()
	a, err := c.Analytics(ctx, "/certificates", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Total)

	_, err = c.AnalyticsReport(ctx, "/certificates", nil)
	require.NoError(t, err)
	_, err = c.Dashboard(ctx, "/certificates", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/certificates-analytics",
		"/api/certificates-analytics-report",
		"/api/certificates-dashboard",
	}, paths)
}

func TestStatusError(t *testing.T) {
	var calls atomic.Int32
	c, m := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
	}, 0)

	_, err := c.List(context.Background(), "/fines", nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "database unavailable", se.Body)
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	assert.Equal(t, int32(1), calls.Load(), "no retry by default")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues("/fines", "5xx")))
}

func TestRetryWhenConfigured(t *testing.T) {
	var calls atomic.Int32
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":[],"total":0}`))
	}, 1)

	_, err := c.List(context.Background(), "/fines", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDecodeError(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}, 0)

	_, err := c.List(context.Background(), "/fines", nil)
	assert.Error(t, err)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestErrorsMatchUnavailable(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/broken" {
			w.Write([]byte(`{not json`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}, 0)

	_, err := c.List(context.Background(), "/fines", nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = c.List(context.Background(), "/broken", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExpedientRangeEndpoints(t *testing.T) {
	var paths []string
	c, m := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/expedients-by-type/"):
			w.Write([]byte(`[{"cityCode":"TGU","normalProcessExpedientCount":"4","automaticRenovationExpedientCount":2}]`))
		case strings.HasPrefix(r.URL.Path, "/api/expedients-by-procedure/"):
			w.Write([]byte(`[{"procedureType":"RENOVACION","category":"TAXI","expedientCount":5}]`))
		default:
			w.Write([]byte(`[{"procedureType":"RENOVACION","modalityOrCategory":"BUS","expedientCount":null}]`))
		}
	}, 0)

	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	byType, err := c.ExpedientsByType(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "TGU", byType[0].CityCode)
	assert.Equal(t, models.Count(4), byType[0].NormalProcess)
	assert.Equal(t, models.Count(2), byType[0].AutomaticRenewal)

	byProc, err := c.ExpedientsByProcedure(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, models.Count(5), byProc[0].Count)

	byMod, err := c.ExpedientsByModality(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, models.Count(0), byMod[0].Count)

	assert.Equal(t, []string{
		"/api/expedients-by-type/01-03-2024/31-03-2024",
		"/api/expedients-by-procedure/01-03-2024/31-03-2024",
		"/api/expedients-by-modality/01-03-2024/31-03-2024",
	}, paths)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues(EndpointExpedientsByType, "ok")))
}

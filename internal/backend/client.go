// Package backend is the HTTP client for the external analytics backend.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HerbHall/ihttstats/internal/metrics"
	"github.com/HerbHall/ihttstats/internal/version"
	"github.com/HerbHall/ihttstats/pkg/models"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Operations endpoints. Each takes the date range as two DD-MM-YYYY path
// segments.
const (
	EndpointExpedientsByType      = "/expedients-by-type"
	EndpointExpedientsByProcedure = "/expedients-by-procedure"
	EndpointExpedientsByModality  = "/expedients-by-modality"
)

// PathDateLayout is the layout of date path segments.
const PathDateLayout = "02-01-2006"

// Endpoint suffixes appended to a resource endpoint.
const (
	SuffixAnalytics       = "-analytics"
	SuffixAnalyticsReport = "-analytics-report"
	SuffixDashboard       = "-dashboard"
)

const maxErrorBody = 512

// ErrUnavailable matches every failure caused by the backend: transport
// errors, non-2xx answers and undecodable bodies.
var ErrUnavailable = errors.New("backend unavailable")

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Is makes every StatusError match ErrUnavailable.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnavailable
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Client issues GET requests against the analytics backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New builds a Client. Retries are off unless RetryMax > 0.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("backend: base url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.Logger = leveledLogger{opts.Logger.Sugar()}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: retryClient.StandardClient(),
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}, nil
}

// List fetches a page (or, without "paginated", the full set) of records.
func (c *Client) List(ctx context.Context, endpoint string, params map[string]string) (*models.Page, error) {
	var page models.Page
	if err := c.get(ctx, endpoint, params, &page); err != nil {
		return nil, err
	}
	if page.Data == nil {
		page.Data = []models.Record{}
	}
	return &page, nil
}

// Analytics fetches <endpoint>-analytics.
func (c *Client) Analytics(ctx context.Context, endpoint string, params map[string]string) (*models.Analytics, error) {
	return c.analytics(ctx, endpoint+SuffixAnalytics, params)
}

// AnalyticsReport fetches <endpoint>-analytics-report.
func (c *Client) AnalyticsReport(ctx context.Context, endpoint string, params map[string]string) (*models.Analytics, error) {
	return c.analytics(ctx, endpoint+SuffixAnalyticsReport, params)
}

// Dashboard fetches <endpoint>-dashboard.
func (c *Client) Dashboard(ctx context.Context, endpoint string, params map[string]string) (*models.Analytics, error) {
	return c.analytics(ctx, endpoint+SuffixDashboard, params)
}

func (c *Client) analytics(ctx context.Context, endpoint string, params map[string]string) (*models.Analytics, error) {
	var a models.Analytics
	if err := c.get(ctx, endpoint, params, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ExpedientsByType fetches expedients per regional office between start and
// end, inclusive.
func (c *Client) ExpedientsByType(ctx context.Context, start, end time.Time) ([]models.ExpedientTypeStat, error) {
	var out []models.ExpedientTypeStat
	if err := c.getRange(ctx, EndpointExpedientsByType, start, end, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpedientsByProcedure fetches expedients per procedure type and category.
func (c *Client) ExpedientsByProcedure(ctx context.Context, start, end time.Time) ([]models.ExpedientProcedureStat, error) {
	var out []models.ExpedientProcedureStat
	if err := c.getRange(ctx, EndpointExpedientsByProcedure, start, end, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpedientsByModality fetches expedients per procedure type and modality.
func (c *Client) ExpedientsByModality(ctx context.Context, start, end time.Time) ([]models.ExpedientModalityStat, error) {
	var out []models.ExpedientModalityStat
	if err := c.getRange(ctx, EndpointExpedientsByModality, start, end, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getRange GETs endpoint/<start>/<end>. Metrics and logs use the bare
// endpoint so the dates do not become label values.
func (c *Client) getRange(ctx context.Context, endpoint string, start, end time.Time, response any) error {
	path := endpoint + "/" + start.UTC().Format(PathDateLayout) + "/" + end.UTC().Format(PathDateLayout)
	req, err := c.prepareRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.sendRequest(req, endpoint, response)
}

// get wraps do using http.MethodGet.
func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, response any) error {
	req, err := c.prepareRequest(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return err
	}
	return c.sendRequest(req, endpoint, response)
}

// prepareRequest builds a request for endpoint with params as the query string.
func (c *Client) prepareRequest(ctx context.Context, method, endpoint string, params map[string]string) (*http.Request, error) {
	uri, err := url.JoinPath(c.baseURL, endpoint)
	if err != nil {
		return nil, fmt.Errorf("backend: join %q: %w", endpoint, err)
	}
	if len(params) > 0 {
		q := make(url.Values, len(params))
		for k, v := range params {
			q.Set(k, v)
		}
		uri += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("backend: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", version.UserAgent())
	return req, nil
}

// sendRequest sends req and decodes a 2xx JSON body into response.
func (c *Client) sendRequest(req *http.Request, endpoint string, response any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.observe(endpoint, start, resp, err)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return fmt.Errorf("backend GET %s: %w: %w", endpoint, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		c.logger.Warn("backend returned error status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return serr
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("backend GET %s: decode: %w: %w", endpoint, ErrUnavailable, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, start time.Time, resp *http.Response, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case resp.StatusCode >= 400:
		outcome = fmt.Sprintf("%dxx", resp.StatusCode/100)
	}
	c.metrics.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
	c.metrics.BackendDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }

package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	appconfig "datasetbuilder/config"
	binancemetrics "datasetbuilder/internal/metrics/binance"
	ratemetrics "datasetbuilder/internal/metrics/rate"
	"datasetbuilder/internal/symbols"
	"datasetbuilder/logger"
	"datasetbuilder/models"
)

const (
	component = "binance_client"

	maxErrorBody = 512
)

// Request identifies one market-data query. Symbol and the time window are
// added by the client and the adapters respectively.
type Request struct {
	Path   string
	Params url.Values
}

// WithWindow returns a copy of the request carrying startTime and endTime.
func (r Request) WithWindow(w models.Window) Request {
	params := url.Values{}
	for k, v := range r.Params {
		params[k] = append([]string(nil), v...)
	}
	params.Set("startTime", strconv.FormatInt(w.Start, 10))
	params.Set("endTime", strconv.FormatInt(w.End, 10))
	return Request{Path: r.Path, Params: params}
}

// Fetcher performs a single market-data query and returns the raw records.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]json.RawMessage, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req Request) ([]json.RawMessage, error)

func (f FetcherFunc) Fetch(ctx context.Context, req Request) ([]json.RawMessage, error) {
	return f(ctx, req)
}

// UpstreamError reports a response the exchange answered with a non-200
// status or a body that is not a JSON array.
type UpstreamError struct {
	Status int
	Path   string
	Body   string
	Reason string
}

func (e *UpstreamError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("upstream %s: status %d: %s: %s", e.Path, e.Status, e.Reason, e.Body)
	}
	return fmt.Sprintf("upstream %s: status %d: %s", e.Path, e.Status, e.Body)
}

// Client issues GET requests against the Binance futures market-data API.
type Client struct {
	baseURL string
	symbol  string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

// NewClient builds a client from the binance configuration section.
func NewClient(cfg appconfig.BinanceConfig) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = appconfig.DefaultBaseURL
	}
	symbol := symbols.Normalize(cfg.Symbol)
	if symbol == "" {
		symbol = appconfig.DefaultSymbol
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = appconfig.DefaultHTTPTimeout
	}

	limit := rate.Inf
	if cfg.MinRequestInterval > 0 {
		limit = rate.Every(cfg.MinRequestInterval)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		symbol:  symbol,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.GetLogger(),
	}
}

// Symbol returns the instrument every request is issued for.
func (c *Client) Symbol() string {
	return c.symbol
}

// Fetch performs exactly one HTTP call for req and returns the elements of
// the JSON array the exchange answered with.
func (c *Client) Fetch(ctx context.Context, req Request) ([]json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	for k, v := range req.Params {
		params[k] = v
	}
	params.Set("symbol", c.symbol)
	endpoint := c.baseURL + req.Path + "?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.Path, err)
	}
	defer resp.Body.Close()

	binancemetrics.ReportUsedWeight(c.log, resp.Header, component, req.Path)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.Path, err)
	}

	if resp.StatusCode != http.StatusOK {
		ratemetrics.ReportLimit(c.log, resp.StatusCode, req.Path, string(body))
		return nil, &UpstreamError{
			Status: resp.StatusCode,
			Path:   req.Path,
			Body:   truncate(body),
		}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil || records == nil {
		return nil, &UpstreamError{
			Status: resp.StatusCode,
			Path:   req.Path,
			Body:   truncate(body),
			Reason: "body is not a JSON array",
		}
	}

	logger.LogPerformanceEntry(c.log.WithComponent(component), component, "fetch", time.Since(start), logger.Fields{
		"path":    req.Path,
		"records": len(records),
	})
	return records, nil
}

// CheckWeightLimit reads the REQUEST_WEIGHT per minute budget from the
// exchange info endpoint and logs how the configured pace compares to it.
func (c *Client) CheckWeightLimit(ctx context.Context, pace time.Duration) (int64, error) {
	fc := futures.NewClient("", "")
	fc.BaseURL = c.baseURL
	fc.HTTPClient = c.http

	limit, err := ratemetrics.FetchRequestWeightLimit(ctx, fc)
	if err != nil {
		return 0, fmt.Errorf("fetch request weight limit: %w", err)
	}

	fields := logger.Fields{"weight_limit_per_minute": limit}
	if pace > 0 {
		fields["requests_per_minute"] = int64(time.Minute / pace)
	}
	c.log.WithComponent(component).WithFields(fields).Info("binance request weight budget")
	return limit, nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

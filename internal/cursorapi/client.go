// Package cursorapi pulls per-user daily usage from the vendor's team admin
// API and feeds it through the ingestion pipeline.
package cursorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/internal/observability/tracing"
	"github.com/smallbiznis/usagelens/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("cursor_api_not_configured")
	ErrUnauthorized  = errors.New("cursor_api_unauthorized")
)

// APIError is a non-success response that survived retries.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cursor api: status %d: %s", e.StatusCode, e.Body)
}

type usageRequest struct {
	StartDate int64 `json:"startDate"`
	EndDate   int64 `json:"endDate"`
}

type usageResponse struct {
	Data []Entry `json:"data"`
}

// Entry is one user-day as reported by the API. Date arrives either as epoch
// milliseconds or as an ISO string.
type Entry struct {
	Date                     json.RawMessage `json:"date"`
	Email                    string          `json:"email"`
	IsActive                 bool            `json:"isActive"`
	SubscriptionIncludedReqs *int64          `json:"subscriptionIncludedReqs"`
	UsageBasedReqs           *int64          `json:"usageBasedReqs"`
	TotalLinesAdded          *int64          `json:"totalLinesAdded"`
	AcceptedLinesAdded       *int64          `json:"acceptedLinesAdded"`
	TotalTabsAccepted        *int64          `json:"totalTabsAccepted"`
}

type Client struct {
	apiKey string
	url    string
	http   *retryablehttp.Client
	log    *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Cursor.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = leveledLogger{log: log.Named("cursorapi.http")}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	timeout := time.Duration(cfg.Cursor.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rc.HTTPClient.Timeout = timeout

	url := strings.TrimSpace(cfg.Cursor.APIURL)
	if url == "" {
		url = config.DefaultCursorAPIURL
	}
	return &Client{
		apiKey: cfg.Cursor.APIKey,
		url:    url,
		http:   rc,
		log:    log.Named("cursorapi.client"),
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// FetchDailyUsage returns every user-day between start and end.
func (c *Client) FetchDailyUsage(ctx context.Context, start, end time.Time) (entries []Entry, err error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, span := tracing.Tracer().Start(ctx, "cursorapi.fetch_daily_usage")
	span.SetAttributes(
		attribute.String("range.start", start.UTC().Format(time.RFC3339)),
		attribute.String("range.end", end.UTC().Format(time.RFC3339)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	payload, err := json.Marshal(usageRequest{StartDate: start.UnixMilli(), EndDate: end.UnixMilli()})
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequest(http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build cursor api request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		req.Header.Set(correlation.Header, cid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call cursor api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cursor api response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode >= 300:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var decoded usageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode cursor api response: %w", err)
	}
	span.SetAttributes(attribute.Int("entries", len(decoded.Data)))
	c.log.Debug("fetched daily usage", zap.Int("entries", len(decoded.Data)))
	return decoded.Data, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// leveledLogger routes retryablehttp's logging into zap.
type leveledLogger struct {
	log *zap.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Sugar().Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Sugar().Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Sugar().Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Sugar().Warnw(msg, kv...) }

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"revi/agent-core/internal/infrastructure/ctxkey"
	"revi/agent-core/internal/infrastructure/logger"
	"revi/agent-core/internal/infrastructure/telemetry/metrics"
	"revi/agent-core/internal/pkg/agenterror"
)

// Ingestion endpoint paths.
const (
	EndpointError        = "/api/capture/error"
	EndpointSessionEvent = "/api/capture/session-event"
	EndpointNetworkEvent = "/api/capture/network-event"
)

// Response is the ingestion acceptance envelope.
type Response struct {
	Success bool     `json:"success"`
	IDs     []string `json:"ids,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Client posts batches to the ingestion service. It owns compaction,
// compression, auth headers and the mapping of responses onto the agent
// error taxonomy; delivery policy lives in the resilience coordinator above.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     logger.Logger
	metrics metrics.Metrics
	now     func() time.Time
}

func NewClient(baseURL, apiKey string, log logger.Logger, m metrics.Metrics) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.WithField("component", "transport"),
		metrics: m,
		now:     time.Now,
	}
}

// BaseURL returns the configured ingestion origin; the network-capture
// admission filter uses it as its self-loop guard.
func (c *Client) BaseURL() string { return c.baseURL }

// Post sends a batch body to one ingestion endpoint. The body is compacted
// by the caller; Post adds the batch clock fields, compresses and classifies
// the outcome.
func (c *Client) Post(ctx context.Context, endpoint string, body map[string]any) (*Response, error) {
	// Server-side ordering reconciles client clocks via the batch send time.
	body["sent_at"] = c.now().UnixMilli()

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, agenterror.NewInternal(agenterror.CodeInternalError, "failed to encode batch", err)
	}

	payload, encoding := Encode(raw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, agenterror.NewInternal(agenterror.CodeInternalError, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	if syncSession := ctxkey.GetSyncSession(ctx); syncSession != "" {
		req.Header.Set("X-Sync-Session", syncSession)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	elapsed := c.now().Sub(start)

	if err != nil {
		c.metrics.RecordSubmission(endpoint, 0, elapsed.Seconds())
		if ctx.Err() != nil {
			return nil, agenterror.NewAborted(ctx.Err())
		}
		return nil, agenterror.FromStatus(0, 0, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordSubmission(endpoint, resp.StatusCode, elapsed.Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.log.WithContext(ctx).WithFields(map[string]any{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Debug("Ingestion rejected batch")
		return nil, agenterror.FromStatus(resp.StatusCode, retryAfter, nil)
	}

	var out Response
	if raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)); err == nil {
		_ = json.Unmarshal(raw, &out)
	}
	return &out, nil
}

// parseRetryAfter understands both delay-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
	DefaultPageSize    = 50

	// MaxPageSize is the largest page the full node serves.
	MaxPageSize = 50
)

// HTTPClient implements EventFetcher and ObjectReader over the Sui JSON-RPC 2.0 API.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	pageSize    int
	requestID   atomic.Uint64
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithPageSize sets the page size used by QueryEvents, capped at MaxPageSize.
func WithPageSize(n int) ClientOption {
	return func(c *HTTPClient) {
		if n > 0 && n <= MaxPageSize {
			c.pageSize = n
		}
	}
}

// WithMetrics records call latency and failures.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *HTTPClient) {
		c.metrics = m
	}
}

// WithLogger sets the logger used for retry messages.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewHTTPClient creates a new Sui RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		pageSize:    DefaultPageSize,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call, retrying transport failures, 429s and 5xx
// responses with capped exponential backoff. JSON-RPC errors and other 4xx
// responses fail immediately. Results are decoded with json.Number so u64
// values keep full precision.
func (c *HTTPClient) call(ctx context.Context, method string, params []any, result any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordRPC(method, time.Since(start).Seconds(), err)
	}()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying rpc call",
				zap.String("method", method),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = min(time.Duration(float64(delay)*c.backoffMult), c.maxDelay)
		}

		raw, err := c.do(ctx, body)
		if err == nil {
			return decodeResult(raw, result)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var te *transientError
		if !errors.As(err, &te) {
			return err
		}
		lastErr = te.err
	}
	return fmt.Errorf("%s: max retries exceeded: %w", method, lastErr)
}

// transientError marks a failure worth retrying.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func transient(format string, args ...any) error {
	return &transientError{err: fmt.Errorf(format, args...)}
}

// do sends one request and returns the raw result member.
func (c *HTTPClient) do(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transient("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transient("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, transient("rate limited (429)")
	case resp.StatusCode >= 500:
		return nil, transient("unexpected status %d: %s", resp.StatusCode, respBody)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, transient("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

func decodeResult(raw json.RawMessage, result any) error {
	if result == nil || raw == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(result); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

// QueryEventsPage retrieves one ascending page of events of a Move event type.
func (c *HTTPClient) QueryEventsPage(ctx context.Context, eventType string, cursor *EventID, limit int) (*EventPage, error) {
	if cursor != nil && !ValidDigest(cursor.TxDigest) {
		return nil, fmt.Errorf("cursor %q: %w", cursor.TxDigest, ErrInvalidDigest)
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = c.pageSize
	}

	var cursorParam any
	if cursor != nil {
		cursorParam = cursor
	}
	params := []any{
		map[string]any{"MoveEventType": eventType},
		cursorParam,
		limit,
		false, // ascending
	}

	var page EventPage
	if err := c.call(ctx, "suix_queryEvents", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// QueryEvents pages through every retained event of a Move event type.
func (c *HTTPClient) QueryEvents(ctx context.Context, eventType string) ([]domain.RawEvent, error) {
	var out []domain.RawEvent
	var cursor *EventID
	for {
		page, err := c.QueryEventsPage(ctx, eventType, cursor, c.pageSize)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", eventType, err)
		}
		out = append(out, page.RawEvents()...)
		if !page.HasNextPage || page.NextCursor == nil {
			return out, nil
		}
		// A node that repeats its cursor would loop forever.
		if cursor != nil && *page.NextCursor == *cursor {
			return nil, fmt.Errorf("query %s: cursor did not advance past %s/%s",
				eventType, cursor.TxDigest, cursor.EventSeq)
		}
		cursor = page.NextCursor
	}
}

// getObjectResult is the raw RPC response for sui_getObject.
type getObjectResult struct {
	Data *struct {
		ObjectID string `json:"objectId"`
		Version  string `json:"version"`
		Content  *struct {
			DataType string         `json:"dataType"`
			Type     string         `json:"type"`
			Fields   map[string]any `json:"fields"`
		} `json:"content"`
	} `json:"data"`
	Error *struct {
		Code     string `json:"code"`
		ObjectID string `json:"object_id"`
	} `json:"error"`
}

// GetObject retrieves the content fields of a Move object.
// Returns ErrObjectNotFound if the object does not exist.
func (c *HTTPClient) GetObject(ctx context.Context, objectID string) (map[string]any, error) {
	params := []any{
		objectID,
		map[string]any{"showContent": true},
	}

	var result getObjectResult
	if err := c.call(ctx, "sui_getObject", params, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, fmt.Errorf("%s (%s): %w", objectID, result.Error.Code, ErrObjectNotFound)
	}
	if result.Data == nil || result.Data.Content == nil {
		return nil, fmt.Errorf("%s: %w", objectID, ErrObjectNotFound)
	}
	if result.Data.Content.DataType != "moveObject" {
		return nil, fmt.Errorf("object %s is a %s, not a move object", objectID, result.Data.Content.DataType)
	}
	return result.Data.Content.Fields, nil
}

// Package remote wraps the expense backend's REST API in a typed client.
// Transport outcomes are normalized into the Failure taxonomy; no call is
// ever retried automatically — the caller decides fallback behavior.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendscan/internal/core"
)

const (
	// DefaultTimeout bounds ordinary list/create/delete calls.
	DefaultTimeout = 30 * time.Second
	// DefaultScanTimeout bounds receipt scans, which run image analysis
	// server-side and are materially slower.
	DefaultScanTimeout = 90 * time.Second
)

// Client talks to the expense backend. All routes resolve relative to a
// single base URL.
type Client struct {
	client     *http.Client
	scanClient *http.Client
	baseURL    string
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides the bound for ordinary calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithScanTimeout overrides the bound for receipt scans.
func WithScanTimeout(d time.Duration) Option {
	return func(c *Client) { c.scanClient.Timeout = d }
}

// New creates a client for the given backend origin (http or https).
func New(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", baseURL)
	}
	c := &Client{
		client:     &http.Client{Timeout: DefaultTimeout},
		scanClient: &http.Client{Timeout: DefaultScanTimeout},
		baseURL:    base,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// envelope is the backend's uniform response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// ListExpenses fetches the full expense collection, newest first as ordered
// by the backend.
func (c *Client) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/expenses", nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}

	var records []core.ExpenseRecord
	if err := c.do(req, c.client, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateExpense submits a validated draft and returns the canonical record
// with its backend-assigned id.
func (c *Client) CreateExpense(ctx context.Context, draft core.Draft) (core.ExpenseRecord, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("marshal draft: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/expenses", bytes.NewReader(body))
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var record core.ExpenseRecord
	if err := c.do(req, c.client, &record); err != nil {
		return core.ExpenseRecord{}, err
	}
	if err := record.Validate(); err != nil {
		return core.ExpenseRecord{}, malformed(http.StatusOK, fmt.Errorf("created record: %w", err))
	}
	return record, nil
}

// DeleteExpense asks the backend to delete a record by id. A nil return
// means the server confirmed the deletion.
func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/expenses/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	return c.do(req, c.client, nil)
}

// ScanReceipt uploads an image for OCR extraction. The returned result is
// untrusted and must go through the scan bridge before reaching a form.
func (c *Client) ScanReceipt(ctx context.Context, filename string, image []byte) (core.ExtractionResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("receipt", filename)
	if err != nil {
		return core.ExtractionResult{}, fmt.Errorf("create multipart field: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return core.ExtractionResult{}, fmt.Errorf("write image bytes: %w", err)
	}
	if err := mw.Close(); err != nil {
		return core.ExtractionResult{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ocr/scan-receipt", &buf)
	if err != nil {
		return core.ExtractionResult{}, fmt.Errorf("build scan request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result core.ExtractionResult
	if err := c.do(req, c.scanClient, &result); err != nil {
		return core.ExtractionResult{}, err
	}
	return result, nil
}

// Health probes the backend liveness route. The route has no defined schema
// beyond reachability, so any 2xx counts as healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return unreachable(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return serverRejected(resp.StatusCode, "health check returned "+resp.Status)
	}
	return nil
}

// do executes a request and decodes the envelope into out (skipped when out
// is nil). Outcome mapping: transport error -> Unreachable, failure payload
// or non-2xx -> ServerRejected, undecodable body -> MalformedResponse.
func (c *Client) do(req *http.Request, client *http.Client, out any) error {
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		slog.WarnContext(req.Context(), "Backend call failed",
			"method", req.Method,
			"url", req.URL.Path,
			"error", err)
		return unreachable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return unreachable(err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			// A plain-text error page still counts as a rejection.
			return serverRejected(resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return malformed(resp.StatusCode, err)
	}

	if !env.Success || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return serverRejected(resp.StatusCode, env.Error)
	}

	if out != nil {
		if len(env.Data) == 0 {
			return malformed(resp.StatusCode, fmt.Errorf("missing data field"))
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return malformed(resp.StatusCode, err)
		}
	}

	slog.DebugContext(req.Context(), "Backend call completed",
		"method", req.Method,
		"url", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

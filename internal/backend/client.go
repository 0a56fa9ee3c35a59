// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend implements the HTTP client for the neochat inference
// backend: intent classification, chat, retrieval-augmented answering,
// object detection and photo upload.
//
// The client performs no retries. Transient faults surface as errors
// and the orchestrator decides what the user sees.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize bounds response bodies.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared HTTP transport for all backend requests.
var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrEmptyInput is returned when a request would carry no content.
var ErrEmptyInput = errors.New("empty input")

// APIError represents a non-2xx response from the backend.
type APIError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Body)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// IntentResult is the decoded /api/intent response.
type IntentResult struct {
	Intent    string
	Score     float64
	Narration string

	// Threshold and HasThreshold carry the backend-reported threshold.
	// HasThreshold is false when the field was absent or non-numeric;
	// the router substitutes its default in that case.
	Threshold    float64
	HasThreshold bool
}

// RagResult is the decoded /api/rag response.
type RagResult struct {
	Answer      string   `json:"answer"`
	UsedContext bool     `json:"used_context"`
	Sources     []string `json:"sources"`
}

// DetectResult is the decoded /api/detect response.
type DetectResult struct {
	Narration string `json:"narration"`
	Summary   string `json:"summary"`
	ImageURL  string `json:"image_url"`
}

// PhotoResult is the decoded /api/photo response.
type PhotoResult struct {
	ImageURL string `json:"image_url"`
}

// Upload carries file bytes and metadata for multipart endpoints.
type Upload struct {
	Name string
	MIME string
	Data []byte
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the neochat backend over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(4), 2),
	}
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithRateLimit caps outgoing requests per second. The voice
// recognition loop can otherwise hammer the intent endpoint.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 2)
	}
	return c
}

// =============================================================================
// JSON ENDPOINTS
// =============================================================================

// ClassifyIntent calls POST /api/intent. The caller is responsible for
// input normalization; no retries are attempted here.
func (c *Client) ClassifyIntent(ctx context.Context, text string) (IntentResult, error) {
	var wire struct {
		Intent    string      `json:"intent"`
		Score     float64     `json:"score"`
		Threshold interface{} `json:"threshold"`
		Narration string      `json:"narration"`
	}
	err := c.postJSON(ctx, "/api/intent", map[string]string{"text": text}, &wire)
	if err != nil {
		return IntentResult{}, err
	}

	res := IntentResult{
		Intent:    wire.Intent,
		Score:     wire.Score,
		Narration: wire.Narration,
	}
	// Threshold may be absent, a number, or garbage; only a numeric
	// value counts.
	switch v := wire.Threshold.(type) {
	case float64:
		res.Threshold = v
		res.HasThreshold = true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			res.Threshold = f
			res.HasThreshold = true
		}
	}
	return res, nil
}

// Chat calls POST /api/chat and returns the plain answer.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	var out struct {
		Answer string `json:"answer"`
	}
	if err := c.postJSON(ctx, "/api/chat", map[string]string{"message": message}, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// Rag calls POST /api/rag. With webOnly the backend restricts context
// to live web retrieval; otherwise it gates document context on its
// own relevance threshold.
func (c *Client) Rag(ctx context.Context, question string, useInternet, webOnly bool) (RagResult, error) {
	req := map[string]interface{}{
		"question":     question,
		"use_internet": useInternet,
		"web_only":     webOnly,
	}
	var out RagResult
	if err := c.postJSON(ctx, "/api/rag", req, &out); err != nil {
		return RagResult{}, err
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// =============================================================================
// MULTIPART ENDPOINTS
// =============================================================================

// Detect calls POST /api/detect with a multipart image upload. When
// draw is set the backend returns an annotated image reference.
func (c *Client) Detect(ctx context.Context, up Upload, draw bool) (DetectResult, error) {
	var out DetectResult
	err := c.postMultipart(ctx, "/api/detect", up, map[string]string{
		"draw": boolField(draw),
	}, &out)
	if err != nil {
		return DetectResult{}, err
	}
	return out, nil
}

// Photo calls POST /api/photo, submitting a captured frame for storage.
func (c *Client) Photo(ctx context.Context, up Upload) (PhotoResult, error) {
	var out PhotoResult
	if err := c.postMultipart(ctx, "/api/photo", up, nil, &out); err != nil {
		return PhotoResult{}, err
	}
	return out, nil
}

// UploadDoc calls POST /api/upload, submitting a document for indexing
// into the retrieval store.
func (c *Client) UploadDoc(ctx context.Context, up Upload) error {
	var out struct {
		Status string `json:"status"`
	}
	return c.postMultipart(ctx, "/api/upload", up, nil, &out)
}

func (c *Client) postMultipart(ctx context.Context, path string, up Upload, fields map[string]string, out interface{}) error {
	if len(up.Data) == 0 {
		return ErrEmptyInput
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := createFormFile(mw, "file", up.Name, up.MIME)
	if err != nil {
		return err
	}
	if _, err := part.Write(up.Data); err != nil {
		return err
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.do(req, out)
}

// createFormFile is like multipart.Writer.CreateFormFile but preserves
// the upload's real content type instead of application/octet-stream.
func createFormFile(mw *multipart.Writer, field, filename, mime string) (io.Writer, error) {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if mime == "" {
		mime = "application/octet-stream"
	}
	h.Set("Content-Type", mime)
	return mw.CreatePart(h)
}

// =============================================================================
// SHARED REQUEST HANDLING
// =============================================================================

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

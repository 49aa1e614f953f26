// Package client talks to the extraction service: submit a file, query a job, list jobs and
// download exports. Every error it returns is an *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
)

// fileField is the multipart field the service reads the upload from.
const fileField = "file"

// Client is the transfer client for the extraction service.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
	schemas schemas
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// New returns a client for a versioned base URL such as http://host/api/v1.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "invalid base url", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("base url %q must be absolute", baseURL), common.ErrInvalidInput)
	}
	s, err := compileSchemas()
	if err != nil {
		return nil, common.NewAppError("SCHEMA_ERROR", "compile response schemas", err)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  slog.Default(),
		schemas: s,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Submit uploads file as the sole multipart field and returns the job handle.
// Submit is not idempotent: call it once per file per user action.
func (c *Client) Submit(ctx context.Context, file entity.CandidateFile) (entity.JobHandle, error) {
	var handle entity.JobHandle

	f, err := file.Open()
	if err != nil {
		return handle, &APIError{Detail: fmt.Sprintf("open %s: %v", file.Name, err), Err: err}
	}
	defer func(f io.ReadCloser) {
		if err := f.Close(); err != nil {
			c.logger.Warn("client.submit.close_error", "file", file.Name, "error", err)
		}
	}(f)

	body, contentType, err := multipartBody(file, f)
	if err != nil {
		return handle, &APIError{Detail: fmt.Sprintf("encode upload: %v", err), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("jobs/"), body)
	if err != nil {
		return handle, &APIError{Detail: fmt.Sprintf("build request: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	if err := c.doJSON(ctx, req, c.schemas.handle, &handle); err != nil {
		return entity.JobHandle{}, err
	}
	return handle, nil
}

// Query fetches the current snapshot of a job. Safe to repeat.
func (c *Client) Query(ctx context.Context, jobID string) (entity.JobSnapshot, error) {
	var snap entity.JobSnapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("jobs/"+url.PathEscape(jobID)), nil)
	if err != nil {
		return snap, &APIError{Detail: fmt.Sprintf("build request: %v", err), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	if err := c.doJSON(ctx, req, c.schemas.snapshot, &snap); err != nil {
		return entity.JobSnapshot{}, err
	}
	return snap, nil
}

// List fetches every job the service knows about.
func (c *Client) List(ctx context.Context) ([]entity.JobSnapshot, error) {
	var jobs []entity.JobSnapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("jobs/"), nil)
	if err != nil {
		return nil, &APIError{Detail: fmt.Sprintf("build request: %v", err), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	if err := c.doJSON(ctx, req, c.schemas.list, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Download streams an export location (absolute, or relative to the base URL) into w.
func (c *Client) Download(ctx context.Context, location string, w io.Writer) (int64, error) {
	target, err := c.resolve(location)
	if err != nil {
		return 0, &APIError{Detail: fmt.Sprintf("invalid download location %q", location), Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, &APIError{Detail: fmt.Sprintf("build request: %v", err), Err: err}
	}

	resp, reqID, start, err := c.send(ctx, req)
	if err != nil {
		return 0, err
	}
	defer c.closeBody(resp.Body, reqID)

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(resp.Body)
		return 0, normalizeError(resp.StatusCode, resp.Status, raw)
	}
	n, err := io.Copy(w, resp.Body)
	c.logger.Info("client.http.download",
		"req_id", reqID,
		"url", target,
		"bytes", n,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		return n, &APIError{Status: resp.StatusCode, Detail: fmt.Sprintf("download interrupted: %v", err), Err: err}
	}
	return n, nil
}

// Health asks the service root for its health status ("healthy" when up).
func (c *Client) Health(ctx context.Context) (string, error) {
	target, err := c.resolve("/health")
	if err != nil {
		return "", &APIError{Detail: fmt.Sprintf("invalid health location: %v", err), Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &APIError{Detail: fmt.Sprintf("build request: %v", err), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	var body struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, req, c.schemas.health, &body); err != nil {
		return "", err
	}
	return body.Status, nil
}

// doJSON sends req, normalizes failures, validates the body against schema and decodes it into out.
func (c *Client) doJSON(ctx context.Context, req *http.Request, schema *jsonschema.Schema, out any) error {
	resp, reqID, start, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer c.closeBody(resp.Body, reqID)

	raw, readErr := io.ReadAll(resp.Body)

	c.logger.Info("client.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		apiErr := normalizeError(resp.StatusCode, resp.Status, raw)
		c.logger.Warn("client.http.error_response", "req_id", reqID, "status", resp.StatusCode, "detail", apiErr.Detail)
		return apiErr
	}
	if readErr != nil {
		return &APIError{Status: resp.StatusCode, Detail: fmt.Sprintf("read response: %v", readErr), Err: readErr}
	}
	if schema != nil {
		if err := validateJSON(schema, raw); err != nil {
			c.logger.Error("client.http.schema_error", "req_id", reqID, "error", err)
			return &APIError{Status: resp.StatusCode, Detail: fmt.Sprintf("unexpected response: %v", err), Err: err}
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Status: resp.StatusCode, Detail: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return nil
}

func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, string, time.Time, error) {
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	req.Header.Set("X-Request-ID", reqID)
	start := time.Now()

	c.logger.Info("client.http.request",
		"req_id", reqID,
		"job_id", common.JobIDFromContext(ctx),
		"method", req.Method,
		"url", req.URL.String(),
		"content_length", req.ContentLength,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("client.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, reqID, start, transportError(err)
	}
	return resp, reqID, start, nil
}

func (c *Client) closeBody(body io.ReadCloser, reqID string) {
	if err := body.Close(); err != nil {
		c.logger.Warn("client.http.response_body_close_error", "req_id", reqID, "error", err)
	}
}

func (c *Client) endpoint(path string) string {
	// JoinPath keeps the trailing slash of "jobs/", which the service routes separately from "jobs"
	return c.baseURL.JoinPath(path).String()
}

func (c *Client) resolve(location string) (string, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartBody(file entity.CandidateFile, r io.Reader) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, quoteEscaper.Replace(file.Name)))
	mediaType := file.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	h.Set("Content-Type", mediaType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

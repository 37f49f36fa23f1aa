package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// Client is an HTTP client for the meaning API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer Authorization header on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // large PDFs take a while to extract
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server URL this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// StatusError is returned for responses with a status code >= 400.
type StatusError struct {
	StatusCode int
	// Message is the server's "error" field, empty when the body had none.
	Message string
	Body    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// RawResponse is an undecoded response.
type RawResponse struct {
	StatusCode int
	Body       []byte
}

// Err returns a *StatusError for failed responses, nil otherwise.
func (r *RawResponse) Err() error {
	if r.StatusCode < 400 {
		return nil
	}
	se := &StatusError{StatusCode: r.StatusCode, Body: string(r.Body)}
	var errResp ErrorResponse
	if json.Unmarshal(r.Body, &errResp) == nil {
		se.Message = errResp.Error
	}
	return se
}

// Get performs a GET request and decodes the JSON response.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

// Post performs a POST request with JSON body and decodes the response.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, result)
}

// Patch performs a PATCH request with JSON body and decodes the response.
func (c *Client) Patch(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, result)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// Upload sends a multipart/form-data POST with one file part and
// optional extra form fields, and decodes the response.
func (c *Client) Upload(ctx context.Context, path, field, filename string, data []byte, fields map[string]string, result any) error {
	raw, err := c.Multipart(ctx, path, field, filename, data, fields)
	if err != nil {
		return err
	}
	return decode(raw, result)
}

// Multipart is Upload without decoding.
func (c *Client) Multipart(ctx context.Context, path, field, filename string, data []byte, fields map[string]string) (*RawResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if data != nil {
		part, err := w.CreateFormFile(field, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write form file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return c.Raw(ctx, http.MethodPost, path, &buf, w.FormDataContentType())
}

// Raw performs a request and returns the status and body without decoding.
// A non-2xx status is not an error here; see RawResponse.Err.
func (c *Client) Raw(ctx context.Context, method, path string, body io.Reader, contentType string) (*RawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &RawResponse{StatusCode: resp.StatusCode, Body: data}, nil
}

// WaitHealthy polls GET /health until the server answers ok or attempts run out.
func (c *Client) WaitHealthy(ctx context.Context, attempts uint, delay time.Duration) error {
	return retry.Do(
		func() error {
			var health struct {
				OK bool `json:"ok"`
			}
			if err := c.Get(ctx, "/health", &health); err != nil {
				return err
			}
			if !health.OK {
				return fmt.Errorf("server at %s is not healthy", c.baseURL)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	contentType := ""
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
		contentType = "application/json"
	}

	raw, err := c.Raw(ctx, method, path, bodyReader, contentType)
	if err != nil {
		return err
	}
	return decode(raw, result)
}

func decode(raw *RawResponse, result any) error {
	if err := raw.Err(); err != nil {
		return err
	}
	if result != nil && len(raw.Body) > 0 {
		if err := json.Unmarshal(raw.Body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// ErrorResponse matches the server's error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// API service for making raw HTTP requests to the profile & playlist backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moviememo/internal/shared"
)

const (
	DefaultBackendURL = "http://localhost:8000/api"
	DefaultTimeout    = 10 * time.Second
)

// APIService provides methods for making raw HTTP requests to the backend.
type APIService struct {
	baseURL       string
	trailingSlash bool
	httpClient    *http.Client
	logger        *log.Logger
}

// APIOption configures an [APIService].
type APIOption func(*APIService)

// WithTrailingSlash controls whether built paths end in "/".
func WithTrailingSlash(enabled bool) APIOption {
	return func(a *APIService) { a.trailingSlash = enabled }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) APIOption {
	return func(a *APIService) { a.logger = l }
}

// NewAPIService creates a new API service for the backend at baseURL.
//
// A nil client gets a fresh [http.Client] with [DefaultTimeout].
func NewAPIService(baseURL string, client *http.Client, opts ...APIOption) *APIService {
	if baseURL == "" {
		baseURL = DefaultBackendURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	a := &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     shared.NewLogger(io.Discard),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NotFound reports a 404 status.
func (r *APIResponse) NotFound() bool {
	return r.StatusCode == http.StatusNotFound
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Message extracts a human-readable message from the body, falling back to the status text.
func (r *APIResponse) Message() string {
	if msg := serverMessage(r.JSONData); msg != "" {
		return msg
	}
	if text := http.StatusText(r.StatusCode); text != "" {
		return fmt.Sprintf("request failed with status %d (%s)", r.StatusCode, text)
	}
	return fmt.Sprintf("request failed with status %d", r.StatusCode)
}

// Path joins escaped segments into a request path, honoring the trailing slash setting.
func (a *APIService) Path(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	if a.trailingSlash {
		b.WriteByte('/')
	}
	return b.String()
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil, "")
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json")
}

// Delete performs a DELETE request.
func (a *APIService) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodDelete, path, nil, "")
}

// SendJSON marshals v and sends it with method.
func (a *APIService) SendJSON(ctx context.Context, method, path string, v any) (*APIResponse, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return a.do(ctx, method, path, bytes.NewReader(data), "application/json")
}

// Upload sends content as a single multipart file field.
func (a *APIService) Upload(ctx context.Context, method, path, field, filename, contentType string, content []byte) (*APIResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	return a.do(ctx, method, path, &buf, w.FormDataContentType())
}

func (a *APIService) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*APIResponse, error) {
	fullURL := a.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := shared.GenerateID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Debug("backend request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	a.logger.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(start))

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

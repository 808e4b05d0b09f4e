package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"research-chat/internal/domain"
)

const (
	chatPath   = "/chat"
	uploadPath = "/upload"
	healthPath = "/"

	defaultTimeout = 120 * time.Second
	maxErrorBody   = 4096
	maxReplyBody   = 4 << 20
)

// HTTPStatusError captures non-2xx responses from the agent service.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("agentapi: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Detail returns the FastAPI "detail" field of the error body, if any.
func (e *HTTPStatusError) Detail() string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(e.Body), &body); err != nil {
		return ""
	}
	return body.Detail
}

// MalformedResponseError reports a 2xx response whose body could not be
// understood.
type MalformedResponseError struct {
	Op  string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("agentapi: malformed %s response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Client talks to the research agent service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the transport timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a Client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("agentapi: base URL must not be empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("agentapi: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("agentapi: base URL %q must use http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("agentapi: base URL %q has no host", baseURL)
	}
	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func endpointURL(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if path == healthPath {
		return base + "/"
	}
	return base + path
}

// Chat sends one user turn and returns the agent's reply.
func (c *Client) Chat(ctx context.Context, in domain.ChatRequest) (domain.ChatReply, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("agentapi: marshal chat request: %w", err)
	}

	endpoint := endpointURL(c.baseURL, chatPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("agentapi: create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	raw, err := c.do(req, endpoint)
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("agentapi: chat request failed: %w", err)
	}

	var payload struct {
		Response *string `json:"response"`
		ThreadID string  `json:"thread_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.ChatReply{}, &MalformedResponseError{Op: "chat", Err: err}
	}
	if payload.Response == nil {
		return domain.ChatReply{}, &MalformedResponseError{Op: "chat", Err: errors.New("missing response field")}
	}
	if strings.TrimSpace(*payload.Response) == "" {
		return domain.ChatReply{}, &MalformedResponseError{Op: "chat", Err: errors.New("empty response text")}
	}
	return domain.ChatReply{Response: *payload.Response, ThreadID: payload.ThreadID}, nil
}

// Ingest uploads a document as the multipart field "file".
func (c *Client) Ingest(ctx context.Context, filename string, r io.Reader) (domain.IngestResult, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return domain.IngestResult{}, errors.New("agentapi: filename must not be empty")
	}
	if r == nil {
		return domain.IngestResult{}, errors.New("agentapi: document body must not be nil")
	}

	// The document is streamed; the transport closes pr when it is done, which
	// unblocks the writer if the server stops reading early.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		_ = pw.CloseWithError(writeMultipart(mw, name, r))
	}()

	endpoint := endpointURL(c.baseURL, uploadPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return domain.IngestResult{}, fmt.Errorf("agentapi: create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	raw, err := c.do(req, endpoint)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("agentapi: upload request failed: %w", err)
	}

	var payload struct {
		Status        string `json:"status"`
		Filename      string `json:"filename"`
		ChunksCreated *int   `json:"chunks_created"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.IngestResult{}, &MalformedResponseError{Op: "upload", Err: err}
	}
	if payload.ChunksCreated == nil {
		return domain.IngestResult{}, &MalformedResponseError{Op: "upload", Err: errors.New("missing chunks_created field")}
	}
	if *payload.ChunksCreated < 0 {
		return domain.IngestResult{}, &MalformedResponseError{Op: "upload", Err: fmt.Errorf("negative chunks_created %d", *payload.ChunksCreated)}
	}
	return domain.IngestResult{
		Status:        payload.Status,
		Filename:      payload.Filename,
		ChunksCreated: *payload.ChunksCreated,
	}, nil
}

func writeMultipart(mw *multipart.Writer, name string, r io.Reader) error {
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("agentapi: create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("agentapi: read document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("agentapi: close multipart body: %w", err)
	}
	return nil
}

// Health calls the service root.
func (c *Client) Health(ctx context.Context) (domain.Health, error) {
	endpoint := endpointURL(c.baseURL, healthPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Health{}, fmt.Errorf("agentapi: create health request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	raw, err := c.do(req, endpoint)
	if err != nil {
		return domain.Health{}, fmt.Errorf("agentapi: health request failed: %w", err)
	}
	var out domain.Health
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.Health{}, &MalformedResponseError{Op: "health", Err: err}
	}
	return out, nil
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        endpoint,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxReplyBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

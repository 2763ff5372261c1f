package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Smartsheet API 2.0 endpoint.
const DefaultBaseURL = "https://api.smartsheet.com/2.0"

// Per-request timeouts. A request exceeding its timeout is a hard failure.
const (
	TimeoutDefault = 60 * time.Second
	TimeoutImport  = 240 * time.Second
	TimeoutMove    = 120 * time.Second
)

const userAgent = "sheetsync/0.1"

// Content types used by the file endpoints.
const (
	contentTypeJSON = "application/json"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeXLS  = "application/vnd.ms-excel"
)

// Client is an HTTP client for the Smartsheet API. Every call is a single
// synchronous round-trip with a fixed timeout; nothing is retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Smartsheet API client. baseURL is typically
// DefaultBaseURL. Requests go through httpClient with an oauth2 transport
// that sets the bearer token from token.
func NewClient(baseURL string, httpClient *http.Client, token oauth2.TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: authorized(httpClient, token),
		logger:     logger,
	}
}

// request describes one API call. rawQuery is appended verbatim so that
// comma lists and parameter order match the wire format exactly.
type request struct {
	method      string
	path        string
	rawQuery    string
	body        io.Reader
	length      int64 // explicit Content-Length when > 0
	contentType string
	accept      string
	disposition string
	timeout     time.Duration
}

// do executes a single request. Only 200 counts as success; the caller owns
// the response body and must close it, which also releases the timeout.
func (c *Client) do(ctx context.Context, r *request) (*http.Response, error) {
	url := c.baseURL + r.path
	if r.rawQuery != "" {
		url += "?" + r.rawQuery
	}

	timeout := r.timeout
	if timeout <= 0 {
		timeout = TimeoutDefault
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)

	req, err := c.newRequest(ctx, r, url)
	if err != nil {
		cancel()
		return nil, err
	}

	c.logger.Debug("sending request",
		slog.String("method", r.method),
		slog.String("url", url),
		slog.Duration("timeout", timeout),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		c.logger.Error("request failed",
			slog.String("method", r.method),
			slog.String("url", url),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("sheets: %s %s: %w", r.method, url, err)
	}

	if resp.StatusCode == http.StatusOK {
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}

	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	cancel()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	apiErr := &APIError{
		Method:     r.method,
		URL:        url,
		Header:     redactHeader(sentHeader(req, resp)),
		StatusCode: resp.StatusCode,
		Body:       string(errBody),
		Err:        classifyStatus(resp.StatusCode),
	}

	// 404 is an expected "absent" answer for get-style calls.
	if resp.StatusCode != http.StatusNotFound {
		c.logger.Error("API error",
			slog.String("method", r.method),
			slog.String("url", url),
			slog.Int("status", resp.StatusCode),
			slog.String("body", apiErr.Body),
		)
	}

	return nil, apiErr
}

func (c *Client) newRequest(ctx context.Context, r *request, url string) (*http.Request, error) {
	body := r.body
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, r.method, url, body)
	if err != nil {
		return nil, fmt.Errorf("sheets: creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	if r.accept != "" {
		req.Header.Set("Accept", r.accept)
	}

	if r.disposition != "" {
		req.Header.Set("Content-Disposition", r.disposition)
	}

	if r.length > 0 {
		req.ContentLength = r.length
	}

	return req, nil
}

// doJSON executes r and decodes a 200 response body into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, r *request, out any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("sheets: decoding %s %s response: %w", r.method, r.path, err)
	}

	return nil
}

// jsonRequest builds a request whose body is v encoded as JSON.
func jsonRequest(method, path string, v any) (*request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("sheets: marshaling %s %s body: %w", method, path, err)
	}

	return &request{
		method:      method,
		path:        path,
		body:        bytes.NewReader(data),
		contentType: contentTypeJSON,
	}, nil
}

// cancelOnClose releases the per-request timeout once the caller is done
// reading the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()

	return err
}

// sentHeader returns the headers that went on the wire. The oauth2
// transport adds Authorization to a clone of req, which the response keeps.
func sentHeader(req *http.Request, resp *http.Response) http.Header {
	if resp.Request != nil {
		return resp.Request.Header
	}

	return req.Header
}

// Package session logs in to the service under test and provides the
// authenticated client every other component calls through.
package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// MaxBodySize bounds how much of a response body is read (1MB)
const MaxBodySize int64 = 1024 * 1024

// Request is one call relative to the base URL
type Request struct {
	Method string
	Path   string
	Header http.Header
	Query  url.Values
}

// Response is a fully read response
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// ContentType returns the response Content-Type header
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Client issues authenticated calls
type Client interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// HTTPClient is a Client backed by net/http with a cookie jar holding the session
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for baseURL with its own cookie jar
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout, Jar: jar},
	}, nil
}

// Do executes req and reads the body up to MaxBodySize
func (c *HTTPClient) Do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return c.send(httpReq)
}

func (c *HTTPClient) buildRequest(ctx context.Context, req Request, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for key, values := range req.Query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	return httpReq, nil
}

func (c *HTTPClient) send(httpReq *http.Request) (*Response, error) {
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

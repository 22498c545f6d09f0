// Package backend is the REST collaborator behind the dispatcher: list, get,
// create, update and delete against resource URIs.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"

	"go-insights-pipeline/internal/model"
)

// Backend is the RPC contract the dispatcher consumes
type Backend interface {
	List(ctx context.Context, uri string, filters model.Filters, query url.Values) (model.ListResult, error)
	Get(ctx context.Context, uri, id string, query url.Values) (model.Record, error)
	Create(ctx context.Context, uri string, body interface{}) (model.Record, error)
	Update(ctx context.Context, uri, id string, body interface{}) (model.Record, error)
	Delete(ctx context.Context, uri, id string) error
}

// APIError is a non-2xx answer from the backend
type APIError struct {
	StatusCode int
	URI        string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP %d: %s", e.URI, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: HTTP %d", e.URI, e.StatusCode)
}

// DecodeError is a 2xx answer whose body could not be decoded
type DecodeError struct {
	URI string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("%s: decode response: %v", e.URI, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status carried by err, 0 for transport errors
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Options configures a Client
type Options struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	DialTimeout time.Duration
	// Routes maps a resource URI to a path when they differ, e.g.
	// "jira_tickets" -> "v1/jira_issues".
	Routes map[string]string
	Retry  model.RetryConfig
	Logger *zap.Logger
}

// Client implements Backend over HTTP with JSON bodies
type Client struct {
	client  *client.Client
	baseURL string
	token   string
	timeout time.Duration
	routes  map[string]string
	retry   RetryPolicy
	log     *zap.Logger
}

// NewClient creates a backend client
func NewClient(opts Options) (*Client, error) {
	base, err := normalizeBaseURL(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}

	c, err := client.NewClient(
		client.WithDialTimeout(dialTimeout),
		client.WithMaxIdleConnDuration(60*time.Second),
		client.WithDialer(standard.NewDialer()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		client:  c,
		baseURL: base,
		token:   opts.Token,
		timeout: opts.Timeout,
		routes:  opts.Routes,
		retry:   NewRetryPolicy(opts.Retry),
		log:     log.Named("backend"),
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("empty base URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("cannot parse %q", raw)
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

// Path returns the URL path segment for a resource URI
func (c *Client) Path(uri string) string {
	if p, ok := c.routes[uri]; ok {
		return strings.Trim(p, "/")
	}
	return strings.Trim(uri, "/")
}

// List implements Backend
func (c *Client) List(ctx context.Context, uri string, filters model.Filters, query url.Values) (model.ListResult, error) {
	if filters == nil {
		filters = model.Filters{}
	}
	var raw map[string]interface{}
	if err := c.call(ctx, consts.MethodPost, uri, c.Path(uri)+"/list", query, filters, &raw); err != nil {
		return model.ListResult{}, err
	}
	return model.ListResultFrom(raw), nil
}

// Get implements Backend
func (c *Client) Get(ctx context.Context, uri, id string, query url.Values) (model.Record, error) {
	var raw map[string]interface{}
	if err := c.call(ctx, consts.MethodGet, uri, c.Path(uri)+"/"+url.PathEscape(id), query, nil, &raw); err != nil {
		return nil, err
	}
	return model.Record(raw), nil
}

// Create implements Backend
func (c *Client) Create(ctx context.Context, uri string, body interface{}) (model.Record, error) {
	var raw map[string]interface{}
	if err := c.call(ctx, consts.MethodPost, uri, c.Path(uri), nil, body, &raw); err != nil {
		return nil, err
	}
	return model.Record(raw), nil
}

// Update implements Backend
func (c *Client) Update(ctx context.Context, uri, id string, body interface{}) (model.Record, error) {
	var raw map[string]interface{}
	if err := c.call(ctx, consts.MethodPut, uri, c.Path(uri)+"/"+url.PathEscape(id), nil, body, &raw); err != nil {
		return nil, err
	}
	return model.Record(raw), nil
}

// Delete implements Backend
func (c *Client) Delete(ctx context.Context, uri, id string) error {
	return c.call(ctx, consts.MethodDelete, uri, c.Path(uri)+"/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) call(ctx context.Context, method, uri, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + "/" + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		b, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = b
	}

	start := time.Now()
	err := c.retry.Do(ctx, func() error {
		return c.do(ctx, method, uri, target, payload, out)
	})
	c.log.Debug("backend call",
		zap.String("method", method),
		zap.String("uri", uri),
		zap.Duration("took", time.Since(start)),
		zap.Error(err))
	return err
}

func (c *Client) do(ctx context.Context, method, uri, target string, payload []byte, out interface{}) error {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer func() {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
	}()

	req.SetMethod(method)
	req.SetRequestURI(target)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil {
		req.Header.SetContentTypeBytes([]byte("application/json"))
		req.SetBody(payload)
	}

	var err error
	if c.timeout > 0 {
		err = c.client.DoTimeout(ctx, req, resp, c.timeout)
	} else {
		err = c.client.Do(ctx, req, resp)
	}
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", uri, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return &APIError{StatusCode: status, URI: uri, Message: errorMessage(resp.Body())}
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(resp.Body(), out); err != nil {
		return &DecodeError{URI: uri, Err: err}
	}
	return nil
}

// errorMessage pulls a human readable message out of an error body
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := sonic.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

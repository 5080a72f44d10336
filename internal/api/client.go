// Package api is the shared HTTP client for the marketplace REST API. Every
// service goes through one Client so that the default Authorization header and
// the response interceptors apply to all calls.
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
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/alanjade/growthctl/internal/logging"
	"github.com/alanjade/growthctl/internal/metrics"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

// Response describes a received HTTP response as seen by interceptors.
// CallerHandled is set for requests sent with a context from CallerHandles.
type Response struct {
	Method        string
	Path          string
	Status        int
	CallerHandled bool
}

type callerHandledKey struct{}

// CallerHandles marks requests made with the returned context as ones whose
// failures the caller deals with itself. Interceptors still see them, with
// Response.CallerHandled set.
func CallerHandles(ctx context.Context) context.Context {
	return context.WithValue(ctx, callerHandledKey{}, true)
}

func callerHandled(ctx context.Context) bool {
	v, _ := ctx.Value(callerHandledKey{}).(bool)
	return v
}

// ResponseInterceptor observes every response that was received. Network
// failures never reach interceptors.
type ResponseInterceptor func(Response)

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter

	mu           sync.RWMutex
	headers      http.Header
	interceptors map[string]ResponseInterceptor
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithRateLimit throttles outgoing requests. rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New returns a client for baseURL, e.g. "http://localhost:8000/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:         &http.Client{},
		headers:      make(http.Header),
		interceptors: make(map[string]ResponseInterceptor),
	}
	c.headers.Set("Accept", "application/json")
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the API root every path is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// SetDefaultHeader sets a header sent with every request. Last write wins.
func (c *Client) SetDefaultHeader(key, value string) {
	c.mu.Lock()
	c.headers.Set(key, value)
	c.mu.Unlock()
}

// DelDefaultHeader removes a default header. Removing a missing header is a no-op.
func (c *Client) DelDefaultHeader(key string) {
	c.mu.Lock()
	c.headers.Del(key)
	c.mu.Unlock()
}

// DefaultHeader returns the current value of a default header.
func (c *Client) DefaultHeader(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headers.Get(key)
}

// SetResponseInterceptor installs fn under name, replacing whatever was
// installed under the same name before.
func (c *Client) SetResponseInterceptor(name string, fn ResponseInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.interceptors, name)
		return
	}
	c.interceptors[name] = fn
}

// RemoveResponseInterceptor uninstalls the interceptor registered under name.
func (c *Client) RemoveResponseInterceptor(name string) {
	c.SetResponseInterceptor(name, nil)
}

// Interceptors returns the installed interceptor names in sorted order.
func (c *Client) Interceptors() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.interceptors))
	for name := range c.interceptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Do sends body as JSON (when non-nil) and decodes a successful response into
// out (when non-nil). Non-2xx responses come back as *Error.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var (
		r           io.Reader
		contentType string
	)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		r = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, contentType, r, out)
}

// FormFile is a file part of a multipart request.
type FormFile struct {
	Field    string
	Filename string
	Content  io.Reader
}

// PostMultipart sends fields and files as multipart/form-data. Fields are
// written in the order given; some backends depend on it for nested keys.
func (c *Client) PostMultipart(ctx context.Context, path string, fields [][2]string, files []FormFile, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return fmt.Errorf("create file part %s: %w", f.Filename, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("copy file %s: %w", f.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}
	return c.send(ctx, http.MethodPost, path, w.FormDataContentType(), &buf, out)
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

func (c *Client) send(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit %s %s: %w", method, path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	c.mu.RLock()
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	c.mu.RUnlock()
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	log := logging.Get().With().Str("method", method).Str("path", path).Str("request_id", reqID).Logger()
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRequest(method, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Debug().Err(err).Msg("request failed without response")
		return &Error{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.ObserveRequest(method, resp.StatusCode, time.Since(start))
	log.Debug().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("api response")

	c.intercept(Response{Method: method, Path: path, Status: resp.StatusCode, CallerHandled: callerHandled(ctx)})

	if err != nil {
		return &Error{Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(method, path, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) intercept(r Response) {
	c.mu.RLock()
	fns := make([]ResponseInterceptor, 0, len(c.interceptors))
	names := make([]string, 0, len(c.interceptors))
	for name := range c.interceptors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fns = append(fns, c.interceptors[name])
	}
	c.mu.RUnlock()

	// interceptors may touch default headers, so run them unlocked
	for _, fn := range fns {
		fn(r)
	}
}

// PathEscape escapes one path segment such as an ID.
func PathEscape(s string) string { return url.PathEscape(s) }

// IsCanceled reports whether err came from a cancelled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

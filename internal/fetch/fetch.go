// Package fetch retrieves remote assets over HTTP and decodes inline data
// URLs. The artifact builder uses it for previously published photos and the
// provider adapter for published cv-data.json snapshots.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultTimeout bounds a request when Options.Timeout is zero.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent identifies the publisher to asset hosts.
	DefaultUserAgent = "Mozilla/5.0 (compatible; CVPublisher/1.0)"
	// DefaultMaxBytes caps a single download.
	DefaultMaxBytes = 10 << 20
)

// Result is a downloaded body with its response metadata.
type Result struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
}

// Error reports why a download of URL failed.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Options tunes a download. Zero fields fall back to the package defaults.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	MaxBytes  int64
	// Client replaces the HTTP client, e.g. an httptest TLS client.
	Client *http.Client
}

// DefaultOptions returns Options with every default filled in.
func DefaultOptions() *Options {
	return &Options{Timeout: DefaultTimeout, UserAgent: DefaultUserAgent, MaxBytes: DefaultMaxBytes}
}

func (o *Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (o *Options) limit() int64 {
	if o.MaxBytes > 0 {
		return o.MaxBytes
	}
	return DefaultMaxBytes
}

// URL downloads an absolute http(s) URL. A non-200 status yields both the
// result and an *Error so callers can inspect the status code.
func URL(ctx context.Context, rawURL string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	fail := func(msg string, cause error) error {
		return &Error{URL: rawURL, Message: msg, Cause: cause}
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fail("invalid URL", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fail("failed to create request", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := opts.client().Do(req)
	if err != nil {
		return nil, fail("HTTP request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	limit := opts.limit()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fail("failed to read response body", err)
	}
	if int64(len(body)) > limit {
		return nil, fail(fmt.Sprintf("response exceeds %d bytes", limit), nil)
	}

	res := &Result{URL: rawURL, Body: body, ContentType: resp.Header.Get("Content-Type"), StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		return res, fail(fmt.Sprintf("HTTP status %d", resp.StatusCode), nil)
	}
	return res, nil
}

// JSON downloads rawURL and decodes the body into v.
func JSON(ctx context.Context, rawURL string, v any, opts *Options) error {
	res, err := URL(ctx, rawURL, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res.Body, v); err != nil {
		return &Error{URL: rawURL, Message: "invalid JSON", Cause: err}
	}
	return nil
}

// Package httpclient wraps net/http with the cookie-bound session and
// 503-only retry-with-backoff the booking site requires. It does not
// interpret response bodies; parsing is the caller's concern.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	maxRetries = 3 // retries after the initial attempt; 4 attempts total
)

// ErrServiceUnavailable is returned when every attempt was met with a 503.
var ErrServiceUnavailable = fmt.Errorf("httpclient: service unavailable after retries")

// ErrForbidden signals the remote rejected the request outright, usually
// because a mandatory header was missing.
type ErrForbidden struct {
	URL string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("httpclient: 403 forbidden for %s (missing User-Agent or Referer?)", e.URL)
}

// ErrUnexpectedStatus is returned for any non-503, non-403, non-2xx status.
type ErrUnexpectedStatus struct {
	URL    string
	Status int
}

func (e *ErrUnexpectedStatus) Error() string {
	return fmt.Sprintf("httpclient: unexpected status %d for %s", e.Status, e.URL)
}

// Client is a cookie-bound session shared across every scrape the tracker
// performs; its jar is deliberately shared so cookies reduce interrogation
// overhead across concurrent trackers.
type Client struct {
	http    *http.Client
	baseURL string
}

// New creates a Client whose cookie jar persists across requests to the
// same host for the lifetime of the process.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create cookie jar: %w", err)
	}
	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// PostForm POSTs an application/x-www-form-urlencoded body to path (relative
// to the base URL) and returns the raw response body as text.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (string, error) {
	return c.doWithRetry(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		c.setCommonHeaders(req)
		return c.http.Do(req)
	})
}

// Get performs a GET against path with the given query parameters and
// returns the raw response body as text.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (string, error) {
	return c.doWithRetry(ctx, func(ctx context.Context) (*http.Response, error) {
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		c.setCommonHeaders(req)
		return c.http.Do(req)
	})
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", c.baseURL+"/")
}

// doWithRetry retries only on HTTP 503, waiting 2^n seconds before attempts
// 2, 3 and 4 (n = 0, 1, 2); all other statuses and transport errors fail
// fast.
func (c *Client) doWithRetry(ctx context.Context, do func(context.Context) (*http.Response, error)) (string, error) {
	var body string
	backoff := &powersOfTwoBackoff{}

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := do(ctx)
		if err != nil {
			return err // transport failure: fail fast, not retryable
		}
		defer func() { _ = resp.Body.Close() }()

		switch resp.StatusCode {
		case http.StatusServiceUnavailable:
			return retry.RetryableError(ErrServiceUnavailable)
		case http.StatusForbidden:
			return &ErrForbidden{URL: resp.Request.URL.String()}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &ErrUnexpectedStatus{URL: resp.Request.URL.String(), Status: resp.StatusCode}
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("httpclient: read body: %w", err)
		}
		body = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

// powersOfTwoBackoff yields 1s, 2s, 4s (2^0, 2^1, 2^2) for up to three
// retries, then stops -- the 503 backoff contract from the spec.
type powersOfTwoBackoff struct {
	n int
}

func (b *powersOfTwoBackoff) Next() (time.Duration, bool) {
	if b.n >= maxRetries {
		return 0, true
	}
	delay := time.Duration(1<<b.n) * time.Second
	b.n++
	return delay, false
}

// Package httpds downloads source spreadsheets over HTTP. Government
// download endpoints sometimes refuse non-browser clients, so every request
// carries a browser User-Agent unless the caller overrides it.
package httpds

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"oif/internal/oiferr"
)

// DefaultUserAgent is sent when neither Config.UserAgent nor the request
// headers set one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/95.0.4638.69 Safari/537.36 Edg/95.0.1020.44"

// Config tunes a Client. Zero durations fall back to 60s per request, a
// 200ms first wait and a 5s wait cap.
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	// FirstWait doubles after every failed attempt, up to MaxWait.
	FirstWait time.Duration
	MaxWait   time.Duration
	UserAgent string
	Transport http.RoundTripper
}

// Client issues GET requests and retries the ones that fail transiently:
// transport errors, 429 and 5xx.
type Client struct {
	hc        *http.Client
	retries   int
	firstWait time.Duration
	maxWait   time.Duration
	userAgent string

	// wait blocks between attempts; tests replace it.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient applies defaults to cfg and returns a ready Client.
func NewClient(cfg Config) *Client {
	c := &Client{
		hc:        &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		retries:   max(cfg.MaxRetries, 0),
		firstWait: cfg.FirstWait,
		maxWait:   cfg.MaxWait,
		userAgent: cfg.UserAgent,
		wait:      waitCtx,
	}
	if c.hc.Timeout <= 0 {
		c.hc.Timeout = time.Minute
	}
	if c.firstWait <= 0 {
		c.firstWait = 200 * time.Millisecond
	}
	if c.maxWait <= 0 {
		c.maxWait = 5 * time.Second
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	return c
}

// Get fetches url. A response whose status is not retried is returned as
// is and the caller closes its body; once retries run out the last
// failure is returned.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	if url == "" {
		return nil, fmt.Errorf("httpds: empty url")
	}
	var lastErr error
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("httpds: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		for k, vs := range headers {
			req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
		}

		delay := c.backoff(attempt)
		resp, err := c.hc.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case !transient(resp.StatusCode):
			return resp, nil
		default:
			if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				delay = min(d, c.maxWait)
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("httpds: GET %s: status %d", url, resp.StatusCode)
		}

		if attempt >= c.retries {
			return nil, lastErr
		}
		log.Printf("httpds: retry url=%s attempt=%d wait=%s err=%v", url, attempt+1, delay, lastErr)
		if err := c.wait(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// Fetch returns the whole body of url. Any failure, including a final
// non-2xx status, is an ExternalIO error.
func (c *Client) Fetch(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	resp, err := c.Get(ctx, url, headers)
	if err != nil {
		return nil, oiferr.IO("fetch "+url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, oiferr.IO("fetch "+url, fmt.Errorf("status %s", resp.Status))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, oiferr.IO("fetch "+url, err)
	}
	return b, nil
}

// Source is a URL seen as a datasource.Source.
type Source struct {
	Client  *Client
	URL     string
	Headers http.Header
}

// Open streams the body of a 2xx response.
func (s Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.Client.Get(ctx, s.URL, s.Headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return nil, fmt.Errorf("httpds: GET %s: status %s", s.URL, resp.Status)
	}
	return resp.Body, nil
}

// backoff is firstWait doubled per attempt, capped at maxWait.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.firstWait
	for i := 0; i < attempt && d < c.maxWait; i++ {
		d *= 2
	}
	return min(d, c.maxWait)
}

func transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

func waitCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrRemoteUnavailable wraps transient HTTP failures after retries are
// exhausted. It never advances the ingestion marker; the next poll retries.
var ErrRemoteUnavailable = errors.New("remote source unavailable")

// Client downloads register pages and snapshot files, retrying transient
// failures with capped exponential backoff.
type Client struct {
	http        *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

func WithMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

func WithBackoff(base, ceiling time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseDelay = base
		}
		if ceiling > 0 {
			c.maxDelay = ceiling
		}
	}
}

func NewClient(opts ...Option) *Client {
	client := &Client{
		http:        &http.Client{Timeout: 30 * time.Second},
		maxAttempts: 4,
		baseDelay:   time.Second,
		maxDelay:    time.Minute,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Get fetches a URL, retrying on network errors and 5xx responses.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	delay := c.baseDelay

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, err := c.getOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if attempt < c.maxAttempts {
			log.Printf("[fetch] attempt %d/%d for %s failed: %v, retrying in %s", attempt, c.maxAttempts, url, err, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrRemoteUnavailable, url, lastErr)
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

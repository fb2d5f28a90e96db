// Package fetch retrieves webpage HTML with browser-mimicking headers and a
// hard response size cap.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxBodySize caps HTML downloads to keep untrusted URLs from causing
// OOM.
const DefaultMaxBodySize = 10 * 1024 * 1024

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Client fetches pages.
type Client struct {
	HTTP        *http.Client
	MaxBodySize int64
	UserAgent   string
}

// New returns a client with a 30s timeout and the default size cap.
func New() *Client {
	return &Client{
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		MaxBodySize: DefaultMaxBodySize,
		UserAgent:   defaultUserAgent,
	}
}

// Get downloads pageURL and returns the raw HTML. Some origins block
// obviously non-browser clients, so the request mimics one.
func (c *Client) Get(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	max := c.MaxBodySize
	if max <= 0 {
		max = DefaultMaxBodySize
	}
	if resp.ContentLength > max {
		return nil, fmt.Errorf("fetch %s: content length %d exceeds limit of %d bytes", pageURL, resp.ContentLength, max)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, max))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) >= max {
		return nil, fmt.Errorf("fetch %s: body exceeded limit of %d bytes", pageURL, max)
	}
	return body, nil
}

// Package dexscreener fetches trading-history pages for one pair from
// the dexscreener feed. It is the only component that talks to the
// upstream feed; the ingestion loop consumes it through an interface.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/theimperious1/VaporAnalyzer/internal/domain"
)

// browserHeaders mimics the headers a browser sends to the feed; the
// endpoint rejects bare clients.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; rv:91.0) Gecko/20100101 Firefox/91.0",
	"Origin":          "https://dexscreener.com",
	"DNT":             "1",
	"Accept-Language": "en-US,en;q=0.5",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Connection":      "close",
}

// APIError represents a non-2xx response from the feed.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dexscreener api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsRetryable reports whether the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client fetches trading-history pages for a single pair.
type Client struct {
	baseURL    string
	chain      string
	pair       string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a feed client for one pair.
//
// baseURL is the feed host, e.g. "https://io.dexscreener.com"; chain
// and pair identify the pool, e.g. "avalanche" and the pair contract
// address.
func NewClient(baseURL, chain, pair string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		chain:   chain,
		pair:    pair,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// page is the wire envelope of one trading-history response.
type page struct {
	TradingHistory []domain.RawTrade `json:"tradingHistory"`
}

// FetchPage returns the raw trades strictly older than the given unix
// millisecond timestamp, in feed order (newest first). Transport and
// HTTP failures come back as-is or as *APIError; a body that does not
// decode into a page wraps domain.ErrMalformedPage.
func (c *Client) FetchPage(ctx context.Context, before int64) ([]domain.RawTrade, error) {
	url := fmt.Sprintf("%s/u/trading-history/recent/%s/%s?tb=%s",
		c.baseURL, c.chain, c.pair, strconv.FormatInt(before, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: create request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: fetch page before %d: %w", before, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: read page body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}

	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("dexscreener: decode page (%v): %w", err, domain.ErrMalformedPage)
	}

	return p.TradingHistory, nil
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"fashionetl/internal/metrics"
)

// ErrNoContent is returned by Fetch when a page could not be retrieved.
var ErrNoContent = errors.New("scraper: no content")

// Fetcher performs one GET per page with a fixed browser User-Agent.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	job       string
}

// NewFetcher creates a Fetcher. If client is nil, http.DefaultClient is used.
// An empty userAgent falls back to DefaultUserAgent. timeout <= 0 means the
// request is bounded only by ctx and the client.
func NewFetcher(client *http.Client, userAgent string, timeout time.Duration) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		job:       "scrape",
	}
}

// DefaultUserAgent is a desktop Chrome string; the site rejects bare clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36"

// Fetch returns the raw body of url.
//
// Transport errors and non-2xx responses are logged and returned wrapped in
// ErrNoContent. There is no retry.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := f.fetch(ctx, url)
	if err != nil {
		log.Printf("scrape: request to %s failed: %v", url, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrNoContent, url, err)
	}
	return body, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		metrics.RecordHTTP(f.job, 0, err, time.Since(start), -1)
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.RecordHTTP(f.job, resp.StatusCode, nil, time.Since(start), int64(len(snippet)))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	b, err := io.ReadAll(resp.Body)
	metrics.RecordHTTP(f.job, resp.StatusCode, err, time.Since(start), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

// Package crawler fetches IRD pages and publications over HTTP. Requests are
// rate limited so ingestion stays polite to the source sites.
package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/infrastructure/resilience"
)

const userAgent = "nz-tax-assistant/0.1 (educational tax research tool)"

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	// RequestsPerSecond caps the crawl rate. Defaults to 1.
	RequestsPerSecond  float64
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(options Options) *Client {
	rps := options.RequestsPerSecond
	if rps <= 0 {
		rps = 1.0
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		executor:   options.ResilienceExecutor,
	}
}

// Fetch downloads one URL and hashes its payload. Redirects are followed, so
// the result keeps the URL that was asked for, not where it landed. Jobs
// arrive at most once, so transient upstream failures retry here instead of
// relying on redelivery.
func (c *Client) Fetch(ctx context.Context, url string) (*domain.CrawlResult, error) {
	var result *domain.CrawlResult
	call := func(ctx context.Context) error {
		fetched, err := c.fetchOnce(ctx, url)
		if err != nil {
			return err
		}
		result = fetched
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "crawl.fetch", call, classifyFetchError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fetchOnce takes a rate-limit slot per attempt, retries included.
func (c *Client) fetchOnce(ctx context.Context, url string) (*domain.CrawlResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("crawl rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create crawl request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf")
	req.Header.Set("Accept-Language", "en-NZ,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		statusErr := fmt.Errorf("fetch %s: status %s", url, resp.Status)
		if isRetryableStatus(resp.StatusCode) {
			return nil, domain.WrapError(domain.ErrTemporary, "fetch document", statusErr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	sum := sha256.Sum256(body)
	result := &domain.CrawlResult{
		URL:         url,
		RawBytes:    body,
		ContentType: detectContentType(resp.Header.Get("Content-Type"), url),
		ContentHash: hex.EncodeToString(sum[:]),
		StatusCode:  resp.StatusCode,
		CrawledAt:   time.Now().UTC(),
	}
	if result.ContentType != domain.ContentPDF {
		result.HTML = string(body)
	}
	return result, nil
}

func detectContentType(header, url string) domain.ContentType {
	if strings.Contains(header, "application/pdf") {
		return domain.ContentPDF
	}
	if strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return domain.ContentPDF
	}
	return domain.ContentHTML
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

package scryfall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.scryfall.com"

	defaultUserAgent = "card-catalog/1.0"
	rateLimitDelay   = 100 * time.Millisecond // 100ms between requests (10 req/sec)
	requestTimeout   = 30 * time.Second
	maxRetries       = 3
	initialBackoff   = 1 * time.Second
	maxBackoff       = 16 * time.Second
)

// ClientOptions configures a Client. Zero values fall back to the defaults.
type ClientOptions struct {
	BaseURL        string
	UserAgent      string
	RateLimit      time.Duration // minimum spacing between requests
	Timeout        time.Duration // per-request timeout, 0 disables it for downloads
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultClientOptions returns the options used by NewClient.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		BaseURL:        DefaultBaseURL,
		UserAgent:      defaultUserAgent,
		RateLimit:      rateLimitDelay,
		Timeout:        requestTimeout,
		MaxRetries:     maxRetries,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
	}
}

// Client represents a Scryfall API client with rate limiting.
type Client struct {
	http        *resty.Client
	download    *resty.Client
	rateLimiter *rate.Limiter
	userAgent   string
}

// NewClient creates a new Scryfall API client with default options.
func NewClient() *Client {
	return NewClientWithOptions(DefaultClientOptions())
}

// NewClientWithOptions creates a Scryfall API client.
func NewClientWithOptions(opts ClientOptions) *Client {
	defaults := DefaultClientOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaults.RateLimit
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaults.InitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}

	c := &Client{
		// Rate limiter: 1 request per RateLimit interval
		rateLimiter: rate.NewLimiter(rate.Every(opts.RateLimit), 1),
		userAgent:   opts.UserAgent,
	}

	c.http = c.newResty(opts).SetTimeout(opts.Timeout)
	// Bulk files are hundreds of megabytes; only the context bounds a download.
	c.download = c.newResty(opts)

	return c
}

func (c *Client) newResty(opts ClientOptions) *resty.Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(opts.InitialBackoff).
		SetRetryMaxWaitTime(opts.MaxBackoff).
		AddRetryCondition(shouldRetry)

	// Every attempt, retries included, waits for the shared limiter.
	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if err := c.rateLimiter.Wait(r.Context()); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}
		return nil
	})

	return rc
}

// shouldRetry retries network errors, rate limiting and server errors.
func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// GetBulkData retrieves the list of all bulk data files.
func (c *Client) GetBulkData(ctx context.Context) (*BulkDataList, error) {
	var bulkData BulkDataList
	if err := c.getJSON(ctx, "/bulk-data", &bulkData); err != nil {
		return nil, fmt.Errorf("failed to get bulk data: %w", err)
	}

	return &bulkData, nil
}

// GetBulkDataByType retrieves the metadata of a single bulk data file,
// e.g. "default_cards". The returned DownloadURI points at the bulk document.
func (c *Client) GetBulkDataByType(ctx context.Context, bulkType string) (*BulkData, error) {
	var bulkData BulkData
	if err := c.getJSON(ctx, "/bulk-data/"+bulkType, &bulkData); err != nil {
		return nil, fmt.Errorf("failed to get bulk data %s: %w", bulkType, err)
	}

	return &bulkData, nil
}

// Download streams the document at url into w and returns the number of
// bytes written. url may be absolute (bulk downloads live on a separate host).
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	resp, err := c.download.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to download file: %w", err)
	}

	body := resp.RawBody()
	if body == nil {
		return 0, fmt.Errorf("failed to download file: empty response body")
	}
	defer func() { _ = body.Close() }()

	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	written, err := io.Copy(w, body)
	if err != nil {
		return written, fmt.Errorf("failed to write file: %w", err)
	}

	return written, nil
}

// getJSON performs a GET request with rate limiting and retry logic and
// decodes the JSON body into result.
func (c *Client) getJSON(ctx context.Context, path string, result interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&APIError{}).
		ForceContentType("application/json").
		Get(path)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return &NotFoundError{URL: resp.Request.URL}

	case resp.StatusCode() == http.StatusTooManyRequests:
		return fmt.Errorf("max retries exceeded: rate limited (HTTP 429)")

	case resp.IsError():
		if apiErr, ok := resp.Error().(*APIError); ok && (apiErr.Details != "" || apiErr.Code != "") {
			if apiErr.Status == 0 {
				apiErr.Status = resp.StatusCode()
			}
			return apiErr
		}
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

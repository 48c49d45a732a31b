// internal/engine/static/fetcher.go
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/law-makers/pagefetch/internal/ratelimit"
	"github.com/law-makers/pagefetch/internal/retry"
	"github.com/law-makers/pagefetch/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

const (
	// DefaultTimeout bounds a single HTTP attempt
	DefaultTimeout = 15 * time.Second
	// DefaultUserAgent is sent when no user agent is configured
	DefaultUserAgent = "Mozilla/5.0"
	// MaxBodyBytes caps how much of a response body is read
	MaxBodyBytes = 10 << 20
)

// ErrNotStarted is returned by Fetch when the fetcher has been closed
var ErrNotStarted = errors.New("static fetcher is closed")

// Options configures a Fetcher
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	Proxy      string
	Retries    int
	RetryDelay time.Duration
	Headers    map[string]string
	Cookies    []models.Cookie
	Limiter    ratelimit.Limiter
}

// Response is the raw outcome of a successful static fetch
type Response struct {
	HTML       string
	StatusCode int
	FinalURL   string
}

// Fetcher performs plain HTTP GETs with redirects, proxy support and retry.
// It does not execute page scripts.
type Fetcher struct {
	opts   Options
	retry  retry.Config
	mu     sync.Mutex
	client *http.Client
	closed bool
}

// New creates a Fetcher. The HTTP client is created lazily by Start or the
// first Fetch.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = DefaultUserAgent
	}
	opts.Proxy = strings.TrimSpace(opts.Proxy)
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = retry.DefaultDelay
	}

	return &Fetcher{
		opts:  opts,
		retry: retry.Config{Retries: opts.Retries, Delay: opts.RetryDelay},
	}
}

// Name returns the name of this fetcher
func (f *Fetcher) Name() string {
	return "StaticFetcher"
}

// Start builds the underlying HTTP client. Calling it again is a no-op.
func (f *Fetcher) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = false
	if f.client != nil {
		return nil
	}

	client, err := f.newClient()
	if err != nil {
		return err
	}
	f.client = client

	log.Debug().
		Dur("timeout", f.opts.Timeout).
		Bool("proxy", f.opts.Proxy != "").
		Int("retries", f.opts.Retries).
		Msg("Static HTTP client initialized")
	return nil
}

// Close releases idle connections. Calling it again is a no-op.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		f.client.CloseIdleConnections()
		f.client = nil
	}
	f.closed = true
}

func (f *Fetcher) newClient() (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if f.opts.Proxy != "" {
		proxyURL, err := url.Parse(f.opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   f.opts.Timeout,
		Jar:       jar,
	}, nil
}

func (f *Fetcher) httpClient() (*http.Client, error) {
	f.mu.Lock()
	closed := f.closed
	client := f.client
	f.mu.Unlock()

	if closed {
		return nil, ErrNotStarted
	}
	if client != nil {
		return client, nil
	}
	if err := f.Start(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.client, nil
}

// Fetch retrieves rawURL. Transport failures are retried up to the configured
// count; any HTTP response, whatever its status, is returned as-is.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := f.httpClient()
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("url", rawURL).
		Str("fetcher", f.Name()).
		Msg("Starting fetch")

	start := time.Now()
	var resp *Response

	err = retry.Do(ctx, f.retry, func(attempt int) error {
		if f.opts.Limiter != nil {
			if err := f.opts.Limiter.Wait(ctx, rawURL); err != nil {
				return retry.Permanent(fmt.Errorf("rate limit wait: %w", err))
			}
		}

		r, err := f.do(ctx, client, rawURL)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt+1).Str("url", rawURL).Msg("Static attempt failed")
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			err = exhausted.Last
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	log.Debug().
		Str("url", rawURL).
		Str("final_url", resp.FinalURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(resp.HTML)).
		Dur("elapsed", time.Since(start)).
		Msg("Fetch completed")

	return resp, nil
}

func (f *Fetcher) do(ctx context.Context, client *http.Client, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for key, value := range f.opts.Headers {
		req.Header.Set(key, value)
	}
	for _, c := range f.opts.Cookies {
		if cookieApplies(c, req.URL) {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := readBody(res)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		HTML:       body,
		StatusCode: res.StatusCode,
		FinalURL:   res.Request.URL.String(),
	}, nil
}

// readBody reads up to MaxBodyBytes and decodes it to UTF-8 using the
// Content-Type charset or the document's meta declaration.
func readBody(res *http.Response) (string, error) {
	limited := io.LimitReader(res.Body, MaxBodyBytes)

	reader, err := charset.NewReader(limited, res.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// cookieApplies reports whether a configured cookie should be sent to u.
// Cookies without a domain are sent everywhere.
func cookieApplies(c models.Cookie, u *url.URL) bool {
	if c.Name == "" {
		return false
	}
	domain := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
	if domain == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	return host == domain || strings.HasSuffix(host, "."+domain)
}

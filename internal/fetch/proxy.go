package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	DefaultProxyURL     = "http://api.scraperapi.com"
	DefaultProxyTimeout = 60 * time.Second
)

type ProxyOptions struct {
	APIKey      string
	BaseURL     string
	CountryCode string
	Render      bool
	Timeout     time.Duration
	UserAgent   string
}

func DefaultProxyOptions() ProxyOptions {
	return ProxyOptions{
		BaseURL:     DefaultProxyURL,
		CountryCode: "in",
		Timeout:     DefaultProxyTimeout,
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// ProxyFetcher fetches pages through a rendering proxy that takes the target
// URL as a query parameter.
type ProxyFetcher struct {
	opts   ProxyOptions
	logger *slog.Logger
}

func NewProxyFetcher(opts ProxyOptions, logger *slog.Logger) *ProxyFetcher {
	defaults := DefaultProxyOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.CountryCode == "" {
		opts.CountryCode = defaults.CountryCode
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ProxyFetcher{
		opts:   opts,
		logger: logger.With("component", "proxy_fetcher"),
	}
}

func (f *ProxyFetcher) requestURL(target string) (string, error) {
	base, err := url.Parse(f.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid proxy url: %w", err)
	}

	q := base.Query()
	q.Set("api_key", f.opts.APIKey)
	q.Set("url", target)
	q.Set("render", fmt.Sprintf("%t", f.opts.Render))
	q.Set("country_code", f.opts.CountryCode)
	base.RawQuery = q.Encode()

	return base.String(), nil
}

func (f *ProxyFetcher) Fetch(ctx context.Context, target string) (*Page, error) {
	if f.opts.APIKey == "" {
		return nil, fmt.Errorf("%w: set SCRAPER_API_KEY", ErrMissingCredential)
	}

	reqURL, err := f.requestURL(target)
	if err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.UserAgent(f.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.opts.Timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var (
		page      *Page
		status    int
		upstreamE error
	)

	c.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:        target,
			StatusCode: r.StatusCode,
			Body:       r.Body,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		upstreamE = err
	})

	start := time.Now()
	f.logger.Debug("fetching via proxy", "url", target)

	visitErr := c.Visit(reqURL)
	if upstreamE == nil {
		upstreamE = visitErr
	}
	if upstreamE == nil && ctx.Err() != nil {
		upstreamE = ctx.Err()
	}

	if upstreamE != nil {
		classified := Classify(status, upstreamE)
		f.logger.Warn("proxy fetch failed", "url", target, "status", status, "error", classified)
		return nil, classified
	}
	if page == nil {
		return nil, fmt.Errorf("%w: empty response", ErrScrapeFailed)
	}

	f.logger.Info("fetched page", "url", target, "status", page.StatusCode,
		"bytes", len(page.Body), "duration", time.Since(start))

	return page, nil
}

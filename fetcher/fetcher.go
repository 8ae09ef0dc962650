// Package fetcher issues one HTTP GET per (query, site) with browser-like
// headers, a bounded retry loop, and network failure classification.
package fetcher

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/shoohey/furusato-nozei-sales-ai/config"
	"github.com/shoohey/furusato-nozei-sales-ai/sites"
)

const defaultTimeout = 20 * time.Second

// User-Agent pool rotated per request. Best-effort identity rotation
// against trivial bot-signature blocking, not a guarantee of success.
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// Markers that identify an error page reached by redirect. The redirect is
// only treated as a failure when the marker was absent from the original
// request URL.
var errorPageMarkers = []string{"404"}

// SleepFunc pauses for d or returns early with the context's error.
// Injected so retry schedules are testable without real sleeping.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Result is the outcome of one fetch, success or failure. The struct is
// always returned; Err carries the classification for the last attempt.
type Result struct {
	SiteID    string
	SearchURL string
	FinalURL  string
	Body      []byte
	Attempts  int
	Err       error
}

// Fetcher performs classified, retried GETs against site search endpoints.
type Fetcher struct {
	cfg       *config.Config
	transport http.RoundTripper
	sleep     SleepFunc
	randFloat func() float64
}

// New builds a fetcher with the shared pooled transport.
func New(cfg *config.Config) *Fetcher {
	return &Fetcher{
		cfg: cfg,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   defaultTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		sleep:     defaultSleep,
		randFloat: rand.Float64,
	}
}

// WithTransport replaces the HTTP transport. Test hook.
func (f *Fetcher) WithTransport(rt http.RoundTripper) *Fetcher {
	f.transport = rt
	return f
}

// WithSleep replaces the retry sleep. Test hook.
func (f *Fetcher) WithSleep(sleep SleepFunc) *Fetcher {
	f.sleep = sleep
	return f
}

// Fetch retrieves the site's search page for query. On failure it retries
// up to the attempt budget with capped exponential backoff plus jitter,
// and always reports the last attempt's outcome: a success on any attempt
// short-circuits, a terminal failure is never masked by an earlier one.
func (f *Fetcher) Fetch(ctx context.Context, site sites.Descriptor, query string) *Result {
	searchURL := site.SearchURL(query)
	res := &Result{SiteID: site.ID, SearchURL: searchURL, FinalURL: searchURL}

	attempts := f.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := BackoffDelay(f.cfg.RetryBackoff, f.cfg.RetryBackoffMax, attempt-1) + f.jitter()
			if err := f.sleep(ctx, delay); err != nil {
				res.Err = classifyError(err, 0)
				return res
			}
			slog.Debug("retrying site fetch",
				slog.String("site", site.ID),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
		}

		res.Attempts = attempt
		body, finalURL, err := f.fetchOnce(site, searchURL)
		res.Body, res.Err = body, err
		if finalURL != "" {
			res.FinalURL = finalURL
		}
		if err == nil {
			return res
		}
		if ctx.Err() != nil {
			return res
		}
	}
	return res
}

func (f *Fetcher) fetchOnce(site sites.Descriptor, searchURL string) ([]byte, string, error) {
	c := f.newCollector(site)

	var (
		body     []byte
		finalURL string
		status   int
		fetchErr error
		warming  bool
	)

	c.OnRequest(func(r *colly.Request) {
		f.applyHeaders(r.Headers)
	})
	c.OnResponse(func(r *colly.Response) {
		if warming {
			return
		}
		body = r.Body
		status = r.StatusCode
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if warming {
			return
		}
		if r != nil {
			status = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				finalURL = r.Request.URL.String()
			}
		}
		fetchErr = err
	})

	// Optional cookie warm-up for sites that reject cookie-less requests.
	// Failures here are irrelevant; the real request decides the outcome.
	if site.WarmUp && site.BaseURL != "" {
		warming = true
		_ = c.Visit(site.BaseURL)
		warming = false
	}

	if err := c.Visit(searchURL); err != nil && fetchErr == nil {
		fetchErr = err
	}

	if fetchErr != nil {
		return nil, finalURL, classifyError(fetchErr, status)
	}
	if finalURL != "" && redirectedToErrorPage(searchURL, finalURL) {
		return nil, finalURL, ErrRedirect{FinalURL: finalURL}
	}
	return body, finalURL, nil
}

func (f *Fetcher) newCollector(site sites.Descriptor) *colly.Collector {
	c := colly.NewCollector(colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true

	timeout := site.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.SetRequestTimeout(timeout)

	if f.transport != nil {
		c.WithTransport(f.transport)
	}
	return c
}

func (f *Fetcher) applyHeaders(h *http.Header) {
	h.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "ja,en-US;q=0.9,en;q=0.8")
	h.Set("DNT", "1")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
}

func (f *Fetcher) jitter() time.Duration {
	span := f.cfg.JitterMax - f.cfg.JitterMin
	if span <= 0 {
		return f.cfg.JitterMin
	}
	return f.cfg.JitterMin + time.Duration(f.randFloat()*float64(span))
}

// BackoffDelay is the pure retry delay schedule: base doubling per retry,
// capped at max. retry counts from 1 for the delay before the second
// attempt.
func BackoffDelay(base, max time.Duration, retry int) time.Duration {
	if retry <= 0 {
		retry = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<(retry-1))
	if max > 0 && delay > max {
		delay = max
	}
	return delay
}

func redirectedToErrorPage(requestURL, finalURL string) bool {
	for _, marker := range errorPageMarkers {
		if strings.Contains(finalURL, marker) && !strings.Contains(requestURL, marker) {
			return true
		}
	}
	return false
}

// Package engine orchestrates multi-site listing-count measurement: one
// paced, serial pass over the site registry per query, aggregation of the
// per-site outcomes, and fan-out across products. Requests to one site are
// never issued concurrently; pacing is deliberate politeness, not a
// performance concern.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/shoohey/furusato-nozei-sales-ai/config"
	"github.com/shoohey/furusato-nozei-sales-ai/fetcher"
	"github.com/shoohey/furusato-nozei-sales-ai/models"
	"github.com/shoohey/furusato-nozei-sales-ai/sites"
)

// SiteFetcher retrieves one site's search page for a query.
type SiteFetcher interface {
	Fetch(ctx context.Context, site sites.Descriptor, query string) *fetcher.Result
}

// CountExtractor reads a listing count out of a response body.
type CountExtractor interface {
	Count(body []byte, site sites.Descriptor) (*int, error)
}

// Stats is a snapshot of the engine's run counters.
type Stats struct {
	Queries   int64
	Requests  int64
	Errors    int64
	CacheHits int64
}

// Engine measures market saturation for queries across the site registry.
type Engine struct {
	cfg       *config.Config
	registry  *sites.Registry
	fetcher   SiteFetcher
	extractor CountExtractor
	pacer     *Pacer
	cache     *lru.Cache[string, *models.AggregatedResult]
	Metrics   *Metrics

	queryCount   int64
	requestCount int64
	errorCount   int64
	cacheHits    int64
}

// New builds an engine over the given registry, fetcher, and extractor.
func New(cfg *config.Config, registry *sites.Registry, f SiteFetcher, x CountExtractor) (*Engine, error) {
	cache, err := lru.New[string, *models.AggregatedResult](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:       cfg,
		registry:  registry,
		fetcher:   f,
		extractor: x,
		pacer:     NewPacer(cfg.SiteDelay, cfg.JitterMin, cfg.JitterMax),
		cache:     cache,
		Metrics:   NewMetrics(),
	}, nil
}

// WithPacer replaces the pacing policy. Test hook.
func (e *Engine) WithPacer(p *Pacer) *Engine {
	e.pacer = p
	return e
}

// BuildQuery forms the site search query for a product of a municipality.
func BuildQuery(municipality, productName string) string {
	return strings.TrimSpace(strings.TrimSpace(municipality) + " " + strings.TrimSpace(productName))
}

// SearchAllSites runs one query against every registered site in order and
// returns a result per site, even when every site failed: callers must
// never assume at least one success. A site's failure is recorded in its
// result and never aborts the remaining sites.
func (e *Engine) SearchAllSites(ctx context.Context, query string) []models.SiteCountResult {
	atomic.AddInt64(&e.queryCount, 1)
	e.Metrics.IncQuery()

	all := e.registry.All()
	results := make([]models.SiteCountResult, 0, len(all))
	for i, site := range all {
		if err := e.pacer.Wait(ctx, site.ID); err != nil {
			// Cancelled mid-run: fill the remaining sites so the map
			// stays complete.
			for _, rest := range all[i:] {
				results = append(results, models.SiteCountResult{
					SiteID:      rest.ID,
					DisplayName: rest.DisplayName,
					SearchURL:   rest.SearchURL(query),
					ErrorKind:   fetcher.KindConnection,
				})
				atomic.AddInt64(&e.errorCount, 1)
			}
			break
		}
		results = append(results, e.searchSite(ctx, site, query))
	}
	return results
}

func (e *Engine) searchSite(ctx context.Context, site sites.Descriptor, query string) models.SiteCountResult {
	start := time.Now()
	res := e.fetcher.Fetch(ctx, site, query)
	e.Metrics.IncRequests(site.ID, res.Attempts)
	e.Metrics.AddRetries(res.Attempts - 1)
	e.Metrics.ObserveDuration(time.Since(start))
	atomic.AddInt64(&e.requestCount, int64(res.Attempts))

	out := models.SiteCountResult{
		SiteID:      site.ID,
		DisplayName: site.DisplayName,
		SearchURL:   res.SearchURL,
	}

	if res.Err != nil {
		out.ErrorKind = fetcher.Kind(res.Err)
		atomic.AddInt64(&e.errorCount, 1)
		e.Metrics.IncError(site.ID, out.ErrorKind)
		slog.Warn("site search failed",
			slog.String("site", site.ID),
			slog.String("error_kind", out.ErrorKind),
			slog.Int("attempts", res.Attempts),
			slog.Any("error", res.Err),
		)
		return out
	}

	count, err := e.extractor.Count(res.Body, site)
	if err != nil {
		out.ErrorKind = fetcher.KindParse
		atomic.AddInt64(&e.errorCount, 1)
		e.Metrics.IncError(site.ID, out.ErrorKind)
		slog.Warn("count extraction failed",
			slog.String("site", site.ID),
			slog.Any("error", err),
		)
		return out
	}

	out.Count = count
	if count == nil {
		slog.Debug("no count pattern matched",
			slog.String("site", site.ID),
			slog.Bool("client_rendered", site.ClientRendered),
		)
	} else {
		slog.Debug("site count extracted",
			slog.String("site", site.ID),
			slog.Int("count", *count),
		)
	}
	return out
}

// AnalyzeCompetition measures one query across all sites and aggregates
// the outcome. Identical queries within one run are answered from the
// in-memory cache instead of re-hitting the sites. The returned aggregate
// is shared and must be treated as read-only.
func (e *Engine) AnalyzeCompetition(ctx context.Context, query string) *models.AggregatedResult {
	if agg, ok := e.cache.Get(query); ok {
		atomic.AddInt64(&e.cacheHits, 1)
		e.Metrics.IncCacheHit()
		return agg
	}

	agg := Aggregate(e.SearchAllSites(ctx, query))
	e.cache.Add(query, &agg)
	return &agg
}

// AnalyzeProducts measures every product's competition, up to cfg.Workers
// products concurrently. Each worker still serializes its own site
// requests, and the shared pacer keeps per-site intervals honored across
// workers. The result maps product name to its aggregate; degraded
// (all-failed) aggregates are returned rather than errors.
func (e *Engine) AnalyzeProducts(ctx context.Context, municipality string, products []models.Product) map[string]*models.AggregatedResult {
	aggs := make([]*models.AggregatedResult, len(products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, p := range products {
		g.Go(func() error {
			aggs[i] = e.AnalyzeCompetition(gctx, BuildQuery(municipality, p.Name))
			return nil
		})
	}
	// Workers never return errors; failures are embedded per site.
	_ = g.Wait()

	out := make(map[string]*models.AggregatedResult, len(products))
	for i, p := range products {
		if _, ok := out[p.Name]; !ok {
			out[p.Name] = aggs[i]
		}
	}
	return out
}

// Stats returns a snapshot of the run counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Queries:   atomic.LoadInt64(&e.queryCount),
		Requests:  atomic.LoadInt64(&e.requestCount),
		Errors:    atomic.LoadInt64(&e.errorCount),
		CacheHits: atomic.LoadInt64(&e.cacheHits),
	}
}

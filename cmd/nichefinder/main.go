package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shoohey/furusato-nozei-sales-ai/config"
	"github.com/shoohey/furusato-nozei-sales-ai/discovery"
	"github.com/shoohey/furusato-nozei-sales-ai/engine"
	"github.com/shoohey/furusato-nozei-sales-ai/extractor"
	"github.com/shoohey/furusato-nozei-sales-ai/fetcher"
	"github.com/shoohey/furusato-nozei-sales-ai/models"
	"github.com/shoohey/furusato-nozei-sales-ai/report"
	"github.com/shoohey/furusato-nozei-sales-ai/scoring"
	"github.com/shoohey/furusato-nozei-sales-ai/sites"
)

func main() {
	defaultCfg := config.DefaultConfig()
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("NICHEFINDER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("NICHEFINDER_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	workersDefault := defaultCfg.Workers
	if value, ok, err := config.EnvInt("NICHEFINDER_WORKERS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid NICHEFINDER_WORKERS: %v\n", err)
		os.Exit(1)
	} else if ok {
		workersDefault = value
	}

	prefecture := flag.String("prefecture", "", "Prefecture name, e.g. 北海道")
	municipality := flag.String("municipality", "", "Municipality name, e.g. 富良野市")
	category := flag.String("category", "加工品", "Product category")
	productCount := flag.Int("products", defaultCfg.ProductCount, "Number of candidate products to discover")
	inputFile := flag.String("input", "", "JSON file with candidate products (skips AI discovery)")
	apiKey := flag.String("api-key", "", "Anthropic API key (defaults to ANTHROPIC_API_KEY)")
	delayMs := flag.Int("delay", int(defaultCfg.SiteDelay/time.Millisecond), "Delay between site requests (milliseconds)")
	jitterMinMs := flag.Int("jitter-min", int(defaultCfg.JitterMin/time.Millisecond), "Minimum random jitter (milliseconds)")
	jitterMaxMs := flag.Int("jitter-max", int(defaultCfg.JitterMax/time.Millisecond), "Maximum random jitter (milliseconds)")
	maxAttempts := flag.Int("max-attempts", defaultCfg.MaxAttempts, "Fetch attempts per site including the first")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	workers := flag.Int("workers", workersDefault, "Concurrent product analyses")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", "csv", "Output format: csv, json, or dual")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.SiteDelay = time.Duration(*delayMs) * time.Millisecond
	cfg.JitterMin = time.Duration(*jitterMinMs) * time.Millisecond
	cfg.JitterMax = time.Duration(*jitterMaxMs) * time.Millisecond
	cfg.MaxAttempts = *maxAttempts
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.Workers = *workers
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	cfg.Prefecture = *prefecture
	cfg.Municipality = *municipality
	cfg.Category = *category
	cfg.ProductCount = *productCount

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.Municipality == "" {
		slog.Error("a municipality is required")
		os.Exit(1)
	}
	if *inputFile == "" && cfg.Prefecture == "" {
		slog.Error("a prefecture is required unless -input is given")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := sites.Default()
	eng, err := engine.New(cfg, registry, fetcher.New(cfg), extractor.New())
	if err != nil {
		slog.Error("initialising engine", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(eng.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	products, err := loadProducts(ctx, cfg, *inputFile, *apiKey)
	if err != nil {
		slog.Error("loading candidate products", slog.Any("error", err))
		os.Exit(1)
	}
	if len(products) == 0 {
		slog.Error("no candidate products to analyze")
		os.Exit(1)
	}

	slog.Info("starting competition analysis",
		slog.String("municipality", cfg.Municipality),
		slog.Int("products", len(products)),
		slog.Int("sites", registry.Len()),
		slog.Int("workers", cfg.Workers),
	)

	startTime := time.Now()
	aggregates := eng.AnalyzeProducts(ctx, cfg.Municipality, products)
	scored := scoring.ScoreAll(products, aggregates)

	writer, err := report.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Write(scored); err != nil {
		slog.Error("writing report", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Close(); err != nil {
		slog.Error("closing writer", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(scored, eng.Stats(), time.Since(startTime), cfg.OutputFile)
}

// loadProducts reads candidates from the input file, or discovers them via
// the Anthropic API when no file is given.
func loadProducts(ctx context.Context, cfg *config.Config, inputFile, apiKey string) ([]models.Product, error) {
	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
		return discovery.ParseProducts(string(data)), nil
	}

	key, err := discovery.APIKey(apiKey)
	if err != nil {
		return nil, err
	}
	client := discovery.NewClient(key)
	return client.DiscoverProducts(ctx, cfg.Prefecture, cfg.Municipality, cfg.Category, cfg.ProductCount)
}

func printSummary(scored []models.ScoredProduct, stats engine.Stats, duration time.Duration, outputFile string) {
	rankCounts := map[string]int{}
	for _, p := range scored {
		rankCounts[p.Rank]++
	}

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Analysis complete")
	fmt.Printf("  Products:      %d (A:%d B:%d C:%d)\n", len(scored), rankCounts["A"], rankCounts["B"], rankCounts["C"])
	fmt.Printf("  Queries:       %d (cache hits: %d)\n", stats.Queries, stats.CacheHits)
	fmt.Printf("  Requests:      %d\n", stats.Requests)
	fmt.Printf("  Site failures: %d\n", stats.Errors)
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)

	for i, p := range scored {
		if i >= 3 {
			break
		}
		fmt.Printf("  %s | %.1f | %s (%s)\n", p.Rank, p.TotalScore, p.Name, p.TotalListingCount)
	}
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

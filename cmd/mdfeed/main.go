// Command mdfeed tails a line-delimited order-status stream, reconstructs
// per-market order books, ranks stop orders, computes mark prices, and
// serves the result over HTTP+WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/severussssss/hp-node-stream/internal/breaker"
	"github.com/severussssss/hp-node-stream/internal/bus"
	"github.com/severussssss/hp-node-stream/internal/config"
	"github.com/severussssss/hp-node-stream/internal/fanout"
	"github.com/severussssss/hp-node-stream/internal/ingest"
	"github.com/severussssss/hp-node-stream/internal/markprice"
	"github.com/severussssss/hp-node-stream/internal/metrics"
	"github.com/severussssss/hp-node-stream/internal/oracle"
	"github.com/severussssss/hp-node-stream/internal/orderbook"
	"github.com/severussssss/hp-node-stream/internal/parser"
	"github.com/severussssss/hp-node-stream/internal/registry"
	"github.com/severussssss/hp-node-stream/internal/stoporder"
	"github.com/severussssss/hp-node-stream/pkg/clock"
	"github.com/severussssss/hp-node-stream/pkg/logging"
)

func main() {
	cfg := config.LoadFromEnv("")

	var (
		port         = flag.Int("port", 0, "RPC listen port, overrides RPC_ADDR")
		enableMetric = flag.Bool("enable_metrics", cfg.Metrics.Enabled, "serve Prometheus /metrics")
		metricsPort  = flag.Int("metrics_port", 0, "metrics listen port, overrides METRICS_ADDR")
		requireAuth  = flag.Bool("require_auth", cfg.RPC.RequireAuth, "require x-api-key on the RPC surface")
		apiKeys      = flag.String("api_keys", strings.Join(cfg.RPC.APIKeys, ","), "comma-separated valid API keys")
		input        = flag.String("input", "", "path to the line-delimited order stream; empty reads stdin")
	)
	flag.Parse()

	if *port > 0 {
		cfg.RPC.ListenAddr = fmt.Sprintf(":%d", *port)
	}
	if *metricsPort > 0 {
		cfg.Metrics.Addr = fmt.Sprintf(":%d", *metricsPort)
	}
	cfg.Metrics.Enabled = *enableMetric
	cfg.RPC.RequireAuth = *requireAuth
	if *apiKeys != "" {
		cfg.RPC.APIKeys = strings.Split(*apiKeys, ",")
	}

	logger, err := logging.NewWithFile(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("mdfeed_starting", "rpc_addr", cfg.RPC.ListenAddr, "metrics_enabled", cfg.Metrics.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	realClock := clock.RealClock{}

	catalog := oracle.NewCatalogClient(cfg.Registry.CatalogURL, cfg.Registry.FetchTimeout)
	reg := registry.New(catalog)
	if err := reg.Refresh(ctx); err != nil {
		sugar.Warnw("initial_registry_refresh_failed", "err", err)
	}
	go refreshLoop(ctx, reg, cfg.Registry.RefreshInterval, sugar)

	priceFeed := oracle.NewPoller(cfg.Oracle.PriceURL, cfg.Oracle.FetchTimeout, sugar)
	go priceFeed.Run(ctx, cfg.Oracle.PollInterval)

	bookCfg := orderbook.Config{
		MaxTotalOrders:    cfg.Book.MaxTotalOrders,
		MaxLevelsPerSide:  cfg.Book.MaxLevelsPerSide,
		MaxOrdersPerLevel: cfg.Book.MaxOrdersPerLevel,
	}
	books := ingest.NewBookSet(bookCfg)
	breakers := breaker.NewSet(breaker.Config{
		FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
		SuccessThreshold: uint32(cfg.Breaker.SuccessThreshold),
		OpenTimeout:      cfg.Breaker.OpenTimeout,
		ErrorWindow:      cfg.Breaker.ErrorWindow,
	})
	stops := stoporder.New()

	updatesBus := bus.New[ingest.MarketUpdate](100_000)
	markPriceBus := bus.New[markprice.Update](1_000)
	markPriceCache := markprice.NewCache()

	parserCfg := parser.DefaultConfig()
	parserCfg.MaxPrice = cfg.Book.MaxPrice
	parserCfg.MaxSize = cfg.Book.MaxSize
	p := parser.New(parserCfg)

	loop := ingest.NewLoop(p, reg, breakers, books, stops, updatesBus, realClock, sugar)

	var metricsRegistry *metrics.Registry
	if cfg.Metrics.Enabled {
		metricsRegistry = metrics.New()
		loop.SetMetrics(metricsRegistry)
		sampler := metrics.NewSampler(metricsRegistry, reg, books, breakers, 5*time.Second)
		go sampler.Run(ctx)
	}

	markPricePublish := func(u markprice.Update) {
		markPriceCache.Set(u)
		markPriceBus.Publish(u)
		if metricsRegistry != nil {
			metricsRegistry.RecordMarkPriceComputed(u.Symbol, u.Result.UsedFallback)
		}
	}
	markets := func() []markprice.Market {
		entries := reg.ListAll()
		out := make([]markprice.Market, 0, len(entries))
		for _, e := range entries {
			book, ok := books.Get(e.MarketID)
			if !ok {
				continue
			}
			out = append(out, markprice.Market{
				MarketID: e.MarketID,
				Symbol:   e.Symbol.String(),
				Coin:     e.Symbol.Base,
				Book:     book,
			})
		}
		return out
	}
	markPriceSvc := markprice.NewService(realClock, priceFeed, markets, markPricePublish, sugar)
	go markPriceSvc.Run(ctx, cfg.MarkPrice.TickInterval)

	hub := fanout.NewHub(books, reg, updatesBus, markPriceBus, sugar)
	if metricsRegistry != nil {
		hub.SetMetrics(metricsRegistry)
	}

	var auth *fanout.KeyStore
	if cfg.RPC.RequireAuth {
		auth = fanout.NewKeyStore(cfg.RPC.APIKeys...)
	}
	var limiter *fanout.RateLimiter
	if cfg.RPC.RateLimitEnabled {
		limiter = fanout.NewRateLimiter(cfg.RPC.RateLimitPerMin, time.Minute)
	}

	server := fanout.NewServer(hub, books, reg, stops, markPriceCache, realClock, auth, limiter, sugar)

	httpServer := &http.Server{Addr: cfg.RPC.ListenAddr, Handler: server.Handler()}
	go func() {
		sugar.Infow("rpc_server_starting", "addr", cfg.RPC.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("rpc_server_failed", "err", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsRegistry.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			sugar.Infow("metrics_server_starting", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				sugar.Errorw("metrics_server_failed", "err", err)
			}
		}()
	}

	source, err := openLineSource(*input)
	if err != nil {
		sugar.Fatalw("line_source_open_failed", "err", err)
	}
	defer source.Close()

	go func() {
		if err := loop.Run(ctx, source); err != nil {
			sugar.Errorw("ingest_loop_stopped", "err", err)
		}
		stop()
	}()

	<-ctx.Done()
	sugar.Info("mdfeed_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
}

func refreshLoop(ctx context.Context, reg *registry.Registry, interval time.Duration, logger interface {
	Warnw(string, ...interface{})
	Infow(string, ...interface{})
}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reg.Refresh(ctx); err != nil {
				logger.Warnw("registry_refresh_failed", "err", err)
				continue
			}
			logger.Infow("registry_refreshed")
		}
	}
}

func openLineSource(path string) (*os.File, error) {
	if path == "" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

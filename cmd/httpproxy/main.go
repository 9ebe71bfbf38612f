// Command httpproxy runs the forward caching proxy in the foreground,
// intended to live under a process supervisor rather than daemonizing
// itself: structured logs go to stdout and shutdown is signal-driven.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loomwright/httpproxy/cacheproxy"
	"github.com/loomwright/httpproxy/metrics"
	promcollector "github.com/loomwright/httpproxy/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		addr        = flag.String("addr", ":12345", "listen address")
		idleTimeout = flag.Duration("idle-timeout", 30*time.Second, "per-connection read/write idle timeout")
		jsonLogs    = flag.Bool("json-logs", false, "emit structured logs as JSON instead of text")
		metricsAddr = flag.String("metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
		onMiss      = flag.Bool("store-on-miss-lookup", false, "consult the Store before reporting a cache MISS")
	)
	flag.Parse()

	logger := newLogger(*jsonLogs)
	cacheproxy.SetLogger(logger)
	slog.SetDefault(logger)

	var collector metrics.Collector = metrics.DefaultCollector
	if *metricsAddr != "" {
		promColl := promcollector.NewCollector()
		collector = promColl
		go serveMetrics(*metricsAddr, logger)
	}

	cache, err := cacheproxy.NewCache(
		cacheproxy.WithMetrics(collector),
		cacheproxy.WithStoreOnMissLookup(*onMiss),
	)
	if err != nil {
		logger.Error("failed to construct cache", "error", err)
		return 1
	}

	proxy, err := cacheproxy.NewProxy(
		cacheproxy.WithListenAddr(*addr),
		cacheproxy.WithIdleTimeout(*idleTimeout),
		cacheproxy.WithCache(cache),
		cacheproxy.WithProxyMetrics(collector),
		cacheproxy.WithResilience(cacheproxy.NewResilience()),
	)
	if err != nil {
		logger.Error("failed to construct proxy", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", "addr", *addr)
	if err := proxy.ListenAndServe(ctx); err != nil {
		logger.Error("listen failed", "error", err)
		return 1
	}
	logger.Info("stopped cleanly")
	return 0
}

func newLogger(jsonLogs bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if jsonLogs {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", "error", err, "addr", addr)
	}
}

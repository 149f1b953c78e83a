// cmd/portfolio-server — Simulated investment portfolio service.
//
// Wires the price feed (built-in simulator or an external WS feed), the
// ledger, the REST/WS gateway, the sqlite audit journal, the optional
// Redis snapshot publisher and the metrics/health server.
//
// Config (env vars):
//
//	LISTEN_ADDR          — gateway address              (default ":8080")
//	METRICS_ADDR         — metrics/health address       (default ":9090")
//	REDIS_ADDR           — snapshot publisher; empty disables
//	JOURNAL_PATH         — sqlite audit db              (default "data/journal.db")
//	STARTING_CASH        — session cash balance         (default "10000")
//	REFRESH_INTERVAL_SEC — price refresh cadence        (default "30")
//	FEED_URL             — external WS feed; empty selects the simulator
//	FEED_LATENCY_MS      — simulator fetch latency      (default "500")
//	HISTORY_POINTS       — summary history window size  (default "288")
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"investsim/config"
	"investsim/internal/gateway"
	"investsim/internal/history"
	"investsim/internal/journal"
	"investsim/internal/ledger"
	"investsim/internal/logger"
	"investsim/internal/marketdata"
	"investsim/internal/marketdata/publish"
	"investsim/internal/marketdata/sim"
	"investsim/internal/marketdata/wsfeed"
	"investsim/internal/metrics"
	"investsim/internal/model"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	cfg := config.Load()

	slogger := logger.Init("portfolio-server", logger.ParseLevel(cfg.LogLevel))
	slogger.Info("starting", "listen", cfg.ListenAddr, "refresh_sec", cfg.RefreshSec)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown plumbing ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Ledger ----
	book := ledger.New(ledger.Config{StartingCash: cfg.StartingCash})

	// ---- Audit journal (off hot path) ----
	os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755)
	jrnl, err := journal.New(cfg.JournalPath, prom)
	if err != nil {
		log.Fatalf("[portfolio-server] journal init failed: %v", err)
	}
	defer jrnl.Close()
	health.SetSQLiteOK(true)
	go jrnl.Run(ctx, book.Events())
	log.Println("[portfolio-server] journal ready")

	// ---- Optional Redis snapshot publisher ----
	var pub *publish.Publisher
	if cfg.RedisAddr != "" {
		pub, err = publish.New(publish.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}, prom)
		if err != nil {
			log.Printf("[portfolio-server] WARNING: redis init failed: %v (continuing without redis)", err)
			health.SetRedisConnected(false)
			pub = nil
		} else {
			health.SetRedisConnected(true)
			log.Println("[portfolio-server] redis publisher ready")
		}
	}

	// ---- Periodic liveness checks ----
	if pub != nil {
		health.StartLivenessChecker(ctx, pub.Client(), jrnl.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, jrnl.DB(), 10*time.Second)
	}

	// ---- Price feed: external WS or built-in simulator ----
	var feed marketdata.Feed
	if cfg.FeedURL != "" {
		wsf, err := wsfeed.New(wsfeed.Config{URL: cfg.FeedURL})
		if err != nil {
			log.Fatalf("[portfolio-server] ws feed init failed: %v", err)
		}
		go wsf.Start(ctx)
		feed = wsf
		log.Printf("[portfolio-server] price feed: %s", cfg.FeedURL)
	} else {
		feed = sim.New(sim.Config{Latency: cfg.FeedLatency()})
		log.Println("[portfolio-server] price feed: built-in simulator")
	}

	// ---- History window + gateway ----
	window := history.NewWindow(cfg.HistoryPoints)
	hub := gateway.NewHub(prom)
	gw := gateway.New(book, jrnl, window, hub, prom)

	// ---- Refresher: fetch, apply, then notify ----
	refresher := marketdata.NewRefresher(marketdata.RefresherConfig{
		Interval: cfg.RefreshInterval(),
	}, feed, book, prom, health)
	refresher.OnApplied(func(instruments []model.Instrument, at time.Time) {
		state := book.State()
		summary := ledger.Aggregate(state.Positions)

		window.Record(history.Point{
			At:                 at,
			Cash:               state.Cash,
			TotalValue:         summary.TotalValue,
			TotalProfitLoss:    summary.TotalProfitLoss,
			TotalProfitLossPct: summary.TotalProfitLossPct,
		})

		hub.Broadcast("market", gateway.MarketOut{Instruments: instruments, LastRefreshedAt: at})
		hub.Broadcast("portfolio", gateway.PortfolioOut{
			Cash:            state.Cash,
			Positions:       state.Positions,
			Summary:         gateway.SummaryOut{Cash: state.Cash, TotalValue: summary.TotalValue, TotalProfitLoss: summary.TotalProfitLoss, TotalProfitLossPct: summary.TotalProfitLossPct},
			LastRefreshedAt: at,
		})

		cash, _ := state.Cash.Float64()
		value, _ := summary.TotalValue.Float64()
		prom.CashBalance.Set(cash)
		prom.PortfolioValue.Set(value)

		if pub != nil {
			pub.Publish(ctx, instruments, at)
		}
	})
	go refresher.Run(ctx)

	// ---- HTTP server ----
	mux := http.NewServeMux()
	gw.RegisterRoutes(mux)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slogger.Info("gateway listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[portfolio-server] server error: %v", err)
		}
	}()

	// ---- Wait for shutdown ----
	<-sigCh
	slogger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	if pub != nil {
		pub.Close()
	}
	if dropped := book.EventsDropped(); dropped > 0 {
		slogger.Warn("audit events dropped", slog.Uint64("count", dropped))
	}
	slogger.Info("shutdown complete")
}

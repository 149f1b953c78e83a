// Package metrics exposes Prometheus metrics and a health endpoint for
// the portfolio server.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the portfolio server.
type Metrics struct {
	TradesTotal  *prometheus.CounterVec // labels: kind, result
	RevertsTotal prometheus.Counter

	SnapshotApplies  prometheus.Counter
	FeedFetchDur     prometheus.Histogram
	SnapshotApplyDur prometheus.Histogram
	FeedErrors       prometheus.Counter

	CashBalance    prometheus.Gauge
	PortfolioValue prometheus.Gauge

	WSClients prometheus.Gauge
	WSDropped prometheus.Counter

	JournalWrites prometheus.Counter
	JournalDrops  prometheus.Counter

	RedisPublishDur    prometheus.Histogram
	RedisPublishErrors prometheus.Counter
	BreakerState       prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips       prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_trades_total",
			Help: "Trade operations by kind and result",
		}, []string{"kind", "result"}),
		RevertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_reverts_total",
			Help: "Accepted revert operations",
		}),
		SnapshotApplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_snapshot_applies_total",
			Help: "Market snapshots applied to the ledger",
		}),
		FeedFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfolio_feed_fetch_duration_seconds",
			Help:    "Price feed snapshot fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotApplyDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfolio_snapshot_apply_duration_seconds",
			Help:    "Time spent applying a snapshot under the ledger lock",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		FeedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_feed_errors_total",
			Help: "Failed snapshot fetches",
		}),
		CashBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_cash_balance",
			Help: "Current session cash balance",
		}),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_total_value",
			Help: "Current total portfolio value",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_ws_dropped_clients_total",
			Help: "WebSocket clients dropped for slow consumption",
		}),
		JournalWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_journal_writes_total",
			Help: "Audit events written to the sqlite journal",
		}),
		JournalDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_journal_drops_total",
			Help: "Audit events dropped before reaching the journal",
		}),
		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfolio_redis_publish_duration_seconds",
			Help:    "Redis snapshot publish latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_redis_publish_errors_total",
			Help: "Failed redis snapshot publishes",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portfolio_redis_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_redis_breaker_trips_total",
			Help: "Redis circuit breaker open transitions",
		}),
	}

	prometheus.MustRegister(
		m.TradesTotal,
		m.RevertsTotal,
		m.SnapshotApplies,
		m.FeedFetchDur,
		m.SnapshotApplyDur,
		m.FeedErrors,
		m.CashBalance,
		m.PortfolioValue,
		m.WSClients,
		m.WSDropped,
		m.JournalWrites,
		m.JournalDrops,
		m.RedisPublishDur,
		m.RedisPublishErrors,
		m.BreakerState,
		m.BreakerTrips,
	)

	return m
}

// HealthStatus represents the server health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedOK         bool      `json:"feed_ok"`
	LastSnapshotAt time.Time `json:"last_snapshot_at"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetFeedOK(v bool) {
	h.mu.Lock()
	h.FeedOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastSnapshotAt(t time.Time) {
	h.mu.Lock()
	h.LastSnapshotAt = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the journal database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Redis is optional; the feed and the journal decide overall health.
	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.FeedOK || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	snapshotAge := ""
	if !h.LastSnapshotAt.IsZero() {
		snapshotAge = time.Since(h.LastSnapshotAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedOK          bool    `json:"feed_ok"`
		LastSnapshotAt  string  `json:"last_snapshot_at"`
		SnapshotAge     string  `json:"snapshot_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedOK:          h.FeedOK,
		LastSnapshotAt:  h.LastSnapshotAt.Format(time.RFC3339),
		SnapshotAge:     snapshotAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

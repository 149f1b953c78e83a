// Package publish pushes applied market snapshots to Redis so external
// consumers (dashboards, other portfolio sessions) can follow the feed
// without touching the portfolio server. Publishing is best-effort and
// sits behind a circuit breaker so a dead Redis cannot slow the refresh
// cycle; the server runs without Redis entirely when it is unreachable.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"investsim/internal/metrics"
	"investsim/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	latestKey  = "market:snapshot:latest"
	channel    = "market:snapshot"
	defaultTTL = 30 * time.Minute

	breakerMaxFailures  = 5
	breakerResetTimeout = 10 * time.Second
)

// snapshotMsg is the published envelope; the same shape wsfeed consumes.
type snapshotMsg struct {
	At          time.Time          `json:"at"`
	Instruments []model.Instrument `json:"instruments"`
}

// Config configures the publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // latest-key TTL; defaults to 30m
}

// Publisher writes snapshots to a Redis latest-key and pub/sub channel.
type Publisher struct {
	client  *goredis.Client
	ttl     time.Duration
	breaker *CircuitBreaker
	prom    *metrics.Metrics // optional
}

// New creates a Publisher and pings the server. prom may be nil.
func New(cfg Config, prom *metrics.Metrics) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	p := &Publisher{
		client:  client,
		ttl:     ttl,
		breaker: NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout),
		prom:    prom,
	}
	p.breaker.OnStateChange = func(from, to State) {
		log.Printf("[publish] circuit breaker %s -> %s", from, to)
		if prom != nil {
			prom.BreakerState.Set(float64(to))
			if to == StateOpen {
				prom.BreakerTrips.Inc()
			}
		}
	}

	log.Printf("[publish] connected to redis at %s", cfg.Addr)
	return p, nil
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Publish pushes one snapshot: SET of the latest-key plus a PUBLISH on
// the snapshot channel. Failures are counted, never propagated — the
// refresh cycle does not depend on Redis.
func (p *Publisher) Publish(ctx context.Context, instruments []model.Instrument, at time.Time) {
	payload, err := json.Marshal(snapshotMsg{At: at, Instruments: instruments})
	if err != nil {
		log.Printf("[publish] marshal error: %v", err)
		return
	}

	start := time.Now()
	err = p.breaker.Execute(func() error {
		if err := p.client.Set(ctx, latestKey, payload, p.ttl).Err(); err != nil {
			return err
		}
		return p.client.Publish(ctx, channel, payload).Err()
	})
	if err != nil {
		if err != ErrCircuitOpen {
			log.Printf("[publish] snapshot publish failed: %v", err)
		}
		if p.prom != nil {
			p.prom.RedisPublishErrors.Inc()
		}
		return
	}
	if p.prom != nil {
		p.prom.RedisPublishDur.Observe(time.Since(start).Seconds())
	}
}

// Close releases the Redis connection.
func (p *Publisher) Close() error { return p.client.Close() }

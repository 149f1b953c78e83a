// Package wsfeed provides a WebSocket-backed price feed: it maintains a
// connection to a snapshot broadcaster (cmd/feedserver), caches the most
// recent snapshot pushed over the wire, and serves it through the
// marketdata.Feed interface.
//
// The wire format is a JSON object per message:
//
//	{"at":"...","instruments":[{"symbol":"AAPL","category":"equity","price":"178.5",...}, ...]}
//
// This is a drop-in replacement for the in-process simulator, useful for
// running several portfolio servers against one shared feed.
package wsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"sync"
	"time"

	"investsim/internal/model"

	"github.com/gorilla/websocket"
)

// ErrNoSnapshot is returned when FetchSnapshot is called before the
// first snapshot arrived and the wait deadline expires.
var ErrNoSnapshot = errors.New("no snapshot received yet")

// SnapshotMsg is the wire envelope broadcast by the feedserver.
type SnapshotMsg struct {
	At          time.Time          `json:"at"`
	Instruments []model.Instrument `json:"instruments"`
}

// Config holds configuration for the WebSocket feed.
type Config struct {
	// URL of the snapshot WebSocket server, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration

	// FirstSnapshotWait bounds how long FetchSnapshot blocks waiting for
	// the first snapshot after startup. Defaults to 10s.
	FirstSnapshotWait time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.FirstSnapshotWait == 0 {
		c.FirstSnapshotWait = 10 * time.Second
	}
}

// Feed is a WebSocket snapshot consumer implementing marketdata.Feed.
type Feed struct {
	cfg Config

	mu     sync.Mutex
	latest []model.Instrument
	first  chan struct{} // closed once the first snapshot lands
	once   sync.Once

	// Optional hook — called each time a reconnection happens.
	OnReconnect func()
}

// New creates a Feed. Returns an error if the URL is unparseable.
func New(cfg Config) (*Feed, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Feed{cfg: cfg, first: make(chan struct{})}, nil
}

// Start connects to the snapshot server and keeps the latest snapshot
// cached. Blocks until ctx is cancelled, reconnecting automatically
// with exponential backoff.
func (f *Feed) Start(ctx context.Context) {
	delay := f.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := f.runOnce(ctx)
		if err == nil {
			// Context cancelled cleanly.
			return
		}

		log.Printf("[wsfeed] disconnected (%v), reconnecting in %s...", err, delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect
// or ctx cancel.
func (f *Feed) runOnce(ctx context.Context) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[wsfeed] connected to %s", f.cfg.URL)

	// Async context watcher — closes the connection when ctx is cancelled.
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var msg SnapshotMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[wsfeed] parse error: %v", err)
			continue
		}
		if len(msg.Instruments) == 0 {
			log.Printf("[wsfeed] skipping empty snapshot")
			continue
		}
		f.store(msg.Instruments)
	}
}

func (f *Feed) store(instruments []model.Instrument) {
	f.mu.Lock()
	f.latest = instruments
	f.mu.Unlock()
	f.once.Do(func() { close(f.first) })
}

// FetchSnapshot returns the most recently received snapshot. Before the
// first snapshot arrives it blocks up to FirstSnapshotWait (bounded also
// by ctx).
func (f *Feed) FetchSnapshot(ctx context.Context) ([]model.Instrument, error) {
	select {
	case <-f.first:
	default:
		timer := time.NewTimer(f.cfg.FirstSnapshotWait)
		defer timer.Stop()
		select {
		case <-f.first:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrNoSnapshot
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Instrument, len(f.latest))
	copy(out, f.latest)
	return out, nil
}

// cmd/feedserver — Demo WebSocket price feed server.
//
// Broadcasts simulated market snapshots for running portfolio-server
// against an external feed (set FEED_URL=ws://localhost:9001/ws).
//
// Snapshot JSON shape matches what the ws feed client expects:
//
//	{"at":"...","instruments":[{"symbol":"AAPL","price":"178.4",...}]}
//
// Config (env vars):
//
//	FEED_SERVER_ADDR   — listen address               (default ":9001")
//	FEED_INTERVAL_SEC  — broadcast interval seconds   (default "5")
//	FEED_SEED          — rng seed; 0 seeds from clock (default "0")
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"investsim/internal/marketdata/sim"
	"investsim/internal/model"
)

// snapshotMsg mirrors the wire envelope consumed by the ws feed client.
type snapshotMsg struct {
	At          time.Time          `json:"at"`
	Instruments []model.Instrument `json:"instruments"`
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	latest  []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	// Late joiners get the latest snapshot immediately.
	if h.latest != nil {
		ch <- h.latest
	}
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	h.latest = msg
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client — drop snapshot
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[feedserver] upgrade error: %v", err)
			return
		}
		log.Printf("[feedserver] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[feedserver] client disconnected: %s", r.RemoteAddr)
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func runGenerator(h *hub, feed *sim.Simulator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		at := time.Now().UTC()
		instruments, err := feed.FetchSnapshot(context.Background())
		if err != nil {
			continue
		}
		b, err := json.Marshal(snapshotMsg{At: at, Instruments: instruments})
		if err != nil {
			continue
		}
		h.broadcast(b)
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[feedserver] starting demo price feed server...")

	addr := envOrDefault("FEED_SERVER_ADDR", ":9001")
	intervalSec := envIntOrDefault("FEED_INTERVAL_SEC", 5)
	seed := int64(envIntOrDefault("FEED_SEED", 0))

	feed := sim.New(sim.Config{Latency: time.Millisecond, Seed: seed})
	h := newHub()

	go runGenerator(h, feed, time.Duration(intervalSec)*time.Second)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"feedserver"}`)
	})

	log.Printf("[feedserver] listening on %s  (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[feedserver] server error: %v", err)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

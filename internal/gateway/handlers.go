package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"investsim/internal/history"
	"investsim/internal/journal"
	"investsim/internal/ledger"
	"investsim/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Gateway serves the REST and WebSocket surface over the ledger.
// Journal and Prom may be nil.
type Gateway struct {
	Ledger  *ledger.Ledger
	Journal *journal.Journal
	History *history.Window
	Hub     *Hub
	Prom    *metrics.Metrics

	start time.Time
}

// New creates a Gateway over the given components.
func New(l *ledger.Ledger, j *journal.Journal, hist *history.Window, hub *Hub, prom *metrics.Metrics) *Gateway {
	return &Gateway{
		Ledger:  l,
		Journal: j,
		History: hist,
		Hub:     hub,
		Prom:    prom,
		start:   time.Now(),
	}
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", g.handleWS)
	mux.HandleFunc("/api/market", g.handleMarket)
	mux.HandleFunc("/api/portfolio", g.handlePortfolio)
	mux.HandleFunc("/api/portfolio/summary", g.handleSummary)
	mux.HandleFunc("/api/portfolio/history", g.handleHistory)
	mux.HandleFunc("/api/transactions", g.handleTransactions)
	mux.HandleFunc("/api/trade/buy", g.handleBuy)
	mux.HandleFunc("/api/trade/sell", g.handleSell)
	mux.HandleFunc("/api/trade/revert", g.handleRevert)
	mux.HandleFunc("/health", g.handleHealth)
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	g.Hub.Register(conn)
}

func (g *Gateway) handleMarket(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	state := g.Ledger.State()
	json.NewEncoder(w).Encode(MarketOut{
		Instruments:     g.Ledger.Instruments(),
		LastRefreshedAt: state.LastRefreshedAt,
	})
}

func (g *Gateway) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g.portfolioOut())
}

func (g *Gateway) handleSummary(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	state := g.Ledger.State()
	json.NewEncoder(w).Encode(summaryOut(state.Cash, ledger.Aggregate(state.Positions)))
}

func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	points := g.History.Points()
	if points == nil {
		points = []history.Point{}
	}
	json.NewEncoder(w).Encode(points)
}

func (g *Gateway) handleTransactions(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	if g.Journal == nil {
		json.NewEncoder(w).Encode([]journal.Entry{})
		return
	}
	entries, err := g.Journal.Recent(limit)
	if err != nil {
		log.Printf("[gateway] journal query error: %v", err)
		writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	json.NewEncoder(w).Encode(entries)
}

func (g *Gateway) handleBuy(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	pos, err := g.Ledger.Buy(req.Symbol, req.Amount, req.Quantity)
	if err != nil {
		g.countTrade("buy", "rejected")
		writeError(w, statusFromError(err), err.Error())
		return
	}
	g.countTrade("buy", "ok")
	log.Printf("[gateway] buy %s amount=%s qty=%s", req.Symbol, req.Amount, req.Quantity)

	g.afterTrade(w, TradeResponse{Position: pos, Cash: g.Ledger.State().Cash})
}

func (g *Gateway) handleSell(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req SellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	pos, removed, err := g.Ledger.Sell(req.Symbol, req.Quantity)
	if err != nil {
		g.countTrade("sell", "rejected")
		writeError(w, statusFromError(err), err.Error())
		return
	}
	g.countTrade("sell", "ok")
	log.Printf("[gateway] sell %s qty=%s removed=%v", req.Symbol, req.Quantity, removed)

	g.afterTrade(w, TradeResponse{Position: pos, Removed: removed, Cash: g.Ledger.State().Cash})
}

func (g *Gateway) handleRevert(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	rec, err := g.Ledger.RevertLast()
	if err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	if g.Prom != nil {
		g.Prom.RevertsTotal.Inc()
	}
	log.Printf("[gateway] reverted %s %s", rec.Kind, rec.Instrument.Symbol)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RevertResponse{Reverted: rec, Cash: g.Ledger.State().Cash})
	g.broadcastPortfolio()
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	state := g.Ledger.State()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":            "ok",
		"ws_clients":        g.Hub.ClientCount(),
		"last_refreshed_at": state.LastRefreshedAt.UTC().Format(time.RFC3339Nano),
		"uptime_sec":        int64(time.Since(g.start).Seconds()),
		"ts":                time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (g *Gateway) afterTrade(w http.ResponseWriter, resp TradeResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
	g.broadcastPortfolio()
}

// broadcastPortfolio pushes the post-trade portfolio to WS clients and
// refreshes the cash/value gauges.
func (g *Gateway) broadcastPortfolio() {
	out := g.portfolioOut()
	g.Hub.Broadcast("portfolio", out)
	if g.Prom != nil {
		cash, _ := out.Cash.Float64()
		value, _ := out.Summary.TotalValue.Float64()
		g.Prom.CashBalance.Set(cash)
		g.Prom.PortfolioValue.Set(value)
	}
}

func (g *Gateway) portfolioOut() PortfolioOut {
	state := g.Ledger.State()
	return PortfolioOut{
		Cash:            state.Cash,
		Positions:       state.Positions,
		Summary:         summaryOut(state.Cash, ledger.Aggregate(state.Positions)),
		LastRefreshedAt: state.LastRefreshedAt,
	}
}

func (g *Gateway) countTrade(kind, result string) {
	if g.Prom != nil {
		g.Prom.TradesTotal.WithLabelValues(kind, result).Inc()
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

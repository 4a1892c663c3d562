package fanout

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/severussssss/hp-node-stream/internal/ingest"
	"github.com/severussssss/hp-node-stream/internal/markprice"
	"github.com/severussssss/hp-node-stream/internal/orderbook"
	"github.com/severussssss/hp-node-stream/internal/registry"
	"github.com/severussssss/hp-node-stream/internal/stoporder"
	"github.com/severussssss/hp-node-stream/pkg/clock"
)

const defaultOrderbookDepth = 50

// Server is the HTTP+WebSocket surface mapping the RPC methods onto
// gorilla/mux routes plus a gorilla/websocket stream, the corpus's actual
// transport idiom for market data (predecessor pkg/api.Server).
type Server struct {
	router *mux.Router

	hub        *Hub
	books      *ingest.BookSet
	reg        *registry.Registry
	stops      *stoporder.Registry
	markPrices *markprice.Cache
	clock      clock.Clock
	logger     *zap.SugaredLogger
}

func NewServer(hub *Hub, books *ingest.BookSet, reg *registry.Registry, stops *stoporder.Registry, markPrices *markprice.Cache, c clock.Clock, auth *KeyStore, limiter *RateLimiter, logger *zap.SugaredLogger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		hub:        hub,
		books:      books,
		reg:        reg,
		stops:      stops,
		markPrices: markPrices,
		clock:      c,
		logger:     logger,
	}
	s.setupRoutes(auth, limiter)
	return s
}

func (s *Server) setupRoutes(auth *KeyStore, limiter *RateLimiter) {
	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(RequireAPIKey(auth))
	if limiter != nil {
		v1.Use(limiter.Middleware(clientIDFromRequest))
	}

	v1.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	v1.HandleFunc("/markets", s.handleMarkets).Methods(http.MethodGet)
	v1.HandleFunc("/markets/{id}/orderbook", s.handleOrderbook).Methods(http.MethodGet)
	v1.HandleFunc("/markets/{id}/mark-price", s.handleMarkPrice).Methods(http.MethodGet)
	v1.HandleFunc("/stop-orders", s.handleStopOrders).Methods(http.MethodGet)
}

// Handler returns the wrapped HTTP handler (CORS applied), ready to be
// passed to http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"Content-Type", "x-api-key"},
	})
	return c.Handler(s.router)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	entries := s.reg.ListAll()
	out := make([]MarketInfo, len(entries))
	for i, e := range entries {
		out[i] = MarketInfo{MarketID: e.MarketID, Symbol: e.Symbol.String()}
	}
	respondJSON(w, out)
}

func (s *Server) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(r)
	if !ok {
		respondError(w, "NOT_FOUND", "invalid market id")
		return
	}
	book, ok := s.books.Get(id)
	if !ok {
		respondError(w, "NOT_FOUND", "unknown market")
		return
	}
	depth := defaultOrderbookDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			depth = v
		}
	}
	symbol, _ := s.reg.LookupByID(id)
	respondJSON(w, decodeSnapshot(id, symbol, book, depth))
}

func (s *Server) handleMarkPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMarketID(r)
	if !ok {
		respondError(w, "NOT_FOUND", "invalid market id")
		return
	}
	symbol, known := s.reg.LookupByID(id)
	if !known {
		respondError(w, "NOT_FOUND", "unknown market")
		return
	}
	if s.markPrices == nil {
		respondError(w, "UNAVAILABLE", "mark-price service disabled")
		return
	}
	u, ok := s.markPrices.Get(id)
	if !ok {
		respondError(w, "UNAVAILABLE", "mark price not yet computed")
		return
	}
	ageMs := s.clock.Now().UnixMilli() - u.TimestampMillis
	if ageMs < 0 {
		ageMs = 0
	}
	respondJSON(w, MarkPriceResponse{
		MarketID:   id,
		Symbol:     symbol,
		MarkPrice:  u.Result.MarkPrice,
		CacheAgeMs: ageMs,
	})
}

func (s *Server) handleStopOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var orders []stoporder.StopOrder
	switch {
	case q.Get("market_id") != "":
		id, err := strconv.ParseUint(q.Get("market_id"), 10, 32)
		if err != nil {
			respondError(w, "NOT_FOUND", "invalid market_id")
			return
		}
		orders = s.stops.ByMarket(uint32(id))
	case q.Get("user") != "":
		orders = s.stops.ByUser(q.Get("user"))
	default:
		orders = s.stops.All()
	}

	orders = filterStopOrders(orders, q)

	if q.Get("rank_by_risk") != "true" {
		respondJSON(w, toUnrankedDTOs(orders))
		return
	}

	marketIDs := make(map[uint64]uint32, len(orders))
	midPrices := make(map[uint32]float64)
	books := make(map[uint32]stoporder.Book)
	for _, o := range orders {
		marketID, ok := s.stops.MarketOf(o.ID)
		if !ok {
			continue
		}
		marketIDs[o.ID] = marketID
		if _, seen := books[marketID]; seen {
			continue
		}
		book, ok := s.books.Get(marketID)
		if !ok {
			continue
		}
		bid, ask, ok := book.BestBidAsk()
		if !ok {
			continue
		}
		midPrices[marketID] = (bid + ask) / 2
		books[marketID] = book
	}

	distanceWeight := parseFloatOr(q.Get("distance_weight"), 0.5)
	slippageWeight := parseFloatOr(q.Get("slippage_weight"), 0.5)
	ranked := stoporder.Rank(orders, marketIDs, midPrices, books, distanceWeight, slippageWeight)

	if raw := q.Get("max_distance_from_mid_bps"); raw != "" {
		if max, err := strconv.ParseFloat(raw, 64); err == nil {
			filtered := ranked[:0]
			for _, r := range ranked {
				if r.DistanceBps <= max {
					filtered = append(filtered, r)
				}
			}
			ranked = filtered
		}
	}

	respondJSON(w, toRankedDTOs(ranked))
}

func filterStopOrders(orders []stoporder.StopOrder, q map[string][]string) []stoporder.StopOrder {
	minNotional, hasMin := parseFloat(first(q, "min_notional"))
	maxNotional, hasMax := parseFloat(first(q, "max_notional"))
	side := strings.ToLower(first(q, "side"))

	out := orders[:0]
	for _, o := range orders {
		notional := o.Price * o.Size
		if hasMin && notional < minNotional {
			continue
		}
		if hasMax && notional > maxNotional {
			continue
		}
		if side != "" && !strings.EqualFold(o.Side.String(), side) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func first(q map[string][]string, key string) string {
	v := q[key]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func parseFloat(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseFloatOr(raw string, fallback float64) float64 {
	if v, ok := parseFloat(raw); ok {
		return v
	}
	return fallback
}

func parseMarketID(r *http.Request) (uint32, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

func toUnrankedDTOs(orders []stoporder.StopOrder) []RankedStopOrder {
	out := make([]RankedStopOrder, len(orders))
	for i, o := range orders {
		out[i] = RankedStopOrder{
			OrderID:       o.ID,
			User:          o.User,
			Coin:          o.Coin,
			Side:          o.Side.String(),
			Price:         o.Price,
			Size:          o.Size,
			NotionalValue: o.Price * o.Size,
			RiskLevel:     string(stoporder.RiskUnknown),
		}
	}
	return out
}

func toRankedDTOs(ranked []stoporder.Ranked) []RankedStopOrder {
	out := make([]RankedStopOrder, len(ranked))
	for i, r := range ranked {
		out[i] = RankedStopOrder{
			OrderID:       r.Order.ID,
			User:          r.Order.User,
			Coin:          r.Order.Coin,
			Side:          r.Order.Side.String(),
			Price:         r.Order.Price,
			Size:          r.Order.Size,
			NotionalValue: r.NotionalValue,
			DistanceBps:   r.DistanceBps,
			SlippageBps:   r.SlippageBps,
			DistanceScore: r.DistanceScore,
			SlippageScore: r.SlippageScore,
			RiskScore:     r.RiskScore,
			RiskLevel:     string(r.RiskLevel),
		}
	}
	return out
}

func decodeSnapshot(marketID uint32, symbol string, book *orderbook.Book, depth int) Snapshot {
	snap := book.Snapshot(depth)
	return Snapshot{
		MarketID:        marketID,
		Symbol:          symbol,
		Sequence:        book.Sequence(),
		TimestampMicros: time.Now().UnixMicro(),
		Bids:            toLevels(snap.Bids),
		Asks:            toLevels(snap.Asks),
	}
}

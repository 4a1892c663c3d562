// Package fanout implements the HTTP+WebSocket adapters that expose the
// order book, stop-order ranking, and mark-price state to external
// consumers, grounded on the predecessor's pkg/api
// websocket Hub/Client pattern generalized onto the two internal buses.
package fanout

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/severussssss/hp-node-stream/internal/ingest"
	"github.com/severussssss/hp-node-stream/internal/markprice"
	"github.com/severussssss/hp-node-stream/internal/orderbook"
	"github.com/severussssss/hp-node-stream/internal/registry"
)

const (
	clientSendCapacity    = 1024 // >= 1000 book updates
	markPriceSendCapacity = 128  // >= 100 price updates
	pingInterval          = 54 * time.Second
	pongWait              = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub upgrades incoming connections and fans the two internal buses out to
// per-subscriber bounded queues, rebuilding a full snapshot on every
// forwarded event rather than sending raw deltas.
type Hub struct {
	books      *ingest.BookSet
	reg        *registry.Registry
	updates    bus[ingest.MarketUpdate]
	markPrices bus[markprice.Update]
	logger     *zap.SugaredLogger
	metrics    wsRecorder
}

// bus is the subset of *internal/bus.Bus[T] the hub needs, kept narrow so
// tests can substitute a fake.
type bus[T any] interface {
	Subscribe(capacity int) (<-chan T, func())
}

// wsRecorder is the subset of internal/metrics.Registry the hub reports to,
// kept narrow so this package never imports internal/metrics.
type wsRecorder interface {
	ClientConnected()
	ClientDisconnected()
	RecordWSMessage(stream string)
}

func NewHub(books *ingest.BookSet, reg *registry.Registry, updates bus[ingest.MarketUpdate], markPrices bus[markprice.Update], logger *zap.SugaredLogger) *Hub {
	return &Hub{books: books, reg: reg, updates: updates, markPrices: markPrices, logger: logger}
}

// SetMetrics attaches a metrics recorder. Optional; nil (the default) means
// no metrics are reported.
func (h *Hub) SetMetrics(m wsRecorder) { h.metrics = m }

// client is one subscriber connection with its own outbound queue and
// subscription sets.
type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string // opaque connection id, for correlating log lines

	mu               sync.RWMutex
	orderbookDepth   map[uint32]int
	markpriceMarkets map[uint32]bool

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:             conn,
		id:               uuid.NewString(),
		send:             make(chan []byte, clientSendCapacity),
		orderbookDepth:   make(map[uint32]int),
		markpriceMarkets: make(map[uint32]bool),
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// closeSlowConsumer closes the connection with 1008 (policy violation), the
// code the surface documents for a subscriber that falls behind.
func (c *client) closeSlowConsumer() {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "slow consumer"), deadline)
		close(c.send)
		c.conn.Close()
	})
}

// offer is a non-blocking send; a full queue means a slow consumer, which
// is closed rather than allowed to stall a forwarder.
func (c *client) offer(payload []byte) {
	defer func() { recover() }() // swallow send-on-closed-channel race with close()
	select {
	case c.send <- payload:
	default:
		c.closeSlowConsumer()
	}
}

// ServeWS upgrades the connection and runs its read/write/forward loops
// until the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warnw("ws_upgrade_failed", "err", err)
		}
		return
	}

	c := newClient(conn)
	if h.logger != nil {
		h.logger.Infow("ws_client_connected", "client_id", c.id)
	}
	if h.metrics != nil {
		h.metrics.ClientConnected()
	}
	obCh, obUnsub := h.updates.Subscribe(clientSendCapacity)
	mpCh, mpUnsub := h.markPrices.Subscribe(markPriceSendCapacity)

	go h.forwardOrderbook(c, obCh)
	go h.forwardMarkPrice(c, mpCh)
	go h.writePump(c)
	h.readPump(c) // blocks until the connection closes

	obUnsub()
	mpUnsub()
	if h.logger != nil {
		h.logger.Infow("ws_client_disconnected", "client_id", c.id)
	}
	if h.metrics != nil {
		h.metrics.ClientDisconnected()
	}
}

func (h *Hub) readPump(c *client) {
	defer c.close()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req wsSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}
		h.handleControl(c, req)
	}
}

func (h *Hub) handleControl(c *client, req wsSubscribeRequest) {
	switch req.Op {
	case "subscribe_orderbook":
		depth := req.Depth
		if depth <= 0 || depth > 50 {
			depth = 50
		}
		c.mu.Lock()
		for _, id := range req.MarketIDs {
			c.orderbookDepth[id] = depth
		}
		c.mu.Unlock()
		for _, id := range req.MarketIDs {
			h.sendSnapshot(c, id, depth)
		}
	case "subscribe_markprice":
		c.mu.Lock()
		if len(req.MarketIDs) == 0 {
			c.markpriceMarkets[0] = true // 0 is never a real market id; sentinel for "all"
		}
		for _, id := range req.MarketIDs {
			c.markpriceMarkets[id] = true
		}
		c.mu.Unlock()
	case "unsubscribe":
		c.mu.Lock()
		for _, id := range req.MarketIDs {
			delete(c.orderbookDepth, id)
			delete(c.markpriceMarkets, id)
		}
		c.mu.Unlock()
	}
}

// sendSnapshot sends one synthetic full snapshot for marketID when the
// client subscribes to it.
func (h *Hub) sendSnapshot(c *client, marketID uint32, depth int) {
	book, ok := h.books.Get(marketID)
	if !ok {
		return
	}
	symbol, _ := h.reg.LookupByID(marketID)
	c.offer(encodeSnapshot(marketID, symbol, book, depth))
}

func (h *Hub) forwardOrderbook(c *client, ch <-chan ingest.MarketUpdate) {
	for upd := range ch {
		c.mu.RLock()
		depth, subscribed := c.orderbookDepth[upd.MarketID]
		c.mu.RUnlock()
		if !subscribed {
			continue
		}
		book, ok := h.books.Get(upd.MarketID)
		if !ok {
			continue
		}
		c.offer(encodeSnapshot(upd.MarketID, upd.Symbol, book, depth))
		if h.metrics != nil {
			h.metrics.RecordWSMessage("orderbook")
		}
	}
	// channel closed: either the bus dropped us for lagging, or we
	// unsubscribed on disconnect. Either way the client must go too.
	c.closeSlowConsumer()
}

func (h *Hub) forwardMarkPrice(c *client, ch <-chan markprice.Update) {
	for upd := range ch {
		c.mu.RLock()
		_, all := c.markpriceMarkets[0]
		_, subscribed := c.markpriceMarkets[upd.MarketID]
		c.mu.RUnlock()
		if !all && !subscribed {
			continue
		}
		payload, err := json.Marshal(MarkPriceMessage{
			MarketID:           upd.MarketID,
			Symbol:             upd.Symbol,
			TimestampMicros:    upd.TimestampMillis * 1000,
			MarkPrice:          upd.Result.MarkPrice,
			OracleAdjusted:     upd.Result.OracleAdjusted,
			InternalMedian:     upd.Result.InternalMedian,
			CEXMedian:          upd.Result.CEXMedian,
			UsedFallback:       upd.Result.UsedFallback,
			CalculationVersion: upd.CalculationVersion,
		})
		if err != nil {
			continue
		}
		c.offer(payload)
		if h.metrics != nil {
			h.metrics.RecordWSMessage("markprice")
		}
	}
	c.closeSlowConsumer()
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encodeSnapshot(marketID uint32, symbol string, book *orderbook.Book, depth int) []byte {
	snap := book.Snapshot(depth)
	payload, err := json.Marshal(Snapshot{
		MarketID:        marketID,
		Symbol:          symbol,
		Sequence:        book.Sequence(),
		TimestampMicros: time.Now().UnixMicro(),
		Bids:            toLevels(snap.Bids),
		Asks:            toLevels(snap.Asks),
	})
	if err != nil {
		return nil
	}
	return payload
}

func toLevels(levels []orderbook.Level) []Level {
	out := make([]Level, len(levels))
	for i, l := range levels {
		out[i] = Level{Price: l.Price, Size: l.Size}
	}
	return out
}

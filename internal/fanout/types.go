package fanout

// Level is one (price, aggregate size) point on a wire snapshot.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Snapshot is the wire message sent to orderbook subscribers: a full
// top-N rebuild of both sides rather than a raw delta.
type Snapshot struct {
	MarketID        uint32  `json:"market_id"`
	Symbol          string  `json:"symbol"`
	Sequence        uint64  `json:"sequence"`
	TimestampMicros int64   `json:"timestamp_micros"`
	Bids            []Level `json:"bids"`
	Asks            []Level `json:"asks"`
}

// MarkPriceMessage is the wire message sent to mark-price subscribers.
type MarkPriceMessage struct {
	MarketID           uint32   `json:"market_id"`
	Symbol             string   `json:"symbol"`
	TimestampMicros    int64    `json:"timestamp_micros"`
	MarkPrice          float64  `json:"mark_price"`
	OracleAdjusted     *float64 `json:"oracle_adjusted,omitempty"`
	InternalMedian     float64  `json:"internal_median"`
	CEXMedian          *float64 `json:"cex_median,omitempty"`
	UsedFallback       bool     `json:"used_fallback"`
	CalculationVersion uint64   `json:"calculation_version"`
}

// MarketInfo is the response element for GetMarkets.
type MarketInfo struct {
	MarketID uint32 `json:"market_id"`
	Symbol   string `json:"symbol"`
}

// RankedStopOrder is one element of GetStopOrders. Unless rank_by_risk is
// set, the derived fields are zero and RiskLevel is "UNKNOWN".
type RankedStopOrder struct {
	OrderID         uint64  `json:"order_id"`
	User            string  `json:"user"`
	Coin            string  `json:"coin"`
	Side            string  `json:"side"`
	Price           float64 `json:"price"`
	Size            float64 `json:"size"`
	NotionalValue   float64 `json:"notional_value"`
	DistanceBps     float64 `json:"distance_bps"`
	SlippageBps     float64 `json:"slippage_bps"`
	DistanceScore   float64 `json:"distance_score"`
	SlippageScore   float64 `json:"slippage_score"`
	RiskScore       float64 `json:"risk_score"`
	RiskLevel       string  `json:"risk_level"`
}

// MarkPriceResponse is GetMarkPrice's unary response, including the age of
// the cached value.
type MarkPriceResponse struct {
	MarketID    uint32  `json:"market_id"`
	Symbol      string  `json:"symbol"`
	MarkPrice   float64 `json:"mark_price"`
	CacheAgeMs  int64   `json:"cache_age_ms"`
}

// ErrorResponse is the error envelope carried on every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// wsSubscribeRequest is what a client sends after the /v1/ws upgrade.
type wsSubscribeRequest struct {
	Op               string   `json:"op"` // "subscribe_orderbook" | "subscribe_markprice" | "unsubscribe"
	MarketIDs        []uint32 `json:"market_ids"`
	Depth            int      `json:"depth"`
	UpdateIntervalMs int      `json:"update_interval_ms"`
}

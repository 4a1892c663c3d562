package ingest

import "github.com/severussssss/hp-node-stream/internal/orderbook"

// MarketUpdate is published on the bus once per successful book mutation.
type MarketUpdate struct {
	MarketID       uint32
	Symbol         string
	Sequence       uint64
	TimestampNanos int64
	Deltas         []orderbook.Delta
}

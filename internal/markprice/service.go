package markprice

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/severussssss/hp-node-stream/internal/oracle"
	"github.com/severussssss/hp-node-stream/pkg/clock"
)

// BookSource is the subset of *orderbook.Book the mark-price ticker needs.
type BookSource interface {
	BestBidAsk() (bid, ask float64, ok bool)
}

// Market describes one market participating in a tick.
type Market struct {
	MarketID uint32
	Symbol   string
	Coin     string
	Book     BookSource
}

// Update is one market's tick result, carrying the tick-global
// calculation_version.
type Update struct {
	MarketID           uint32
	Symbol             string
	TimestampMillis    int64
	Result             Result
	CalculationVersion uint64
}

// Service drives Calculator on a fixed tick, reading each market's best
// bid/ask and the oracle cache, and publishing one Update per market with
// a bid and ask present.
type Service struct {
	calc    *Calculator
	clock   clock.Clock
	prices  oracle.PriceProvider
	markets func() []Market
	publish func(Update)
	logger  *zap.SugaredLogger

	version atomic.Uint64
}

func NewService(c clock.Clock, prices oracle.PriceProvider, markets func() []Market, publish func(Update), logger *zap.SugaredLogger) *Service {
	return &Service{
		calc:    New(),
		clock:   c,
		prices:  prices,
		markets: markets,
		publish: publish,
		logger:  logger,
	}
}

// Run ticks at interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			s.tick(now)
		}
	}
}

func (s *Service) tick(now time.Time) {
	version := s.version.Add(1)

	for _, m := range s.markets() {
		bid, ask, ok := m.Book.BestBidAsk()
		if !ok {
			continue
		}

		in := Inputs{BestBid: bid, BestAsk: ask}
		if snap, ok := s.prices.Snapshot(m.Coin); ok {
			if snap.HasOracle {
				op := snap.OraclePrice
				in.OraclePrice = &op
			}
			if len(snap.CEXPrices) > 0 {
				cex := make(map[string]float64, len(snap.CEXPrices))
				for _, q := range snap.CEXPrices {
					cex[q.Venue] = q.Price
				}
				in.CEXPrices = cex
			}
		}

		result := s.calc.Compute(m.MarketID, in, now)
		s.publish(Update{
			MarketID:           m.MarketID,
			Symbol:             m.Symbol,
			TimestampMillis:    now.UnixMilli(),
			Result:             result,
			CalculationVersion: version,
		})
	}

	if s.logger != nil {
		s.logger.Debugw("markprice_tick", "calculation_version", version)
	}
}

package markprice

import (
	"testing"
	"time"

	"github.com/severussssss/hp-node-stream/internal/oracle"
	"github.com/severussssss/hp-node-stream/pkg/clock"
)

type fakeBook struct {
	bid, ask float64
	ok       bool
}

func (f fakeBook) BestBidAsk() (float64, float64, bool) { return f.bid, f.ask, f.ok }

func TestService_SkipsEmptyBookMarkets(t *testing.T) {
	var updates []Update
	svc := NewService(clock.RealClock{}, oracle.NewStaticPrices(), func() []Market {
		return []Market{
			{MarketID: 1, Symbol: "A", Book: fakeBook{ok: false}},
			{MarketID: 2, Symbol: "B", Book: fakeBook{bid: 99, ask: 101, ok: true}},
		}
	}, func(u Update) { updates = append(updates, u) }, nil)

	svc.tick(time.Now())

	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	if updates[0].MarketID != 2 {
		t.Fatalf("expected market 2's update, got %+v", updates[0])
	}
}

func TestService_CalculationVersionSharedAcrossMarketsInOneTick(t *testing.T) {
	var updates []Update
	svc := NewService(clock.RealClock{}, oracle.NewStaticPrices(), func() []Market {
		return []Market{
			{MarketID: 1, Symbol: "A", Book: fakeBook{bid: 10, ask: 12, ok: true}},
			{MarketID: 2, Symbol: "B", Book: fakeBook{bid: 20, ask: 22, ok: true}},
		}
	}, func(u Update) { updates = append(updates, u) }, nil)

	svc.tick(time.Now())
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].CalculationVersion != updates[1].CalculationVersion {
		t.Fatalf("expected shared calculation_version, got %d and %d", updates[0].CalculationVersion, updates[1].CalculationVersion)
	}

	svc.tick(time.Now())
	if updates[2].CalculationVersion != updates[0].CalculationVersion+1 {
		t.Fatalf("expected calculation_version to increment across ticks")
	}
}

func TestService_UsesOraclePriceWhenPresent(t *testing.T) {
	prices := oracle.NewStaticPrices()
	prices.Set("BTC", oracle.Snapshot{OraclePrice: 100, HasOracle: true})

	var updates []Update
	svc := NewService(clock.RealClock{}, prices, func() []Market {
		return []Market{{MarketID: 1, Symbol: "HL-BTC/USD-PERP", Coin: "BTC", Book: fakeBook{bid: 99, ask: 101, ok: true}}}
	}, func(u Update) { updates = append(updates, u) }, nil)

	svc.tick(time.Now())
	if updates[0].Result.OracleAdjusted == nil {
		t.Fatal("expected oracle_adjusted to be set")
	}
}

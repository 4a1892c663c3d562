package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/severussssss/hp-node-stream/internal/ingest"
	"github.com/severussssss/hp-node-stream/internal/markprice"
	"github.com/severussssss/hp-node-stream/internal/oracle"
	"github.com/severussssss/hp-node-stream/internal/orderbook"
	"github.com/severussssss/hp-node-stream/internal/registry"
	"github.com/severussssss/hp-node-stream/internal/stoporder"
	"github.com/severussssss/hp-node-stream/pkg/clock"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry, *ingest.BookSet, *stoporder.Registry, *markprice.Cache, *clock.Fake) {
	t.Helper()
	cat := oracle.NewStaticCatalog(oracle.CatalogEntry{MarketID: 1, Exchange: "HL", Base: "BTC", Quote: "USD", InstrumentType: "PERP"})
	reg := registry.New(cat)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	books := ingest.NewBookSet(orderbook.DefaultConfig())
	book := books.Ensure(1, "HL-BTC/USD-PERP")
	book.Add(orderbook.Order{ID: 1, Price: 100, Size: 2}, orderbook.Bid)
	book.Add(orderbook.Order{ID: 2, Price: 101, Size: 3}, orderbook.Ask)

	stops := stoporder.New()
	mpCache := markprice.NewCache()
	fc := clock.NewFake(time.Unix(1000, 0))

	server := NewServer(nil, books, reg, stops, mpCache, fc, nil, nil, nil)
	return server, reg, books, stops, mpCache, fc
}

func TestHandleMarkets(t *testing.T) {
	server, _, _, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/markets", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out []MarketInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].MarketID != 1 {
		t.Fatalf("markets = %+v", out)
	}
}

func TestHandleOrderbook(t *testing.T) {
	server, _, _, _, _, _ := newTestServer(t)

	t.Run("known market", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/markets/1/orderbook?depth=5", nil)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var snap Snapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(snap.Bids) != 1 || snap.Bids[0].Price != 100 {
			t.Fatalf("bids = %+v", snap.Bids)
		}
	})

	t.Run("unknown market", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/markets/99/orderbook", nil)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		var errResp ErrorResponse
		json.Unmarshal(rec.Body.Bytes(), &errResp)
		if errResp.Error != "NOT_FOUND" {
			t.Fatalf("error = %q, want NOT_FOUND", errResp.Error)
		}
	})
}

func TestHandleMarkPrice(t *testing.T) {
	server, _, _, _, mpCache, fc := newTestServer(t)

	t.Run("unavailable before any tick", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/markets/1/mark-price", nil)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("unknown market", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/markets/99/mark-price", nil)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("cached price reports age", func(t *testing.T) {
		mpCache.Set(markprice.Update{
			MarketID:        1,
			Symbol:          "HL-BTC/USD-PERP",
			TimestampMillis: fc.Now().UnixMilli(),
			Result:          markprice.Result{MarkPrice: 100.5},
		})
		fc.Advance(250 * time.Millisecond)

		req := httptest.NewRequest(http.MethodGet, "/v1/markets/1/mark-price", nil)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var out MarkPriceResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.MarkPrice != 100.5 {
			t.Fatalf("mark_price = %v, want 100.5", out.MarkPrice)
		}
		if out.CacheAgeMs != 250 {
			t.Fatalf("cache_age_ms = %d, want 250", out.CacheAgeMs)
		}
	})
}

func TestHandleStopOrders(t *testing.T) {
	server, _, _, stops, _, _ := newTestServer(t)

	stops.Add(1, stoporder.StopOrder{ID: 1, User: "alice", Coin: "BTC", Side: orderbook.Ask, Price: 110, Size: 1})
	stops.Add(1, stoporder.StopOrder{ID: 2, User: "bob", Coin: "BTC", Side: orderbook.Bid, Price: 90, Size: 5})

	t.Run("unranked, unfiltered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/stop-orders?market_id=1", nil)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		var out []RankedStopOrder
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(out) != 2 {
			t.Fatalf("len(out) = %d, want 2", len(out))
		}
		for _, o := range out {
			if o.RiskLevel != "UNKNOWN" {
				t.Fatalf("risk_level = %q, want UNKNOWN when unranked", o.RiskLevel)
			}
		}
	})

	t.Run("filtered by min_notional", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/stop-orders?market_id=1&min_notional=200", nil)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		var out []RankedStopOrder
		json.Unmarshal(rec.Body.Bytes(), &out)
		if len(out) != 1 || out[0].OrderID != 2 {
			t.Fatalf("out = %+v, want only order 2 (notional 450)", out)
		}
	})

	t.Run("ranked by risk", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/stop-orders?market_id=1&rank_by_risk=true", nil)
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)

		var out []RankedStopOrder
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(out) != 2 {
			t.Fatalf("len(out) = %d, want 2", len(out))
		}
		for _, o := range out {
			if o.RiskLevel == "UNKNOWN" {
				t.Fatalf("risk_level should be derived when rank_by_risk=true, got %+v", o)
			}
		}
	})
}

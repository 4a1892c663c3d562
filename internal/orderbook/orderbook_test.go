package orderbook

import "testing"

func TestBook_AddCancelBidSide(t *testing.T) {
	b := New(1, "HL-BTC/USD-PERP", DefaultConfig())

	if _, ok := b.Add(Order{ID: 1, Price: 100, Size: 2}, Bid); !ok {
		t.Fatal("add should succeed")
	}
	if _, ok := b.Remove(1, 100, Bid); !ok {
		t.Fatal("remove should succeed")
	}

	snap := b.Snapshot(1)
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Fatalf("expected empty book, got %+v", snap)
	}
	if got := b.Sequence(); got != 2 {
		t.Fatalf("sequence = %d, want 2", got)
	}
	if got := b.BidLevels(); got != 0 {
		t.Fatalf("bid_count = %d, want 0", got)
	}
}

func TestBook_BestBidAskThreeLevels(t *testing.T) {
	b := New(1, "HL-BTC/USD-PERP", DefaultConfig())

	bidPrices := []float64{99, 100, 98}
	for i, p := range bidPrices {
		b.Add(Order{ID: uint64(i + 1), Price: p, Size: 1}, Bid)
	}
	askPrices := []float64{101, 100.5, 102}
	for i, p := range askPrices {
		b.Add(Order{ID: uint64(i + 10), Price: p, Size: 1}, Ask)
	}

	bid, ask, ok := b.BestBidAsk()
	if !ok {
		t.Fatal("expected best bid/ask")
	}
	if bid != 100 || ask != 100.5 {
		t.Fatalf("best bid/ask = %v/%v, want 100/100.5", bid, ask)
	}

	snap := b.Snapshot(2)
	wantBids := []Level{{100, 1}, {99, 1}}
	wantAsks := []Level{{100.5, 1}, {101, 1}}
	assertLevels(t, "bids", snap.Bids, wantBids)
	assertLevels(t, "asks", snap.Asks, wantAsks)
}

func assertLevels(t *testing.T, label string, got, want []Level) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s length = %d, want %d (%+v)", label, len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s[%d] = %+v, want %+v", label, i, got[i], want[i])
		}
	}
}

func TestBook_SidesStayOrderedAndDuplicateFree(t *testing.T) {
	b := New(1, "X", DefaultConfig())
	b.Add(Order{ID: 1, Price: 100, Size: 1}, Bid)
	b.Add(Order{ID: 2, Price: 100, Size: 1}, Bid) // same level, should merge
	b.Add(Order{ID: 3, Price: 101, Size: 1}, Bid)

	snap := b.Snapshot(0)
	if len(snap.Bids) != 2 {
		t.Fatalf("expected 2 distinct bid levels, got %d", len(snap.Bids))
	}
	if snap.Bids[0].Price != 101 || snap.Bids[1].Price != 100 {
		t.Fatalf("bids not descending: %+v", snap.Bids)
	}
	if snap.Bids[1].Size != 2 {
		t.Fatalf("expected merged size 2 at 100, got %v", snap.Bids[1].Size)
	}
}

func TestBook_AddRemoveRoundTrip(t *testing.T) {
	b := New(1, "X", DefaultConfig())
	b.Add(Order{ID: 1, Price: 50, Size: 3}, Ask)
	b.Remove(1, 50, Ask)

	if got := b.Sequence(); got != 2 {
		t.Fatalf("sequence = %d, want 2", got)
	}
	snap := b.Snapshot(0)
	if len(snap.Asks) != 0 {
		t.Fatalf("expected empty asks, got %+v", snap.Asks)
	}
}

func TestBook_CapacityBackpressureDropsAdd(t *testing.T) {
	cfg := Config{MaxTotalOrders: 2, MaxLevelsPerSide: 1000, MaxOrdersPerLevel: 100}
	b := New(1, "X", cfg)

	b.Add(Order{ID: 1, Price: 1, Size: 1}, Bid)
	b.Add(Order{ID: 2, Price: 2, Size: 1}, Bid)
	_, ok := b.Add(Order{ID: 3, Price: 3, Size: 1}, Bid)
	if ok {
		t.Fatal("expected third add to be dropped for capacity")
	}
	if got := b.TotalOrders(); got != 2 {
		t.Fatalf("total_orders = %d, want 2", got)
	}
}

func TestBook_OrdersPerLevelFIFOEviction(t *testing.T) {
	cfg := Config{MaxTotalOrders: 10_000, MaxLevelsPerSide: 1000, MaxOrdersPerLevel: 2}
	b := New(1, "X", cfg)

	b.Add(Order{ID: 1, Price: 100, Size: 1}, Bid)
	b.Add(Order{ID: 2, Price: 100, Size: 1}, Bid)
	b.Add(Order{ID: 3, Price: 100, Size: 1}, Bid) // evicts order 1 (FIFO)

	if _, ok := b.Remove(1, 100, Bid); ok {
		t.Fatal("order 1 should have been evicted")
	}
	if _, ok := b.Remove(3, 100, Bid); !ok {
		t.Fatal("order 3 should still be resting")
	}
}

func TestBook_LevelsPerSideEvictsWorstPrice(t *testing.T) {
	cfg := Config{MaxTotalOrders: 10_000, MaxLevelsPerSide: 2, MaxOrdersPerLevel: 100}
	b := New(1, "X", cfg)

	b.Add(Order{ID: 1, Price: 100, Size: 1}, Bid)
	b.Add(Order{ID: 2, Price: 99, Size: 1}, Bid)
	b.Add(Order{ID: 3, Price: 101, Size: 1}, Bid) // 99 is worst, should be evicted

	snap := b.Snapshot(0)
	if len(snap.Bids) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(snap.Bids))
	}
	for _, l := range snap.Bids {
		if l.Price == 99 {
			t.Fatal("worst-price level 99 should have been evicted")
		}
	}
}

func TestBook_RemoveUnknownOrderIsNoop(t *testing.T) {
	b := New(1, "X", DefaultConfig())
	b.Add(Order{ID: 1, Price: 100, Size: 1}, Bid)
	if _, ok := b.Remove(999, 100, Bid); ok {
		t.Fatal("removing unknown order id should be a no-op")
	}
}

func TestBook_WalkForFillComputesVWAP(t *testing.T) {
	b := New(1, "X", DefaultConfig())
	b.Add(Order{ID: 1, Price: 105, Size: 0.5}, Ask)
	b.Add(Order{ID: 2, Price: 106, Size: 0.5}, Ask)

	vwap, ok := b.WalkForFill(Ask, 1)
	if !ok {
		t.Fatal("expected sufficient liquidity")
	}
	want := (105*0.5 + 106*0.5) / 1
	if diff := vwap - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("vwap = %v, want %v", vwap, want)
	}
}

func TestBook_WalkForFillInsufficientLiquidity(t *testing.T) {
	b := New(1, "X", DefaultConfig())
	b.Add(Order{ID: 1, Price: 105, Size: 0.1}, Ask)

	if _, ok := b.WalkForFill(Ask, 1); ok {
		t.Fatal("expected insufficient liquidity")
	}
}

func TestBook_EmptySideHasNoBestBidAsk(t *testing.T) {
	b := New(1, "X", DefaultConfig())
	if _, _, ok := b.BestBidAsk(); ok {
		t.Fatal("expected no best bid/ask on empty book")
	}
}

func TestBook_Clear(t *testing.T) {
	b := New(1, "X", DefaultConfig())
	b.Add(Order{ID: 1, Price: 100, Size: 1}, Bid)
	b.Add(Order{ID: 2, Price: 101, Size: 1}, Ask)
	b.Clear()

	snap := b.Snapshot(0)
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Fatal("expected empty book after clear")
	}
	if got := b.TotalOrders(); got != 0 {
		t.Fatalf("total_orders = %d, want 0", got)
	}
}

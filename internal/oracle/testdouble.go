package oracle

import (
	"context"
	"fmt"
	"sync"
)

// StaticCatalog is an in-memory CatalogProvider for tests.
type StaticCatalog struct {
	mu      sync.RWMutex
	entries []CatalogEntry
}

func NewStaticCatalog(entries ...CatalogEntry) *StaticCatalog {
	return &StaticCatalog{entries: entries}
}

func (s *StaticCatalog) Set(entries []CatalogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
}

func (s *StaticCatalog) List(ctx context.Context) ([]CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CatalogEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *StaticCatalog) BySymbol(ctx context.Context, base string) (CatalogEntry, error) {
	all, _ := s.List(ctx)
	for _, e := range all {
		if e.Base == base {
			return e, nil
		}
	}
	return CatalogEntry{}, fmt.Errorf("symbol %q not found", base)
}

func (s *StaticCatalog) ByVenue(ctx context.Context, exchange string) ([]CatalogEntry, error) {
	all, _ := s.List(ctx)
	out := make([]CatalogEntry, 0)
	for _, e := range all {
		if e.Exchange == exchange {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *StaticCatalog) Search(ctx context.Context, query string) ([]CatalogEntry, error) {
	return s.ByVenue(ctx, query)
}

func (s *StaticCatalog) MarketInfo(ctx context.Context, marketID uint32) (CatalogEntry, error) {
	all, _ := s.List(ctx)
	for _, e := range all {
		if e.MarketID == marketID {
			return e, nil
		}
	}
	return CatalogEntry{}, fmt.Errorf("market %d not found", marketID)
}

// StaticPrices is an in-memory PriceProvider for tests.
type StaticPrices struct {
	mu    sync.RWMutex
	cache map[string]Snapshot
}

func NewStaticPrices() *StaticPrices {
	return &StaticPrices{cache: make(map[string]Snapshot)}
}

func (s *StaticPrices) Set(symbol string, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[symbol] = snap
}

func (s *StaticPrices) Snapshot(symbol string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.cache[symbol]
	return snap, ok
}

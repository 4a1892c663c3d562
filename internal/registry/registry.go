// Package registry caches the {market id <-> symbol, tick/step, max
// leverage} universe, refreshed periodically from an external catalog.
// It is the predecessor's MarketRegistry pattern — a RWMutex-guarded map
// swapped wholesale on refresh — generalized from a symbol-keyed single
// map to a dual id/coin lookup with an atomic snapshot swap so partial
// refreshes are never observed.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/severussssss/hp-node-stream/internal/oracle"
)

type snapshot struct {
	byID   map[uint32]Entry
	byCoin map[string]uint32 // canonical symbol string and bare-base alias -> market id
}

// Registry is safe for concurrent lookup and a single concurrent Refresh.
type Registry struct {
	catalog oracle.CatalogProvider

	mu   sync.RWMutex
	snap snapshot
}

func New(catalog oracle.CatalogProvider) *Registry {
	return &Registry{
		catalog: catalog,
		snap: snapshot{
			byID:   make(map[uint32]Entry),
			byCoin: make(map[string]uint32),
		},
	}
}

// LookupByCoin resolves a coin (the canonical symbol string, or its
// bare-base alias) to a market id.
func (r *Registry) LookupByCoin(coin string) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.snap.byCoin[coin]
	return id, ok
}

// LookupByID resolves a market id to its canonical symbol string.
func (r *Registry) LookupByID(id uint32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.snap.byID[id]
	if !ok {
		return "", false
	}
	return e.Symbol.String(), true
}

// Entry returns the full registry entry for a market id.
func (r *Registry) Entry(id uint32) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.snap.byID[id]
	return e, ok
}

// ListAll returns every registered (id, symbol) pair.
func (r *Registry) ListAll() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.snap.byID))
	for _, e := range r.snap.byID {
		out = append(out, e)
	}
	return out
}

// Refresh fetches the current catalog and atomically replaces the
// registry's maps. On failure the previous snapshot is retained and the
// error is returned — callers never observe a partial swap.
func (r *Registry) Refresh(ctx context.Context) error {
	entries, err := r.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("registry refresh: %w", err)
	}

	next := snapshot{
		byID:   make(map[uint32]Entry, len(entries)),
		byCoin: make(map[string]uint32, len(entries)),
	}
	for _, e := range entries {
		sym := Symbol{
			Exchange:       e.Exchange,
			Base:           e.Base,
			Quote:          e.Quote,
			InstrumentType: e.InstrumentType,
		}
		entry := Entry{
			MarketID:    e.MarketID,
			Symbol:      sym,
			TickSize:    e.TickSize,
			StepSize:    e.StepSize,
			MaxLeverage: e.MaxLeverage,
		}
		next.byID[e.MarketID] = entry
		next.byCoin[sym.String()] = e.MarketID
		// The bare base asset is accepted as an alias for backward
		// compatibility with feeds that only carry the coin, not the
		// full exchange-qualified symbol.
		next.byCoin[e.Base] = e.MarketID
	}

	r.mu.Lock()
	r.snap = next
	r.mu.Unlock()
	return nil
}

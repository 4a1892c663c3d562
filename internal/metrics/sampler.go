package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/severussssss/hp-node-stream/internal/breaker"
	"github.com/severussssss/hp-node-stream/internal/ingest"
	"github.com/severussssss/hp-node-stream/internal/registry"
)

// Sampler periodically copies gauge-shaped state (book depth, breaker
// state) out of the live structures into the registry, since those
// structures have no reason to know about Prometheus themselves.
type Sampler struct {
	registry *Registry
	reg      *registry.Registry
	books    *ingest.BookSet
	breakers *breaker.Set
	interval time.Duration
}

func NewSampler(r *Registry, reg *registry.Registry, books *ingest.BookSet, breakers *breaker.Set, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sampler{registry: r, reg: reg, books: books, breakers: breakers, interval: interval}
}

// Run samples on a ticker until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sampleOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	for _, entry := range s.reg.ListAll() {
		market := strconv.FormatUint(uint64(entry.MarketID), 10)

		if book, ok := s.books.Get(entry.MarketID); ok {
			s.registry.BookLevels.WithLabelValues(market, "bid").Set(float64(book.BidLevels()))
			s.registry.BookLevels.WithLabelValues(market, "ask").Set(float64(book.AskLevels()))
		}

		state := s.breakers.State(entry.MarketID)
		s.registry.BreakerState.WithLabelValues(market).Set(float64(breakerStateValue(state.Kind)))
	}
}

func breakerStateValue(kind breaker.Kind) int {
	switch kind {
	case breaker.HalfOpen:
		return 1
	case breaker.Open:
		return 2
	default:
		return 0
	}
}

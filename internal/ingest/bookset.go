package ingest

import (
	"sync"

	"github.com/severussssss/hp-node-stream/internal/orderbook"
)

// BookSet owns every market's order book. A book is created by Ensure the
// first time its market id is used and is never destroyed while the service
// runs.
type BookSet struct {
	cfg orderbook.Config

	mu    sync.RWMutex
	books map[uint32]*orderbook.Book
}

func NewBookSet(cfg orderbook.Config) *BookSet {
	return &BookSet{cfg: cfg, books: make(map[uint32]*orderbook.Book)}
}

// Ensure returns the book for marketID, creating it with symbol if absent.
func (s *BookSet) Ensure(marketID uint32, symbol string) *orderbook.Book {
	s.mu.RLock()
	b, ok := s.books[marketID]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.books[marketID]; ok {
		return b
	}
	b = orderbook.New(marketID, symbol, s.cfg)
	s.books[marketID] = b
	return b
}

func (s *BookSet) Get(marketID uint32) (*orderbook.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[marketID]
	return b, ok
}

// All returns a snapshot of every currently known book.
func (s *BookSet) All() map[uint32]*orderbook.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint32]*orderbook.Book, len(s.books))
	for k, v := range s.books {
		out[k] = v
	}
	return out
}

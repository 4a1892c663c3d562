// Package stoporder indexes conditional (trigger/stop) orders by market and
// by user, and ranks them by distance-to-trigger and expected slippage.
package stoporder

import "sync"

// Registry holds every resting stop order, indexed two ways. A single
// writer-preferring lock covers the whole structure; query traffic
// dominates mutation.
type Registry struct {
	mu sync.RWMutex

	byMarket map[uint32]map[string][]StopOrder // market -> user -> orders
	marketOf map[uint64]uint32                 // order id -> market id, for removal
	all      map[uint64]StopOrder
}

func New() *Registry {
	return &Registry{
		byMarket: make(map[uint32]map[string][]StopOrder),
		marketOf: make(map[uint64]uint32),
		all:      make(map[uint64]StopOrder),
	}
}

func (r *Registry) Add(marketID uint32, order StopOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.all[order.ID] = order
	r.marketOf[order.ID] = marketID

	users, ok := r.byMarket[marketID]
	if !ok {
		users = make(map[string][]StopOrder)
		r.byMarket[marketID] = users
	}
	users[order.User] = append(users[order.User], order)
}

func (r *Registry) Remove(orderID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.all[orderID]
	if !ok {
		return
	}
	delete(r.all, orderID)
	marketID := r.marketOf[orderID]
	delete(r.marketOf, orderID)

	users := r.byMarket[marketID]
	if users == nil {
		return
	}
	orders := users[order.User]
	for i, o := range orders {
		if o.ID == orderID {
			orders = append(orders[:i], orders[i+1:]...)
			break
		}
	}
	if len(orders) == 0 {
		delete(users, order.User)
	} else {
		users[order.User] = orders
	}
	if len(users) == 0 {
		delete(r.byMarket, marketID)
	}
}

func (r *Registry) ByMarket(marketID uint32) []StopOrder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := r.byMarket[marketID]
	out := make([]StopOrder, 0, len(users))
	for _, orders := range users {
		out = append(out, orders...)
	}
	return out
}

func (r *Registry) ByUser(user string) []StopOrder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []StopOrder
	for _, users := range r.byMarket {
		out = append(out, users[user]...)
	}
	return out
}

func (r *Registry) All() []StopOrder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StopOrder, 0, len(r.all))
	for _, o := range r.all {
		out = append(out, o)
	}
	return out
}

// MarketOf resolves the market an order belongs to, for callers (such as
// ranking) that index orders by a separately-queried id list.
func (r *Registry) MarketOf(orderID uint64) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.marketOf[orderID]
	return id, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

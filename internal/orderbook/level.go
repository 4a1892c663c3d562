package orderbook

// priceLevel owns the resting orders at one price on one side. Orders are
// kept in insertion (FIFO) order, matching the tie-break rule that deeper
// queue position fills last.
type priceLevel struct {
	price     float64
	totalSize float64
	orders    []Order
}

func newPriceLevel(price float64) *priceLevel {
	return &priceLevel{price: price}
}

// add appends an order, evicting the oldest resting order at this level
// (FIFO) if the level would exceed maxOrders. It reports whether an order
// was evicted and, if so, which one.
func (l *priceLevel) add(o Order, maxOrders int) (evicted Order, didEvict bool) {
	l.orders = append(l.orders, o)
	l.totalSize += o.Size

	if maxOrders > 0 && len(l.orders) > maxOrders {
		evicted = l.orders[0]
		l.orders = l.orders[1:]
		l.totalSize -= evicted.Size
		didEvict = true
	}
	return evicted, didEvict
}

func (l *priceLevel) remove(orderID uint64) bool {
	for i, o := range l.orders {
		if o.ID == orderID {
			l.totalSize -= o.Size
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			return true
		}
	}
	return false
}

func (l *priceLevel) empty() bool {
	return len(l.orders) == 0
}

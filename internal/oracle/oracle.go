package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// CEXQuote is one venue's mid price, keyed by the weight table used for
// the weighted median (Binance:3, OKX:2, Bybit:2, Gate:1, MEXC:1).
type CEXQuote struct {
	Venue string
	Price float64
}

// Snapshot is the oracle cache contents for one market at the moment it was
// last fetched successfully.
type Snapshot struct {
	OraclePrice float64
	HasOracle   bool
	CEXPrices   []CEXQuote
	FetchedAt   time.Time
}

// PriceProvider is the capability interface the mark-price calculator polls.
// Poller (HTTP) and a test double both satisfy it.
type PriceProvider interface {
	Snapshot(symbol string) (Snapshot, bool)
}

type priceResponse struct {
	Oracle map[string]float64            `json:"oracle"`
	CEX    map[string]map[string]float64 `json:"cex"` // symbol -> venue -> price
}

// Poller periodically fetches oracle and CEX mid prices from an external
// HTTPS endpoint and serves the last good snapshot on fetch failure.
type Poller struct {
	http   *resty.Client
	url    string
	logger *zap.SugaredLogger

	mu    sync.RWMutex
	cache map[string]Snapshot
}

func NewPoller(url string, timeout time.Duration, logger *zap.SugaredLogger) *Poller {
	return &Poller{
		http:   resty.New().SetTimeout(timeout),
		url:    url,
		logger: logger,
		cache:  make(map[string]Snapshot),
	}
}

// Run polls on interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	var body priceResponse
	resp, err := p.http.R().SetContext(ctx).SetResult(&body).Get(p.url)
	if err != nil || resp.IsError() {
		if p.logger != nil {
			p.logger.Warnw("oracle_fetch_failed", "err", err)
		}
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for symbol, price := range body.Oracle {
		snap := p.cache[symbol]
		snap.OraclePrice = price
		snap.HasOracle = true
		snap.FetchedAt = now
		p.cache[symbol] = snap
	}
	for symbol, venues := range body.CEX {
		snap := p.cache[symbol]
		quotes := make([]CEXQuote, 0, len(venues))
		for venue, price := range venues {
			quotes = append(quotes, CEXQuote{Venue: venue, Price: price})
		}
		snap.CEXPrices = quotes
		snap.FetchedAt = now
		p.cache[symbol] = snap
	}
}

// Snapshot returns the last cached snapshot for symbol, or false if never
// observed.
func (p *Poller) Snapshot(symbol string) (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.cache[symbol]
	return s, ok
}

// Package oracle polls the two external HTTP collaborators this service
// depends on but does not own: the tradable-product catalog and the
// oracle/CEX mid-price feed. Both are capability interfaces so the registry
// and mark-price calculator can be tested against an in-memory double.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// CatalogEntry describes one tradable product as the external catalog
// reports it.
type CatalogEntry struct {
	MarketID       uint32
	Exchange       string
	Base           string
	Quote          string
	InstrumentType string
	TickSize       float64
	StepSize       float64
	MaxLeverage    int
}

// CatalogProvider is the capability interface the market registry refreshes
// against. Implementations: CatalogClient (HTTP) and a test double.
type CatalogProvider interface {
	List(ctx context.Context) ([]CatalogEntry, error)
	BySymbol(ctx context.Context, base string) (CatalogEntry, error)
	ByVenue(ctx context.Context, exchange string) ([]CatalogEntry, error)
	Search(ctx context.Context, query string) ([]CatalogEntry, error)
	MarketInfo(ctx context.Context, marketID uint32) (CatalogEntry, error)
}

// CatalogClient fetches the universe of tradable products from an HTTPS
// catalog endpoint via POST.
type CatalogClient struct {
	http *resty.Client
	url  string
}

func NewCatalogClient(url string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		http: resty.New().SetTimeout(timeout),
		url:  url,
	}
}

type catalogResponse struct {
	Products []struct {
		MarketID       uint32  `json:"marketId"`
		Exchange       string  `json:"exchange"`
		Base           string  `json:"base"`
		Quote          string  `json:"quote"`
		InstrumentType string  `json:"instrumentType"`
		TickSize       float64 `json:"tickSize"`
		StepSize       float64 `json:"stepSize"`
		MaxLeverage    int     `json:"maxLeverage"`
	} `json:"products"`
}

// List fetches the full universe of tradable products.
func (c *CatalogClient) List(ctx context.Context) ([]CatalogEntry, error) {
	var body catalogResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&body).Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch catalog: status %d", resp.StatusCode())
	}

	entries := make([]CatalogEntry, 0, len(body.Products))
	for _, p := range body.Products {
		entries = append(entries, CatalogEntry{
			MarketID:       p.MarketID,
			Exchange:       p.Exchange,
			Base:           p.Base,
			Quote:          p.Quote,
			InstrumentType: p.InstrumentType,
			TickSize:       p.TickSize,
			StepSize:       p.StepSize,
			MaxLeverage:    p.MaxLeverage,
		})
	}
	return entries, nil
}

func (c *CatalogClient) BySymbol(ctx context.Context, base string) (CatalogEntry, error) {
	all, err := c.List(ctx)
	if err != nil {
		return CatalogEntry{}, err
	}
	for _, e := range all {
		if e.Base == base {
			return e, nil
		}
	}
	return CatalogEntry{}, fmt.Errorf("symbol %q not found", base)
}

func (c *CatalogClient) ByVenue(ctx context.Context, exchange string) ([]CatalogEntry, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CatalogEntry, 0)
	for _, e := range all {
		if e.Exchange == exchange {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *CatalogClient) Search(ctx context.Context, query string) ([]CatalogEntry, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CatalogEntry, 0)
	for _, e := range all {
		if e.Base == query || e.Exchange == query {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *CatalogClient) MarketInfo(ctx context.Context, marketID uint32) (CatalogEntry, error) {
	all, err := c.List(ctx)
	if err != nil {
		return CatalogEntry{}, err
	}
	for _, e := range all {
		if e.MarketID == marketID {
			return e, nil
		}
	}
	return CatalogEntry{}, fmt.Errorf("market %d not found", marketID)
}

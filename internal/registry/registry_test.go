package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/severussssss/hp-node-stream/internal/oracle"
)

type failingCatalog struct{ err error }

func (f failingCatalog) List(ctx context.Context) ([]oracle.CatalogEntry, error) {
	return nil, f.err
}
func (f failingCatalog) BySymbol(ctx context.Context, base string) (oracle.CatalogEntry, error) {
	return oracle.CatalogEntry{}, f.err
}
func (f failingCatalog) ByVenue(ctx context.Context, exchange string) ([]oracle.CatalogEntry, error) {
	return nil, f.err
}
func (f failingCatalog) Search(ctx context.Context, query string) ([]oracle.CatalogEntry, error) {
	return nil, f.err
}
func (f failingCatalog) MarketInfo(ctx context.Context, id uint32) (oracle.CatalogEntry, error) {
	return oracle.CatalogEntry{}, f.err
}

func TestRegistry_RefreshAndLookup(t *testing.T) {
	cat := oracle.NewStaticCatalog(oracle.CatalogEntry{
		MarketID: 1, Exchange: "HL", Base: "BTC", Quote: "USD", InstrumentType: "PERP",
	})
	r := New(cat)

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	id, ok := r.LookupByCoin("BTC")
	if !ok || id != 1 {
		t.Fatalf("LookupByCoin(BTC) = %v, %v", id, ok)
	}

	sym, ok := r.LookupByID(1)
	if !ok || sym != "HL-BTC/USD-PERP" {
		t.Fatalf("LookupByID(1) = %q, %v", sym, ok)
	}

	if len(r.ListAll()) != 1 {
		t.Fatalf("ListAll length = %d, want 1", len(r.ListAll()))
	}
}

func TestRegistry_RefreshFailureRetainsPreviousSnapshot(t *testing.T) {
	cat := oracle.NewStaticCatalog(oracle.CatalogEntry{
		MarketID: 1, Exchange: "HL", Base: "BTC", Quote: "USD", InstrumentType: "PERP",
	})
	r := New(cat)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	r.catalog = failingCatalog{err: errors.New("boom")}
	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	// Previous snapshot must still be observable.
	if _, ok := r.LookupByCoin("BTC"); !ok {
		t.Fatal("expected previous snapshot retained after failed refresh")
	}
}

func TestRegistry_UnknownCoin(t *testing.T) {
	r := New(oracle.NewStaticCatalog())
	if _, ok := r.LookupByCoin("NOPE"); ok {
		t.Fatal("expected unknown coin to miss")
	}
}

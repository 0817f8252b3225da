package resolver

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"
)

// Registry pins tickers whose natural venue is ambiguous. A four-letter fund
// code like SGLN also trades on other global exchanges; without the registry
// a lookup would silently price it in the wrong currency.
type Registry struct {
	mu     sync.RWMutex
	assets map[string]domain.Asset
}

func mustFund(symbol string, exchange domain.Exchange, currency domain.Currency, dataSourceSymbol string) domain.Asset {
	a, err := domain.NewFund(symbol, exchange, currency, dataSourceSymbol)
	if err != nil {
		panic(fmt.Sprintf("invalid seed asset %s: %v", symbol, err))
	}
	return a
}

// NewRegistry seeds the LSE-listed UCITS funds that collide with same-named
// tickers on other venues.
func NewRegistry() *Registry {
	return &Registry{
		assets: map[string]domain.Asset{
			"VWRA": mustFund("VWRA", domain.ExchangeLSE, domain.CurrencyUSD, "VWRA.L"),
			"SGLN": mustFund("SGLN", domain.ExchangeLSE, domain.CurrencyGBP, "SGLN.L"),
			"AGGU": mustFund("AGGU", domain.ExchangeLSE, domain.CurrencyGBP, "AGGU.L"),
			"SSLN": mustFund("SSLN", domain.ExchangeLSE, domain.CurrencyGBP, "SSLN.L"),
		},
	}
}

// Lookup returns the registered asset for a ticker, case-insensitively.
func (r *Registry) Lookup(ticker string) (domain.Asset, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(ticker))

	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[normalized]
	return a, ok
}

// Register adds an as-yet-unregistered symbol. Re-registering an existing
// symbol at a different venue is a validation error, not an overwrite: an
// asset must never be reclassified mid-session. Registering the identical
// entry again is a no-op.
func (r *Registry) Register(asset domain.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.assets[asset.Symbol]; ok {
		if existing == asset {
			return nil
		}
		return fmt.Errorf("symbol %s already registered on %s, refusing to re-register on %s",
			asset.Symbol, existing.Exchange, asset.Exchange)
	}
	r.assets[asset.Symbol] = asset
	return nil
}

// All returns a copy of the registry contents.
func (r *Registry) All() map[string]domain.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.Asset, len(r.assets))
	for k, v := range r.assets {
		out[k] = v
	}
	return out
}

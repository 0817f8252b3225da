package resolver

import (
	"log"
	"strings"
	"sync"

	"github.com/Snakeau/telegram-stock-bot-sub001/internal/domain"
)

// Stats are process-lifetime resolution counters. Fallback resolutions are
// lower-confidence guesses; the split is exposed for observability only.
type Stats struct {
	Resolved  int64 `json:"resolved"`
	CacheHits int64 `json:"cache_hits"`
	Fallback  int64 `json:"fallback"`
}

// Resolution is the per-ticker result of a batch resolve.
type Resolution struct {
	Asset domain.Asset `json:"asset"`
	Err   error        `json:"-"`
}

// Resolver maps raw tickers to fully-qualified Assets. Resolution order is
// strict: cache, then registry, then US fallback. The registry is consulted
// before any guess so that a registered European fund can never be shadowed
// by the default market assumption.
//
// The cache has no eviction: the universe of distinct tickers one deployment
// sees is small, and resolution is deterministic so redundant concurrent
// populations of the same key are harmless.
type Resolver struct {
	registry *Registry

	mu    sync.RWMutex
	cache map[string]domain.Asset
	stats Stats
}

func New(registry *Registry) *Resolver {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Resolver{
		registry: registry,
		cache:    make(map[string]domain.Asset),
	}
}

// Resolve maps a ticker to an Asset, failing only on blank input.
func (r *Resolver) Resolve(ticker string) (domain.Asset, error) {
	normalized := strings.ToUpper(strings.TrimSpace(ticker))
	if normalized == "" {
		return domain.Asset{}, domain.ErrEmptyTicker
	}

	r.mu.RLock()
	cached, ok := r.cache[normalized]
	r.mu.RUnlock()
	if ok {
		r.mu.Lock()
		r.stats.CacheHits++
		r.mu.Unlock()
		return cached, nil
	}

	if asset, ok := r.registry.Lookup(normalized); ok {
		r.store(normalized, asset)
		r.mu.Lock()
		r.stats.Resolved++
		r.mu.Unlock()
		return asset, nil
	}

	asset, err := domain.NewStock(normalized, domain.ExchangeNASDAQ, domain.CurrencyUSD, normalized)
	if err != nil {
		return domain.Asset{}, err
	}
	r.store(normalized, asset)
	r.mu.Lock()
	r.stats.Fallback++
	r.mu.Unlock()
	log.Printf("resolved %s to %s (fallback)", normalized, asset.Exchange)
	return asset, nil
}

// ResolveOrNone converts any resolution failure into nil.
func (r *Resolver) ResolveOrNone(ticker string) *domain.Asset {
	asset, err := r.Resolve(ticker)
	if err != nil {
		log.Printf("failed to resolve %q: %v", ticker, err)
		return nil
	}
	return &asset
}

// BatchResolve resolves each ticker independently: one bad input never blocks
// the rest, failures surface per item.
func (r *Resolver) BatchResolve(tickers []string) map[string]Resolution {
	out := make(map[string]Resolution, len(tickers))
	for _, ticker := range tickers {
		asset, err := r.Resolve(ticker)
		out[ticker] = Resolution{Asset: asset, Err: err}
	}
	return out
}

func (r *Resolver) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// ClearCache drops cached resolutions and counters. Intended for tests.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]domain.Asset)
	r.stats = Stats{}
}

func (r *Resolver) store(normalized string, asset domain.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[normalized] = asset
}

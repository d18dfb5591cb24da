// Package pricing abstracts the market gold price feed. Settlement math
// always receives an explicit price and records it on the resulting
// ledger entries, so every computation replays from stored inputs.
package pricing

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrPriceUnavailable is returned when no price has been published yet.
var ErrPriceUnavailable = errors.New("market price unavailable")

// PriceFeed supplies the current market price of gold in USD per gram.
type PriceFeed interface {
	CurrentPrice(ctx context.Context) (decimal.Decimal, error)
}

// StaticFeed serves a fixed, updatable price. It backs local runs and
// tests; production wires a gateway-fed implementation that satisfies
// the same interface.
type StaticFeed struct {
	mu    sync.RWMutex
	price decimal.Decimal
	set   bool
}

// NewStaticFeed creates a feed pinned to the given price.
func NewStaticFeed(price decimal.Decimal) *StaticFeed {
	return &StaticFeed{price: price, set: true}
}

func (f *StaticFeed) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.set || !f.price.IsPositive() {
		return decimal.Zero, ErrPriceUnavailable
	}
	return f.price, nil
}

// Update publishes a new price.
func (f *StaticFeed) Update(price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = price
	f.set = true
}

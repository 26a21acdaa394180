package handler

import (
	"context"

	"niftyfeed/internal/engine"
	"niftyfeed/internal/feed"
	"niftyfeed/internal/registry"
	"niftyfeed/internal/store"
	"niftyfeed/internal/strategy"
)

// Feed is the slice of the engine the HTTP layer consumes. *engine.Engine
// satisfies it.
type Feed interface {
	GetMarketData() []store.Quote
	Quote(symbol string) (store.Quote, bool)
	Series(symbol string) (store.Series, bool)
	Evaluate(symbol string) (strategy.Evaluation, bool)
	Status() engine.Status
	RefreshHistory(ctx context.Context) error
	RegisterDataCallback(fn feed.Callback)
	UnregisterDataCallback(fn feed.Callback)
	Registry() *registry.Registry
}

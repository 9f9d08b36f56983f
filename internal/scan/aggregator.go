package scan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyscout/internal/market"
)

// Opportunity is a market whose No side trades at or below the chat's
// price threshold.
type Opportunity struct {
	Market  market.Snapshot
	NoPrice decimal.Decimal
}

// PrimaryCatalog is the query-driven market source.
type PrimaryCatalog interface {
	SearchActiveMarkets(ctx context.Context, query string) ([]market.Snapshot, error)
}

// SecondaryCatalog is the exhaustive fallback market source.
type SecondaryCatalog interface {
	ListMarkets(ctx context.Context, maxMarkets int) ([]market.Snapshot, error)
}

// Aggregator finds cheap No sides across both catalogs. The primary
// source is authoritative; the secondary is consulted once per scan
// when the primary errors or returns nothing.
type Aggregator struct {
	Primary   PrimaryCatalog
	Secondary SecondaryCatalog
	Cache     *Cache
	Logger    *zap.Logger

	FallbackLimit int
}

// Result carries one scan's findings and where they came from.
type Result struct {
	Opportunities []Opportunity
	Source        market.Source
	Scanned       int
}

// Scan collects tradable markets, derives each No price and keeps those
// at or below threshold, cheapest first. An empty query skips the
// primary catalog entirely.
func (a *Aggregator) Scan(ctx context.Context, query string, threshold decimal.Decimal) (*Result, error) {
	now := time.Now().UTC()

	snapshots, source, err := a.collect(ctx, query)
	if err != nil {
		return nil, err
	}

	tradable := market.FilterTradable(snapshots, now)
	opps := make([]Opportunity, 0)
	for i := range tradable {
		price, ok := market.DeriveNoPrice(&tradable[i])
		if !ok {
			continue
		}
		if price.GreaterThan(threshold) {
			continue
		}
		opps = append(opps, Opportunity{Market: tradable[i], NoPrice: price})
	}
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].NoPrice.LessThan(opps[j].NoPrice)
	})

	if a.Logger != nil {
		a.Logger.Info("scan finished",
			zap.String("source", string(source)),
			zap.Int("markets", len(snapshots)),
			zap.Int("tradable", len(tradable)),
			zap.Int("opportunities", len(opps)))
	}
	return &Result{Opportunities: opps, Source: source, Scanned: len(snapshots)}, nil
}

func (a *Aggregator) collect(ctx context.Context, query string) ([]market.Snapshot, market.Source, error) {
	if query != "" && a.Primary != nil {
		snapshots, err := a.Primary.SearchActiveMarkets(ctx, query)
		if err == nil && len(snapshots) > 0 {
			return snapshots, market.SourceGamma, nil
		}
		if err != nil && a.Logger != nil {
			a.Logger.Warn("primary catalog failed, falling back", zap.Error(err))
		}
	}

	if a.Cache != nil {
		if snapshots, ok := a.Cache.Get(); ok {
			return snapshots, market.SourceClob, nil
		}
	}
	if a.Secondary == nil {
		return nil, "", fmt.Errorf("scan: no catalog available")
	}
	limit := a.FallbackLimit
	if limit <= 0 {
		limit = 1000
	}
	snapshots, err := a.Secondary.ListMarkets(ctx, limit)
	if err != nil {
		return nil, "", fmt.Errorf("scan: fallback catalog: %w", err)
	}
	if a.Cache != nil {
		a.Cache.Put(snapshots)
	}
	return snapshots, market.SourceClob, nil
}

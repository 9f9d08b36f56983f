package scan

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"polyscout/internal/market"
)

// ResolverCatalog is the lookup surface the token resolver walks.
type ResolverCatalog interface {
	EventBySlug(ctx context.Context, slug string) ([]market.Snapshot, error)
	MarketBySlug(ctx context.Context, slug string) (*market.Snapshot, error)
	MarketsByCondition(ctx context.Context, conditionID string) ([]market.Snapshot, error)
}

// Resolver finds the tradable token id for a market's No side. It never
// touches the network when the snapshot already carries tokens.
type Resolver struct {
	Catalog ResolverCatalog
	Logger  *zap.Logger
}

// ResolveNoToken walks the lookup cascade: embedded tokens, the parent
// event, the market's own slug, then the condition id.
func (r *Resolver) ResolveNoToken(ctx context.Context, snap *market.Snapshot) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("resolver: nil snapshot")
	}
	if id := snap.TokenForOutcome(market.TargetOutcome); id != "" {
		return id, nil
	}
	if r.Catalog == nil {
		return "", fmt.Errorf("resolver: no token for %q and no catalog", snap.Slug)
	}

	if snap.EventSlug != "" {
		if id := r.fromEvent(ctx, snap); id != "" {
			return id, nil
		}
	}
	if snap.Slug != "" {
		if m, err := r.Catalog.MarketBySlug(ctx, snap.Slug); err == nil && m != nil {
			if id := m.TokenForOutcome(market.TargetOutcome); id != "" {
				return id, nil
			}
		} else if err != nil {
			r.warn("market lookup failed", snap.Slug, err)
		}
	}
	if snap.ConditionID != "" {
		if markets, err := r.Catalog.MarketsByCondition(ctx, snap.ConditionID); err == nil {
			for i := range markets {
				if id := markets[i].TokenForOutcome(market.TargetOutcome); id != "" {
					return id, nil
				}
			}
		} else {
			r.warn("condition lookup failed", snap.ConditionID, err)
		}
	}
	return "", fmt.Errorf("resolver: no %s token found for %q", market.TargetOutcome, snap.Slug)
}

// fromEvent matches the snapshot against the event's market list by
// slug first, condition id second.
func (r *Resolver) fromEvent(ctx context.Context, snap *market.Snapshot) string {
	markets, err := r.Catalog.EventBySlug(ctx, snap.EventSlug)
	if err != nil {
		r.warn("event lookup failed", snap.EventSlug, err)
		return ""
	}
	for i := range markets {
		m := &markets[i]
		sameSlug := snap.Slug != "" && strings.EqualFold(m.Slug, snap.Slug)
		sameCondition := snap.ConditionID != "" && strings.EqualFold(m.ConditionID, snap.ConditionID)
		if !sameSlug && !sameCondition {
			continue
		}
		if id := m.TokenForOutcome(market.TargetOutcome); id != "" {
			return id
		}
	}
	return ""
}

func (r *Resolver) warn(msg, subject string, err error) {
	if r.Logger != nil {
		r.Logger.Warn("resolver: "+msg, zap.String("subject", subject), zap.Error(err))
	}
}

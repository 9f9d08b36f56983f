package scan

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polyscout/internal/market"
)

type stubPrimary struct {
	snapshots []market.Snapshot
	err       error
	calls     int
}

func (s *stubPrimary) SearchActiveMarkets(ctx context.Context, query string) ([]market.Snapshot, error) {
	s.calls++
	return s.snapshots, s.err
}

type stubSecondary struct {
	snapshots []market.Snapshot
	err       error
	calls     int
}

func (s *stubSecondary) ListMarkets(ctx context.Context, maxMarkets int) ([]market.Snapshot, error) {
	s.calls++
	return s.snapshots, s.err
}

func cheapNoMarket(slug, noBid string) market.Snapshot {
	bid := decimal.RequireFromString(noBid)
	return market.Snapshot{
		Slug: slug,
		Outcomes: []market.Outcome{
			{Name: "Yes"},
			{Name: "No", BestBid: &bid},
		},
	}
}

func TestScanPrimaryWins(t *testing.T) {
	primary := &stubPrimary{snapshots: []market.Snapshot{cheapNoMarket("a", "0.005")}}
	secondary := &stubSecondary{snapshots: []market.Snapshot{cheapNoMarket("b", "0.002")}}
	a := &Aggregator{Primary: primary, Secondary: secondary}

	res, err := a.Scan(context.Background(), "rain", decimal.RequireFromString("0.01"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Source != market.SourceGamma {
		t.Fatalf("source = %s, want gamma", res.Source)
	}
	if secondary.calls != 0 {
		t.Fatal("secondary must not be consulted when primary answers")
	}
	if len(res.Opportunities) != 1 || res.Opportunities[0].Market.Slug != "a" {
		t.Fatalf("unexpected opportunities: %+v", res.Opportunities)
	}
}

func TestScanFallsBackOnPrimaryError(t *testing.T) {
	primary := &stubPrimary{err: fmt.Errorf("upstream down")}
	secondary := &stubSecondary{snapshots: []market.Snapshot{cheapNoMarket("b", "0.002")}}
	a := &Aggregator{Primary: primary, Secondary: secondary}

	res, err := a.Scan(context.Background(), "rain", decimal.RequireFromString("0.01"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Source != market.SourceClob {
		t.Fatalf("source = %s, want clob", res.Source)
	}
	if secondary.calls != 1 {
		t.Fatalf("secondary calls = %d, want 1", secondary.calls)
	}
}

func TestScanFallsBackOnEmptyPrimary(t *testing.T) {
	primary := &stubPrimary{}
	secondary := &stubSecondary{snapshots: []market.Snapshot{cheapNoMarket("b", "0.002")}}
	a := &Aggregator{Primary: primary, Secondary: secondary}

	res, err := a.Scan(context.Background(), "rain", decimal.RequireFromString("0.01"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Source != market.SourceClob || len(res.Opportunities) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestScanEmptyQuerySkipsPrimary(t *testing.T) {
	primary := &stubPrimary{snapshots: []market.Snapshot{cheapNoMarket("a", "0.005")}}
	secondary := &stubSecondary{snapshots: []market.Snapshot{cheapNoMarket("b", "0.002")}}
	a := &Aggregator{Primary: primary, Secondary: secondary}

	res, err := a.Scan(context.Background(), "", decimal.RequireFromString("0.01"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if primary.calls != 0 {
		t.Fatal("primary must be skipped for an empty query")
	}
	if res.Source != market.SourceClob {
		t.Fatalf("source = %s, want clob", res.Source)
	}
}

func TestScanThresholdAndOrdering(t *testing.T) {
	primary := &stubPrimary{snapshots: []market.Snapshot{
		cheapNoMarket("expensive", "0.5"),
		cheapNoMarket("mid", "0.009"),
		cheapNoMarket("cheap", "0.002"),
	}}
	a := &Aggregator{Primary: primary}

	res, err := a.Scan(context.Background(), "q", decimal.RequireFromString("0.01"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Opportunities) != 2 {
		t.Fatalf("opportunities = %d, want 2", len(res.Opportunities))
	}
	if res.Opportunities[0].Market.Slug != "cheap" || res.Opportunities[1].Market.Slug != "mid" {
		t.Fatalf("not sorted cheapest first: %s, %s",
			res.Opportunities[0].Market.Slug, res.Opportunities[1].Market.Slug)
	}
}

func TestScanSkipsUntradable(t *testing.T) {
	closed := cheapNoMarket("closed", "0.001")
	yes := true
	closed.Closed = &yes
	primary := &stubPrimary{snapshots: []market.Snapshot{closed}}
	a := &Aggregator{Primary: primary, Secondary: &stubSecondary{}}

	res, err := a.Scan(context.Background(), "q", decimal.RequireFromString("0.01"))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Opportunities) != 0 {
		t.Fatalf("closed market must be skipped, got %+v", res.Opportunities)
	}
}

func TestScanUsesCache(t *testing.T) {
	secondary := &stubSecondary{snapshots: []market.Snapshot{cheapNoMarket("b", "0.002")}}
	cache := NewCache(time.Minute)
	a := &Aggregator{Secondary: secondary, Cache: cache}

	threshold := decimal.RequireFromString("0.01")
	if _, err := a.Scan(context.Background(), "", threshold); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if _, err := a.Scan(context.Background(), "", threshold); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if secondary.calls != 1 {
		t.Fatalf("secondary calls = %d, want 1 (second scan should hit the cache)", secondary.calls)
	}
}

func TestScanNoCatalog(t *testing.T) {
	a := &Aggregator{}
	if _, err := a.Scan(context.Background(), "", decimal.NewFromInt(1)); err == nil {
		t.Fatal("expected an error with no catalogs wired")
	}
}

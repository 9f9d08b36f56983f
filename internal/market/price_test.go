package market

import (
	"testing"

	"github.com/shopspring/decimal"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestDeriveNoPriceOwnBidWins(t *testing.T) {
	s := Snapshot{
		Outcomes: []Outcome{
			{Name: "Yes", BestAsk: decPtr("0.995")},
			{Name: "No", BestBid: decPtr("0.004")},
		},
	}
	price, ok := DeriveNoPrice(&s)
	if !ok {
		t.Fatal("expected a price")
	}
	if price.String() != "0.004" {
		t.Fatalf("price = %s, want 0.004", price)
	}
}

func TestDeriveNoPriceFromYesAsk(t *testing.T) {
	s := Snapshot{
		Outcomes: []Outcome{
			{Name: "Yes", BestAsk: decPtr("0.995")},
			{Name: "No"},
		},
	}
	price, ok := DeriveNoPrice(&s)
	if !ok {
		t.Fatal("expected a price")
	}
	if price.String() != "0.005" {
		t.Fatalf("price = %s, want 0.005", price)
	}
}

func TestDeriveNoPriceClampsNegative(t *testing.T) {
	s := Snapshot{
		Outcomes: []Outcome{
			{Name: "Yes", BestAsk: decPtr("1.2")},
			{Name: "No"},
		},
	}
	price, ok := DeriveNoPrice(&s)
	if !ok {
		t.Fatal("expected a price")
	}
	if !price.IsZero() {
		t.Fatalf("price = %s, want 0", price)
	}
}

func TestDeriveNoPriceOutcomePricesFallback(t *testing.T) {
	s := Snapshot{
		Outcomes: []Outcome{
			{Name: "Yes"},
			{Name: "No"},
		},
		OutcomePrices: []decimal.Decimal{
			decimal.RequireFromString("0.99"),
			decimal.RequireFromString("0.008"),
		},
	}
	price, ok := DeriveNoPrice(&s)
	if !ok {
		t.Fatal("expected a price")
	}
	if price.String() != "0.008" {
		t.Fatalf("price = %s, want 0.008", price)
	}
}

func TestDeriveNoPriceZeroFallbackAccepted(t *testing.T) {
	s := Snapshot{
		Outcomes:      []Outcome{{Name: "Yes"}, {Name: "No"}},
		OutcomePrices: []decimal.Decimal{decimal.NewFromInt(1), decimal.Zero},
	}
	price, ok := DeriveNoPrice(&s)
	if !ok {
		t.Fatal("a zero entry in outcomePrices still counts")
	}
	if !price.IsZero() {
		t.Fatalf("price = %s, want 0", price)
	}
}

func TestDeriveNoPriceMissing(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
	}{
		{"no outcomes", Snapshot{}},
		{"no No outcome", Snapshot{Outcomes: []Outcome{{Name: "Yes"}, {Name: "Maybe"}}}},
		{"nothing usable", Snapshot{Outcomes: []Outcome{{Name: "Yes"}, {Name: "No"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := DeriveNoPrice(&tc.snap); ok {
				t.Fatal("expected no price")
			}
		})
	}
}

func TestDeriveNoPriceCaseInsensitive(t *testing.T) {
	s := Snapshot{
		Outcomes: []Outcome{
			{Name: "YES", BestAsk: decPtr("0.9")},
			{Name: "no"},
		},
	}
	price, ok := DeriveNoPrice(&s)
	if !ok || price.String() != "0.1" {
		t.Fatalf("price = %s ok=%v, want 0.1", price, ok)
	}
}

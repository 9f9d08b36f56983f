package clob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestListMarketsWalksCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("path = %q", r.URL.Path)
		}
		switch r.URL.Query().Get("next_cursor") {
		case "":
			w.Write([]byte(`{"next_cursor":"AAA=","data":[
				{"condition_id":"0x1","question":"Q1?","market_slug":"m-1","tokens":[{"token_id":"t1","outcome":"Yes","price":0.99},{"token_id":"t2","outcome":"No","price":0.004}]}
			]}`))
		case "AAA=":
			w.Write([]byte(`{"next_cursor":"LTE=","data":[
				{"condition_id":"0x2","question":"Q2?","market_slug":"m-2","tokens":[]}
			]}`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("next_cursor"))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, nil)
	snapshots, err := c.ListMarkets(context.Background(), 1000)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("markets = %d, want 2", len(snapshots))
	}
	first := snapshots[0]
	if got := first.TokenForOutcome("No"); got != "t2" {
		t.Fatalf("No token = %q, want t2", got)
	}
	if len(first.Outcomes) != 2 || first.Outcomes[1].LastPrice == nil {
		t.Fatalf("token prices must land on outcomes: %+v", first.Outcomes)
	}
}

func TestListMarketsHonorsLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"next_cursor":"BBB=","data":[
			{"condition_id":"0x1","question":"Q?","market_slug":"m"},
			{"condition_id":"0x2","question":"Q?","market_slug":"m2"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, nil)
	snapshots, err := c.ListMarkets(context.Background(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snapshots) != 2 || calls != 1 {
		t.Fatalf("markets=%d calls=%d, want 2 and 1", len(snapshots), calls)
	}
}

func TestGetMarketNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/0xabc" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"condition_id":"0xabc","question":"Q?","market_slug":"m",
			"active":true,"closed":false,"accepting_orders":true,
			"end_date_iso":"2030-01-01T00:00:00Z","minimum_order_size":15,
			"tokens":[{"token_id":"t1","outcome":"Yes"},{"token_id":"t2","outcome":"No"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, nil)
	m, err := c.GetMarket(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.ConditionID != "0xabc" || m.EndDate == nil || m.EndDate.Year() != 2030 {
		t.Fatalf("snapshot: %+v", m)
	}
	if m.MinOrderSize.String() != "15" {
		t.Fatalf("min order size = %s, want 15", m.MinOrderSize)
	}
	if m.Active == nil || !*m.Active {
		t.Fatal("active flag lost in normalization")
	}
}

func TestGetMinOrderSizeFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	def := decimal.NewFromInt(5)
	c := NewClient(srv.Client(), srv.URL, nil)
	got := c.GetMinOrderSize(context.Background(), "0xabc", def)
	if !got.Equal(def) {
		t.Fatalf("min = %s, want the default", got)
	}
}

func TestQuoteEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") != "t1" {
			t.Errorf("token_id = %q", r.URL.Query().Get("token_id"))
		}
		switch r.URL.Path {
		case "/price":
			if r.URL.Query().Get("side") != "BUY" {
				t.Errorf("side = %q", r.URL.Query().Get("side"))
			}
			w.Write([]byte(`{"price":"0.004"}`))
		case "/midpoint":
			w.Write([]byte(`{"mid":"0.005"}`))
		case "/last-trade-price":
			w.Write([]byte(`{"price":0.006}`))
		default:
			t.Errorf("path = %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, nil)
	ctx := context.Background()
	if p, err := c.GetPrice(ctx, "t1", "buy"); err != nil || p.String() != "0.004" {
		t.Fatalf("price = %s err=%v", p, err)
	}
	if p, err := c.GetMidpoint(ctx, "t1"); err != nil || p.String() != "0.005" {
		t.Fatalf("midpoint = %s err=%v", p, err)
	}
	if p, err := c.GetLastTradePrice(ctx, "t1"); err != nil || p.String() != "0.006" {
		t.Fatalf("last = %s err=%v", p, err)
	}
}

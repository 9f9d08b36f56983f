package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polyscout/internal/client/clob"
)

type stubTradeFeed struct {
	mu         sync.Mutex
	trades     []clob.Trade
	orders     []clob.OpenOrder
	tradeCalls []string
	orderCalls []string
}

func (s *stubTradeFeed) Trades(ctx context.Context, market string) ([]clob.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeCalls = append(s.tradeCalls, market)
	return append([]clob.Trade(nil), s.trades...), nil
}

func (s *stubTradeFeed) OpenOrders(ctx context.Context, market string) ([]clob.OpenOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderCalls = append(s.orderCalls, market)
	return append([]clob.OpenOrder(nil), s.orders...), nil
}

func (s *stubTradeFeed) add(t clob.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
}

type stubQuoteFeed struct {
	last, mid, buy decimal.Decimal
}

func (s *stubQuoteFeed) GetLastTradePrice(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return s.last, nil
}

func (s *stubQuoteFeed) GetMidpoint(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return s.mid, nil
}

func (s *stubQuoteFeed) GetPrice(ctx context.Context, tokenID, side string) (decimal.Decimal, error) {
	return s.buy, nil
}

func TestMonitorTickSendsStatusLineEveryTick(t *testing.T) {
	feed := &stubTradeFeed{
		trades: []clob.Trade{{ID: "old", Market: "0xc", Side: "BUY", Outcome: "No"}},
		orders: []clob.OpenOrder{{ID: "o1", Market: "0xc"}},
	}
	n := &recordingNotifier{}
	m := newMonitor(1, "0xc", "", time.Minute, time.Minute, MonitorDeps{Trades: feed, Notifier: n})
	ctx := context.Background()

	seen := m.baseline(ctx)
	if len(seen) != 1 {
		t.Fatalf("baseline = %d, want 1", len(seen))
	}

	// nothing new: status line only
	seen = m.tick(ctx, seen)
	if n.count() != 1 {
		t.Fatalf("messages = %d, want the status line", n.count())
	}
	if !strings.Contains(n.messages[0], "Trades: 1 total (+0 new)") {
		t.Fatalf("status line: %q", n.messages[0])
	}
	if !strings.Contains(n.messages[0], "Open orders: 1") {
		t.Fatalf("open-order count missing: %q", n.messages[0])
	}

	feed.add(clob.Trade{
		ID:      "fresh",
		Market:  "0xc",
		Side:    "BUY",
		Outcome: "No",
		Price:   decimal.RequireFromString("0.004"),
		Size:    decimal.NewFromInt(100),
	})
	seen = m.tick(ctx, seen)
	if n.count() != 3 {
		t.Fatalf("messages = %d, want status line plus fill list", n.count())
	}
	if !strings.Contains(n.messages[1], "(+1 new)") {
		t.Fatalf("status line delta: %q", n.messages[1])
	}
	if !strings.Contains(n.messages[2], "0.004") {
		t.Fatalf("fill list missing price: %q", n.messages[2])
	}
	if m.NewFills() != 1 {
		t.Fatalf("new fills = %d, want 1", m.NewFills())
	}

	// same fill again: status line, no fill list
	seen = m.tick(ctx, seen)
	if n.count() != 4 {
		t.Fatalf("messages = %d, want one more status line", n.count())
	}
	if !strings.Contains(n.messages[3], "(+0 new)") {
		t.Fatalf("status line: %q", n.messages[3])
	}
	_ = seen
}

func TestMonitorScopedToMarket(t *testing.T) {
	feed := &stubTradeFeed{}
	m := newMonitor(1, "0xcondition", "", time.Minute, time.Minute,
		MonitorDeps{Trades: feed, Notifier: &recordingNotifier{}})
	ctx := context.Background()

	seen := m.baseline(ctx)
	m.tick(ctx, seen)

	feed.mu.Lock()
	defer feed.mu.Unlock()
	for _, market := range feed.tradeCalls {
		if market != "0xcondition" {
			t.Fatalf("trades fetched for %q, want the monitored market", market)
		}
	}
	if len(feed.tradeCalls) < 2 {
		t.Fatalf("trade calls = %d, want baseline plus tick", len(feed.tradeCalls))
	}
	for _, market := range feed.orderCalls {
		if market != "0xcondition" {
			t.Fatalf("orders fetched for %q, want the monitored market", market)
		}
	}
}

func TestMonitorStatusLineQuotesWatchedToken(t *testing.T) {
	feed := &stubTradeFeed{}
	quotes := &stubQuoteFeed{
		last: decimal.RequireFromString("0.004"),
		mid:  decimal.RequireFromString("0.0045"),
		buy:  decimal.RequireFromString("0.005"),
	}
	m := newMonitor(1, "0xc", "tok-no", time.Minute, time.Minute,
		MonitorDeps{Trades: feed, Quotes: quotes, Notifier: &recordingNotifier{}})

	line := m.statusLine(context.Background(), 3, 0)
	for _, want := range []string{"Last: 0.004", "Mid: 0.0045", "Best buy: 0.005"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}

	// no token, no quotes
	bare := newMonitor(1, "0xc", "", time.Minute, time.Minute,
		MonitorDeps{Trades: feed, Quotes: quotes, Notifier: &recordingNotifier{}})
	if line := bare.statusLine(context.Background(), 3, 0); strings.Contains(line, "Last:") {
		t.Fatalf("quotes without a token: %q", line)
	}
}

// A monitor with duration 7s polling at the 2s floor must emit the
// start notice, one status line per tick at 2s/4s/6s, then the end
// notice.
func TestMonitorRunEmitsStartTicksEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	feed := &stubTradeFeed{trades: []clob.Trade{{ID: "old", Market: "0xc"}}}
	n := &recordingNotifier{}
	r := NewRegistry(testScanDeps(&recordingNotifier{}), MonitorDeps{Trades: feed, Notifier: n})
	defer r.Shutdown()

	if !r.StartMonitor(context.Background(), 1, "0xc", "", 7*time.Second, 2*time.Second) {
		t.Fatal("monitor must start")
	}
	deadline := time.Now().Add(12 * time.Second)
	for r.MonitorRunning(1) {
		if time.Now().After(deadline) {
			t.Fatal("monitor did not finish")
		}
		time.Sleep(50 * time.Millisecond)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) < 5 {
		t.Fatalf("messages = %d, want start + 3 status lines + end: %q", len(n.messages), n.messages)
	}
	if !strings.Contains(n.messages[0], "Monitoring 0xc") {
		t.Fatalf("first message must be the start notice: %q", n.messages[0])
	}
	last := n.messages[len(n.messages)-1]
	if !strings.Contains(last, "Monitor finished") {
		t.Fatalf("last message must be the end notice: %q", last)
	}
	status := 0
	for _, msg := range n.messages[1 : len(n.messages)-1] {
		if strings.Contains(msg, "Trades: 1 total") {
			status++
		}
	}
	if status < 3 {
		t.Fatalf("status lines = %d, want one per tick", status)
	}
}

func TestMonitorDefaults(t *testing.T) {
	m := newMonitor(1, "0xc", "", 0, 0, MonitorDeps{})
	if m.duration != 5*time.Minute {
		t.Fatalf("duration = %s, want 5m", m.duration)
	}
	if m.poll != minMonitorPoll {
		t.Fatalf("poll = %s, want the %s floor", m.poll, minMonitorPoll)
	}
	if m2 := newMonitor(1, "0xc", "", time.Hour, time.Second, MonitorDeps{}); m2.poll != minMonitorPoll {
		t.Fatalf("sub-floor poll = %s, want %s", m2.poll, minMonitorPoll)
	}
}

func TestFormatMonitorEnd(t *testing.T) {
	if got := formatMonitorEnd(0); !strings.Contains(got, "no new fills") {
		t.Fatalf("got %q", got)
	}
	if got := formatMonitorEnd(3); !strings.Contains(got, "3") {
		t.Fatalf("got %q", got)
	}
}

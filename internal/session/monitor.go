package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyscout/internal/client/clob"
	"polyscout/internal/notify"
)

const minMonitorPoll = 2 * time.Second

// TradeFeed returns the account's fills and resting orders, scoped to
// one market when a condition id is given.
type TradeFeed interface {
	Trades(ctx context.Context, market string) ([]clob.Trade, error)
	OpenOrders(ctx context.Context, market string) ([]clob.OpenOrder, error)
}

// QuoteFeed answers point-in-time quote lookups. All calls are best
// effort inside the monitor; a failed quote never stops a tick.
type QuoteFeed interface {
	GetLastTradePrice(ctx context.Context, tokenID string) (decimal.Decimal, error)
	GetMidpoint(ctx context.Context, tokenID string) (decimal.Decimal, error)
	GetPrice(ctx context.Context, tokenID, side string) (decimal.Decimal, error)
}

// QuoteRunner is a live price feed over a fixed token set.
type QuoteRunner interface {
	Run(ctx context.Context, onUpdate func(clob.QuoteUpdate)) error
}

// MonitorDeps bundles what a trade monitor needs.
type MonitorDeps struct {
	Trades   TradeFeed
	Quotes   QuoteFeed
	Notifier notify.Notifier
	Logger   *zap.Logger

	// NewStream, when set, is used to watch tokens with resting
	// orders live instead of waiting for the next poll.
	NewStream func(tokenIDs []string) QuoteRunner
}

// Monitor watches one market's fills for a bounded window. Every tick
// it reports the trade tally, open-order count and the token's quotes,
// itemizing fills that arrived since the baseline taken at start.
type Monitor struct {
	chatID      int64
	conditionID string
	tokenID     string
	duration    time.Duration
	poll        time.Duration
	deps        MonitorDeps

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	newFills int
}

func newMonitor(chatID int64, conditionID, tokenID string, duration, poll time.Duration, deps MonitorDeps) *Monitor {
	if duration <= 0 {
		duration = 5 * time.Minute
	}
	if poll < minMonitorPoll {
		poll = minMonitorPoll
	}
	return &Monitor{
		chatID:      chatID,
		conditionID: strings.TrimSpace(conditionID),
		tokenID:     strings.TrimSpace(tokenID),
		duration:    duration,
		poll:        poll,
		deps:        deps,
		done:        make(chan struct{}),
	}
}

// NewFills reports how many fills arrived since the monitor started.
func (m *Monitor) NewFills() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newFills
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	ctx, cancel := context.WithTimeout(ctx, m.duration)
	defer cancel()

	m.notify(ctx, formatMonitorStart(m.conditionID, m.duration, m.poll))

	baseline := m.baseline(ctx)
	m.startStream(ctx)

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// The deadline firing is the normal way out; report the
			// tally with a fresh context so the notice still sends.
			endCtx, endCancel := context.WithTimeout(context.Background(), 10*time.Second)
			m.notify(endCtx, formatMonitorEnd(m.NewFills()))
			endCancel()
			return
		case <-ticker.C:
			baseline = m.tick(ctx, baseline)
		}
	}
}

// baseline snapshots the fills that already exist so only new activity
// is itemized.
func (m *Monitor) baseline(ctx context.Context) map[string]struct{} {
	seen := make(map[string]struct{})
	if m.deps.Trades == nil {
		return seen
	}
	trades, err := m.deps.Trades.Trades(ctx, m.conditionID)
	if err != nil {
		if m.deps.Logger != nil {
			m.deps.Logger.Warn("monitor baseline failed", zap.Error(err))
		}
		return seen
	}
	for _, t := range trades {
		if t.ID != "" {
			seen[t.ID] = struct{}{}
		}
	}
	return seen
}

// tick sends one status line and, when new fills appeared, an itemized
// follow-up. The open-order count and the quotes are each best effort.
func (m *Monitor) tick(ctx context.Context, seen map[string]struct{}) map[string]struct{} {
	if m.deps.Trades == nil {
		return seen
	}
	trades, err := m.deps.Trades.Trades(ctx, m.conditionID)
	if err != nil {
		if m.deps.Logger != nil {
			m.deps.Logger.Warn("monitor poll failed", zap.Error(err))
		}
		return seen
	}
	var fresh []clob.Trade
	for _, t := range trades {
		if t.ID == "" {
			continue
		}
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		fresh = append(fresh, t)
	}
	m.mu.Lock()
	m.newFills += len(fresh)
	m.mu.Unlock()

	m.notify(ctx, m.statusLine(ctx, len(trades), len(fresh)))
	if len(fresh) > 0 {
		m.notify(ctx, formatFills(fresh))
	}
	return seen
}

// statusLine renders the per-tick summary: trade tally, open-order
// count, and the watched token's last trade, midpoint and best buy.
func (m *Monitor) statusLine(ctx context.Context, total, fresh int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Trades: %d total (+%d new)", total, fresh)
	if orders, err := m.deps.Trades.OpenOrders(ctx, m.conditionID); err == nil {
		fmt.Fprintf(&b, " | Open orders: %d", len(orders))
	}
	if m.deps.Quotes != nil && m.tokenID != "" {
		if last, err := m.deps.Quotes.GetLastTradePrice(ctx, m.tokenID); err == nil {
			fmt.Fprintf(&b, " | Last: %s", last.String())
		}
		if mid, err := m.deps.Quotes.GetMidpoint(ctx, m.tokenID); err == nil {
			fmt.Fprintf(&b, " | Mid: %s", mid.String())
		}
		if buy, err := m.deps.Quotes.GetPrice(ctx, m.tokenID, "BUY"); err == nil {
			fmt.Fprintf(&b, " | Best buy: %s", buy.String())
		}
	}
	return b.String()
}

func formatFills(fills []clob.Trade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d new fill(s)*", len(fills))
	for _, t := range fills {
		fmt.Fprintf(&b, "\n• %s %s %s @ %s", t.Side, t.Size.String(), t.Outcome, t.Price.String())
	}
	return b.String()
}

// startStream attaches a live quote feed, preferring the watched token
// and falling back to tokens with resting orders on the market.
func (m *Monitor) startStream(ctx context.Context) {
	if m.deps.NewStream == nil {
		return
	}
	var tokens []string
	if m.tokenID != "" {
		tokens = []string{m.tokenID}
	} else if m.deps.Trades != nil {
		orders, err := m.deps.Trades.OpenOrders(ctx, m.conditionID)
		if err != nil {
			return
		}
		seen := make(map[string]struct{})
		for _, o := range orders {
			if o.AssetID == "" {
				continue
			}
			if _, ok := seen[o.AssetID]; ok {
				continue
			}
			seen[o.AssetID] = struct{}{}
			tokens = append(tokens, o.AssetID)
		}
	}
	if len(tokens) == 0 {
		return
	}
	stream := m.deps.NewStream(tokens)
	go func() {
		err := stream.Run(ctx, func(u clob.QuoteUpdate) {
			if u.EventType != "last_trade_price" || !u.HasPrice {
				return
			}
			m.notify(ctx, fmt.Sprintf("📈 Live trade on watched token at %s", u.Price.String()))
		})
		if err != nil && ctx.Err() == nil && m.deps.Logger != nil {
			m.deps.Logger.Warn("monitor stream stopped", zap.Error(err))
		}
	}()
}

func (m *Monitor) notify(ctx context.Context, text string) {
	if m.deps.Notifier == nil || text == "" {
		return
	}
	if err := m.deps.Notifier.Send(ctx, m.chatID, text); err != nil && m.deps.Logger != nil {
		m.deps.Logger.Warn("monitor notify failed", zap.Int64("chat_id", m.chatID), zap.Error(err))
	}
}

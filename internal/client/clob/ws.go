package clob

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"polyscout/internal/market"
)

const DefaultMarketWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

// QuoteUpdate is one market event reduced to the fields the monitor
// cares about.
type QuoteUpdate struct {
	AssetID   string
	EventType string
	Price     decimal.Decimal
	HasPrice  bool
}

// QuoteStreamOptions configures a stream over a fixed token set.
type QuoteStreamOptions struct {
	URL               string
	TokenIDs          []string
	HeartbeatInterval time.Duration
	PingTimeout       time.Duration
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	Logger            *zap.Logger
}

// QuoteStream maintains a subscription to the market channel for a set
// of tokens, reconnecting with jittered exponential backoff until the
// context ends.
type QuoteStream struct {
	opts QuoteStreamOptions
}

func NewQuoteStream(opts QuoteStreamOptions) *QuoteStream {
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = DefaultMarketWSURL
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 20 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	return &QuoteStream{opts: opts}
}

// Run blocks until ctx is cancelled, delivering updates to onUpdate.
func (s *QuoteStream) Run(ctx context.Context, onUpdate func(QuoteUpdate)) error {
	if len(s.opts.TokenIDs) == 0 {
		return errors.New("quote stream needs at least one token")
	}
	backoff := s.opts.BackoffMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.session(ctx, onUpdate)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if s.opts.Logger != nil {
			s.opts.Logger.Warn("quote stream session ended", zap.Error(err))
		}
		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
		if backoff > s.opts.BackoffMax {
			backoff = s.opts.BackoffMax
		}
	}
}

func (s *QuoteStream) session(ctx context.Context, onUpdate func(QuoteUpdate)) error {
	conn, _, err := websocket.Dial(ctx, s.opts.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")
	conn.SetReadLimit(2 << 20)

	sub := map[string]any{"type": "market", "assets_ids": s.opts.TokenIDs}
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return err
	}
	if s.opts.Logger != nil {
		s.opts.Logger.Info("quote stream subscribed", zap.Int("tokens", len(s.opts.TokenIDs)))
	}

	heartbeatErr := make(chan error, 1)
	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(s.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				pingCtx, cancelPing := context.WithTimeout(hbCtx, s.opts.PingTimeout)
				err := conn.Ping(pingCtx)
				cancelPing()
				if err != nil {
					heartbeatErr <- err
					return
				}
			}
		}
	}()

	for {
		select {
		case err := <-heartbeatErr:
			return err
		default:
		}
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(data)) == "ping" {
			_ = conn.Write(ctx, websocket.MessageText, []byte("pong"))
			continue
		}
		for _, u := range parseQuoteUpdates(data) {
			if onUpdate != nil {
				onUpdate(u)
			}
		}
	}
}

// parseQuoteUpdates extracts price-bearing events. The channel ships
// both single objects and arrays of them.
func parseQuoteUpdates(raw []byte) []QuoteUpdate {
	var objs []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &objs); err != nil {
		var single map[string]json.RawMessage
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		objs = []map[string]json.RawMessage{single}
	}
	var out []QuoteUpdate
	for _, obj := range objs {
		u := QuoteUpdate{}
		if v, ok := obj["event_type"]; ok {
			_ = json.Unmarshal(v, &u.EventType)
		}
		if v, ok := obj["asset_id"]; ok {
			_ = json.Unmarshal(v, &u.AssetID)
		}
		if v, ok := obj["price"]; ok {
			var d market.FlexDecimal
			if json.Unmarshal(v, &d) == nil && d.Valid {
				u.Price = d.Decimal
				u.HasPrice = true
			}
		}
		if u.EventType == "" && u.AssetID == "" {
			continue
		}
		out = append(out, u)
	}
	return out
}

func sleepWithJitter(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(base/2) + 1))
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyscout/internal/executor"
	"polyscout/internal/market"
	"polyscout/internal/notify"
	"polyscout/internal/scan"
	"polyscout/internal/settings"
)

// minScanInterval floors the loop so a fat-fingered /setprice style
// interval cannot spin against the catalogs.
const minScanInterval = 5 * time.Second

// ScanHit is one opportunity from the last round, kept in order for
// /status readers.
type ScanHit struct {
	Question string
	Slug     string
	NoPrice  decimal.Decimal
}

// ScanState is the last completed iteration's summary, replaced
// atomically so /status never sees a half-written view.
type ScanState struct {
	Query         string
	StartedAt     time.Time
	LastRun       time.Time
	Iterations    int
	LastScanned   int
	LastFound     int
	LastHits      []ScanHit
	LastSource    market.Source
	LastError     string
	OrdersPlaced  int
	AutoPlaceUsed bool
}

// ScanDeps bundles what a scan session needs to run.
type ScanDeps struct {
	Aggregator *scan.Aggregator
	Executor   *executor.Executor
	Settings   *settings.Store
	Notifier   notify.Notifier
	Logger     *zap.Logger
}

// ScanSession runs the scan loop for one chat. Settings are re-read
// every iteration so adjustments apply without a restart.
type ScanSession struct {
	chatID int64
	query  string
	deps   ScanDeps

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.RWMutex
	state ScanState
}

func newScanSession(chatID int64, query string, deps ScanDeps) *ScanSession {
	return &ScanSession{
		chatID: chatID,
		query:  query,
		deps:   deps,
		done:   make(chan struct{}),
	}
}

// State returns a copy of the last iteration summary.
func (s *ScanSession) State() ScanState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *ScanSession) setState(st ScanState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *ScanSession) run(ctx context.Context) {
	defer close(s.done)
	st := ScanState{Query: s.query, StartedAt: time.Now().UTC()}
	s.setState(st)
	for {
		interval := s.iterate(ctx, &st)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// iterate runs one scan round and returns how long to sleep. Every
// failure is absorbed: the loop lives until /stop or shutdown.
func (s *ScanSession) iterate(ctx context.Context, st *ScanState) time.Duration {
	cfg, err := s.deps.Settings.Get(ctx, s.chatID)
	if err != nil {
		s.fail(ctx, st, fmt.Errorf("load settings: %w", err))
		return minScanInterval
	}
	interval := cfg.Interval
	if interval < minScanInterval {
		interval = minScanInterval
	}

	threshold := decimal.NewFromFloat(cfg.PriceThreshold)
	res, err := s.deps.Aggregator.Scan(ctx, s.query, threshold)
	if err != nil {
		s.fail(ctx, st, err)
		return interval
	}

	st.LastRun = time.Now().UTC()
	st.Iterations++
	st.LastScanned = res.Scanned
	st.LastFound = len(res.Opportunities)
	st.LastHits = nil
	for i, opp := range res.Opportunities {
		if i == maxReportedOpportunities {
			break
		}
		st.LastHits = append(st.LastHits, ScanHit{
			Question: opp.Market.Question,
			Slug:     opp.Market.Slug,
			NoPrice:  opp.NoPrice,
		})
	}
	st.LastSource = res.Source
	st.LastError = ""
	st.AutoPlaceUsed = cfg.AutoPlace

	if len(res.Opportunities) > 0 {
		s.notify(ctx, formatScanReport(res, cfg.PriceThreshold))
		if cfg.AutoPlace && s.deps.Executor != nil {
			placements := s.deps.Executor.PlaceBatch(ctx, s.chatID, res.Opportunities, cfg)
			for _, p := range placements {
				if p.Err == nil {
					st.OrdersPlaced++
				}
			}
			if msg := formatPlacements(placements); msg != "" {
				s.notify(ctx, msg)
			}
		}
	}
	s.setState(*st)
	return interval
}

func (s *ScanSession) fail(ctx context.Context, st *ScanState, err error) {
	if ctx.Err() != nil {
		return
	}
	st.LastError = err.Error()
	s.setState(*st)
	if s.deps.Logger != nil {
		s.deps.Logger.Warn("scan iteration failed",
			zap.Int64("chat_id", s.chatID), zap.Error(err))
	}
	s.notify(ctx, "⚠️ Scan failed: "+truncateRaw(err.Error()))
}

func (s *ScanSession) notify(ctx context.Context, text string) {
	if s.deps.Notifier == nil || text == "" {
		return
	}
	if err := s.deps.Notifier.Send(ctx, s.chatID, text); err != nil && s.deps.Logger != nil {
		s.deps.Logger.Warn("notify failed", zap.Int64("chat_id", s.chatID), zap.Error(err))
	}
}

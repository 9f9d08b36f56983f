package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyscout/internal/client/clob"
	"polyscout/internal/models"
	"polyscout/internal/repository"
	"polyscout/internal/scan"
	"polyscout/internal/settings"
)

// minSizeRe pulls the venue's required minimum out of a rejection like
// "order size lower than the minimum: 15".
var minSizeRe = regexp.MustCompile(`minimum:\s*(\d+)`)

// defaultMinOrderSize is used when the venue does not report one.
var defaultMinOrderSize = decimal.NewFromInt(5)

// Exchange is the order surface the executor drives.
type Exchange interface {
	CreateOrder(tokenID, side string, price, size decimal.Decimal) (map[string]any, error)
	PostOrder(ctx context.Context, order map[string]any, orderType string) (*clob.OrderResult, error)
	GetMinOrderSize(ctx context.Context, conditionID string, def decimal.Decimal) decimal.Decimal
}

// Placement is the outcome of one order attempt. Raw holds the venue's
// reply so reports can quote it.
type Placement struct {
	Opportunity    scan.Opportunity
	TokenID        string
	Price          decimal.Decimal
	Size           decimal.Decimal
	OrderID        string
	Status         string
	Raw            json.RawMessage
	RetriedWithMin bool
	Err            error
}

// Executor turns opportunities into GTC limit buys on the No side.
// Failures are isolated per opportunity; one rejection never aborts the
// rest of the batch.
type Executor struct {
	Exchange Exchange
	Resolver *scan.Resolver
	Repo     repository.Repository
	Logger   *zap.Logger

	// MaxInflight bounds concurrent submissions; 0 means sequential.
	MaxInflight int
}

// PlaceBatch submits one order per opportunity and journals every
// attempt. Results come back in input order.
func (e *Executor) PlaceBatch(ctx context.Context, chatID int64, opps []scan.Opportunity, cfg settings.Settings) []Placement {
	results := make([]Placement, len(opps))
	inflight := e.MaxInflight
	if inflight <= 0 {
		inflight = 1
	}
	sem := make(chan struct{}, inflight)
	var wg sync.WaitGroup
	for i := range opps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.place(ctx, chatID, opps[i], cfg)
		}(i)
	}
	wg.Wait()
	return results
}

func (e *Executor) place(ctx context.Context, chatID int64, opp scan.Opportunity, cfg settings.Settings) Placement {
	out := Placement{Opportunity: opp}

	tokenID, err := e.Resolver.ResolveNoToken(ctx, &opp.Market)
	if err != nil {
		out.Err = err
		e.journal(ctx, chatID, &out, models.OrderStatusFailed, nil)
		return out
	}
	out.TokenID = tokenID

	threshold := decimal.NewFromFloat(cfg.PriceThreshold)
	out.Price = opp.NoPrice
	if !out.Price.IsPositive() || out.Price.GreaterThan(threshold) {
		out.Price = threshold
	}

	size := decimal.NewFromFloat(cfg.OrderSize)
	venueMin := e.Exchange.GetMinOrderSize(ctx, opp.Market.ConditionID, defaultMinOrderSize)
	if venueMin.GreaterThan(size) {
		size = venueMin
	}
	out.Size = size

	res, err := e.submit(ctx, tokenID, out.Price, size)
	if err != nil {
		// The venue reports its minimum in the rejection text. Retry
		// once, and only when the reported minimum actually exceeds
		// what we asked for.
		if min, ok := requiredMinimum(err); ok && min.GreaterThan(size) {
			out.Size = min
			out.RetriedWithMin = true
			res, err = e.submit(ctx, tokenID, out.Price, min)
		}
	}
	if err != nil {
		out.Err = err
		e.journal(ctx, chatID, &out, models.OrderStatusFailed, nil)
		return out
	}
	out.OrderID = res.OrderID
	out.Status = res.Status
	out.Raw = res.Raw
	if !res.Success {
		out.Err = fmt.Errorf("order rejected: %s", res.ErrorMsg)
		e.journal(ctx, chatID, &out, models.OrderStatusRejected, res.Raw)
		return out
	}
	if e.Logger != nil {
		e.Logger.Info("order placed",
			zap.Int64("chat_id", chatID),
			zap.String("slug", opp.Market.Slug),
			zap.String("order_id", res.OrderID),
			zap.String("price", out.Price.String()),
			zap.String("size", out.Size.String()),
			zap.Bool("retried_with_min", out.RetriedWithMin))
	}
	e.journal(ctx, chatID, &out, models.OrderStatusPlaced, res.Raw)
	return out
}

func (e *Executor) submit(ctx context.Context, tokenID string, price, size decimal.Decimal) (*clob.OrderResult, error) {
	order, err := e.Exchange.CreateOrder(tokenID, "BUY", price, size)
	if err != nil {
		return nil, err
	}
	res, err := e.Exchange.PostOrder(ctx, order, "GTC")
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("empty order result")
	}
	if !res.Success && res.ErrorMsg != "" {
		return nil, fmt.Errorf("order rejected: %s", res.ErrorMsg)
	}
	return res, nil
}

func (e *Executor) journal(ctx context.Context, chatID int64, p *Placement, status string, raw json.RawMessage) {
	if e.Repo == nil {
		return
	}
	rec := &models.OrderRecord{
		ChatID:         chatID,
		MarketID:       p.Opportunity.Market.ConditionID,
		Slug:           p.Opportunity.Market.Slug,
		Question:       p.Opportunity.Market.Question,
		TokenID:        p.TokenID,
		Side:           "BUY",
		Outcome:        "No",
		Price:          p.Price,
		Size:           p.Size,
		Status:         status,
		VenueOrderID:   p.OrderID,
		RetriedWithMin: p.RetriedWithMin,
	}
	if p.Err != nil {
		rec.ErrorText = p.Err.Error()
	}
	if len(raw) > 0 {
		rec.RawResponse = []byte(raw)
	}
	if err := e.Repo.CreateOrderRecord(ctx, rec); err != nil && e.Logger != nil {
		e.Logger.Warn("order journal write failed", zap.Error(err))
	}
}

// requiredMinimum extracts the venue minimum from a rejection error.
func requiredMinimum(err error) (decimal.Decimal, bool) {
	if err == nil {
		return decimal.Zero, false
	}
	m := minSizeRe.FindStringSubmatch(err.Error())
	if len(m) != 2 {
		return decimal.Zero, false
	}
	n, convErr := strconv.ParseInt(m[1], 10, 64)
	if convErr != nil {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(n), true
}

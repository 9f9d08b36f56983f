package clob

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"polyscout/internal/market"
)

// APIError is a non-2xx reply from the CLOB API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clob api status %d: %s", e.Status, e.Body)
}

type marketsPage struct {
	Data       []rawMarket `json:"data"`
	NextCursor string      `json:"next_cursor"`
}

// endCursor is the CLOB's sentinel for the last catalog page.
const endCursor = "LTE="

type rawToken struct {
	TokenID string             `json:"token_id"`
	Outcome string             `json:"outcome"`
	Price   market.FlexDecimal `json:"price"`
}

type rawMarket struct {
	ConditionID     string             `json:"condition_id"`
	QuestionID      string             `json:"question_id"`
	Question        string             `json:"question"`
	MarketSlug      string             `json:"market_slug"`
	Tokens          []rawToken         `json:"tokens"`
	Active          *bool              `json:"active"`
	Closed          *bool              `json:"closed"`
	Archived        *bool              `json:"archived"`
	AcceptingOrders *bool              `json:"accepting_orders"`
	EndDateISO      string             `json:"end_date_iso"`
	MinOrderSize    market.FlexDecimal `json:"minimum_order_size"`
}

func (m *rawMarket) toSnapshot() market.Snapshot {
	s := market.Snapshot{
		ID:              m.ConditionID,
		ConditionID:     m.ConditionID,
		Slug:            m.MarketSlug,
		Question:        m.Question,
		Active:          m.Active,
		Closed:          m.Closed,
		Archived:        m.Archived,
		AcceptingOrders: m.AcceptingOrders,
		EndDate:         market.ParseEndDate(m.EndDateISO),
		Source:          market.SourceClob,
	}
	if m.MinOrderSize.Valid {
		s.MinOrderSize = m.MinOrderSize.Decimal
	}
	for _, t := range m.Tokens {
		s.Outcomes = append(s.Outcomes, market.Outcome{
			Name:      t.Outcome,
			LastPrice: t.Price.Ptr(),
		})
		if t.Price.Valid {
			s.OutcomePrices = append(s.OutcomePrices, t.Price.Decimal)
		} else {
			s.OutcomePrices = append(s.OutcomePrices, decimal.Zero)
		}
		if t.TokenID != "" {
			s.Tokens = append(s.Tokens, market.Token{
				ID:      t.TokenID,
				Outcome: t.Outcome,
				Price:   t.Price.Ptr(),
			})
		}
	}
	return s
}

// Trade is one fill as reported by the data API.
type Trade struct {
	ID        string
	Market    string
	AssetID   string
	Side      string
	Outcome   string
	Price     decimal.Decimal
	Size      decimal.Decimal
	Maker     string
	Owner     string
	MatchTime *time.Time
}

// OpenOrder is one resting order as reported by the data API.
type OpenOrder struct {
	ID           string
	Market       string
	AssetID      string
	Side         string
	Outcome      string
	Price        decimal.Decimal
	OriginalSize decimal.Decimal
	SizeMatched  decimal.Decimal
	Maker        string
	Owner        string
}

func parseQuote(raw []byte, keys ...string) (decimal.Decimal, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return decimal.Zero, fmt.Errorf("clob: decode quote: %w", err)
	}
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		var d market.FlexDecimal
		if err := json.Unmarshal(v, &d); err == nil && d.Valid {
			return d.Decimal, nil
		}
	}
	return decimal.Zero, fmt.Errorf("clob: quote missing keys %s", strings.Join(keys, ","))
}

func parseTrade(obj map[string]any) Trade {
	t := Trade{
		ID:      firstString(obj, "id", "trade_id"),
		Market:  firstString(obj, "market", "condition_id"),
		AssetID: firstString(obj, "asset_id", "token_id"),
		Side:    strings.ToUpper(firstString(obj, "side")),
		Outcome: firstString(obj, "outcome"),
		Maker:   strings.ToLower(firstString(obj, "maker_address", "maker")),
		Owner:   strings.ToLower(firstString(obj, "owner")),
	}
	t.Price = firstDecimal(obj, "price")
	t.Size = firstDecimal(obj, "size")
	t.MatchTime = firstTime(obj, "match_time", "matchtime", "created_at")
	return t
}

func parseOpenOrder(obj map[string]any) OpenOrder {
	o := OpenOrder{
		ID:      firstString(obj, "id", "order_id"),
		Market:  firstString(obj, "market", "condition_id"),
		AssetID: firstString(obj, "asset_id", "token_id"),
		Side:    strings.ToUpper(firstString(obj, "side")),
		Outcome: firstString(obj, "outcome"),
		Maker:   strings.ToLower(firstString(obj, "maker_address", "maker")),
		Owner:   strings.ToLower(firstString(obj, "owner")),
	}
	o.Price = firstDecimal(obj, "price")
	o.OriginalSize = firstDecimal(obj, "original_size", "size")
	o.SizeMatched = firstDecimal(obj, "size_matched")
	return o
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			s := strings.TrimSpace(fmt.Sprintf("%v", v))
			if s != "" && s != "<nil>" {
				return s
			}
		}
	}
	return ""
}

func firstDecimal(m map[string]any, keys ...string) decimal.Decimal {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s == "" || s == "<nil>" {
			continue
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func firstTime(m map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s == "" || s == "<nil>" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			u := ts.UTC()
			return &u
		}
		var d market.FlexDecimal
		if json.Unmarshal([]byte(`"`+s+`"`), &d) == nil && d.Valid {
			u := time.Unix(d.IntPart(), 0).UTC()
			return &u
		}
	}
	return nil
}

package gamma

import (
	"encoding/json"
	"fmt"

	"polyscout/internal/market"
)

// APIError is a non-2xx reply from the gamma API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gamma api status %d: %s", e.Status, e.Body)
}

type searchResponse struct {
	Events  []rawEvent `json:"events"`
	HasMore bool       `json:"hasMore"`
}

type rawEvent struct {
	Slug    string      `json:"slug"`
	Title   string      `json:"title"`
	Markets []rawMarket `json:"markets"`
}

// rawMarket is the market shape gamma ships, both nested under events
// and from the /markets endpoints. Several list fields arrive either as
// arrays or as JSON-encoded strings.
type rawMarket struct {
	ID              string             `json:"id"`
	Question        string             `json:"question"`
	Slug            string             `json:"slug"`
	ConditionID     string             `json:"conditionId"`
	EventSlug       string             `json:"eventSlug"`
	Outcomes        market.StringList  `json:"outcomes"`
	OutcomePrices   market.DecimalList `json:"outcomePrices"`
	ClobTokenIDs    market.StringList  `json:"clobTokenIds"`
	Tokens          []json.RawMessage  `json:"tokens"`
	BestBid         market.FlexDecimal `json:"bestBid"`
	BestAsk         market.FlexDecimal `json:"bestAsk"`
	LastTradePrice  market.FlexDecimal `json:"lastTradePrice"`
	Volume24h       market.FlexDecimal `json:"volume24hr"`
	OrderMinSize    market.FlexDecimal `json:"orderMinSize"`
	Active          *bool              `json:"active"`
	Closed          *bool              `json:"closed"`
	Archived        *bool              `json:"archived"`
	AcceptingOrders *bool              `json:"acceptingOrders"`
	EndDate         string             `json:"endDate"`
}

// toSnapshot normalizes one gamma market. Market-level quotes describe
// the first listed outcome's book, so they are attached there.
func (m *rawMarket) toSnapshot(eventSlug string) market.Snapshot {
	s := market.Snapshot{
		ID:              m.ID,
		ConditionID:     m.ConditionID,
		Slug:            m.Slug,
		EventSlug:       eventSlug,
		Question:        m.Question,
		Active:          m.Active,
		Closed:          m.Closed,
		Archived:        m.Archived,
		AcceptingOrders: m.AcceptingOrders,
		EndDate:         market.ParseEndDate(m.EndDate),
		OutcomePrices:   m.OutcomePrices,
		Source:          market.SourceGamma,
	}
	if s.EventSlug == "" {
		s.EventSlug = m.EventSlug
	}
	if m.Volume24h.Valid {
		s.Volume24h = m.Volume24h.Decimal
	}
	if m.OrderMinSize.Valid {
		s.MinOrderSize = m.OrderMinSize.Decimal
	}
	for i, name := range m.Outcomes {
		o := market.Outcome{Name: name}
		if i == 0 {
			o.BestBid = m.BestBid.Ptr()
			o.BestAsk = m.BestAsk.Ptr()
			o.LastPrice = m.LastTradePrice.Ptr()
		}
		s.Outcomes = append(s.Outcomes, o)
	}
	s.Tokens = m.tokens()
	return s
}

// tokens extracts the tradable token legs. Gamma markets carry either a
// tokens array of objects or a clobTokenIds list parallel to outcomes.
func (m *rawMarket) tokens() []market.Token {
	if len(m.Tokens) > 0 {
		out := make([]market.Token, 0, len(m.Tokens))
		for _, raw := range m.Tokens {
			if t, ok := ParseToken(raw); ok {
				out = append(out, t)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if len(m.ClobTokenIDs) > 0 {
		out := make([]market.Token, 0, len(m.ClobTokenIDs))
		for i, id := range m.ClobTokenIDs {
			t := market.Token{ID: id}
			if i < len(m.Outcomes) {
				t.Outcome = m.Outcomes[i]
			}
			out = append(out, t)
		}
		return out
	}
	return nil
}

// ParseToken decodes one token object, probing the id under the key
// names the various endpoints use.
func ParseToken(raw json.RawMessage) (market.Token, bool) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return market.Token{}, false
	}
	id := firstString(obj, "token_id", "asset_id", "tokenId", "id")
	if id == "" {
		return market.Token{}, false
	}
	t := market.Token{
		ID:      id,
		Outcome: firstString(obj, "outcome", "name"),
	}
	if raw, ok := obj["price"]; ok {
		if b, err := json.Marshal(raw); err == nil {
			var d market.FlexDecimal
			if json.Unmarshal(b, &d) == nil && d.Valid {
				t.Price = d.Ptr()
			}
		}
	}
	return t, true
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

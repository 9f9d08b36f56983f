package market

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source tags which upstream catalog a snapshot was normalized from.
type Source string

const (
	SourceGamma Source = "gamma"
	SourceClob  Source = "clob"
)

// TargetOutcome is the side of a binary market this service hunts for.
const TargetOutcome = "No"

// Token is one tradable outcome leg as exposed by the venue.
type Token struct {
	ID      string
	Outcome string
	Price   *decimal.Decimal
}

// Outcome is one listed outcome with whatever book data the source carried.
// Ordering is significant: the first outcome owns market-level quotes.
type Outcome struct {
	Name      string
	BestBid   *decimal.Decimal
	BestAsk   *decimal.Decimal
	LastPrice *decimal.Decimal
}

// Snapshot is the upstream-agnostic view of one market. Adapters in the
// client packages build it once at the fetch boundary; nothing downstream
// touches raw upstream shapes again.
type Snapshot struct {
	ID          string
	ConditionID string
	Slug        string
	EventSlug   string
	Question    string

	// Tri-state flags: nil means the source did not carry the field.
	Active          *bool
	Closed          *bool
	Archived        *bool
	AcceptingOrders *bool

	// EndDate is nil when absent or unparsable (unparsable counts as open).
	EndDate *time.Time

	Outcomes      []Outcome
	OutcomePrices []decimal.Decimal
	Tokens        []Token

	Volume24h    decimal.Decimal
	MinOrderSize decimal.Decimal

	Source Source
}

// TokenForOutcome returns the embedded token id for the named outcome, if
// the source carried a token array.
func (s *Snapshot) TokenForOutcome(outcome string) string {
	for _, t := range s.Tokens {
		if strings.EqualFold(t.Outcome, outcome) && t.ID != "" {
			return t.ID
		}
	}
	return ""
}

// URL returns the public market page, or "" when no slug is known. The
// site routes by event slug; the market's own slug works as a fallback.
func (s *Snapshot) URL() string {
	slug := s.EventSlug
	if slug == "" {
		slug = s.Slug
	}
	if slug == "" {
		return ""
	}
	return "https://polymarket.com/event/" + slug
}

// StringList unmarshals either a JSON array of strings or a JSON string
// containing an encoded array. Gamma is known to ship both shapes.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			*l = nil
			return nil
		}
		var inner []string
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			*l = inner
			return nil
		}
		*l = nil
		return nil
	}
	*l = nil
	return nil
}

// FlexDecimal accepts a JSON number or a numeric string.
type FlexDecimal struct {
	decimal.Decimal
	Valid bool
}

func (d *FlexDecimal) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		val, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil
		}
		d.Decimal = val
		d.Valid = true
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		d.Decimal = decimal.NewFromFloat(f)
		d.Valid = true
		return nil
	}
	return nil
}

// Ptr returns the decimal as a pointer, or nil when the field was absent.
func (d FlexDecimal) Ptr() *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// DecimalList unmarshals a JSON array of numbers/strings or a JSON string
// containing an encoded array, skipping entries that do not parse.
type DecimalList []decimal.Decimal

func (l *DecimalList) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err == nil {
		*l = decodeDecimalRaws(raws)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			*l = nil
			return nil
		}
		if err := json.Unmarshal([]byte(s), &raws); err == nil {
			*l = decodeDecimalRaws(raws)
			return nil
		}
	}
	*l = nil
	return nil
}

func decodeDecimalRaws(raws []json.RawMessage) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(raws))
	for _, raw := range raws {
		var d FlexDecimal
		if err := json.Unmarshal(raw, &d); err != nil || !d.Valid {
			out = append(out, decimal.Zero)
			continue
		}
		out = append(out, d.Decimal)
	}
	return out
}

// ParseEndDate parses the expiry formats seen across both catalogs.
// Timezone-naive values are taken as UTC. Unparsable input returns nil.
func ParseEndDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			u := ts.UTC()
			return &u
		}
	}
	return nil
}

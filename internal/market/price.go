package market

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DeriveNoPrice computes the effective bid for the No side of a binary
// market. Preference order:
//
//  1. the No outcome's own bestBid, when positive;
//  2. one minus the first outcome's bestAsk, when the first outcome is
//     the Yes side and carries an ask;
//  3. the outcomePrices entry parallel to the No outcome (zero allowed).
//
// The second leg is clamped to [0, 1]. ok is false when nothing usable
// was present.
func DeriveNoPrice(s *Snapshot) (price decimal.Decimal, ok bool) {
	if s == nil || len(s.Outcomes) == 0 {
		return decimal.Zero, false
	}

	idx := -1
	for i, o := range s.Outcomes {
		if strings.EqualFold(o.Name, TargetOutcome) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return decimal.Zero, false
	}

	no := s.Outcomes[idx]
	if no.BestBid != nil && no.BestBid.IsPositive() {
		return *no.BestBid, true
	}

	first := s.Outcomes[0]
	if idx != 0 && first.BestAsk != nil && first.BestAsk.IsPositive() {
		p := decimal.NewFromInt(1).Sub(*first.BestAsk)
		if p.IsNegative() {
			p = decimal.Zero
		}
		if p.GreaterThan(decimal.NewFromInt(1)) {
			p = decimal.NewFromInt(1)
		}
		return p, true
	}

	if idx < len(s.OutcomePrices) {
		p := s.OutcomePrices[idx]
		if !p.IsNegative() {
			return p, true
		}
	}

	return decimal.Zero, false
}

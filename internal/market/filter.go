package market

import "time"

// Tradable reports whether a snapshot is still open for trading at the
// given instant. The rules are deliberately permissive: a flag the source
// omitted never disqualifies a market, and a missing or unparsable expiry
// counts as open.
func Tradable(s *Snapshot, now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Active != nil && !*s.Active {
		return false
	}
	if s.Closed != nil && *s.Closed {
		return false
	}
	if s.Archived != nil && *s.Archived {
		return false
	}
	if s.AcceptingOrders != nil && !*s.AcceptingOrders {
		return false
	}
	if s.EndDate != nil && !s.EndDate.After(now) {
		return false
	}
	return true
}

// FilterTradable keeps only snapshots open for trading at now.
func FilterTradable(in []Snapshot, now time.Time) []Snapshot {
	out := make([]Snapshot, 0, len(in))
	for i := range in {
		if Tradable(&in[i], now) {
			out = append(out, in[i])
		}
	}
	return out
}

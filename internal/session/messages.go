package session

import (
	"fmt"
	"strings"
	"time"

	"polyscout/internal/executor"
	"polyscout/internal/scan"
	"polyscout/internal/settings"
)

const (
	maxReportedOpportunities = 10
	maxReportedOrders        = 5
	maxRawDetail             = 900
)

// truncateRaw caps upstream payloads quoted in messages so one noisy
// rejection cannot blow past Telegram's message limit.
func truncateRaw(s string) string {
	if len(s) <= maxRawDetail {
		return s
	}
	return s[:maxRawDetail] + "…"
}

func formatScanReport(res *scan.Result, threshold float64) string {
	if res == nil || len(res.Opportunities) == 0 {
		return fmt.Sprintf("No opportunities at or below %.4f this round.", threshold)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%d opportunity(s)* at or below %.4f (source: %s)\n",
		len(res.Opportunities), threshold, res.Source)
	shown := res.Opportunities
	if len(shown) > maxReportedOpportunities {
		shown = shown[:maxReportedOpportunities]
	}
	for i, opp := range shown {
		fmt.Fprintf(&b, "\n%d. %s\n   No @ %s", i+1, opp.Market.Question, opp.NoPrice.String())
		if url := opp.Market.URL(); url != "" {
			fmt.Fprintf(&b, "\n   %s", url)
		}
	}
	if rest := len(res.Opportunities) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n\n…and %d more.", rest)
	}
	return b.String()
}

func formatPlacements(placements []executor.Placement) string {
	if len(placements) == 0 {
		return ""
	}
	submitted, failed := 0, 0
	var firstRaw string
	for _, p := range placements {
		if p.Err != nil {
			failed++
			continue
		}
		submitted++
		if firstRaw == "" && len(p.Raw) > 0 {
			firstRaw = string(p.Raw)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Order results:* %d submitted, %d failed\n", submitted, failed)
	shown := placements
	if len(shown) > maxReportedOrders {
		shown = shown[:maxReportedOrders]
	}
	for _, p := range shown {
		switch {
		case p.Err != nil:
			fmt.Fprintf(&b, "\n❌ %s: %s", p.Opportunity.Market.Slug, truncateRaw(p.Err.Error()))
		case p.RetriedWithMin:
			fmt.Fprintf(&b, "\n✅ %s: buy No %s @ %s (order %s, size raised to venue minimum)",
				p.Opportunity.Market.Slug, p.Size.String(), p.Price.String(), p.OrderID)
		default:
			fmt.Fprintf(&b, "\n✅ %s: buy No %s @ %s (order %s)",
				p.Opportunity.Market.Slug, p.Size.String(), p.Price.String(), p.OrderID)
		}
	}
	if rest := len(placements) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n…and %d more.", rest)
	}
	if firstRaw != "" {
		fmt.Fprintf(&b, "\n\nFirst response: %s", truncateRaw(firstRaw))
	}
	return b.String()
}

// FormatSettings renders the effective settings for /settings replies.
func FormatSettings(s settings.Settings) string {
	auto := "off"
	if s.AutoPlace {
		auto = "on"
	}
	return fmt.Sprintf(
		"*Current settings*\nprice threshold: %.4f\norder size: %.0f shares\nsell target: %.4f\nauto-place: %s\nscan interval: %s",
		s.PriceThreshold, s.OrderSize, s.SellTarget, auto, s.Interval)
}

func formatMonitorStart(conditionID string, d, poll time.Duration) string {
	if conditionID == "" {
		return fmt.Sprintf("👀 Monitoring fills for %s (every %s).", d, poll)
	}
	return fmt.Sprintf("👀 Monitoring %s for %s (every %s).", conditionID, d, poll)
}

func formatMonitorEnd(newFills int) string {
	if newFills == 0 {
		return "Monitor finished: no new fills."
	}
	return fmt.Sprintf("Monitor finished: %d new fill(s).", newFills)
}

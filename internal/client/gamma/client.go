package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"polyscout/internal/market"
)

const DefaultBaseURL = "https://gamma-api.polymarket.com"

// Client talks to the gamma catalog API. The zero HTTP client is given
// no global timeout; each request carries its own deadline so the
// escalating retry schedule stays in charge.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *zap.Logger

	// AttemptTimeouts is the per-page retry schedule. Each page is
	// tried once per entry with that entry as the request deadline.
	AttemptTimeouts []time.Duration
	// ResolveTimeout bounds the single-shot lookup endpoints.
	ResolveTimeout time.Duration

	PageLimit int
	MaxPages  int
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) attemptTimeouts() []time.Duration {
	if len(c.AttemptTimeouts) > 0 {
		return c.AttemptTimeouts
	}
	return []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second}
}

func (c *Client) resolveTimeout() time.Duration {
	if c.ResolveTimeout > 0 {
		return c.ResolveTimeout
	}
	return 15 * time.Second
}

func (c *Client) pageLimit() int {
	if c.PageLimit > 0 {
		return c.PageLimit
	}
	return 100
}

func (c *Client) maxPages() int {
	if c.MaxPages > 0 {
		return c.MaxPages
	}
	return 50
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values, timeout time.Duration) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := c.baseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// fetchPage requests one search page, walking the escalating timeout
// schedule until an attempt succeeds. The last error wins.
func (c *Client) fetchPage(ctx context.Context, query string, page int) (*searchResponse, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit_per_type", strconv.Itoa(c.pageLimit()))
	q.Set("type", "events")
	q.Set("events_status", "active")

	var lastErr error
	for i, timeout := range c.attemptTimeouts() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		body, err := c.doRequest(ctx, "/public-search", q, timeout)
		if err != nil {
			lastErr = err
			if c.Logger != nil {
				c.Logger.Warn("gamma search page attempt failed",
					zap.Int("page", page),
					zap.Int("attempt", i+1),
					zap.Duration("timeout", timeout),
					zap.Error(err))
			}
			continue
		}
		var out searchResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("gamma: decode search page %d: %w", page, err)
		}
		return &out, nil
	}
	return nil, fmt.Errorf("gamma: search page %d failed: %w", page, lastErr)
}

// SearchActiveMarkets walks the paginated public search for the query
// and returns every market found, normalized. It stops at the first
// empty page, when the API reports no more pages, or at the page cap.
func (c *Client) SearchActiveMarkets(ctx context.Context, query string) ([]market.Snapshot, error) {
	var snapshots []market.Snapshot
	for page := 1; page <= c.maxPages(); page++ {
		resp, err := c.fetchPage(ctx, query, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			if c.Logger != nil {
				c.Logger.Warn("gamma search truncated", zap.Int("page", page), zap.Error(err))
			}
			break
		}
		if len(resp.Events) == 0 {
			break
		}
		for _, ev := range resp.Events {
			for i := range ev.Markets {
				snapshots = append(snapshots, ev.Markets[i].toSnapshot(ev.Slug))
			}
		}
		if !resp.HasMore {
			break
		}
	}
	if c.Logger != nil {
		c.Logger.Debug("gamma search finished",
			zap.String("query", query),
			zap.Int("markets", len(snapshots)))
	}
	return snapshots, nil
}

// EventBySlug fetches one event and returns its markets.
func (c *Client) EventBySlug(ctx context.Context, slug string) ([]market.Snapshot, error) {
	body, err := c.doRequest(ctx, "/events/slug/"+url.PathEscape(slug), nil, c.resolveTimeout())
	if err != nil {
		return nil, err
	}
	var ev rawEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("gamma: decode event %s: %w", slug, err)
	}
	out := make([]market.Snapshot, 0, len(ev.Markets))
	for i := range ev.Markets {
		out = append(out, ev.Markets[i].toSnapshot(ev.Slug))
	}
	return out, nil
}

// MarketBySlug fetches one market by its own slug.
func (c *Client) MarketBySlug(ctx context.Context, slug string) (*market.Snapshot, error) {
	body, err := c.doRequest(ctx, "/markets/slug/"+url.PathEscape(slug), nil, c.resolveTimeout())
	if err != nil {
		return nil, err
	}
	var m rawMarket
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("gamma: decode market %s: %w", slug, err)
	}
	s := m.toSnapshot("")
	return &s, nil
}

// MarketsByCondition looks markets up by condition id, open ones only.
func (c *Client) MarketsByCondition(ctx context.Context, conditionID string) ([]market.Snapshot, error) {
	q := url.Values{}
	q.Set("condition_id", conditionID)
	q.Set("closed", "false")
	q.Set("limit", "5")
	body, err := c.doRequest(ctx, "/markets", q, c.resolveTimeout())
	if err != nil {
		return nil, err
	}
	var raws []rawMarket
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("gamma: decode markets for %s: %w", conditionID, err)
	}
	out := make([]market.Snapshot, 0, len(raws))
	for i := range raws {
		out = append(out, raws[i].toSnapshot(""))
	}
	return out, nil
}

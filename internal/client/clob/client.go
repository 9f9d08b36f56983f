package clob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyscout/internal/market"
)

const DefaultBaseURL = "https://clob.polymarket.com"

type Client struct {
	host       string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(httpClient *http.Client, host string, logger *zap.Logger) *Client {
	if host == "" {
		host = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// ListMarkets walks the catalog cursor pages until maxMarkets entries
// were collected or the end sentinel is reached.
func (c *Client) ListMarkets(ctx context.Context, maxMarkets int) ([]market.Snapshot, error) {
	if maxMarkets <= 0 {
		maxMarkets = 1000
	}
	var out []market.Snapshot
	cursor := ""
	for len(out) < maxMarkets {
		query := url.Values{}
		if cursor != "" {
			query.Set("next_cursor", cursor)
		}
		body, err := c.doRequest(ctx, "/markets", query)
		if err != nil {
			if len(out) > 0 {
				if c.logger != nil {
					c.logger.Warn("clob catalog truncated", zap.Int("markets", len(out)), zap.Error(err))
				}
				break
			}
			return nil, err
		}
		var page marketsPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("clob: decode markets page: %w", err)
		}
		for i := range page.Data {
			out = append(out, page.Data[i].toSnapshot())
			if len(out) >= maxMarkets {
				break
			}
		}
		if page.NextCursor == "" || page.NextCursor == endCursor {
			break
		}
		cursor = page.NextCursor
	}
	return out, nil
}

// GetMarket fetches one market by condition id.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*market.Snapshot, error) {
	if conditionID == "" {
		return nil, fmt.Errorf("condition_id is required")
	}
	body, err := c.doRequest(ctx, "/markets/"+url.PathEscape(conditionID), nil)
	if err != nil {
		return nil, err
	}
	var raw rawMarket
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("clob: decode market %s: %w", conditionID, err)
	}
	s := raw.toSnapshot()
	return &s, nil
}

// GetPrice returns the best price for a token on one side of the book.
func (c *Client) GetPrice(ctx context.Context, tokenID, side string) (decimal.Decimal, error) {
	if tokenID == "" {
		return decimal.Zero, fmt.Errorf("token_id is required")
	}
	query := url.Values{}
	query.Set("token_id", tokenID)
	if side != "" {
		query.Set("side", strings.ToUpper(side))
	}
	body, err := c.doRequest(ctx, "/price", query)
	if err != nil {
		return decimal.Zero, err
	}
	return parseQuote(body, "price")
}

// GetMidpoint returns the book midpoint for a token.
func (c *Client) GetMidpoint(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	if tokenID == "" {
		return decimal.Zero, fmt.Errorf("token_id is required")
	}
	query := url.Values{}
	query.Set("token_id", tokenID)
	body, err := c.doRequest(ctx, "/midpoint", query)
	if err != nil {
		return decimal.Zero, err
	}
	return parseQuote(body, "mid", "midpoint", "price")
}

// GetLastTradePrice returns the last traded price for a token.
func (c *Client) GetLastTradePrice(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	if tokenID == "" {
		return decimal.Zero, fmt.Errorf("token_id is required")
	}
	query := url.Values{}
	query.Set("token_id", tokenID)
	body, err := c.doRequest(ctx, "/last-trade-price", query)
	if err != nil {
		return decimal.Zero, err
	}
	return parseQuote(body, "price", "last")
}

// GetMinOrderSize probes the minimum order size for a market. Markets
// that do not report one fall back to def.
func (c *Client) GetMinOrderSize(ctx context.Context, conditionID string, def decimal.Decimal) decimal.Decimal {
	m, err := c.GetMarket(ctx, conditionID)
	if err != nil || m == nil || !m.MinOrderSize.IsPositive() {
		return def
	}
	return m.MinOrderSize
}

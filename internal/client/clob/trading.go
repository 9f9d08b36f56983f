package clob

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// TradingClient layers the authenticated order and data endpoints over
// the public Client. Orders are signed locally with the wallet key and
// submitted with HMAC API credentials.
type TradingClient struct {
	*Client

	key        *ecdsa.PrivateKey
	address    string
	apiKey     string
	apiSecret  string
	passphrase string
}

// NewTradingClient parses the wallet key and derives the maker address
// when none was configured.
func NewTradingClient(base *Client, privateKeyHex, address, apiKey, apiSecret, passphrase string) (*TradingClient, error) {
	pk := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if pk == "" {
		return nil, fmt.Errorf("trading private key is required")
	}
	key, err := crypto.HexToECDSA(pk)
	if err != nil {
		return nil, fmt.Errorf("invalid trading private key: %w", err)
	}
	addr := strings.ToLower(strings.TrimSpace(address))
	if addr == "" {
		addr = strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
	}
	return &TradingClient{
		Client:     base,
		key:        key,
		address:    addr,
		apiKey:     strings.TrimSpace(apiKey),
		apiSecret:  strings.TrimSpace(apiSecret),
		passphrase: strings.TrimSpace(passphrase),
	}, nil
}

// Address is the maker address orders are signed for.
func (c *TradingClient) Address() string { return c.address }

// OrderResult is the venue's reply to an order submission.
type OrderResult struct {
	Success  bool
	OrderID  string
	Status   string
	ErrorMsg string
	Raw      json.RawMessage
}

// CreateOrder builds and signs a limit order payload. Price is per
// share, size is in shares; amounts are scaled to USDC base units.
func (c *TradingClient) CreateOrder(tokenID, side string, price, size decimal.Decimal) (map[string]any, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil, fmt.Errorf("token_id is required")
	}
	side = strings.ToUpper(strings.TrimSpace(side))
	if side != "BUY" && side != "SELL" {
		return nil, fmt.Errorf("invalid order side %q", side)
	}
	if !price.IsPositive() || !size.IsPositive() {
		return nil, fmt.Errorf("order price and size must be > 0")
	}

	usdcBase := decimal.NewFromInt(1_000_000)
	makerAmount := price.Mul(size).Mul(usdcBase)
	takerAmount := size.Mul(usdcBase)
	if side == "SELL" {
		makerAmount, takerAmount = takerAmount, makerAmount
	}

	order := map[string]any{
		"salt":          strconv.FormatInt(time.Now().UTC().UnixNano(), 10),
		"maker":         c.address,
		"signer":        c.address,
		"taker":         "0x0000000000000000000000000000000000000000",
		"tokenId":       tokenID,
		"makerAmount":   makerAmount.Round(0).StringFixed(0),
		"takerAmount":   takerAmount.Round(0).StringFixed(0),
		"expiration":    "0",
		"nonce":         "0",
		"feeRateBps":    "0",
		"side":          side,
		"signatureType": 0,
	}
	sig, err := c.signOrder(order)
	if err != nil {
		return nil, err
	}
	order["signature"] = sig
	return order, nil
}

// signOrder hashes the canonical JSON form of the unsigned order and
// signs the digest with the wallet key.
func (c *TradingClient) signOrder(order map[string]any) (string, error) {
	canonical, err := canonicalJSON(order)
	if err != nil {
		return "", err
	}
	hash := crypto.Keccak256(canonical)
	sig, err := crypto.Sign(hash, c.key)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// PostOrder submits a signed order with the given time in force.
func (c *TradingClient) PostOrder(ctx context.Context, order map[string]any, orderType string) (*OrderResult, error) {
	if orderType == "" {
		orderType = "GTC"
	}
	payload := map[string]any{
		"order":     order,
		"owner":     c.apiKey,
		"orderType": orderType,
	}
	body, err := c.doSigned(ctx, http.MethodPost, "/order", nil, payload)
	if err != nil {
		return nil, err
	}
	return parseOrderResult(body)
}

// Trades returns fills for the configured maker address, narrowed to
// one market when a condition id is given. Replies that arrive
// unfiltered are filtered locally.
func (c *TradingClient) Trades(ctx context.Context, market string) ([]Trade, error) {
	query := url.Values{}
	query.Set("maker_address", c.address)
	if market != "" {
		query.Set("market", market)
	}
	body, err := c.doSigned(ctx, http.MethodGet, "/data/trades", query, nil)
	if err != nil {
		return nil, err
	}
	objs, err := decodeObjectList(body)
	if err != nil {
		return nil, fmt.Errorf("clob: decode trades: %w", err)
	}
	out := make([]Trade, 0, len(objs))
	for _, obj := range objs {
		t := parseTrade(obj)
		if t.Maker != "" && t.Maker != c.address && t.Owner != c.address {
			continue
		}
		if market != "" && t.Market != "" && !strings.EqualFold(t.Market, market) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// OpenOrders returns resting orders for the configured maker address,
// narrowed to one market when a condition id is given.
func (c *TradingClient) OpenOrders(ctx context.Context, market string) ([]OpenOrder, error) {
	query := url.Values{}
	if market != "" {
		query.Set("market", market)
	}
	body, err := c.doSigned(ctx, http.MethodGet, "/data/orders", query, nil)
	if err != nil {
		return nil, err
	}
	objs, err := decodeObjectList(body)
	if err != nil {
		return nil, fmt.Errorf("clob: decode orders: %w", err)
	}
	out := make([]OpenOrder, 0, len(objs))
	for _, obj := range objs {
		o := parseOpenOrder(obj)
		if o.Maker != "" && o.Maker != c.address && o.Owner != c.address {
			continue
		}
		if market != "" && o.Market != "" && !strings.EqualFold(o.Market, market) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *TradingClient) doSigned(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	var bodyReader io.Reader
	bodyRaw := []byte{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		bodyRaw = raw
		bodyReader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ts := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	sig, err := c.hmacSignature(ts, method, path, bodyRaw)
	if err != nil {
		return nil, err
	}
	req.Header.Set("POLY_ADDRESS", c.address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", ts)
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// hmacSignature implements the L2 scheme: a url-safe base64 HMAC over
// timestamp, method, path and body, keyed by the decoded API secret.
func (c *TradingClient) hmacSignature(ts, method, path string, body []byte) (string, error) {
	secret, err := base64.URLEncoding.DecodeString(c.apiSecret)
	if err != nil {
		// Some credential dumps ship the secret unencoded.
		secret = []byte(c.apiSecret)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte(strings.ToUpper(method)))
	mac.Write([]byte(path))
	mac.Write(body)
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func parseOrderResult(raw []byte) (*OrderResult, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty order response")
	}
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("clob: decode order response: %w", err)
	}
	out := &OrderResult{Raw: json.RawMessage(raw)}
	if v, ok := root["success"].(bool); ok {
		out.Success = v
	}
	out.OrderID = firstString(root, "orderID", "orderId", "order_id", "id")
	out.Status = strings.ToLower(firstString(root, "status", "state"))
	out.ErrorMsg = firstString(root, "errorMsg", "error", "message")
	if out.OrderID != "" && out.ErrorMsg == "" {
		out.Success = true
	}
	return out, nil
}

func decodeObjectList(raw []byte) ([]map[string]any, error) {
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, nil
	}
	return nil, fmt.Errorf("unexpected list payload")
}

func canonicalJSON(v any) ([]byte, error) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]json.RawMessage, len(keys))
		for _, k := range keys {
			b, err := canonicalJSON(t[k])
			if err != nil {
				return nil, err
			}
			out[k] = b
		}
		return json.Marshal(out)
	case []any:
		arr := make([]json.RawMessage, 0, len(t))
		for _, item := range t {
			b, err := canonicalJSON(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, b)
		}
		return json.Marshal(arr)
	default:
		return json.Marshal(t)
	}
}

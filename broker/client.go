// Package broker implements the Alpaca brokerage client: REST calls for
// account lookup, market data, option chains and order management, plus the
// trade_updates websocket stream.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// APIError is a non-2xx response from the brokerage. It is distinct from
// transport errors (timeout, DNS, refused connection) which surface as plain
// errors from the HTTP client.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("brokerage API error: %d - %s", e.StatusCode, e.Body)
}

// IsAuthError reports whether the response indicates bad credentials
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client is an authenticated Alpaca REST client
type Client struct {
	baseURL   string
	dataURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
}

// NewClient creates a brokerage client for one set of credentials. Every
// outbound call is bounded by the given timeout.
func NewClient(baseURL, dataURL, apiKey, apiSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		dataURL:   dataURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetAccount performs the lightweight authenticated account lookup used for
// credential validation
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/account", nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// LatestTradePrice returns the last trade price for a stock symbol
func (c *Client) LatestTradePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/v2/stocks/trades/latest?symbols=%s", c.dataURL, url.QueryEscape(symbol))

	var resp latestTradesResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return decimal.Zero, err
	}

	trade, ok := resp.Trades[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no trade price data available for %s", symbol)
	}
	return trade.Price, nil
}

// GetOptionContracts fetches the options chain for an underlying and
// expiration date (YYYY-MM-DD). The chain is returned unfiltered by side so
// the caller can distinguish an empty chain from a missing side.
func (c *Client) GetOptionContracts(ctx context.Context, underlying, expiration string) ([]OptionContract, error) {
	params := url.Values{}
	params.Set("underlying_symbols", underlying)
	params.Set("expiration_date", expiration)
	params.Set("limit", "500")
	endpoint := fmt.Sprintf("%s/v1beta1/options/contracts?%s", c.baseURL, params.Encode())

	var resp optionContractsResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.OptionContracts, nil
}

// PlaceOrder submits an order to the brokerage
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*BrokerOrder, error) {
	var order BrokerOrder
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder looks up an order by its brokerage-assigned id
func (c *Client) GetOrder(ctx context.Context, brokerOrderID string) (*BrokerOrder, error) {
	var order BrokerOrder
	endpoint := fmt.Sprintf("%s/v2/orders/%s", c.baseURL, url.PathEscape(brokerOrderID))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// do executes one authenticated request and decodes the JSON response
func (c *Client) do(ctx context.Context, method, endpoint string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if dest != nil {
		if err := json.Unmarshal(respBody, dest); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

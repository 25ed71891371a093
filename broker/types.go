package broker

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the subset of the Alpaca account payload used for credential
// validation and status display
type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"account_number"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency"`
	Cash          decimal.Decimal `json:"cash"`
	BuyingPower   decimal.Decimal `json:"buying_power"`
}

// latestTradesResponse mirrors GET /v2/stocks/trades/latest
type latestTradesResponse struct {
	Trades map[string]struct {
		Price     decimal.Decimal `json:"p"`
		Size      int64           `json:"s"`
		Timestamp time.Time       `json:"t"`
	} `json:"trades"`
}

// OptionContract is one entry of an options chain as returned by the
// brokerage. Strike arrives as a JSON string and is kept as a decimal.
type OptionContract struct {
	Symbol           string          `json:"symbol"`
	UnderlyingSymbol string          `json:"underlying_symbol"`
	Name             string          `json:"name"`
	Type             string          `json:"type"` // call, put
	StrikePrice      decimal.Decimal `json:"strike_price"`
	ExpirationDate   string          `json:"expiration_date"`
	Status           string          `json:"status"`
	Tradable         bool            `json:"tradable"`
}

// optionContractsResponse mirrors GET /v1beta1/options/contracts
type optionContractsResponse struct {
	OptionContracts []OptionContract `json:"option_contracts"`
	NextPageToken   *string          `json:"next_page_token"`
}

// OrderRequest is the body of POST /v2/orders
type OrderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// BrokerOrder is the subset of the Alpaca order payload the trader consumes
type BrokerOrder struct {
	ID             string              `json:"id"`
	ClientOrderID  string              `json:"client_order_id"`
	Symbol         string              `json:"symbol"`
	Qty            string              `json:"qty"`
	Side           string              `json:"side"`
	Status         string              `json:"status"` // new, accepted, filled, canceled, expired, rejected, ...
	FilledAvgPrice decimal.NullDecimal `json:"filled_avg_price"`
	SubmittedAt    *time.Time          `json:"submitted_at"`
	FilledAt       *time.Time          `json:"filled_at"`
}

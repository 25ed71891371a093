package trading

import (
	"context"

	"github.com/shopspring/decimal"

	"options-webhook-trader/broker"
	"options-webhook-trader/database"
)

// memStore is an in-memory Store recording every persisted status transition
type memStore struct {
	orders        []*database.Order
	logs          []*database.WebhookLog
	cfg           *database.TradingConfig
	cfgErr        error
	statusHistory []string
}

func (m *memStore) CreateOrder(o *database.Order) error {
	o.ID = int64(len(m.orders) + 1)
	m.orders = append(m.orders, o)
	m.statusHistory = append(m.statusHistory, o.OrderStatus)
	return nil
}

func (m *memStore) UpdateOrder(o *database.Order) error {
	m.statusHistory = append(m.statusHistory, o.OrderStatus)
	return nil
}

func (m *memStore) CreateWebhookLog(l *database.WebhookLog) error {
	l.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, l)
	return nil
}

func (m *memStore) UpdateWebhookLog(l *database.WebhookLog) error {
	return nil
}

func (m *memStore) ActiveConfig() (*database.TradingConfig, error) {
	return m.cfg, m.cfgErr
}

// stubBroker is a scriptable Broker counting every outbound call
type stubBroker struct {
	account    *broker.Account
	accountErr error

	price    decimal.Decimal
	priceErr error

	chain    []broker.OptionContract
	chainErr error

	placed   *broker.BrokerOrder
	placeErr error

	upstream    *broker.BrokerOrder
	upstreamErr error

	accountCalls int
	priceCalls   int
	chainCalls   int
	placeCalls   int
	getCalls     int
}

func (b *stubBroker) GetAccount(ctx context.Context) (*broker.Account, error) {
	b.accountCalls++
	if b.accountErr != nil {
		return nil, b.accountErr
	}
	if b.account != nil {
		return b.account, nil
	}
	return &broker.Account{ID: "acct-1", Status: "ACTIVE"}, nil
}

func (b *stubBroker) LatestTradePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	b.priceCalls++
	if b.priceErr != nil {
		return decimal.Zero, b.priceErr
	}
	return b.price, nil
}

func (b *stubBroker) GetOptionContracts(ctx context.Context, underlying, expiration string) ([]broker.OptionContract, error) {
	b.chainCalls++
	if b.chainErr != nil {
		return nil, b.chainErr
	}
	return b.chain, nil
}

func (b *stubBroker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.BrokerOrder, error) {
	b.placeCalls++
	if b.placeErr != nil {
		return nil, b.placeErr
	}
	if b.placed != nil {
		return b.placed, nil
	}
	return &broker.BrokerOrder{ID: "broker-order-1", ClientOrderID: req.ClientOrderID, Symbol: req.Symbol, Status: "new"}, nil
}

func (b *stubBroker) GetOrder(ctx context.Context, brokerOrderID string) (*broker.BrokerOrder, error) {
	b.getCalls++
	if b.upstreamErr != nil {
		return nil, b.upstreamErr
	}
	return b.upstream, nil
}

// callChain builds a chain holding both sides for each strike
func callChain(underlying, expiry string, strikes ...int64) []broker.OptionContract {
	var chain []broker.OptionContract
	for _, s := range strikes {
		strike := decimal.NewFromInt(s)
		for _, side := range []string{"call", "put"} {
			chain = append(chain, broker.OptionContract{
				Symbol:           occSymbol(underlying, expiry, side, s),
				UnderlyingSymbol: underlying,
				Type:             side,
				StrikePrice:      strike,
				ExpirationDate:   expiry,
				Tradable:         true,
			})
		}
	}
	return chain
}

func occSymbol(underlying, expiry, side string, strike int64) string {
	suffix := "C"
	if side == "put" {
		suffix = "P"
	}
	return underlying + expiry + suffix + decimal.NewFromInt(strike).StringFixed(0)
}

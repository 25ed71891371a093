package trading

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"options-webhook-trader/broker"
	"options-webhook-trader/database"
)

// Broker is the outbound brokerage surface the core depends on. The concrete
// client lives in the broker package; tests substitute stubs.
type Broker interface {
	GetAccount(ctx context.Context) (*broker.Account, error)
	LatestTradePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetOptionContracts(ctx context.Context, underlying, expiration string) ([]broker.OptionContract, error)
	PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.BrokerOrder, error)
	GetOrder(ctx context.Context, brokerOrderID string) (*broker.BrokerOrder, error)
}

// BrokerFactory builds a brokerage client for one set of credentials.
// Credentials are resolved per pipeline run, so the client is constructed
// per run rather than held as ambient state.
type BrokerFactory func(apiKey, apiSecret string) Broker

// Store is the persistence surface the core depends on
type Store interface {
	CreateOrder(order *database.Order) error
	UpdateOrder(order *database.Order) error
	CreateWebhookLog(entry *database.WebhookLog) error
	UpdateWebhookLog(entry *database.WebhookLog) error
	ActiveConfig() (*database.TradingConfig, error)
}

// Publisher receives order lifecycle events for live dashboard updates
type Publisher interface {
	PublishOrder(event string, order *database.Order)
}

// Options tunes pipeline behavior
type Options struct {
	// Environment-variable credential fallback, consulted when no active
	// TradingConfig row exists
	FallbackAPIKey    string
	FallbackAPISecret string

	// Bounded retries for transient transport failures before submission
	RetryAttempts int
	RetryBackoff  time.Duration

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline orchestrates one inbound signal: validate, resolve credentials,
// resolve expiration and contract, submit, persist. Orchestration only - the
// business rules live in the resolver and executor functions it sequences.
type Pipeline struct {
	store     Store
	newBroker BrokerFactory
	executor  *Executor
	events    Publisher // optional
	opts      Options
}

// NewPipeline creates a signal pipeline
func NewPipeline(store Store, newBroker BrokerFactory, events Publisher, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		store:     store,
		newBroker: newBroker,
		executor:  NewExecutor(store),
		events:    events,
		opts:      opts,
	}
}

// Executor exposes the pipeline's order executor for status refresh callers
func (p *Pipeline) Executor() *Executor {
	return p.executor
}

// BrokerForActiveConfig builds a brokerage client from the currently active
// credentials, or NoActiveConfig if none are configured
func (p *Pipeline) BrokerForActiveConfig() (Broker, error) {
	cfg, err := p.resolveConfig()
	if err != nil {
		return nil, err
	}
	return p.newBroker(cfg.APIKey, cfg.APISecret), nil
}

// Run executes the pipeline for one signal. Exactly one order row and one
// webhook log row are written regardless of which step fails; the returned
// order carries the terminal status. The returned error is the pipeline
// error kind, nil on successful submission.
func (p *Pipeline) Run(ctx context.Context, sig Signal, meta RequestMeta) (*database.Order, error) {
	// Audit trail first: no signal is silently dropped
	entry := &database.WebhookLog{
		Payload:   datatypes.JSON(meta.RawPayload),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if err := p.store.CreateWebhookLog(entry); err != nil {
		return nil, err
	}

	order := &database.Order{
		Ticker:      strings.ToUpper(strings.TrimSpace(sig.Ticker)),
		Signal:      string(sig.Side),
		Quantity:    sig.Quantity,
		OrderStatus: database.OrderStatusPending,
	}
	if err := p.store.CreateOrder(order); err != nil {
		return nil, err
	}
	entry.OrderID = &order.ID

	// 1. Signal shape
	if err := sig.Validate(); err != nil {
		return order, p.fail(order, entry, err)
	}

	// 2. Active credentials
	cfg, err := p.resolveConfig()
	if err != nil {
		return order, p.fail(order, entry, err)
	}
	b := p.newBroker(cfg.APIKey, cfg.APISecret)

	// 3. Credential pre-flight
	result, err := ValidateCredentials(ctx, b, p.opts.RetryAttempts, p.opts.RetryBackoff)
	if err != nil {
		return order, p.fail(order, entry, err)
	}
	if !result.OK {
		return order, p.fail(order, entry, fmt.Errorf("%w: %s", ErrAuthenticationFailed, result.Message))
	}

	// 4. Expiration
	expiration := NextExpiration(p.opts.Now())

	// 5. Underlying price
	var price decimal.Decimal
	err = withRetry(ctx, p.opts.RetryAttempts, p.opts.RetryBackoff, func() error {
		var callErr error
		price, callErr = b.LatestTradePrice(ctx, order.Ticker)
		return callErr
	})
	if err != nil {
		return order, p.fail(order, entry, fmt.Errorf("%w: %v", ErrPriceUnavailable, err))
	}

	// 6. ATM contract
	contract, err := ResolveContract(ctx, b, order.Ticker, sig.Side, expiration, price)
	if err != nil {
		return order, p.fail(order, entry, err)
	}

	// 7. Submission - no retries from here on
	if err := p.executor.Submit(ctx, b, order, contract); err != nil {
		return order, p.fail(order, entry, err)
	}

	p.finishLog(entry, 200, fmt.Sprintf("Order placed successfully: %s", contract.Symbol))
	p.publish("order_submitted", order)
	log.Printf("✅ %s %s x%d submitted as %s (broker order %s)",
		order.Ticker, order.Signal, order.Quantity, order.ContractSymbol, order.BrokerOrderID)
	return order, nil
}

// TestConnection checks the active credentials against the brokerage. Used
// by the dashboard status endpoint.
func (p *Pipeline) TestConnection(ctx context.Context) (bool, string) {
	cfg, err := p.resolveConfig()
	if err != nil {
		return false, "API credentials not configured"
	}

	b := p.newBroker(cfg.APIKey, cfg.APISecret)
	result, err := ValidateCredentials(ctx, b, p.opts.RetryAttempts, p.opts.RetryBackoff)
	if err != nil {
		return false, fmt.Sprintf("Connection failed: %v", err)
	}
	return result.OK, result.Message
}

// resolveConfig returns the canonical credentials: the active stored row if
// present, else the environment fallback, else NoActiveConfig
func (p *Pipeline) resolveConfig() (*database.TradingConfig, error) {
	cfg, err := p.store.ActiveConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoActiveConfig, err)
	}
	if cfg != nil && cfg.APIKey != "" && cfg.APISecret != "" {
		return cfg, nil
	}
	if p.opts.FallbackAPIKey != "" && p.opts.FallbackAPISecret != "" {
		return &database.TradingConfig{
			APIKey:    p.opts.FallbackAPIKey,
			APISecret: p.opts.FallbackAPISecret,
			IsActive:  true,
		}, nil
	}
	return nil, fmt.Errorf("%w: no API credentials configured", ErrNoActiveConfig)
}

// fail records a pipeline failure on the order (unless it already reached a
// terminal status) and the audit row, then returns the original error
func (p *Pipeline) fail(order *database.Order, entry *database.WebhookLog, err error) error {
	log.Printf("❌ Pipeline failed for order %d (%s %s): %v", order.ID, order.Ticker, order.Signal, err)

	if !order.IsTerminal() {
		order.OrderStatus = database.OrderStatusFailed
		order.ErrorMessage = err.Error()
		if uerr := p.store.UpdateOrder(order); uerr != nil {
			log.Printf("⚠️  Failed to persist order failure: %v", uerr)
		}
	}

	p.finishLog(entry, 400, err.Error())
	p.publish("order_failed", order)
	return err
}

func (p *Pipeline) finishLog(entry *database.WebhookLog, status int, message string) {
	entry.ResponseStatus = &status
	entry.ResponseMessage = message
	if err := p.store.UpdateWebhookLog(entry); err != nil {
		log.Printf("⚠️  Failed to update webhook log %d: %v", entry.ID, err)
	}
}

func (p *Pipeline) publish(event string, order *database.Order) {
	if p.events != nil {
		p.events.PublishOrder(event, order)
	}
}

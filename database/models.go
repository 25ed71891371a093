package database

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order status lifecycle. Transitions are monotonic: an order starts at
// pending, moves to processing while the brokerage call is in flight, and
// ends at exactly one of submitted or failed. It never returns to pending.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusSubmitted  = "submitted"
	OrderStatusFailed     = "failed"
)

// Signal directions
const (
	SignalCall = "CALL"
	SignalPut  = "PUT"
)

// TradingConfig holds brokerage API credentials. At most one active row is
// consulted at a time; environment variables are the fallback path when no
// active row exists.
type TradingConfig struct {
	ID        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	APIKey    string    `gorm:"size:255" json:"api_key"`
	APISecret string    `gorm:"size:255" json:"-"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for TradingConfig
func (TradingConfig) TableName() string {
	return "trading_configs"
}

// Order represents one options order produced by one inbound signal.
//
// Key Fields:
//   - Ticker/Signal/Quantity: the inbound signal that produced the order
//   - ContractSymbol: the resolved OCC contract identifier
//   - StrikePrice: resolved at-the-money strike (decimal, never float money)
//   - ExpiryDate: resolved expiration (YYYY-MM-DD)
//   - ClientOrderID: idempotency key sent with the brokerage submission
//   - BrokerOrderID: identifier assigned by the brokerage on acceptance
//   - ErrorMessage: the pipeline error kind and cause when status is failed
type Order struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Ticker         string          `gorm:"size:10;index;not null" json:"ticker"`
	Signal         string          `gorm:"size:10;not null" json:"signal"` // CALL, PUT
	Quantity       int             `gorm:"not null" json:"quantity"`
	ContractSymbol string          `gorm:"size:50" json:"contract_symbol"`
	StrikePrice    decimal.Decimal `gorm:"type:numeric(15,2)" json:"strike_price"`
	ExpiryDate     string          `gorm:"size:20" json:"expiry_date"`
	OrderStatus    string          `gorm:"size:20;default:pending;index" json:"order_status"`
	ClientOrderID  string          `gorm:"size:64" json:"client_order_id"`
	BrokerOrderID  string          `gorm:"size:64;index" json:"broker_order_id"`
	ErrorMessage   string          `gorm:"type:text" json:"error_message"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	FilledAt       *time.Time      `json:"filled_at,omitempty"`
}

// TableName specifies the table name for Order
func (Order) TableName() string {
	return "orders"
}

// IsTerminal reports whether the order has reached a terminal status.
func (o *Order) IsTerminal() bool {
	return o.OrderStatus == OrderStatusSubmitted || o.OrderStatus == OrderStatusFailed
}

// WebhookLog is the append-only audit trail of inbound signals. Exactly one
// row is written per webhook call regardless of pipeline outcome.
type WebhookLog struct {
	ID              int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Payload         datatypes.JSON `json:"payload"`
	IPAddress       string         `gorm:"size:45" json:"ip_address"`
	UserAgent       string         `gorm:"size:255" json:"user_agent"`
	ResponseStatus  *int           `json:"response_status,omitempty"`
	ResponseMessage string         `gorm:"type:text" json:"response_message"`
	OrderID         *int64         `gorm:"index" json:"order_id,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name for WebhookLog
func (WebhookLog) TableName() string {
	return "webhook_logs"
}

// OrderStats aggregates order counts for the dashboard stats endpoint
type OrderStats struct {
	TotalOrders      int64 `json:"total_orders"`
	SuccessfulOrders int64 `json:"successful_orders"`
	FailedOrders     int64 `json:"failed_orders"`
	PendingOrders    int64 `json:"pending_orders"`
}

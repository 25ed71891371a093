package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"options-webhook-trader/cache"
)

const activeConfigCacheKey = "active_trading_config"

// OrderRepository handles database operations for orders, webhook logs and
// trading configuration
type OrderRepository struct {
	db    *Database
	redis *cache.RedisClient // optional, nil disables caching
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *Database, redis *cache.RedisClient) *OrderRepository {
	return &OrderRepository{db: db, redis: redis}
}

// InitSchema performs auto-migration for all entities
func (r *OrderRepository) InitSchema() error {
	fmt.Println("🔄 Starting database schema initialization...")

	if err := r.db.db.AutoMigrate(
		&TradingConfig{},
		&Order{},
		&WebhookLog{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	fmt.Println("✅ Database schema ready")
	return nil
}

// CreateOrder inserts a new order row
func (r *OrderRepository) CreateOrder(order *Order) error {
	return WrapDBError("CreateOrder", r.db.db.Create(order).Error)
}

// UpdateOrder persists all fields of an existing order row
func (r *OrderRepository) UpdateOrder(order *Order) error {
	return WrapDBError("UpdateOrder", r.db.db.Save(order).Error)
}

// OrderByID loads one order
func (r *OrderRepository) OrderByID(id int64) (*Order, error) {
	var order Order
	err := r.db.db.First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, WrapDBError("OrderByID", err)
	}
	return &order, nil
}

// OrderByBrokerID loads the order holding a brokerage-assigned order id.
// Used by the trade_updates stream to apply upstream status changes.
func (r *OrderRepository) OrderByBrokerID(brokerOrderID string) (*Order, error) {
	var order Order
	err := r.db.db.Where("broker_order_id = ?", brokerOrderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "order", ID: brokerOrderID}
	}
	if err != nil {
		return nil, WrapDBError("OrderByBrokerID", err)
	}
	return &order, nil
}

// ListOrders returns one page of order history plus the total row count
func (r *OrderRepository) ListOrders(page, perPage int) ([]Order, int64, error) {
	if page < 1 {
		page = 1
	}
	var total int64
	if err := r.db.db.Model(&Order{}).Count(&total).Error; err != nil {
		return nil, 0, WrapDBError("ListOrders", err)
	}

	var orders []Order
	err := r.db.db.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&orders).Error
	return orders, total, WrapDBError("ListOrders", err)
}

// Stats aggregates order counts by status for the dashboard
func (r *OrderRepository) Stats() (*OrderStats, error) {
	stats := &OrderStats{}
	m := r.db.db.Model(&Order{})

	if err := m.Count(&stats.TotalOrders).Error; err != nil {
		return nil, WrapDBError("Stats", err)
	}
	if err := r.countByStatus(&stats.SuccessfulOrders, OrderStatusSubmitted); err != nil {
		return nil, err
	}
	if err := r.countByStatus(&stats.FailedOrders, OrderStatusFailed); err != nil {
		return nil, err
	}
	// An order frozen at pending (crash before the submit call) is just as
	// unresolved as one mid-flight; the dashboard counts both
	if err := r.countByStatus(&stats.PendingOrders, OrderStatusPending, OrderStatusProcessing); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *OrderRepository) countByStatus(dest *int64, statuses ...string) error {
	err := r.db.db.Model(&Order{}).Where("order_status IN ?", statuses).Count(dest).Error
	return WrapDBError("Stats", err)
}

// CreateWebhookLog appends one audit row for an inbound signal
func (r *OrderRepository) CreateWebhookLog(entry *WebhookLog) error {
	return WrapDBError("CreateWebhookLog", r.db.db.Create(entry).Error)
}

// UpdateWebhookLog persists the outcome fields of an audit row
func (r *OrderRepository) UpdateWebhookLog(entry *WebhookLog) error {
	return WrapDBError("UpdateWebhookLog", r.db.db.Save(entry).Error)
}

// RecentWebhookLogs returns the newest audit rows, capped at limit
func (r *OrderRepository) RecentWebhookLogs(limit int) ([]WebhookLog, error) {
	var logs []WebhookLog
	err := r.db.db.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, WrapDBError("RecentWebhookLogs", err)
}

// cachedConfig is the cache envelope for TradingConfig. The entity hides the
// secret from JSON so API handlers can never leak it, but the cache
// round-trips through JSON too; the envelope carries the secret explicitly
// so a cache hit returns usable credentials.
type cachedConfig struct {
	ID        int       `json:"id"`
	APIKey    string    `json:"api_key"`
	APISecret string    `json:"api_secret"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newCachedConfig(cfg *TradingConfig) *cachedConfig {
	return &cachedConfig{
		ID:        cfg.ID,
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		IsActive:  cfg.IsActive,
		CreatedAt: cfg.CreatedAt,
		UpdatedAt: cfg.UpdatedAt,
	}
}

func (c *cachedConfig) config() *TradingConfig {
	return &TradingConfig{
		ID:        c.ID,
		APIKey:    c.APIKey,
		APISecret: c.APISecret,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ActiveConfig returns the active trading configuration, cache-first.
// Returns (nil, nil) when no active row exists so callers can fall back to
// environment credentials.
func (r *OrderRepository) ActiveConfig() (*TradingConfig, error) {
	// Try cache first
	if r.redis != nil {
		var cached cachedConfig
		if err := r.redis.Get(context.Background(), activeConfigCacheKey, &cached); err == nil {
			return cached.config(), nil
		}
	}

	var cfg TradingConfig
	err := r.db.db.Where("is_active = ?", true).Order("updated_at DESC").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapDBError("ActiveConfig", err)
	}

	// Update cache (expire 1 hour)
	if r.redis != nil {
		_ = r.redis.Set(context.Background(), activeConfigCacheKey, newCachedConfig(&cfg), 1*time.Hour)
	}

	return &cfg, nil
}

// SaveConfig upserts the active trading configuration and invalidates the
// config cache
func (r *OrderRepository) SaveConfig(apiKey, apiSecret string) (*TradingConfig, error) {
	var cfg TradingConfig
	err := r.db.db.Where("is_active = ?", true).First(&cfg).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, WrapDBError("SaveConfig", err)
	}

	cfg.APIKey = apiKey
	cfg.APISecret = apiSecret
	cfg.IsActive = true

	if err := r.db.db.Save(&cfg).Error; err != nil {
		return nil, WrapDBError("SaveConfig", err)
	}

	if r.redis != nil {
		_ = r.redis.Delete(context.Background(), activeConfigCacheKey)
	}

	return &cfg, nil
}

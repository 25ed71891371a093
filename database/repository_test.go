package database

import (
	"encoding/json"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *OrderRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}

	repo := NewOrderRepository(&Database{db: db}, nil)
	if err := repo.InitSchema(); err != nil {
		t.Fatalf("schema init failed: %v", err)
	}
	return repo
}

func TestConfigCacheRoundTripKeepsSecret(t *testing.T) {
	cfg := &TradingConfig{ID: 1, APIKey: "key", APISecret: "secret", IsActive: true}

	// The entity drops the secret on marshal so handlers can never leak it
	direct, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var entity TradingConfig
	if err := json.Unmarshal(direct, &entity); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if entity.APISecret != "" {
		t.Errorf("entity round-trip kept the secret %q, json:\"-\" tag missing", entity.APISecret)
	}

	// The cache envelope must survive the same round trip intact
	enveloped, err := json.Marshal(newCachedConfig(cfg))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var cached cachedConfig
	if err := json.Unmarshal(enveloped, &cached); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	got := cached.config()
	if got.APIKey != "key" {
		t.Errorf("cached api key %q, want key", got.APIKey)
	}
	if got.APISecret != "secret" {
		t.Errorf("cached secret %q, want secret", got.APISecret)
	}
	if !got.IsActive {
		t.Error("cached config lost is_active")
	}
}

func TestActiveConfigReturnsNilWithoutRow(t *testing.T) {
	repo := newTestRepository(t)

	cfg, err := repo.ActiveConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config without an active row, got %+v", cfg)
	}
}

func TestSaveConfigUpsertsActiveRow(t *testing.T) {
	repo := newTestRepository(t)

	if _, err := repo.SaveConfig("key-1", "secret-1"); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if _, err := repo.SaveConfig("key-2", "secret-2"); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	cfg, err := repo.ActiveConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected an active config")
	}
	if cfg.APIKey != "key-2" || cfg.APISecret != "secret-2" {
		t.Errorf("active config %s/%s, want key-2/secret-2", cfg.APIKey, cfg.APISecret)
	}

	var count int64
	if err := repo.db.db.Model(&TradingConfig{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("saving twice left %d rows, want 1 upserted row", count)
	}
}

func TestStatsCountsStalledPendingOrders(t *testing.T) {
	repo := newTestRepository(t)

	for _, status := range []string{
		OrderStatusPending, // crashed before the submit call
		OrderStatusProcessing,
		OrderStatusSubmitted,
		OrderStatusFailed,
	} {
		order := &Order{Ticker: "AAPL", Signal: SignalCall, Quantity: 1, OrderStatus: status}
		if err := repo.CreateOrder(order); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalOrders != 4 {
		t.Errorf("total %d, want 4", stats.TotalOrders)
	}
	if stats.SuccessfulOrders != 1 {
		t.Errorf("successful %d, want 1", stats.SuccessfulOrders)
	}
	if stats.FailedOrders != 1 {
		t.Errorf("failed %d, want 1", stats.FailedOrders)
	}
	if stats.PendingOrders != 2 {
		t.Errorf("pending %d, want 2 (pending and processing rows)", stats.PendingOrders)
	}
}

func TestOrderByBrokerID(t *testing.T) {
	repo := newTestRepository(t)

	order := &Order{Ticker: "SPY", Signal: SignalPut, Quantity: 1, OrderStatus: OrderStatusSubmitted, BrokerOrderID: "broker-order-1"}
	if err := repo.CreateOrder(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.OrderByBrokerID("broker-order-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got.ID != order.ID {
		t.Errorf("loaded order %d, want %d", got.ID, order.ID)
	}

	_, err = repo.OrderByBrokerID("unknown")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError for unknown broker id, got %v", err)
	}
}

// Package app wires the trader together: configuration, database, cache,
// brokerage client, signal pipeline, order update stream and HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"options-webhook-trader/api"
	"options-webhook-trader/broker"
	"options-webhook-trader/cache"
	"options-webhook-trader/config"
	"options-webhook-trader/database"
	"options-webhook-trader/realtime"
	"options-webhook-trader/trading"
)

// App represents the main application
type App struct {
	config   *config.Config
	db       *database.Database
	redis    *cache.RedisClient
	repo     *database.OrderRepository
	pipeline *trading.Pipeline
	events   *realtime.Broker

	streamMu sync.Mutex
	stream   *broker.Stream
}

// New creates a new application instance
func New(cfg *config.Config) *App {
	return &App{
		config: cfg,
	}
}

// Start starts the application
func (a *App) Start() error {
	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Database Connection
	fmt.Println("🗄️  Connecting to database...")
	db, err := database.Connect(database.Config{
		Host:     a.config.DatabaseHost,
		Port:     a.config.DatabasePort,
		User:     a.config.DatabaseUser,
		Password: a.config.DatabasePassword,
		DBName:   a.config.DatabaseName,
	})
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	// 2. Redis Connection
	fmt.Println("🧠 Connecting to Redis...")
	redisClient := cache.NewRedisClient(
		a.config.RedisHost,
		a.config.RedisPort,
		a.config.RedisPassword,
	)
	if redisClient == nil {
		fmt.Println("⚠️  Redis connection failed. Caching disabled.")
	} else {
		a.redis = redisClient
	}

	// 3. Schema + repository
	a.repo = database.NewOrderRepository(a.db, a.redis)
	if err := a.repo.InitSchema(); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// 4. Order event broker (SSE)
	a.events = realtime.NewBroker()

	// 5. Signal pipeline with an injected brokerage client factory
	requestTimeout := time.Duration(a.config.Trading.RequestTimeoutSeconds) * time.Second
	newBroker := func(apiKey, apiSecret string) trading.Broker {
		return broker.NewClient(a.config.BrokerBaseURL, a.config.DataBaseURL, apiKey, apiSecret, requestTimeout)
	}
	a.pipeline = trading.NewPipeline(a.repo, newBroker, a.events, trading.Options{
		FallbackAPIKey:    a.config.AlpacaAPIKey,
		FallbackAPISecret: a.config.AlpacaAPISecret,
		RetryAttempts:     a.config.Trading.RetryAttempts,
		RetryBackoff:      time.Duration(a.config.Trading.RetryBackoffMillis) * time.Millisecond,
	})

	// 6. API Server
	apiServer := api.NewServer(a.repo, a.pipeline, a.events, a.redis, a.config.Trading.DefaultTicker)
	go func() {
		if err := apiServer.Start(a.config.APIPort); err != nil {
			log.Printf("⚠️  API server failed: %v", err)
		}
	}()

	// 7. Broker order update stream
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.runOrderStream(ctx)
	}()

	// 8. Wait for interrupt and perform graceful shutdown
	err = a.gracefulShutdown(cancel)
	wg.Wait()
	return err
}

// streamCredentials resolves the credentials the update stream authenticates
// with: the active stored config, else the environment fallback
func (a *App) streamCredentials() (string, string, bool) {
	cfg, err := a.repo.ActiveConfig()
	if err == nil && cfg != nil && cfg.APIKey != "" && cfg.APISecret != "" {
		return cfg.APIKey, cfg.APISecret, true
	}
	if a.config.AlpacaAPIKey != "" && a.config.AlpacaAPISecret != "" {
		return a.config.AlpacaAPIKey, a.config.AlpacaAPISecret, true
	}
	return "", "", false
}

// Reconnect pacing for the order update stream
const (
	initialReconnectDelay = 5 * time.Second
	maxReconnectDelay     = 60 * time.Second
)

// nextReconnectDelay doubles the delay up to the cap
func nextReconnectDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}

// waitReconnect sleeps for d, or returns false if the context ends first
func waitReconnect(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// runOrderStream keeps a trade_updates connection alive and applies upstream
// order events to stored orders. Every reconnect attempt waits out the
// current backoff delay first, including after a read failure, and
// re-resolves credentials so ones saved via the settings endpoint enable the
// stream without a restart.
func (a *App) runOrderStream(ctx context.Context) {
	reconnectDelay := initialReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		apiKey, apiSecret, ok := a.streamCredentials()
		if !ok {
			log.Println("ℹ️  No credentials configured, order update stream idle")
			if !waitReconnect(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = nextReconnectDelay(reconnectDelay)
			continue
		}

		stream := broker.NewStream(a.config.StreamURL, apiKey, apiSecret)
		if err := stream.Connect(); err != nil {
			log.Printf("⚠️  Order stream connection failed: %v", err)
			log.Printf("🔄 Retrying in %v...", reconnectDelay)
			if !waitReconnect(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = nextReconnectDelay(reconnectDelay)
			continue
		}

		a.streamMu.Lock()
		a.stream = stream
		a.streamMu.Unlock()

		for {
			update, err := stream.ReadUpdate()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				log.Printf("⚠️  Order stream error: %v", err)
				stream.Close()
				break
			}
			if update == nil {
				continue
			}
			// Reset the backoff only once real traffic arrives; a server
			// that accepts the handshake and drops the connection still
			// backs off
			reconnectDelay = initialReconnectDelay
			a.applyOrderUpdate(update)
		}

		log.Printf("🔄 Reconnecting in %v...", reconnectDelay)
		if !waitReconnect(ctx, reconnectDelay) {
			return
		}
		reconnectDelay = nextReconnectDelay(reconnectDelay)
	}
}

// applyOrderUpdate reconciles one upstream order event with the local store
func (a *App) applyOrderUpdate(update *broker.OrderUpdate) {
	order, err := a.repo.OrderByBrokerID(update.Order.ID)
	if err != nil {
		var notFound *database.NotFoundError
		if errors.As(err, &notFound) {
			// Order placed outside this system, nothing to reconcile
			return
		}
		log.Printf("⚠️  Failed to load order for update %s: %v", update.Order.ID, err)
		return
	}

	if !trading.ApplyBrokerStatus(order, update.Order.Status, update.Order.FilledAt) {
		return
	}

	if err := a.repo.UpdateOrder(order); err != nil {
		log.Printf("⚠️  Failed to persist order update %d: %v", order.ID, err)
		return
	}

	a.events.PublishOrder("order_update", order)
	if price, ok := update.FillPrice(); ok {
		log.Printf("🔄 Order %d updated from stream: %s (%s) at %s", order.ID, update.Event, update.Order.Status, price)
		return
	}
	log.Printf("🔄 Order %d updated from stream: %s (%s)", order.ID, update.Event, update.Order.Status)
}

// gracefulShutdown handles graceful shutdown with timeout
func (a *App) gracefulShutdown(cancel context.CancelFunc) error {
	// Setup signal handling
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	// Wait for interrupt signal
	<-interrupt
	fmt.Println("\n🛑 Shutdown signal received, initiating graceful shutdown...")

	// Cancel context to stop all goroutines
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		// Close stream connection
		a.streamMu.Lock()
		if a.stream != nil {
			fmt.Println("📡 Closing order update stream...")
			if err := a.stream.Close(); err != nil {
				log.Printf("Error closing order stream: %v", err)
			}
		}
		a.streamMu.Unlock()

		// Close database connection
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				log.Printf("Error closing database: %v", err)
			} else {
				fmt.Println("✅ Database connection closed")
			}
		}

		// Close Redis connection
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				log.Printf("Error closing redis: %v", err)
			} else {
				fmt.Println("✅ Redis connection closed")
			}
		}

		close(shutdownComplete)
	}()

	// Wait for shutdown to complete or timeout
	select {
	case <-shutdownComplete:
		fmt.Println("✅ Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		fmt.Println("⚠️  Shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}

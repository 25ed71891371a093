// Package api exposes the HTTP boundary: webhook intake for trading signals
// and the dashboard-support endpoints (orders, stats, settings, events).
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"options-webhook-trader/cache"
	"options-webhook-trader/database"
	"options-webhook-trader/trading"
)

// SignalProcessor is the pipeline surface the HTTP layer depends on
type SignalProcessor interface {
	Run(ctx context.Context, sig trading.Signal, meta trading.RequestMeta) (*database.Order, error)
	TestConnection(ctx context.Context) (bool, string)
	BrokerForActiveConfig() (trading.Broker, error)
	Executor() *trading.Executor
}

// Server handles HTTP API requests
type Server struct {
	repo          *database.OrderRepository
	pipeline      SignalProcessor
	events        http.Handler // SSE endpoint, optional
	redis         *cache.RedisClient
	defaultTicker string
}

// NewServer creates a new API server instance
func NewServer(repo *database.OrderRepository, pipeline SignalProcessor, events http.Handler, redis *cache.RedisClient, defaultTicker string) *Server {
	return &Server{
		repo:          repo,
		pipeline:      pipeline,
		events:        events,
		redis:         redis,
		defaultTicker: defaultTicker,
	}
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()

	// Signal intake
	mux.HandleFunc("POST /webhook", s.handleWebhook)

	// Dashboard support routes
	mux.HandleFunc("GET /api/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("POST /api/orders/{id}/refresh", s.handleRefreshOrder)
	mux.HandleFunc("GET /api/logs", s.handleListWebhookLogs)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// Settings routes
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleSaveConfig)

	// Live order events (SSE)
	if s.events != nil {
		mux.Handle("GET /api/events", s.events)
	}

	mux.HandleFunc("GET /api/health", s.handleHealth)

	addr := fmt.Sprintf(":%d", port)
	log.Printf("🌐 API server listening on %s", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

// handleHealth returns the health status of the API
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

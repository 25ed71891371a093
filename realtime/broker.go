// Package realtime streams order lifecycle events to dashboard clients over
// Server-Sent Events.
package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"options-webhook-trader/database"
)

// OrderEvent is one SSE payload: an order and what just happened to it
type OrderEvent struct {
	Event string          `json:"event"`
	Order *database.Order `json:"order"`
}

// Broker fans order events out to connected SSE clients. Slow clients are
// skipped rather than blocking the pipeline.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

// NewBroker creates an SSE broker
func NewBroker() *Broker {
	return &Broker{
		clients: make(map[chan []byte]struct{}),
	}
}

// PublishOrder broadcasts an order lifecycle event to all connected clients
func (b *Broker) PublishOrder(event string, order *database.Order) {
	msg, err := json.Marshal(OrderEvent{Event: event, Order: order})
	if err != nil {
		log.Printf("Error marshalling order event: %v", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- msg:
		default:
			// Skip if client buffer is full to prevent blocking
		}
	}
}

// ServeHTTP handles the SSE endpoint
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client := make(chan []byte, 10)
	b.subscribe(client)
	defer b.unsubscribe(client)

	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case msg := <-client:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (b *Broker) subscribe(client chan []byte) {
	b.mu.Lock()
	b.clients[client] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()
	log.Printf("SSE client connected. Total: %d", count)
}

func (b *Broker) unsubscribe(client chan []byte) {
	b.mu.Lock()
	delete(b.clients, client)
	count := len(b.clients)
	b.mu.Unlock()
	log.Printf("SSE client disconnected. Total: %d", count)
}

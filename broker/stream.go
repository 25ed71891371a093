package broker

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// OrderUpdate is one trade_updates event: the brokerage pushed a status
// change (fill, partial fill, cancel, rejection) for a live order.
type OrderUpdate struct {
	Event string      `json:"event"` // fill, partial_fill, canceled, rejected, new, ...
	Price *string     `json:"price,omitempty"`
	Order BrokerOrder `json:"order"`
}

// FillPrice returns the event fill price if present
func (u *OrderUpdate) FillPrice() (decimal.Decimal, bool) {
	if u.Price == nil {
		return decimal.Zero, false
	}
	p, err := decimal.NewFromString(*u.Price)
	if err != nil {
		return decimal.Zero, false
	}
	return p, true
}

// streamMessage is the envelope of every frame on the stream
type streamMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type streamAuthData struct {
	KeyID     string `json:"key_id"`
	SecretKey string `json:"secret_key"`
}

type streamRequest struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
}

// Stream is a websocket client for the Alpaca trade_updates stream. It keeps
// the local order table in sync with broker-side fills and cancels without
// polling.
type Stream struct {
	url       string
	apiKey    string
	apiSecret string
	conn      *websocket.Conn
	writeMu   sync.Mutex
}

// NewStream creates a trade_updates stream client
func NewStream(url, apiKey, apiSecret string) *Stream {
	return &Stream{
		url:       url,
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// Connect dials the stream, authenticates and subscribes to trade_updates
func (s *Stream) Connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.url, err)
	}
	s.conn = conn

	auth := streamRequest{
		Action: "authenticate",
		Data:   streamAuthData{KeyID: s.apiKey, SecretKey: s.apiSecret},
	}
	if err := s.writeJSON(auth); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send authentication: %w", err)
	}

	listen := streamRequest{
		Action: "listen",
		Data:   map[string][]string{"streams": {"trade_updates"}},
	}
	if err := s.writeJSON(listen); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send subscription: %w", err)
	}

	log.Printf("✅ Connected to order update stream at %s", s.url)
	return nil
}

// writeJSON sends a JSON frame thread-safely
func (s *Stream) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return s.conn.WriteJSON(v)
}

// ReadUpdate blocks until the next trade_updates event arrives. Frames from
// other streams (authorization acks, listen acks) return (nil, nil).
func (s *Stream) ReadUpdate() (*OrderUpdate, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("connection is nil")
	}

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stream message: %w", err)
	}

	if msg.Stream != "trade_updates" {
		return nil, nil
	}

	var update OrderUpdate
	if err := json.Unmarshal(msg.Data, &update); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order update: %w", err)
	}
	return &update, nil
}

// Close closes the stream connection
func (s *Stream) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

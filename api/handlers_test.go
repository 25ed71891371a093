package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"options-webhook-trader/database"
	"options-webhook-trader/trading"
)

// stubPipeline records the signal it was handed and returns a scripted result
type stubPipeline struct {
	runs    []trading.Signal
	metas   []trading.RequestMeta
	order   *database.Order
	runErr  error
	connOK  bool
	connMsg string
}

func (s *stubPipeline) Run(ctx context.Context, sig trading.Signal, meta trading.RequestMeta) (*database.Order, error) {
	s.runs = append(s.runs, sig)
	s.metas = append(s.metas, meta)
	return s.order, s.runErr
}

func (s *stubPipeline) TestConnection(ctx context.Context) (bool, string) {
	return s.connOK, s.connMsg
}

func (s *stubPipeline) BrokerForActiveConfig() (trading.Broker, error) {
	return nil, errors.New("not configured")
}

func (s *stubPipeline) Executor() *trading.Executor {
	return nil
}

func newWebhookServer(p *stubPipeline) *Server {
	return NewServer(nil, p, nil, nil, "SPY")
}

func postWebhook(t *testing.T, s *Server, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "TradingView-Webhook")
	req.RemoteAddr = "10.0.0.1:55000"
	rec := httptest.NewRecorder()
	s.handleWebhook(rec, req)
	return rec
}

func TestWebhookSuccess(t *testing.T) {
	p := &stubPipeline{order: &database.Order{
		ID:             7,
		Ticker:         "AAPL",
		Signal:         "CALL",
		Quantity:       1,
		ContractSymbol: "AAPL240112C00190000",
		ExpiryDate:     "2024-01-12",
		OrderStatus:    database.OrderStatusSubmitted,
		BrokerOrderID:  "broker-order-1",
	}}

	rec := postWebhook(t, newWebhookServer(p), `{"signal":"CALL","ticker":"AAPL","qty":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if len(p.runs) != 1 {
		t.Fatalf("pipeline invoked %d times, want 1", len(p.runs))
	}
	sig := p.runs[0]
	if sig.Ticker != "AAPL" || sig.Side != trading.SideCall || sig.Quantity != 1 {
		t.Errorf("pipeline received signal %+v", sig)
	}
	if p.metas[0].UserAgent != "TradingView-Webhook" {
		t.Errorf("user agent %q not captured", p.metas[0].UserAgent)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["success"] != true {
		t.Error("expected success=true")
	}
	if resp["order_id"] != float64(7) {
		t.Errorf("order_id %v, want 7", resp["order_id"])
	}
	if resp["contract_symbol"] != "AAPL240112C00190000" {
		t.Errorf("contract_symbol %v", resp["contract_symbol"])
	}
	if resp["broker_order_id"] != "broker-order-1" {
		t.Errorf("broker_order_id %v", resp["broker_order_id"])
	}
}

func TestWebhookDefaults(t *testing.T) {
	p := &stubPipeline{order: &database.Order{ID: 1, OrderStatus: database.OrderStatusSubmitted}}

	rec := postWebhook(t, newWebhookServer(p), `{"signal":"put"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	sig := p.runs[0]
	if sig.Ticker != "SPY" {
		t.Errorf("ticker %q, want default SPY", sig.Ticker)
	}
	if sig.Quantity != 1 {
		t.Errorf("quantity %d, want default 1", sig.Quantity)
	}
	// signal string is normalized before the pipeline sees it
	if sig.Side != trading.SidePut {
		t.Errorf("side %q, want PUT", sig.Side)
	}
}

func TestWebhookPipelineFailure(t *testing.T) {
	p := &stubPipeline{
		order:  &database.Order{ID: 3, OrderStatus: database.OrderStatusFailed},
		runErr: errors.New("AuthenticationFailed: invalid credentials"),
	}

	rec := postWebhook(t, newWebhookServer(p), `{"signal":"CALL","ticker":"AAPL"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp["success"] != false {
		t.Error("expected success=false")
	}
	if resp["order_id"] != float64(3) {
		t.Errorf("failed response should still carry order_id, got %v", resp["order_id"])
	}
	if !strings.Contains(resp["error"].(string), "AuthenticationFailed") {
		t.Errorf("error %v should name the failure", resp["error"])
	}
}

func TestWebhookMalformedJSON(t *testing.T) {
	p := &stubPipeline{}

	rec := postWebhook(t, newWebhookServer(p), `{"signal": CALL`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if len(p.runs) != 0 {
		t.Errorf("malformed payload must not reach the pipeline, got %d runs", len(p.runs))
	}
}

func TestWebhookClientIPForwarded(t *testing.T) {
	p := &stubPipeline{order: &database.Order{ID: 1, OrderStatus: database.OrderStatusSubmitted}}
	s := newWebhookServer(p)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"signal":"CALL"}`))
	req.RemoteAddr = "10.0.0.1:55000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	s.handleWebhook(rec, req)

	if p.metas[0].IPAddress != "203.0.113.9" {
		t.Errorf("ip %q, want first X-Forwarded-For hop", p.metas[0].IPAddress)
	}
}

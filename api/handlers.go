package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"options-webhook-trader/database"
	"options-webhook-trader/trading"
)

const connectionStatusCacheKey = "connection_status"

// webhookRequest is the inbound signal payload
type webhookRequest struct {
	Signal string `json:"signal"`
	Ticker string `json:"ticker"`
	Qty    *int   `json:"qty"`
}

// handleWebhook receives a trading signal, hands it to the pipeline and
// reports the outcome. The pipeline owns all persistence; this handler only
// parses and shapes the request.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	ticker := strings.TrimSpace(req.Ticker)
	if ticker == "" {
		ticker = s.defaultTicker
	}
	quantity := 1
	if req.Qty != nil {
		quantity = *req.Qty
	}

	sig := trading.Signal{
		Ticker:     ticker,
		Side:       trading.Side(strings.ToUpper(strings.TrimSpace(req.Signal))),
		Quantity:   quantity,
		ReceivedAt: time.Now().UTC(),
	}
	meta := trading.RequestMeta{
		RawPayload: body,
		IPAddress:  clientIP(r),
		UserAgent:  r.Header.Get("User-Agent"),
	}

	order, err := s.pipeline.Run(r.Context(), sig, meta)
	if err != nil {
		resp := map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		}
		if order != nil {
			resp["order_id"] = order.ID
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"message":         order.Signal + " order placed successfully",
		"order_id":        order.ID,
		"contract_symbol": order.ContractSymbol,
		"strike_price":    order.StrikePrice,
		"expiry_date":     order.ExpiryDate,
		"broker_order_id": order.BrokerOrderID,
	})
}

// handleListOrders returns one page of order history
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	page := getIntParam(r, "page", 1)
	perPage := getIntParam(r, "per_page", 20)
	if perPage > 100 {
		perPage = 100
	}

	orders, total, err := s.repo.ListOrders(page, perPage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders":   orders,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// handleGetOrder returns one order by id
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := s.orderFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// handleRefreshOrder re-queries the brokerage for an order's upstream status
// and returns the reconciled order
func (s *Server) handleRefreshOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := s.orderFromPath(w, r)
	if !ok {
		return
	}

	b, err := s.pipeline.BrokerForActiveConfig()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	if err := s.pipeline.Executor().RefreshStatus(r.Context(), b, order); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// handleListWebhookLogs returns the newest audit rows
func (s *Server) handleListWebhookLogs(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}

	logs, err := s.repo.RecentWebhookLogs(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// connectionStatus is the cached brokerage reachability snapshot
type connectionStatus struct {
	IsConnected   bool   `json:"is_connected"`
	ConnectionMsg string `json:"connection_msg"`
}

// handleStats returns order totals plus brokerage connection status
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := s.checkConnection(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_orders":      stats.TotalOrders,
		"successful_orders": stats.SuccessfulOrders,
		"failed_orders":     stats.FailedOrders,
		"pending_orders":    stats.PendingOrders,
		"is_connected":      status.IsConnected,
		"connection_msg":    status.ConnectionMsg,
	})
}

// checkConnection tests the brokerage credentials, cache-first so the stats
// endpoint doesn't hammer the account API on every dashboard poll
func (s *Server) checkConnection(ctx context.Context) connectionStatus {
	if s.redis != nil {
		var cached connectionStatus
		if err := s.redis.Get(ctx, connectionStatusCacheKey, &cached); err == nil {
			return cached
		}
	}

	ok, msg := s.pipeline.TestConnection(ctx)
	status := connectionStatus{IsConnected: ok, ConnectionMsg: msg}

	if s.redis != nil {
		_ = s.redis.Set(ctx, connectionStatusCacheKey, status, 30*time.Second)
	}
	return status
}

// handleGetConfig returns the active credential configuration with the
// secret masked
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.repo.ActiveConfig()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cfg == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"configured": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configured": true,
		"api_key":    maskSecret(cfg.APIKey),
		"updated_at": cfg.UpdatedAt,
	})
}

// configRequest is the settings save payload
type configRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// handleSaveConfig stores new credentials and reports whether they pass a
// connection test
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.APIKey = strings.TrimSpace(req.APIKey)
	req.APISecret = strings.TrimSpace(req.APISecret)
	if req.APIKey == "" || req.APISecret == "" {
		writeError(w, http.StatusBadRequest, "api_key and api_secret are required")
		return
	}

	if _, err := s.repo.SaveConfig(req.APIKey, req.APISecret); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Drop the cached status so the next stats call reflects the new creds
	if s.redis != nil {
		_ = s.redis.Delete(r.Context(), connectionStatusCacheKey)
	}

	ok, msg := s.pipeline.TestConnection(r.Context())
	if !ok {
		log.Printf("⚠️  Saved credentials failed connection test: %s", msg)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"is_connected":   ok,
		"connection_msg": msg,
	})
}

// orderFromPath loads the order addressed by the {id} path segment
func (s *Server) orderFromPath(w http.ResponseWriter, r *http.Request) (*database.Order, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return nil, false
	}

	order, err := s.repo.OrderByID(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return order, true
}

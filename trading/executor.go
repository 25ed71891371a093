package trading

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"options-webhook-trader/broker"
	"options-webhook-trader/database"
)

// Executor submits resolved contracts to the brokerage and reconciles order
// status afterwards
type Executor struct {
	store Store
}

// NewExecutor creates an order executor
func NewExecutor(store Store) *Executor {
	return &Executor{store: store}
}

// Submit places a market buy for the resolved contract.
//
// An order that already left pending is rejected with InvalidStateTransition
// before any outbound call - a retried pipeline invocation must never create
// a duplicate live order. The processing transition is persisted before the
// network call so a crash mid-call leaves a recoverable record instead of an
// order frozen at pending. Submission itself is never retried.
func (e *Executor) Submit(ctx context.Context, b Broker, order *database.Order, contract *Contract) error {
	if order.OrderStatus != database.OrderStatusPending {
		return fmt.Errorf("%w: order %d is already %s", ErrInvalidStateTransition, order.ID, order.OrderStatus)
	}

	order.ContractSymbol = contract.Symbol
	order.StrikePrice = contract.Strike
	order.ExpiryDate = contract.Expiration.Format(expiryDateLayout)
	order.ClientOrderID = uuid.NewString()
	order.OrderStatus = database.OrderStatusProcessing
	if err := e.store.UpdateOrder(order); err != nil {
		return err
	}

	resp, err := b.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:        contract.Symbol,
		Qty:           strconv.Itoa(order.Quantity),
		Side:          "buy",
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: order.ClientOrderID,
	})
	if err != nil {
		kind := ErrBrokerRejected
		if isTransportError(err) {
			kind = ErrServiceUnreachable
		}
		submitErr := fmt.Errorf("%w: %v", kind, err)

		order.OrderStatus = database.OrderStatusFailed
		order.ErrorMessage = submitErr.Error()
		if uerr := e.store.UpdateOrder(order); uerr != nil {
			return fmt.Errorf("%v (and persisting failure: %v)", submitErr, uerr)
		}
		return submitErr
	}

	order.BrokerOrderID = resp.ID
	order.OrderStatus = database.OrderStatusSubmitted
	return e.store.UpdateOrder(order)
}

// RefreshStatus re-queries the brokerage for an order's upstream state and
// persists any change. A no-op for orders that never reached the brokerage.
func (e *Executor) RefreshStatus(ctx context.Context, b Broker, order *database.Order) error {
	if order.BrokerOrderID == "" {
		return nil
	}

	upstream, err := b.GetOrder(ctx, order.BrokerOrderID)
	if err != nil {
		if isTransportError(err) {
			return fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
		}
		return err
	}

	if !ApplyBrokerStatus(order, upstream.Status, upstream.FilledAt) {
		return nil
	}
	return e.store.UpdateOrder(order)
}

// ApplyBrokerStatus maps an upstream order status onto the local order and
// reports whether anything changed. A fill is recorded via filled_at on a
// submitted order; cancel, expiry and rejection become failed.
func ApplyBrokerStatus(order *database.Order, status string, filledAt *time.Time) bool {
	switch status {
	case "filled":
		if order.FilledAt != nil {
			return false
		}
		ts := time.Now().UTC()
		if filledAt != nil {
			ts = *filledAt
		}
		order.FilledAt = &ts
		return true

	case "canceled", "expired", "rejected":
		if order.OrderStatus == database.OrderStatusFailed {
			return false
		}
		order.OrderStatus = database.OrderStatusFailed
		order.ErrorMessage = fmt.Sprintf("%s: broker reported order %s", ErrBrokerRejected, status)
		return true
	}
	return false
}

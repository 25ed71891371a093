package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"options-webhook-trader/broker"
)

// ValidationResult is the outcome of a credential check. OK=false with a
// message means the brokerage answered and rejected the credentials; it is
// never reported as an error.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateCredentials performs a lightweight authenticated account lookup.
// Authentication failure (401/403) is reported in the result, not as an
// error. Everything else returns ServiceUnreachable: network-level failures
// after the bounded retries are exhausted, and non-auth API responses (a 500
// says nothing about the credentials).
func ValidateCredentials(ctx context.Context, b Broker, attempts int, backoff time.Duration) (ValidationResult, error) {
	var account *broker.Account

	err := withRetry(ctx, attempts, backoff, func() error {
		var callErr error
		account, callErr = b.GetAccount(ctx)
		return callErr
	})
	if err != nil {
		var apiErr *broker.APIError
		if errors.As(err, &apiErr) && apiErr.IsAuthError() {
			return ValidationResult{OK: false, Message: fmt.Sprintf("invalid credentials: %d - %s", apiErr.StatusCode, apiErr.Body)}, nil
		}
		return ValidationResult{}, fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
	}

	return ValidationResult{OK: true, Message: fmt.Sprintf("Connection successful (account %s)", account.Status)}, nil
}

// withRetry runs fn up to attempts+1 times, backing off between tries.
// Only transport errors are retried; a response the brokerage actually
// produced is final.
func withRetry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isTransportError(err) {
			return err
		}
		if attempt >= attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
	}
}

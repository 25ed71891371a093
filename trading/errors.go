// Package trading contains the signal execution core: expiration and
// contract resolution, credential validation, order submission and the
// pipeline that sequences them for one inbound signal.
package trading

import (
	"errors"

	"options-webhook-trader/broker"
)

// Pipeline error kinds. Every kind terminates the pipeline for its signal
// and is recorded verbatim in the resulting order's error_message, so the
// kind name leads the message.
var (
	ErrInvalidSignal          = errors.New("InvalidSignal")
	ErrNoActiveConfig         = errors.New("NoActiveConfig")
	ErrAuthenticationFailed   = errors.New("AuthenticationFailed")
	ErrServiceUnreachable     = errors.New("ServiceUnreachable")
	ErrPriceUnavailable       = errors.New("PriceUnavailable")
	ErrNoChainAvailable       = errors.New("NoChainAvailable")
	ErrContractNotFound       = errors.New("ContractNotFound")
	ErrBrokerRejected         = errors.New("BrokerRejected")
	ErrInvalidStateTransition = errors.New("InvalidStateTransition")
)

// isTransportError distinguishes network-level failures (timeout, DNS,
// refused connection) from responses the brokerage actually produced.
func isTransportError(err error) bool {
	var apiErr *broker.APIError
	return !errors.As(err, &apiErr)
}

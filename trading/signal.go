package trading

import (
	"fmt"
	"strings"
	"time"
)

// Side is the directional intent of a signal
type Side string

const (
	SideCall Side = "CALL"
	SidePut  Side = "PUT"
)

// OptionType returns the brokerage chain side identifier for this side
func (s Side) OptionType() string {
	if s == SidePut {
		return "put"
	}
	return "call"
}

// Signal is one inbound trading instruction. Immutable once received.
type Signal struct {
	Ticker     string
	Side       Side
	Quantity   int
	ReceivedAt time.Time
}

// RequestMeta carries the audit context of the webhook call that delivered
// a signal
type RequestMeta struct {
	RawPayload []byte
	IPAddress  string
	UserAgent  string
}

// Validate checks the signal shape: non-empty ticker, valid side, positive
// quantity
func (s Signal) Validate() error {
	if strings.TrimSpace(s.Ticker) == "" {
		return fmt.Errorf("%w: ticker is required", ErrInvalidSignal)
	}
	if s.Side != SideCall && s.Side != SidePut {
		return fmt.Errorf("%w: signal must be 'CALL' or 'PUT', got %q", ErrInvalidSignal, string(s.Side))
	}
	if s.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidSignal, s.Quantity)
	}
	return nil
}

package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"options-webhook-trader/broker"
)

// Contract is a resolved options contract, never persisted independently of
// an order
type Contract struct {
	Symbol     string
	Underlying string
	Strike     decimal.Decimal
	Expiration time.Time
	Side       Side
}

// ResolveContract fetches the options chain for ticker/expiration and selects
// the at-the-money contract for the requested side.
//
// The chain is fetched without a side filter so an empty chain
// (NoChainAvailable) stays distinguishable from a chain that simply lacks the
// requested side (ContractNotFound). Among matching strikes the one with
// minimum absolute distance to the underlying price wins; an exact tie is
// broken toward the lower strike for CALL and the higher strike for PUT,
// keeping a slight in-the-money bias.
func ResolveContract(ctx context.Context, b Broker, ticker string, side Side, expiration time.Time, underlyingPrice decimal.Decimal) (*Contract, error) {
	expiry := expiration.Format(expiryDateLayout)

	chain, err := b.GetOptionContracts(ctx, ticker, expiry)
	if err != nil {
		if isTransportError(err) {
			return nil, fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNoChainAvailable, err)
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no options chain for %s expiring %s", ErrNoChainAvailable, ticker, expiry)
	}

	best := selectATM(chain, side, underlyingPrice)
	if best == nil {
		return nil, fmt.Errorf("%w: no %s contract for %s expiring %s", ErrContractNotFound, side, ticker, expiry)
	}

	return &Contract{
		Symbol:     best.Symbol,
		Underlying: ticker,
		Strike:     best.StrikePrice,
		Expiration: expiration,
		Side:       side,
	}, nil
}

// selectATM picks the strike closest to price among contracts of the given
// side, or nil if the side is absent from the chain
func selectATM(chain []broker.OptionContract, side Side, price decimal.Decimal) *broker.OptionContract {
	var best *broker.OptionContract
	var bestDist decimal.Decimal

	for i := range chain {
		c := &chain[i]
		if c.Type != side.OptionType() {
			continue
		}

		dist := c.StrikePrice.Sub(price).Abs()
		switch {
		case best == nil || dist.LessThan(bestDist):
			best, bestDist = c, dist
		case dist.Equal(bestDist):
			if side == SideCall && c.StrikePrice.LessThan(best.StrikePrice) {
				best = c
			}
			if side == SidePut && c.StrikePrice.GreaterThan(best.StrikePrice) {
				best = c
			}
		}
	}
	return best
}

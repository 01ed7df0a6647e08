package oracle

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	cowswap "github.com/sophon-org/cowswap-sdk-go"
)

// PriceOracle is a price source for fungible tokens. GetPrice returns
// buyable units per one unit of token, against the oracle's reference
// token; GetPricePair returns units of tokenB per unit of tokenA. Both
// results are strictly positive finite ratios.
type PriceOracle interface {
	GetPrice(ctx context.Context, token common.Address) (float64, error)
	GetPricePair(ctx context.Context, tokenA, tokenB common.Address) (float64, error)

	// IsAvailable is a pure predicate, no I/O: whether the oracle can
	// serve the given network at all.
	IsAvailable(network cowswap.Network) bool
}

// CannotGetPriceFromOracle is returned when a price cannot be
// determined at all: unsupported token, decode failure or transport
// failure. It always carries the offending token and the cause.
type CannotGetPriceFromOracle struct {
	Token  common.Address
	Reason string
	Cause  error
}

func (e *CannotGetPriceFromOracle) Error() string {
	msg := fmt.Sprintf("cannot get price for %s: %s", e.Token.Hex(), e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CannotGetPriceFromOracle) Unwrap() error {
	return e.Cause
}

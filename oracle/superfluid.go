package oracle

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	cowswap "github.com/sophon-org/cowswap-sdk-go"
	"github.com/sophon-org/cowswap-sdk-go/chain"
)

// superfluidNetworks is where the wrapper super token protocol is
// deployed.
var superfluidNetworks = map[cowswap.Network]bool{
	cowswap.NetworkPolygon:     true,
	cowswap.NetworkGnosis:      true,
	cowswap.NetworkArbitrumOne: true,
	cowswap.NetworkOptimism:    true,
}

// SuperfluidOracle prices wrapper super tokens by resolving the
// underlying token with a single chain read and delegating to a nested
// oracle. Wrapping is 1:1, so the wrapper's price is the underlying's
// price unchanged. The delegation graph is built once, top-down, and
// holds exactly one nested provider, so it cannot contain cycles.
type SuperfluidOracle struct {
	reader chain.Reader
	nested PriceOracle
}

var _ PriceOracle = (*SuperfluidOracle)(nil)

// NewSuperfluidOracle creates a composite oracle delegating to nested.
func NewSuperfluidOracle(reader chain.Reader, nested PriceOracle) *SuperfluidOracle {
	return &SuperfluidOracle{
		reader: reader,
		nested: nested,
	}
}

// IsAvailable requires both a super token deployment and an available
// nested oracle on the network.
func (o *SuperfluidOracle) IsAvailable(network cowswap.Network) bool {
	return superfluidNetworks[network] && o.nested.IsAvailable(network)
}

// GetPrice resolves the wrapper to its underlying token and returns the
// nested oracle's price for it, unchanged.
func (o *SuperfluidOracle) GetPrice(ctx context.Context, token common.Address) (float64, error) {
	underlying, err := o.resolveUnderlying(ctx, token)
	if err != nil {
		return 0, err
	}
	return o.nested.GetPrice(ctx, underlying)
}

// GetPricePair resolves the wrapper side and delegates the pair lookup.
func (o *SuperfluidOracle) GetPricePair(ctx context.Context, tokenA, tokenB common.Address) (float64, error) {
	underlying, err := o.resolveUnderlying(ctx, tokenA)
	if err != nil {
		return 0, err
	}
	return o.nested.GetPricePair(ctx, underlying, tokenB)
}

// resolveUnderlying performs the one chain read of the delegation. No
// retries here; retry policy belongs to the reader.
func (o *SuperfluidOracle) resolveUnderlying(ctx context.Context, token common.Address) (common.Address, error) {
	underlying, err := o.reader.GetUnderlyingToken(ctx, token)
	if err != nil {
		return common.Address{}, &CannotGetPriceFromOracle{
			Token:  token,
			Reason: "it is not a wrapper super token",
			Cause:  err,
		}
	}
	if underlying == (common.Address{}) {
		return common.Address{}, &CannotGetPriceFromOracle{
			Token:  token,
			Reason: "it is not a wrapper super token: underlying token is the zero address",
		}
	}
	return underlying, nil
}

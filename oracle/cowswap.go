package oracle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	cowswap "github.com/sophon-org/cowswap-sdk-go"
	"github.com/sophon-org/cowswap-sdk-go/chain"
)

// CowswapOracle prices tokens through the batch-auction quote endpoint.
// Single-token lookups are expressed against the network's wrapped
// native token, so GetPrice(WNATIVE) is 1.0 by definition.
type CowswapOracle struct {
	client *cowswap.Client
	reader chain.Reader
}

var _ PriceOracle = (*CowswapOracle)(nil)

// NewCowswapOracle creates an oracle over a quote client and a chain
// reader used for token decimals.
func NewCowswapOracle(client *cowswap.Client, reader chain.Reader) *CowswapOracle {
	return &CowswapOracle{
		client: client,
		reader: reader,
	}
}

// IsAvailable reports whether the orderbook serves the network.
func (o *CowswapOracle) IsAvailable(network cowswap.Network) bool {
	return cowswap.IsSupportedNetwork(network)
}

// GetPrice returns units of the wrapped native token buyable with one
// unit of token.
func (o *CowswapOracle) GetPrice(ctx context.Context, token common.Address) (float64, error) {
	reference := o.client.WrappedNativeToken()
	if token == reference {
		return 1.0, nil
	}
	return o.GetPricePair(ctx, token, reference)
}

// GetPricePair returns units of tokenB per unit of tokenA. Raw quoted
// amounts are normalized by each token's own decimal count before the
// ratio is taken, so a stablecoin pair that differs only in decimals
// still prices near 1.0.
func (o *CowswapOracle) GetPricePair(ctx context.Context, tokenA, tokenB common.Address) (float64, error) {
	decimalsA, err := o.tokenDecimals(ctx, tokenA)
	if err != nil {
		return 0, err
	}
	decimalsB, err := o.tokenDecimals(ctx, tokenB)
	if err != nil {
		return 0, err
	}

	// Quote selling exactly one unit of tokenA
	oneUnit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimalsA)), nil)

	quote, err := o.client.GetEstimatedAmount(tokenA, tokenB, cowswap.OrderKindSell, oneUnit)
	if err != nil {
		return 0, &CannotGetPriceFromOracle{
			Token:  tokenA,
			Reason: fmt.Sprintf("quote for pair %s/%s failed", tokenA.Hex(), tokenB.Hex()),
			Cause:  err,
		}
	}

	if quote.SellAmount == nil || quote.SellAmount.Sign() <= 0 || quote.BuyAmount == nil || quote.BuyAmount.Sign() <= 0 {
		return 0, &CannotGetPriceFromOracle{
			Token:  tokenA,
			Reason: "quote returned a non-positive amount",
		}
	}

	sellNominal := decimal.NewFromBigInt(quote.SellAmount, -int32(decimalsA))
	buyNominal := decimal.NewFromBigInt(quote.BuyAmount, -int32(decimalsB))

	price, _ := buyNominal.Div(sellNominal).Float64()
	if price <= 0 {
		return 0, &CannotGetPriceFromOracle{
			Token:  tokenA,
			Reason: fmt.Sprintf("computed price %f is not strictly positive", price),
		}
	}

	return price, nil
}

// tokenDecimals fetches and bounds-checks a token's decimal count. A
// token without readable decimals cannot be priced, and a count of
// zero makes the quote ratio meaningless.
func (o *CowswapOracle) tokenDecimals(ctx context.Context, token common.Address) (int, error) {
	decimals, err := o.reader.GetDecimals(ctx, token)
	if err != nil {
		return 0, &CannotGetPriceFromOracle{
			Token:  token,
			Reason: fmt.Sprintf("Cannot get decimals for token=%s", token.Hex()),
			Cause:  err,
		}
	}
	if decimals < 1 || decimals > cowswap.MaxTokenDecimals {
		return 0, &CannotGetPriceFromOracle{
			Token:  token,
			Reason: fmt.Sprintf("token decimals %d outside the valid range 1..%d", decimals, cowswap.MaxTokenDecimals),
		}
	}
	return decimals, nil
}

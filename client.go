package cowswap

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sophon-org/cowswap-sdk-go/chain"
)

// Client is a stateless order lifecycle client bound to exactly one
// network. There is deliberately no default network: requests for a
// network without a deployment fail in the constructor, never fall back
// to another endpoint.
type Client struct {
	api        *APIClient
	network    Network
	deployment Deployment
	logger     *slog.Logger
}

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	Network Network `yaml:"network"`
	// APIBaseURL overrides the default orderbook endpoint for the
	// network. Leave empty for the public deployment.
	APIBaseURL  string        `yaml:"api_base_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// NewClient creates a client for one network's orderbook deployment
func NewClient(config ClientConfig) (*Client, error) {
	deployment, ok := DefaultDeployments[config.Network]
	if !ok {
		return nil, fmt.Errorf("%w: chain id %d must be one of %v", ErrUnsupportedNetwork, config.Network, SupportedNetworks)
	}

	if config.APIBaseURL != "" {
		deployment.APIBaseURL = config.APIBaseURL
	}

	return &Client{
		api:        NewAPIClient(deployment.APIBaseURL, config.HTTPTimeout),
		network:    config.Network,
		deployment: deployment,
		logger:     slog.Default().With("component", "cowswap", "network", int64(config.Network)),
	}, nil
}

// Network returns the network the client is bound to
func (c *Client) Network() Network {
	return c.network
}

// WrappedNativeToken returns the network's wrapped native token, the
// reference token for single-token price lookups.
func (c *Client) WrappedNativeToken() common.Address {
	return common.HexToAddress(c.deployment.WrappedNativeToken)
}

// SettlementContract returns the verifying contract orders are signed
// against.
func (c *Client) SettlementContract() common.Address {
	return common.HexToAddress(c.deployment.SettlementContract)
}

// GetEstimatedAmount prices amount of sellToken against buyToken. A
// same-token request is refused locally with the shape the orderbook
// itself would return.
func (c *Client) GetEstimatedAmount(sellToken, buyToken common.Address, kind OrderKind, amount *big.Int) (*Quote, error) {
	if sellToken == buyToken {
		return nil, errSameBuyAndSellToken()
	}

	req := QuoteRequest{
		SellToken: sellToken,
		BuyToken:  buyToken,
		Kind:      kind,
	}
	switch kind {
	case OrderKindSell:
		req.SellAmountBeforeFee = amount
	case OrderKindBuy:
		req.BuyAmountAfterFee = amount
	default:
		return nil, &InvalidParamError{Message: fmt.Sprintf("invalid order kind: %q", kind)}
	}

	quote, err := c.api.GetQuote(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("estimated amount",
		"sellToken", sellToken.Hex(),
		"buyToken", buyToken.Hex(),
		"kind", string(kind),
		"sellAmount", bigIntString(quote.SellAmount),
		"buyAmount", bigIntString(quote.BuyAmount))

	return quote, nil
}

// GetFee returns the estimated fee for the order in sell-token base
// units. The order is not modified.
func (c *Client) GetFee(order *Order, from common.Address) (*big.Int, error) {
	if order.SellToken == order.BuyToken {
		return nil, errSameBuyAndSellToken()
	}

	req := QuoteRequest{
		SellToken: order.SellToken,
		BuyToken:  order.BuyToken,
		From:      from,
		Kind:      order.Kind,
	}
	switch order.Kind {
	case OrderKindSell:
		req.SellAmountBeforeFee = order.SellAmount
	case OrderKindBuy:
		req.BuyAmountAfterFee = order.BuyAmount
	default:
		return nil, &InvalidParamError{Message: fmt.Sprintf("invalid order kind: %q", order.Kind)}
	}

	quote, err := c.api.GetQuote(req)
	if err != nil {
		return nil, err
	}
	if quote.FeeAmount == nil {
		return big.NewInt(0), nil
	}

	return new(big.Int).Set(quote.FeeAmount), nil
}

// EstimateFee returns a copy of the order with the estimated fee
// applied. The counter-side amount is filled from the quote only when
// the caller left it unset, so limit amounts survive. The caller's
// order is never written to; a signature taken over the returned copy
// cannot go stale through this path.
func (c *Client) EstimateFee(order *Order, from common.Address) (*Order, error) {
	if order.SellToken == order.BuyToken {
		return nil, errSameBuyAndSellToken()
	}

	req := QuoteRequest{
		SellToken: order.SellToken,
		BuyToken:  order.BuyToken,
		From:      from,
		Kind:      order.Kind,
	}
	switch order.Kind {
	case OrderKindSell:
		req.SellAmountBeforeFee = order.SellAmount
	case OrderKindBuy:
		req.BuyAmountAfterFee = order.BuyAmount
	default:
		return nil, &InvalidParamError{Message: fmt.Sprintf("invalid order kind: %q", order.Kind)}
	}

	quote, err := c.api.GetQuote(req)
	if err != nil {
		return nil, err
	}

	estimated := order.Clone()
	estimated.FeeAmount = new(big.Int).Set(orZeroBig(quote.FeeAmount))

	switch order.Kind {
	case OrderKindSell:
		if orZeroBig(estimated.BuyAmount).Sign() == 0 && quote.BuyAmount != nil {
			estimated.BuyAmount = new(big.Int).Set(quote.BuyAmount)
		}
	case OrderKindBuy:
		if orZeroBig(estimated.SellAmount).Sign() == 0 && quote.SellAmount != nil {
			estimated.SellAmount = new(big.Int).Set(quote.SellAmount)
		}
	}

	return estimated, nil
}

// SignOrder signs the order with the supplied key against this
// network's settlement domain. The order must not change afterwards.
func (c *Client) SignOrder(order *Order, privateKeyHex string) (*SignedOrder, error) {
	signer, err := chain.NewSigner(c.deployment.SettlementContract, int64(c.network), privateKeyHex)
	if err != nil {
		return nil, err
	}

	params := toOrderParams(order)
	signature, _, err := signer.SignOrder(params)
	if err != nil {
		return nil, err
	}

	return &SignedOrder{
		Order:         order.Clone(),
		Signature:     signature,
		SigningScheme: SigningSchemeEIP712,
		From:          signer.Address(),
	}, nil
}

// OrderUIDOf reconstructs the identifier a signed order will be (or
// was) assigned by the orderbook. It is a pure function of the order
// digest, the owner and validTo.
func (c *Client) OrderUIDOf(signed *SignedOrder) (OrderUID, error) {
	domain := chain.NewEIP712Domain(big.NewInt(int64(c.network)), c.SettlementContract())
	digest, err := chain.SigningDigest(domain, toOrderParams(signed.Order))
	if err != nil {
		return OrderUID{}, err
	}
	return ComputeOrderUID(digest, signed.From, signed.Order.ValidTo), nil
}

// PlaceOrder estimates the fee when unset, signs the order and submits
// it in a single round-trip, returning the order identifier. Protocol
// refusals come back as *OrderError values; the caller's order is left
// untouched either way.
func (c *Client) PlaceOrder(order *Order, privateKeyHex string) (OrderUID, error) {
	signer, err := chain.NewSigner(c.deployment.SettlementContract, int64(c.network), privateKeyHex)
	if err != nil {
		return OrderUID{}, err
	}
	owner := signer.Address()

	work := order.Clone()
	if orZeroBig(work.FeeAmount).Sign() == 0 {
		work, err = c.EstimateFee(work, owner)
		if err != nil {
			return OrderUID{}, err
		}
	}

	signature, digest, err := signer.SignOrder(toOrderParams(work))
	if err != nil {
		return OrderUID{}, err
	}

	signed := &SignedOrder{
		Order:         work,
		Signature:     signature,
		SigningScheme: SigningSchemeEIP712,
		From:          owner,
	}

	uid, err := c.api.PlaceOrder(signed)
	if err != nil {
		return OrderUID{}, err
	}

	// The identifier is reconstructible from the signed order; a
	// mismatch means the service settled a different digest than the
	// one signed here.
	expected := ComputeOrderUID(digest, owner, work.ValidTo)
	if uid != expected {
		return OrderUID{}, fmt.Errorf("orderbook returned uid %s, locally computed %s", uid, expected)
	}

	c.logger.Info("order placed",
		"uid", uid.String(),
		"sellToken", work.SellToken.Hex(),
		"buyToken", work.BuyToken.Hex(),
		"validTo", work.ValidTo)

	return uid, nil
}

// GetOrders fetches the owner's orders, newest first. An owner with no
// orders yields an empty slice.
func (c *Client) GetOrders(owner common.Address) ([]OrderDetail, error) {
	return c.api.GetOrders(owner)
}

// GetOrder fetches one order by its identifier
func (c *Client) GetOrder(uid OrderUID) (*OrderDetail, error) {
	return c.api.GetOrder(uid)
}

// GetTrades fetches the on-chain executions of an order
func (c *Client) GetTrades(uid OrderUID) ([]Trade, error) {
	return c.api.GetTrades(uid)
}

// IsOrderError reports whether err is a protocol refusal and returns
// the refusal value when it is.
func IsOrderError(err error) (*OrderError, bool) {
	var orderErr *OrderError
	if errors.As(err, &orderErr) {
		return orderErr, true
	}
	return nil, false
}

func toOrderParams(order *Order) *chain.OrderParams {
	return &chain.OrderParams{
		SellToken:         order.SellToken,
		BuyToken:          order.BuyToken,
		Receiver:          order.Receiver,
		SellAmount:        orZeroBig(order.SellAmount),
		BuyAmount:         orZeroBig(order.BuyAmount),
		ValidTo:           order.ValidTo,
		AppDataHash:       order.AppDataHash(),
		FeeAmount:         orZeroBig(order.FeeAmount),
		Kind:              string(order.Kind),
		PartiallyFillable: order.PartiallyFillable,
		SellTokenBalance:  string(order.SellTokenBalance),
		BuyTokenBalance:   string(order.BuyTokenBalance),
	}
}

func orZeroBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

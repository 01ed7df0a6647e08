package cowswap

import "errors"

var (
	// ErrUnsupportedNetwork is returned when the orderbook has no
	// deployment for the requested network
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrEmptyResponse is returned when the orderbook answers with an
	// empty body where content was expected
	ErrEmptyResponse = errors.New("empty response from orderbook")
)

// Well-known errorType values returned by the orderbook.
const (
	ErrorTypeSameBuyAndSellToken = "SameBuyAndSellToken"
	ErrorTypeNoLiquidity         = "NoLiquidity"
	ErrorTypeInsufficientFee     = "InsufficientFee"
	ErrorTypeOrderExpired        = "OrderExpired"
)

const sameTokenDescription = "Buy token is the same as the sell token."

// InvalidParamError reports a precondition failure detected locally,
// before any network round-trip.
type InvalidParamError struct {
	Message string
}

func (e *InvalidParamError) Error() string {
	return e.Message
}

// OrderError is the structured refusal shape returned by the orderbook:
// an expected protocol outcome, not a system fault. Callers branch on
// ErrorType with errors.As.
type OrderError struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
}

func (e *OrderError) Error() string {
	return e.ErrorType + ": " + e.Description
}

// errSameBuyAndSellToken mirrors the refusal the orderbook itself would
// produce, so local precondition checks and remote refusals are
// indistinguishable to callers.
func errSameBuyAndSellToken() *OrderError {
	return &OrderError{
		ErrorType:   ErrorTypeSameBuyAndSellToken,
		Description: sameTokenDescription,
	}
}
